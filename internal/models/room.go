package models

import "time"

// Room is the document stored under a room code. The whole document is
// rewritten on every mutation.
type Room struct {
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"` // Unix ms
}

// NewRoom returns an empty room created at now.
func NewRoom(now time.Time) *Room {
	return &Room{
		Messages:  []Message{},
		CreatedAt: now.UnixMilli(),
	}
}
