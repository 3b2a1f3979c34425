package models

// MessageType distinguishes the payload carried by a Message.
type MessageType string

const (
	MessageText MessageType = "text"
	MessageFile MessageType = "file"
)

// Message is a single entry in a room. Messages never change once stored.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"` // Unix ms
	Content   string      `json:"content,omitempty"`
	FileName  string      `json:"fileName,omitempty"`
	FileSize  int64       `json:"fileSize,omitempty"`
	FileURL   string      `json:"fileUrl,omitempty"`
}
