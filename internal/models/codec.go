package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedRoom is returned when a stored document cannot be decoded.
var ErrMalformedRoom = errors.New("malformed room document")

// EncodeRoom serializes a room for storage. A nil message list is written as
// an empty array so readers never see null.
func EncodeRoom(room *Room) ([]byte, error) {
	if room == nil {
		return nil, fmt.Errorf("%w: nil room", ErrMalformedRoom)
	}
	doc := *room
	if doc.Messages == nil {
		doc.Messages = []Message{}
	}
	return json.Marshal(doc)
}

// DecodeRoom parses a stored room document. Documents written as a JSON
// string holding the encoded object are accepted as well.
func DecodeRoom(data []byte) (*Room, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedRoom)
	}

	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRoom, err)
		}
		data = bytes.TrimSpace([]byte(inner))
		if len(data) == 0 || data[0] != '{' {
			return nil, fmt.Errorf("%w: not an object", ErrMalformedRoom)
		}
	}

	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRoom, err)
	}
	if room.Messages == nil {
		room.Messages = []Message{}
	}
	return &room, nil
}
