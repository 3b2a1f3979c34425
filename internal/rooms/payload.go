package rooms

import (
	"strings"

	"github.com/eldtechnologies/roomdrop/internal/apperr"
	"github.com/eldtechnologies/roomdrop/internal/models"
)

// Payload is the type-specific part of a new message. It is implemented by
// TextPayload and FilePayload only.
type Payload interface {
	Type() models.MessageType
	validate() error
	apply(msg *models.Message)
}

// TextPayload carries a text snippet. Content is stored as sent; only its
// trimmed form has to be non-empty.
type TextPayload struct {
	Content string
}

func (TextPayload) Type() models.MessageType { return models.MessageText }

func (p TextPayload) validate() error {
	if strings.TrimSpace(p.Content) == "" {
		return apperr.Validation("text content must not be empty")
	}
	return nil
}

func (p TextPayload) apply(msg *models.Message) {
	msg.Content = p.Content
}

// FilePayload links to a file already uploaded to object storage.
type FilePayload struct {
	Name string
	Size int64
	URL  string
}

func (FilePayload) Type() models.MessageType { return models.MessageFile }

func (p FilePayload) validate() error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.URL) == "" {
		return apperr.Validation("file name and url are required")
	}
	if p.Size < 0 {
		return apperr.Validation("file size must not be negative")
	}
	return nil
}

func (p FilePayload) apply(msg *models.Message) {
	msg.FileName = p.Name
	msg.FileSize = p.Size
	msg.FileURL = p.URL
}
