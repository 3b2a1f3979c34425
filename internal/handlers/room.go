package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/roomdrop/internal/models"
	"github.com/eldtechnologies/roomdrop/internal/rooms"
)

// CreateRoomResponse represents the room creation response.
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// RoomResponse represents the get room response.
type RoomResponse struct {
	Messages  []models.Message `json:"messages"`
	CreatedAt int64            `json:"createdAt"`
}

// PostMessageRequest is the body of a send. Type selects which of the
// remaining fields are read.
type PostMessageRequest struct {
	RoomID   string             `json:"roomId" validate:"required"`
	Type     models.MessageType `json:"type" validate:"required,oneof=text file"`
	Content  string             `json:"content"`
	FileName string             `json:"fileName" validate:"max=1024"`
	FileSize int64              `json:"fileSize" validate:"gte=0"`
	FileURL  string             `json:"fileUrl" validate:"max=4096"`
}

// Payload converts the request into the typed message payload.
func (req PostMessageRequest) Payload() rooms.Payload {
	switch req.Type {
	case models.MessageText:
		return rooms.TextPayload{Content: req.Content}
	case models.MessageFile:
		return rooms.FilePayload{Name: req.FileName, Size: req.FileSize, URL: req.FileURL}
	}
	return nil
}

// PostMessageResponse represents the post message response.
type PostMessageResponse struct {
	Success bool            `json:"success"`
	Message *models.Message `json:"message"`
}

// DeleteMessageRequest is the body of a message removal.
type DeleteMessageRequest struct {
	RoomID    string `json:"roomId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
}

// DeleteRoomRequest is the body of a room deletion.
type DeleteRoomRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

// SuccessResponse acknowledges a mutation.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// CreateRoom handles room creation. The request body is ignored.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	code, err := h.rooms.CreateRoom(r.Context())
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, CreateRoomResponse{RoomID: code})
}

// GetRoom handles fetching a room's messages.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, RoomResponse{
		Messages:  room.Messages,
		CreatedAt: room.CreatedAt,
	})
}

// PostMessage handles appending a text or file message to a room.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := h.decode(r, &req); err != nil {
		h.failDecode(w, r, err)
		return
	}

	msg, err := h.rooms.AppendMessage(r.Context(), req.RoomID, req.Payload())
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, PostMessageResponse{Success: true, Message: msg})
}

// DeleteMessage handles removing one message from a room.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req DeleteMessageRequest
	if err := h.decode(r, &req); err != nil {
		h.failDecode(w, r, err)
		return
	}

	if err := h.rooms.RemoveMessage(r.Context(), req.RoomID, req.MessageID); err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// DeleteRoom handles explicit room deletion.
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	var req DeleteRoomRequest
	if err := h.decode(r, &req); err != nil {
		h.failDecode(w, r, err)
		return
	}

	if err := h.rooms.DeleteRoom(r.Context(), req.RoomID); err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, SuccessResponse{Success: true})
}
