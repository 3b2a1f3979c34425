package rooms

import "github.com/eldtechnologies/roomdrop/internal/apperr"

var (
	ErrRoomNotFound    = apperr.NotFound("room not found or expired")
	ErrMessageNotFound = apperr.NotFound("message not found")
	ErrExhausted       = apperr.Exhausted("could not allocate a room code, please retry")
)
