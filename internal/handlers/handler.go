package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/roomdrop/internal/apperr"
	"github.com/eldtechnologies/roomdrop/internal/rooms"
	"github.com/eldtechnologies/roomdrop/internal/store"
	"github.com/eldtechnologies/roomdrop/internal/upload"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	rooms    *rooms.Service
	tokens   *upload.TokenIssuer
	kv       store.KVStore
	logger   zerolog.Logger
	validate *validator.Validate
}

// NewHandler creates a new Handler.
func NewHandler(roomSvc *rooms.Service, tokens *upload.TokenIssuer, kv store.KVStore, logger zerolog.Logger) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation messages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &Handler{
		rooms:    roomSvc,
		tokens:   tokens,
		kv:       kv,
		logger:   logger,
		validate: v,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Fail converts err into a JSON error response. Server-side failures are
// logged with their cause; clients only see the public message.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().
			Err(err).
			Str("kind", apperr.KindOf(err).String()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("request failed")
	}
	h.Error(w, status, apperr.PublicMessage(err))
}

// MethodNotAllowed answers requests using a method a route does not accept.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.Error(w, http.StatusMethodNotAllowed, "method not allowed")
}

// NotFound answers requests for unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.Error(w, http.StatusNotFound, "not found")
}

// errBodyTooLarge is reported when the body exceeds the configured limit.
var errBodyTooLarge = errors.New("request body too large")

// decode parses the JSON body into dst and validates it. It returns a
// validation error describing the first problem found.
func (h *Handler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return apperr.Validation("request body is required")
		default:
			return apperr.Validation("invalid JSON body")
		}
	}

	if err := h.validate.Struct(dst); err != nil {
		return apperr.Validation(validationMessage(err))
	}
	return nil
}

// failDecode writes the response for an error returned by decode.
func (h *Handler) failDecode(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		h.Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	h.Fail(w, r, err)
}

// validationMessage renders the first validator failure as a sentence.
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request"
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " is too long"
	default:
		return fe.Field() + " is invalid"
	}
}
