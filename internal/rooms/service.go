// Package rooms implements the room lifecycle and the message list kept
// inside each room document.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/eldtechnologies/roomdrop/internal/apperr"
	"github.com/eldtechnologies/roomdrop/internal/metrics"
	"github.com/eldtechnologies/roomdrop/internal/models"
	"github.com/eldtechnologies/roomdrop/internal/store"
)

const (
	// DefaultRoomTTL is how long a room lives after creation.
	DefaultRoomTTL = 24 * time.Hour
	// DefaultCodeAttempts bounds the collision-checked code generations per room.
	DefaultCodeAttempts = 10
)

// Service creates, reads and mutates room documents. It holds no state of
// its own; concurrent writers to the same room race and the last full
// document written wins.
type Service struct {
	kv       store.KVStore
	logger   zerolog.Logger
	ttl      time.Duration
	attempts int
	newCode  func() (string, error)
	newID    func() string
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides the room lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCodeAttempts overrides the number of code generations tried per room.
func WithCodeAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithCodeGenerator replaces the room code source.
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(s *Service) { s.newCode = fn }
}

// WithIDGenerator replaces the message id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithClock replaces the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) { s.now = fn }
}

// NewService creates a Service backed by kv.
func NewService(kv store.KVStore, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		kv:       kv,
		logger:   logger.With().Str("component", "rooms").Logger(),
		ttl:      DefaultRoomTTL,
		attempts: DefaultCodeAttempts,
		newCode:  NewCode,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetime given to new rooms.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// CreateRoom allocates a free code and stores an empty room under it.
func (s *Service) CreateRoom(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.attempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return "", apperr.Internal(fmt.Errorf("generate room code: %w", err))
		}

		key := store.RoomKey(code)
		_, err = s.kv.Get(ctx, key)
		if err == nil {
			metrics.RoomCodeCollisions.Inc()
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", apperr.Internal(fmt.Errorf("check room %s: %w", code, err))
		}

		if err := s.save(ctx, key, models.NewRoom(s.now()), s.ttl); err != nil {
			return "", err
		}

		metrics.RoomsCreated.Inc()
		s.logger.Debug().Str("room", code).Int("attempt", attempt+1).Msg("room created")
		return code, nil
	}

	s.logger.Warn().Int("attempts", s.attempts).Msg("room code space exhausted")
	return "", ErrExhausted
}

// GetRoom returns the room stored under code. Codes are case-insensitive.
func (s *Service) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	room, _, err := s.load(ctx, code)
	return room, err
}

// DeleteRoom removes the room stored under code.
func (s *Service) DeleteRoom(ctx context.Context, code string) error {
	code, ok := NormalizeCode(code)
	if !ok {
		return ErrRoomNotFound
	}

	removed, err := s.kv.Del(ctx, store.RoomKey(code))
	if err != nil {
		return apperr.Internal(fmt.Errorf("delete room %s: %w", code, err))
	}
	if removed == 0 {
		return ErrRoomNotFound
	}

	metrics.RoomsDeleted.Inc()
	s.logger.Debug().Str("room", code).Msg("room deleted")
	return nil
}

// AppendMessage adds a message built from payload to the end of the room's
// list. The room keeps the expiry it had before the write.
func (s *Service) AppendMessage(ctx context.Context, code string, payload Payload) (*models.Message, error) {
	room, key, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}

	if payload == nil {
		return nil, apperr.Validation("invalid message type")
	}
	if err := payload.validate(); err != nil {
		return nil, err
	}

	msg := models.Message{
		ID:        s.newID(),
		Type:      payload.Type(),
		Timestamp: s.now().UnixMilli(),
	}
	payload.apply(&msg)

	ttl, err := s.remainingTTL(ctx, key)
	if err != nil {
		return nil, err
	}

	room.Messages = append(room.Messages, msg)
	if err := s.save(ctx, key, room, ttl); err != nil {
		return nil, err
	}

	metrics.MessagesPosted.WithLabelValues(string(msg.Type)).Inc()
	return &msg, nil
}

// RemoveMessage deletes the message with the given id from the room,
// keeping the order of the remaining messages and the room's expiry.
func (s *Service) RemoveMessage(ctx context.Context, code, messageID string) error {
	room, key, err := s.load(ctx, code)
	if err != nil {
		return err
	}

	_, idx, found := lo.FindIndexOf(room.Messages, func(m models.Message) bool {
		return m.ID == messageID
	})
	if !found {
		return ErrMessageNotFound
	}

	ttl, err := s.remainingTTL(ctx, key)
	if err != nil {
		return err
	}

	room.Messages = slices.Delete(room.Messages, idx, idx+1)
	if err := s.save(ctx, key, room, ttl); err != nil {
		return err
	}

	metrics.MessagesRemoved.Inc()
	return nil
}

// load fetches and decodes the room stored under code, returning the key it
// was read from.
func (s *Service) load(ctx context.Context, code string) (*models.Room, string, error) {
	code, ok := NormalizeCode(code)
	if !ok {
		return nil, "", ErrRoomNotFound
	}

	key := store.RoomKey(code)
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", ErrRoomNotFound
	}
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("load room %s: %w", code, err))
	}

	room, err := models.DecodeRoom(data)
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("decode room %s: %w", code, err))
	}
	return room, key, nil
}

// remainingTTL returns the expiry to re-apply when rewriting key. A key
// without expiry gets the full room lifetime; a key that vanished since it
// was read is reported as not found rather than recreated.
func (s *Service) remainingTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.kv.TTL(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrRoomNotFound
	}
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("read ttl of %s: %w", key, err))
	}
	if ttl <= 0 {
		return s.ttl, nil
	}
	return ttl, nil
}

func (s *Service) save(ctx context.Context, key string, room *models.Room, ttl time.Duration) error {
	data, err := models.EncodeRoom(room)
	if err != nil {
		return apperr.Internal(fmt.Errorf("encode %s: %w", key, err))
	}
	if err := s.kv.Set(ctx, key, data, ttl); err != nil {
		return apperr.Internal(fmt.Errorf("store %s: %w", key, err))
	}
	return nil
}
