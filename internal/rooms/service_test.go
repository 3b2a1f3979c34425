package rooms

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/roomdrop/internal/apperr"
	"github.com/eldtechnologies/roomdrop/internal/models"
	"github.com/eldtechnologies/roomdrop/internal/store"
)

var testNow = time.UnixMilli(1_700_000_000_000)

func newTestService(t *testing.T, opts ...Option) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	kv, err := store.NewRedisStore(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	seq := 0
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("msg-%d", seq)
		}),
	}
	return NewService(kv, zerolog.Nop(), append(base, opts...)...), mr
}

// codes returns a generator yielding the given codes, then repeating the last one.
func codes(list ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := list[i]
		if i < len(list)-1 {
			i++
		}
		return c, nil
	}
}

func TestCreateRoom(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{3}[A-F]$`, code)

	raw, err := mr.Get(store.RoomKey(code))
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[],"createdAt":1700000000000}`, raw)
	assert.Equal(t, DefaultRoomTTL, mr.TTL(store.RoomKey(code)))
}

func TestCreateRoom_RetriesOnCollision(t *testing.T) {
	svc, mr := newTestService(t, WithCodeGenerator(codes("111A", "111A", "222B")))
	require.NoError(t, mr.Set(store.RoomKey("111A"), `{"messages":[],"createdAt":1}`))

	code, err := svc.CreateRoom(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "222B", code)

	// The colliding room is left untouched.
	raw, err := mr.Get(store.RoomKey("111A"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[],"createdAt":1}`, raw)
}

func TestCreateRoom_Exhausted(t *testing.T) {
	calls := 0
	gen := func() (string, error) {
		calls++
		return "111A", nil
	}
	svc, mr := newTestService(t, WithCodeGenerator(gen))
	require.NoError(t, mr.Set(store.RoomKey("111A"), `{"messages":[],"createdAt":1}`))

	_, err := svc.CreateRoom(context.Background())
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, apperr.KindExhausted, apperr.KindOf(err))
	assert.Equal(t, DefaultCodeAttempts, calls)
}

func TestCreateRoom_CustomAttemptsAndTTL(t *testing.T) {
	calls := 0
	gen := func() (string, error) {
		calls++
		return "111A", nil
	}
	svc, mr := newTestService(t, WithCodeGenerator(gen), WithCodeAttempts(3), WithTTL(time.Hour))
	assert.Equal(t, time.Hour, svc.TTL())

	code, err := svc.CreateRoom(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL(store.RoomKey(code)))

	_, err = svc.CreateRoom(context.Background())
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1+3, calls)
}

func TestGetRoom(t *testing.T) {
	svc, _ := newTestService(t, WithCodeGenerator(codes("123A")))
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	room, err := svc.GetRoom(ctx, "123a")
	require.NoError(t, err)
	assert.Equal(t, testNow.UnixMilli(), room.CreatedAt)
	assert.Empty(t, room.Messages)

	_, err = svc.GetRoom(ctx, code)
	require.NoError(t, err)
}

func TestGetRoom_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, code := range []string{"999F", "nope", "", "room:1"} {
		_, err := svc.GetRoom(ctx, code)
		assert.ErrorIs(t, err, ErrRoomNotFound, code)
	}
}

func TestGetRoom_Expired(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	mr.FastForward(DefaultRoomTTL)

	_, err = svc.GetRoom(ctx, code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, svc.DeleteRoom(ctx, code), ErrRoomNotFound)
}

func TestGetRoom_CorruptDocument(t *testing.T) {
	svc, mr := newTestService(t)
	require.NoError(t, mr.Set(store.RoomKey("555E"), "garbage"))

	_, err := svc.GetRoom(context.Background(), "555E")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestAppendMessage_Text(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	msg, err := svc.AppendMessage(ctx, code, TextPayload{Content: "  hello\n"})
	require.NoError(t, err)
	assert.Equal(t, models.Message{
		ID:        "msg-1",
		Type:      models.MessageText,
		Timestamp: testNow.UnixMilli(),
		Content:   "  hello\n",
	}, *msg)

	room, err := svc.GetRoom(ctx, code)
	require.NoError(t, err)
	require.NotEmpty(t, room.Messages)
	assert.Equal(t, *msg, room.Messages[len(room.Messages)-1])
}

func TestAppendMessage_File(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	msg, err := svc.AppendMessage(ctx, code, FilePayload{Name: "report.pdf", Size: 2048, URL: "https://cdn.example.com/k.pdf"})
	require.NoError(t, err)
	assert.Equal(t, models.MessageFile, msg.Type)
	assert.Equal(t, "report.pdf", msg.FileName)
	assert.Equal(t, int64(2048), msg.FileSize)
	assert.Equal(t, "https://cdn.example.com/k.pdf", msg.FileURL)
	assert.Empty(t, msg.Content)

	room, err := svc.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, []models.Message{*msg}, room.Messages)
}

func TestAppendMessage_InvalidPayload(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	invalid := map[string]Payload{
		"empty text":        TextPayload{},
		"whitespace text":   TextPayload{Content: " \t\n "},
		"file without url":  FilePayload{Name: "a.txt"},
		"file without name": FilePayload{URL: "https://cdn.example.com/a.txt"},
		"negative size":     FilePayload{Name: "a.txt", URL: "https://cdn.example.com/a.txt", Size: -1},
		"nil payload":       nil,
	}
	for name, payload := range invalid {
		_, err := svc.AppendMessage(ctx, code, payload)
		require.Error(t, err, name)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), name)
	}

	room, err := svc.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.Empty(t, room.Messages)
}

func TestAppendMessage_RoomMissing(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AppendMessage(context.Background(), "404A", TextPayload{Content: "hi"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestAppendMessage_PreservesRemainingTTL(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	mr.FastForward(10 * time.Hour)
	before := mr.TTL(store.RoomKey(code))

	_, err = svc.AppendMessage(ctx, code, TextPayload{Content: "still here"})
	require.NoError(t, err)

	after := mr.TTL(store.RoomKey(code))
	assert.Positive(t, after)
	assert.LessOrEqual(t, after, before)
	assert.Equal(t, 14*time.Hour, after)
}

func TestAppendMessage_PersistentRoomGetsFullTTL(t *testing.T) {
	svc, mr := newTestService(t)
	require.NoError(t, mr.Set(store.RoomKey("777A"), `{"messages":[],"createdAt":1}`))

	_, err := svc.AppendMessage(context.Background(), "777a", TextPayload{Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, DefaultRoomTTL, mr.TTL(store.RoomKey("777A")))
}

func TestRemoveMessage(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	var sent []models.Message
	for _, text := range []string{"one", "two", "three"} {
		msg, err := svc.AppendMessage(ctx, code, TextPayload{Content: text})
		require.NoError(t, err)
		sent = append(sent, *msg)
	}

	mr.FastForward(time.Hour)
	before := mr.TTL(store.RoomKey(code))

	require.NoError(t, svc.RemoveMessage(ctx, code, sent[1].ID))

	room, err := svc.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, []models.Message{sent[0], sent[2]}, room.Messages)

	after := mr.TTL(store.RoomKey(code))
	assert.Positive(t, after)
	assert.LessOrEqual(t, after, before)
}

func TestRemoveMessage_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RemoveMessage(ctx, code, "missing"), ErrMessageNotFound)
	assert.ErrorIs(t, svc.RemoveMessage(ctx, "000A", "missing"), ErrRoomNotFound)
}

func TestDeleteRoom(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRoom(ctx, code))
	assert.False(t, mr.Exists(store.RoomKey(code)))

	assert.ErrorIs(t, svc.DeleteRoom(ctx, code), ErrRoomNotFound)
	assert.ErrorIs(t, svc.DeleteRoom(ctx, "bogus"), ErrRoomNotFound)
}

func TestRoomLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	msg, err := svc.AppendMessage(ctx, code, TextPayload{Content: "hello"})
	require.NoError(t, err)

	room, err := svc.GetRoom(ctx, code)
	require.NoError(t, err)
	require.Len(t, room.Messages, 1)
	assert.Equal(t, "hello", room.Messages[0].Content)

	require.NoError(t, svc.RemoveMessage(ctx, code, msg.ID))

	room, err = svc.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.Empty(t, room.Messages)

	require.NoError(t, svc.DeleteRoom(ctx, code))

	_, err = svc.GetRoom(ctx, code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestDefaultIDsAreUnique(t *testing.T) {
	mr := miniredis.RunT(t)
	kv, err := store.NewRedisStore(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer kv.Close()

	svc := NewService(kv, zerolog.Nop())
	ctx := context.Background()

	code, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		msg, err := svc.AppendMessage(ctx, code, TextPayload{Content: "x"})
		require.NoError(t, err)
		require.False(t, seen[msg.ID], "duplicate id %s", msg.ID)
		seen[msg.ID] = true
	}
}
