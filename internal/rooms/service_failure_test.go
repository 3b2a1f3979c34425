package rooms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/eldtechnologies/roomdrop/internal/apperr"
	"github.com/eldtechnologies/roomdrop/internal/store"
	"github.com/eldtechnologies/roomdrop/internal/store/mocks"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

const singleMessageDoc = `{"messages":[{"id":"m1","type":"text","timestamp":1,"content":"a"}],"createdAt":1}`

func newMockService(t *testing.T, opts ...Option) (*Service, *mocks.MockKVStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	kv := mocks.NewMockKVStore(ctrl)
	return NewService(kv, zerolog.Nop(), opts...), kv
}

func TestCreateRoom_StoreReadFailure(t *testing.T) {
	svc, kv := newMockService(t, WithCodeGenerator(codes("100A")))
	kv.EXPECT().Get(gomock.Any(), "room:100A").Return(nil, errConnRefused)

	_, err := svc.CreateRoom(context.Background())
	require.ErrorIs(t, err, errConnRefused)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestCreateRoom_StoreWriteFailure(t *testing.T) {
	svc, kv := newMockService(t, WithCodeGenerator(codes("100A")))
	kv.EXPECT().Get(gomock.Any(), "room:100A").Return(nil, store.ErrNotFound)
	kv.EXPECT().Set(gomock.Any(), "room:100A", gomock.Any(), DefaultRoomTTL).Return(errConnRefused)

	_, err := svc.CreateRoom(context.Background())
	require.ErrorIs(t, err, errConnRefused)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestCreateRoom_GeneratorFailure(t *testing.T) {
	svc, _ := newMockService(t, WithCodeGenerator(func() (string, error) {
		return "", errors.New("entropy unavailable")
	}))

	_, err := svc.CreateRoom(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestAppendMessage_RoomVanishesBeforeWrite(t *testing.T) {
	svc, kv := newMockService(t)
	kv.EXPECT().Get(gomock.Any(), "room:100A").Return([]byte(singleMessageDoc), nil)
	kv.EXPECT().TTL(gomock.Any(), "room:100A").Return(time.Duration(0), store.ErrNotFound)
	// No Set: an expired room must not be recreated by a late write.

	_, err := svc.AppendMessage(context.Background(), "100A", TextPayload{Content: "late"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestAppendMessage_ReusesReportedTTL(t *testing.T) {
	svc, kv := newMockService(t)
	kv.EXPECT().Get(gomock.Any(), "room:100A").Return([]byte(singleMessageDoc), nil)
	kv.EXPECT().TTL(gomock.Any(), "room:100A").Return(90*time.Second, nil)
	kv.EXPECT().Set(gomock.Any(), "room:100A", gomock.Any(), 90*time.Second).Return(nil)

	_, err := svc.AppendMessage(context.Background(), "100a", TextPayload{Content: "x"})
	assert.NoError(t, err)
}

func TestAppendMessage_TTLFailure(t *testing.T) {
	svc, kv := newMockService(t)
	kv.EXPECT().Get(gomock.Any(), "room:100A").Return([]byte(singleMessageDoc), nil)
	kv.EXPECT().TTL(gomock.Any(), "room:100A").Return(time.Duration(0), errConnRefused)

	_, err := svc.AppendMessage(context.Background(), "100A", TextPayload{Content: "x"})
	require.ErrorIs(t, err, errConnRefused)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestRemoveMessage_WriteFailure(t *testing.T) {
	svc, kv := newMockService(t)
	kv.EXPECT().Get(gomock.Any(), "room:100A").Return([]byte(singleMessageDoc), nil)
	kv.EXPECT().TTL(gomock.Any(), "room:100A").Return(store.NoExpiry, nil)
	kv.EXPECT().Set(gomock.Any(), "room:100A", []byte(`{"messages":[],"createdAt":1}`), DefaultRoomTTL).Return(errConnRefused)

	err := svc.RemoveMessage(context.Background(), "100A", "m1")
	require.ErrorIs(t, err, errConnRefused)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestDeleteRoom_StoreFailure(t *testing.T) {
	svc, kv := newMockService(t)
	kv.EXPECT().Del(gomock.Any(), "room:100A").Return(int64(0), errConnRefused)

	err := svc.DeleteRoom(context.Background(), "100A")
	require.ErrorIs(t, err, errConnRefused)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestInvalidCodeNeverReachesStore(t *testing.T) {
	// The controller fails the test on any unexpected store call.
	svc, _ := newMockService(t)
	ctx := context.Background()

	_, err := svc.GetRoom(ctx, "../etc")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, svc.DeleteRoom(ctx, "*"), ErrRoomNotFound)
	_, err = svc.AppendMessage(ctx, "room:100A", TextPayload{Content: "x"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, svc.RemoveMessage(ctx, "", "m1"), ErrRoomNotFound)
}
