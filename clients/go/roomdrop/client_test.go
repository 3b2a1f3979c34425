package roomdrop

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/roomdrop/internal/api"
	"github.com/eldtechnologies/roomdrop/internal/handlers"
	"github.com/eldtechnologies/roomdrop/internal/rooms"
	"github.com/eldtechnologies/roomdrop/internal/store"
	"github.com/eldtechnologies/roomdrop/internal/upload"
)

type storageUpload struct {
	token, key, fileName string
	content              []byte
}

// newTestClient starts the API, a token issuer and an object storage
// endpoint, and returns a client wired to all three.
func newTestClient(t *testing.T) (*Client, *storageUpload) {
	t.Helper()

	kv, err := store.NewBadgerStore("", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"code":"0000","data":{"token":"up-tok","key":"drop/xyz.bin"}}`))
	}))
	t.Cleanup(issuer.Close)

	got := &storageUpload{}
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"error":"no file"}`, http.StatusBadRequest)
			return
		}
		defer file.Close()
		got.content, _ = io.ReadAll(file)
		got.fileName = header.Filename
		got.token = r.FormValue("token")
		got.key = r.FormValue("key")
		_, _ = w.Write([]byte(`{"key":"` + got.key + `","hash":"abc"}`))
	}))
	t.Cleanup(storage.Close)

	h := handlers.NewHandler(
		rooms.NewService(kv, zerolog.Nop()),
		upload.NewTokenIssuer(issuer.URL, time.Second, zerolog.Nop()),
		kv,
		zerolog.Nop(),
	)
	srv := httptest.NewServer(api.NewRouter(zerolog.Nop(), h, api.Options{}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL + "/")
	c.UploadURL = storage.URL
	c.StorageDomain = "https://cdn.example"
	return c, got
}

func TestClient_RoomLifecycle(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	code, err := c.CreateRoom(ctx)
	require.NoError(t, err)
	require.Regexp(t, `^[0-9]{3}[A-F]$`, code)

	msg, err := c.SendText(ctx, code, "hello")
	require.NoError(t, err)
	assert.Equal(t, "text", msg.Type)
	assert.Equal(t, "hello", msg.Content)

	file, err := c.SendFile(ctx, code, "a.pdf", 10, "https://cdn.example/a.pdf")
	require.NoError(t, err)

	room, err := c.GetRoom(ctx, code)
	require.NoError(t, err)
	require.Len(t, room.Messages, 2)
	assert.Equal(t, msg.ID, room.Messages[0].ID)
	assert.Equal(t, file.ID, room.Messages[1].ID)

	require.NoError(t, c.DeleteMessage(ctx, code, msg.ID))
	room, err = c.GetRoom(ctx, code)
	require.NoError(t, err)
	require.Len(t, room.Messages, 1)

	require.NoError(t, c.DeleteRoom(ctx, code))
	_, err = c.GetRoom(ctx, code)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "room not found or expired", apiErr.Message)
}

func TestClient_UploadFile(t *testing.T) {
	c, got := newTestClient(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes"), 0o600))

	code, err := c.CreateRoom(ctx)
	require.NoError(t, err)

	msg, err := c.UploadFile(ctx, code, path)
	require.NoError(t, err)

	assert.Equal(t, "up-tok", got.token)
	assert.Equal(t, "drop/xyz.txt", got.key)
	assert.Equal(t, "notes.txt", got.fileName)
	assert.Equal(t, "some notes", string(got.content))

	assert.Equal(t, "file", msg.Type)
	assert.Equal(t, "notes.txt", msg.FileName)
	assert.EqualValues(t, 10, msg.FileSize)
	assert.Equal(t, "https://cdn.example/drop/xyz.txt", msg.FileURL)
}

func TestClient_UploadObjectError(t *testing.T) {
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer storage.Close()

	c := NewClient("")
	c.UploadURL = storage.URL

	_, err := c.UploadObject(context.Background(), &UploadToken{Token: "t", Key: "k"}, "f.txt", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_Health(t *testing.T) {
	c, _ := newTestClient(t)

	resp, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", resp.Status)
}
