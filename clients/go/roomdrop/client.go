// Package roomdrop provides a client for the roomdrop file and text sharing
// service, including the direct upload to object storage.
package roomdrop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Defaults used when a Client field is empty.
const (
	DefaultBaseURL       = "http://localhost:8080"
	DefaultUploadURL     = "https://upload.qiniup.com"
	DefaultStorageDomain = "https://img.shuipantech.com"
)

// Client is a roomdrop API client.
type Client struct {
	BaseURL string
	// UploadURL receives the multipart file upload.
	UploadURL string
	// StorageDomain prefixes storage keys to form public file URLs.
	StorageDomain string
	HTTPClient    *http.Client
}

// NewClient creates a new roomdrop client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		UploadURL:     DefaultUploadURL,
		StorageDomain: DefaultStorageDomain,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("roomdrop error %d", e.StatusCode)
	}
	return fmt.Sprintf("roomdrop error %d: %s", e.StatusCode, e.Message)
}

// doRequest performs an HTTP request against the API and decodes the
// response into out when it is not nil.
func (c *Client) doRequest(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Message is one entry of a room.
type Message struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Content   string `json:"content,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	FileSize  int64  `json:"fileSize,omitempty"`
	FileURL   string `json:"fileUrl,omitempty"`
}

// Room is the content of a room.
type Room struct {
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"`
}

// CreateRoom creates a new room and returns its code.
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	var resp struct {
		RoomID string `json:"roomId"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/room/create", nil, &resp); err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

// GetRoom fetches the messages of a room.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	var room Room
	if err := c.doRequest(ctx, http.MethodGet, "/room/"+url.PathEscape(roomID), nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

type postMessageRequest struct {
	RoomID   string `json:"roomId"`
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
}

func (c *Client) postMessage(ctx context.Context, req postMessageRequest) (*Message, error) {
	var resp struct {
		Success bool     `json:"success"`
		Message *Message `json:"message"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/room/message", req, &resp); err != nil {
		return nil, err
	}
	return resp.Message, nil
}

// SendText appends a text message to a room.
func (c *Client) SendText(ctx context.Context, roomID, content string) (*Message, error) {
	return c.postMessage(ctx, postMessageRequest{RoomID: roomID, Type: "text", Content: content})
}

// SendFile appends a message linking to an uploaded file.
func (c *Client) SendFile(ctx context.Context, roomID, name string, size int64, fileURL string) (*Message, error) {
	return c.postMessage(ctx, postMessageRequest{
		RoomID:   roomID,
		Type:     "file",
		FileName: name,
		FileSize: size,
		FileURL:  fileURL,
	})
}

// DeleteMessage removes one message from a room.
func (c *Client) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	req := map[string]string{"roomId": roomID, "messageId": messageID}
	return c.doRequest(ctx, http.MethodPost, "/room/delete-message", req, nil)
}

// DeleteRoom deletes a room and all of its messages.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	return c.doRequest(ctx, http.MethodPost, "/room/delete", map[string]string{"roomId": roomID}, nil)
}

// UploadToken authorizes one upload to object storage.
type UploadToken struct {
	Token string `json:"token"`
	Key   string `json:"key"`
}

// GetUploadToken requests an upload token. When fileName is set the server
// gives the key the same extension.
func (c *Client) GetUploadToken(ctx context.Context, fileName string) (*UploadToken, error) {
	path := "/upload/token"
	if fileName != "" {
		path += "?fileName=" + url.QueryEscape(fileName)
	}

	var tok UploadToken
	if err := c.doRequest(ctx, http.MethodPost, path, nil, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// UploadObject sends r to object storage under the token's key and returns
// the public URL of the stored object.
func (c *Client) UploadObject(ctx context.Context, tok *UploadToken, fileName string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := mw.WriteField("token", tok.Token); err != nil {
		return "", err
	}
	if err := mw.WriteField("key", tok.Key); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Key   string `json:"key"`
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload failed: %d", resp.StatusCode)
	}
	if result.Error != "" {
		return "", fmt.Errorf("upload failed: %s", result.Error)
	}

	key := result.Key
	if key == "" {
		key = tok.Key
	}
	return strings.TrimRight(c.StorageDomain, "/") + "/" + key, nil
}

// UploadFile uploads the file at path to object storage and posts a file
// message linking to it.
func (c *Client) UploadFile(ctx context.Context, roomID, path string) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)

	tok, err := c.GetUploadToken(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get upload token: %w", err)
	}

	fileURL, err := c.UploadObject(ctx, tok, name, f)
	if err != nil {
		return nil, err
	}

	return c.SendFile(ctx, roomID, name, info.Size(), fileURL)
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
