// Package chat provides a client for the ephemeral room chat API.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a chat API client. It remembers one token per room.
type Client struct {
	BaseURL    string
	ConfigDir  string
	HTTPClient *http.Client

	mu     sync.Mutex
	tokens map[string]string
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat error %d: %s", e.Status, e.Message)
}

// NewClient creates a new client. Tokens are persisted under ConfigDir.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("CHAT_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".realtime-chat")
	}

	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     make(map[string]string),
	}

	_ = c.LoadTokens()
	return c
}

func (c *Client) tokensFile() string {
	return filepath.Join(c.ConfigDir, "tokens.json")
}

// LoadTokens loads saved room tokens from disk.
func (c *Client) LoadTokens() error {
	data, err := os.ReadFile(c.tokensFile())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return json.Unmarshal(data, &c.tokens)
}

// SaveTokens saves room tokens to disk.
func (c *Client) SaveTokens() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}

	c.mu.Lock()
	data, _ := json.MarshalIndent(c.tokens, "", "  ")
	c.mu.Unlock()

	return os.WriteFile(c.tokensFile(), data, 0600)
}

// Token returns the remembered token for roomID.
func (c *Client) Token(roomID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[roomID]
}

// SetToken remembers a token for roomID. An empty token forgets the room.
func (c *Client) SetToken(roomID, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == "" {
		delete(c.tokens, roomID)
		return
	}
	c.tokens[roomID] = token
}

// doRequest performs an HTTP request, authenticating with the room's token when one is known.
func (c *Client) doRequest(ctx context.Context, method, path, roomID string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	if roomID != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "roomId=" + url.QueryEscape(roomID)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(roomID); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
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
		json.Unmarshal(respBody, &errResp)
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Message is a chat message. Token is only set on messages the caller wrote.
type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	RoomID    string `json:"roomId"`
	Token     string `json:"token,omitempty"`
}

// Mine reports whether the caller wrote m.
func (m Message) Mine() bool {
	return m.Token != ""
}

// CreateRoom creates a new room and returns its id. Join it to participate.
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	var resp struct {
		RoomID string `json:"roomId"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/room/create", "", nil, &resp); err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

// Join joins a room and remembers the issued token.
func (c *Client) Join(ctx context.Context, roomID string) (string, error) {
	var resp struct {
		RoomID string `json:"roomId"`
		Token  string `json:"token"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/room/join", roomID, nil, &resp); err != nil {
		return "", err
	}
	c.SetToken(roomID, resp.Token)
	return resp.Token, nil
}

// TTL returns the room's remaining lifetime.
func (c *Client) TTL(ctx context.Context, roomID string) (time.Duration, error) {
	var resp struct {
		TTL int64 `json:"ttl"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/room/ttl", roomID, nil, &resp); err != nil {
		return 0, err
	}
	return time.Duration(resp.TTL) * time.Second, nil
}

// Destroy destroys a room for every participant and forgets its token.
func (c *Client) Destroy(ctx context.Context, roomID string) error {
	if err := c.doRequest(ctx, http.MethodDelete, "/api/room", roomID, nil, nil); err != nil {
		return err
	}
	c.SetToken(roomID, "")
	return nil
}

// PostMessageRequest is the request body for posting a message.
type PostMessageRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// PostMessage posts a message to a room.
func (c *Client) PostMessage(ctx context.Context, roomID, sender, text string) (*Message, error) {
	var msg Message
	if err := c.doRequest(ctx, http.MethodPost, "/api/messages", roomID, PostMessageRequest{Sender: sender, Text: text}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessages returns the room history.
func (c *Client) GetMessages(ctx context.Context, roomID string) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/messages", roomID, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	if err := c.doRequest(ctx, http.MethodGet, "/health", "", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Event is a realtime event from a room.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ErrRoomDestroyed ends Watch when the room is destroyed.
var ErrRoomDestroyed = errors.New("room destroyed")

// Watch streams room events to fn until ctx ends, the room is destroyed or fn returns an error.
func (c *Client) Watch(ctx context.Context, roomID string, fn func(Event) error) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/realtime"
	u.RawQuery = url.Values{"roomId": {roomID}}.Encode()

	header := http.Header{}
	if token := c.Token(roomID); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Message: "realtime connection refused"}
		}
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return ErrRoomDestroyed
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
		if ev.Event == "chat.destroy" {
			return ErrRoomDestroyed
		}
	}
}
