// Package broker obtains a session token from the media server: it makes
// sure the room exists and then asks for a connection token in it.
package broker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10

	// Username is the fixed basic auth user the media server expects.
	Username = "APP"
)

var (
	ErrCreateRoom  = errors.New("create room")
	ErrCreateToken = errors.New("create token")
)

// StatusError is a non-2xx answer from the media server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func New(baseURL, secret string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRoomRequest struct {
	CustomSessionID string `json:"customSessionId"`
	RecordingMode   string `json:"recordingMode"`
}

type createRoomResponse struct {
	ID string `json:"id"`
}

type createTokenResponse struct {
	Token string `json:"token"`
}

// Token creates the room if needed and returns a fresh connection token.
// Failures are returned as-is and never retried.
func (c *Client) Token(ctx context.Context, sessionID string) (string, error) {
	roomID, err := c.CreateRoom(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return c.CreateConnection(ctx, roomID)
}

// CreateRoom creates a room with the given id. A room that already exists
// is not an error; its id is the one that was asked for.
func (c *Client) CreateRoom(ctx context.Context, sessionID string) (string, error) {
	body := createRoomRequest{CustomSessionID: sessionID, RecordingMode: "MANUAL"}

	var out createRoomResponse
	status, err := c.post(ctx, "/rooms", body, &out)
	switch {
	case status == http.StatusConflict:
		slog.Debug("room already exists", "room", sessionID)
		return sessionID, nil
	case err != nil:
		return "", fmt.Errorf("%w %q: %w", ErrCreateRoom, sessionID, err)
	}

	if out.ID == "" {
		out.ID = sessionID
	}
	slog.Debug("room created", "room", out.ID)
	return out.ID, nil
}

// CreateConnection asks for a connection token in roomID.
func (c *Client) CreateConnection(ctx context.Context, roomID string) (string, error) {
	var out createTokenResponse
	if _, err := c.post(ctx, "/rooms/"+roomID+"/connections", struct{}{}, &out); err != nil {
		return "", fmt.Errorf("%w for room %q: %w", ErrCreateToken, roomID, err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w for room %q: empty token", ErrCreateToken, roomID)
	}
	return out.Token, nil
}

func (c *Client) authorization() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(Username+":"+c.secret))
}

// post sends body as JSON and decodes a 2xx answer into out. The status code
// is returned whenever a response arrived.
func (c *Client) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.authorization())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
