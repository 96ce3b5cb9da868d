// Package history talks to the REST history service. The realtime
// transport only carries live events; initial and backfill loads come from
// here.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tablechat/chat"
)

const defaultTimeout = 15 * time.Second

// passcodeHeader carries the shared credential the history service
// requires on every request.
const passcodeHeader = "X-Passcode"

// ErrNotFound reports a room or resource the service does not know.
var ErrNotFound = errors.New("history: not found")

// Client is a thin authenticated wrapper over the history REST API.
type Client struct {
	base     string
	passcode string
	http     *http.Client
	log      zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New constructs a history client for the given base URL and passcode.
func New(baseURL, passcode string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("history: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("history: parse base URL: %w", err)
	}

	c := &Client{
		base:     baseURL,
		passcode: passcode,
		http:     &http.Client{Timeout: defaultTimeout},
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetMessages returns the full ordered message history for a room, oldest
// first, edits and tombstones already applied server-side.
func (c *Client) GetMessages(ctx context.Context, roomID string) ([]chat.Message, error) {
	if roomID == "" {
		return nil, errors.New("history: room id is required")
	}
	var out []chat.Message
	err := c.get(ctx, "/rooms/"+url.PathEscape(roomID)+"/messages", &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetChatRoom returns a single room with its denormalized preview.
func (c *Client) GetChatRoom(ctx context.Context, roomID string) (*chat.Room, error) {
	if roomID == "" {
		return nil, errors.New("history: room id is required")
	}
	var out chat.Room
	if err := c.get(ctx, "/rooms/"+url.PathEscape(roomID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRooms returns every room the user belongs to.
func (c *Client) ListRooms(ctx context.Context, userID string) ([]chat.Room, error) {
	if userID == "" {
		return nil, errors.New("history: user id is required")
	}
	var out []chat.Room
	err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/rooms", &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRoom asks the service to create a room and returns it with its
// server-assigned id.
func (c *Client) CreateRoom(ctx context.Context, room chat.Room) (*chat.Room, error) {
	validated, err := chat.NewRoom(room)
	if err != nil {
		return nil, fmt.Errorf("history: create room: %w", err)
	}

	body, err := json.Marshal(validated)
	if err != nil {
		return nil, fmt.Errorf("history: encode room: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/rooms", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out chat.Room
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("history: build request: %w", err)
	}
	if c.passcode != "" {
		req.Header.Set(passcodeHeader, c.passcode)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("history: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("history request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("history: %s %s: status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("history: decode %s: %w", req.URL.Path, err)
	}
	return nil
}
