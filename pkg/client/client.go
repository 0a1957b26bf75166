// Package client talks to the rule-horror HTTP API. The console and the
// integration runner both drive games through it.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jwebster45206/rule-horror/internal/handlers"
	"github.com/jwebster45206/rule-horror/internal/services/events"
	"github.com/jwebster45206/rule-horror/pkg/chat"
)

// APIError is a reply that carried no command outcome, such as a
// malformed request or an unavailable event stream.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. A nil httpClient means
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) sessionURL(key string) string {
	return c.baseURL + "/v1/sessions/" + url.PathEscape(key)
}

// Health reports whether the API answers its health check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// Command sends one command and returns the outcome with its HTTP status.
// A refusal is an outcome with OK false, not an error.
func (c *Client) Command(ctx context.Context, key string, cmd chat.CommandRequest) (*chat.CommandResponse, int, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal command: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sessionURL(key)+"/commands", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create command request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send command: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read command response: %w", err)
	}
	var out chat.CommandResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.Status == "" {
		return nil, resp.StatusCode, decodeAPIError(resp.StatusCode, raw)
	}
	return &out, resp.StatusCode, nil
}

// Session fetches the public view of the live session. It returns nil
// when the key has no session.
func (c *Client) Session(ctx context.Context, key string) (*handlers.SessionView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, apiError(resp)
	}
	var view handlers.SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &view, nil
}

// Events streams session events into out until ctx is done or the server
// closes the stream. The greeting frame is not forwarded.
func (c *Client) Events(ctx context.Context, key string, out chan<- events.Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionURL(key)+"/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create event request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	var frame sseFrame
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if !frame.add(scanner.Text()) {
			continue
		}
		ev, ok := frame.event()
		frame = sseFrame{}
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("error reading event stream: %w", err)
	}
	return nil
}

// sseFrame accumulates one server-sent event. Comment lines (keepalives)
// are ignored.
type sseFrame struct {
	name string
	data []string
}

// add consumes a line and reports whether the frame is complete.
func (f *sseFrame) add(line string) bool {
	if line == "" {
		return f.name != "" || len(f.data) > 0
	}
	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")
	switch field {
	case "event":
		f.name = value
	case "data":
		f.data = append(f.data, value)
	}
	return false
}

func (f *sseFrame) event() (events.Event, bool) {
	if f.name == "" || f.name == "connected" {
		return events.Event{}, false
	}
	var ev events.Event
	if err := json.Unmarshal([]byte(strings.Join(f.data, "\n")), &ev); err != nil {
		return events.Event{}, false
	}
	return ev, true
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	return decodeAPIError(resp.StatusCode, raw)
}

func decodeAPIError(code int, raw []byte) error {
	var er handlers.ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != "" {
		return &APIError{Code: code, Message: er.Error}
	}
	return &APIError{Code: code, Message: strings.TrimSpace(string(raw))}
}
