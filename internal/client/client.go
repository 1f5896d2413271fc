// Package client is a typed HTTP client for the newsrec API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"newsrec/internal/domain"
)

// Article is the subset of article metadata the client displays. Metadata fields
// are free-form, so non-string values are rendered as display text rather than rejected.
type Article struct {
	Index   int
	Title   string
	URL     string
	Summary string
	Source  string
}

// UnmarshalJSON decodes an article object leniently.
func (a *Article) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title   json.RawMessage `json:"title"`
		URL     json.RawMessage `json:"url"`
		Summary json.RawMessage `json:"summary"`
		Source  json.RawMessage `json:"source"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Title = displayText(raw.Title)
	a.URL = displayText(raw.URL)
	a.Summary = displayText(raw.Summary)
	a.Source = displayText(raw.Source)
	return nil
}

// displayText renders a JSON value for display: strings as-is, null as "",
// objects by their "name" when present, anything else as compact JSON.
func displayText(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var obj map[string]any
	if err := json.Unmarshal(v, &obj); err == nil {
		if name, ok := obj["name"].(string); ok {
			return name
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, v); err == nil {
		return compact.String()
	}
	return string(v)
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Config configures the API client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to a running newsrec server.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client. Requests are never retried.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:5000"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: t},
	}
}

// Articles fetches every article in corpus order.
func (c *Client) Articles(ctx context.Context) ([]Article, error) {
	var out []Article
	if err := c.do(ctx, http.MethodGet, "/api/articles", nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Index = i
	}
	return out, nil
}

// Recommend fetches the articles nearest to articleIdx.
func (c *Client) Recommend(ctx context.Context, articleIdx int) ([]domain.Recommendation, error) {
	req := map[string]int{"article_idx": articleIdx}
	var resp struct {
		Recommendations []domain.Recommendation `json:"recommendations"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/recommend", req, &resp); err != nil {
		return nil, err
	}
	return resp.Recommendations, nil
}

// Like records a "like" event for articleIdx by user.
func (c *Client) Like(ctx context.Context, user string, articleIdx int) error {
	return c.SendFeedback(ctx, map[string]any{
		"user":        user,
		"article_idx": articleIdx,
		"action":      "like",
	})
}

// SendFeedback posts an arbitrary feedback document.
func (c *Client) SendFeedback(ctx context.Context, record any) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/feedback", record, &resp); err != nil {
		return err
	}
	if resp.Status != "stored" {
		return fmt.Errorf("unexpected feedback status %q", resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return decodeAPIError(resp, payload)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, payload []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := resp.Status
	if err := json.Unmarshal(payload, &e); err == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
