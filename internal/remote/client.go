package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Client talks to the grindsync cloud API over HTTP, with a websocket
// subscription for live config updates.
//
// Error translation: HTTP 401 maps to ErrUnauthenticated, 404 to
// ErrNotFound, and 429 to ErrQuotaExceeded so the sync engine can apply
// its backoff policy without inspecting status codes itself.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *log.Logger
}

// NewClient builds a Client for the API at baseURL, authenticating every
// request with the account token. A nil logger logs to stderr.
func NewClient(baseURL, token string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthenticated
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrQuotaExceeded
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// ListProgress fetches all progress documents. fromCache asks the server
// for its cached snapshot, which costs less quota; the server falls back
// to a full read when no snapshot exists.
func (c *Client) ListProgress(ctx context.Context, fromCache bool) ([]ProgressDoc, error) {
	path := "/v1/progress"
	if fromCache {
		path += "?cache=1"
	}
	var out struct {
		Docs []ProgressDoc `json:"docs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	return out.Docs, nil
}

// PutProgress writes one batch of progress documents.
func (c *Client) PutProgress(ctx context.Context, docs []ProgressDoc) error {
	if len(docs) > MaxBatchDocs {
		return fmt.Errorf("batch of %d exceeds cap of %d", len(docs), MaxBatchDocs)
	}
	body := struct {
		Docs []ProgressDoc `json:"docs"`
	}{Docs: docs}
	if err := c.do(ctx, http.MethodPost, "/v1/progress:batch", body, nil); err != nil {
		return fmt.Errorf("failed to write progress batch: %w", err)
	}
	return nil
}

// DeleteAllProgress removes every progress document for the account.
func (c *Client) DeleteAllProgress(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/progress", nil, nil); err != nil {
		return fmt.Errorf("failed to delete remote progress: %w", err)
	}
	return nil
}

// GetConfig fetches one config document.
func (c *Client) GetConfig(ctx context.Context, doc string) (ConfigDoc, error) {
	var out ConfigDoc
	if err := c.do(ctx, http.MethodGet, "/v1/config/"+url.PathEscape(doc), nil, &out); err != nil {
		if err == ErrNotFound {
			return ConfigDoc{}, err
		}
		return ConfigDoc{}, fmt.Errorf("failed to fetch config doc %s: %w", doc, err)
	}
	return out, nil
}

// PutConfig overwrites one config document.
func (c *Client) PutConfig(ctx context.Context, doc string, payload json.RawMessage, updatedFrom string) error {
	body := struct {
		Payload     json.RawMessage `json:"payload"`
		UpdatedFrom string          `json:"updatedFrom"`
	}{Payload: payload, UpdatedFrom: updatedFrom}
	if err := c.do(ctx, http.MethodPut, "/v1/config/"+url.PathEscape(doc), body, nil); err != nil {
		return fmt.Errorf("failed to write config doc %s: %w", doc, err)
	}
	return nil
}

// WatchConfig opens a websocket subscription for the named config
// documents. Updates arrive on the returned channel until ctx is
// cancelled or the connection drops; either way the channel closes.
// Callers that need a resilient watch reconnect on closure.
func (c *Client) WatchConfig(ctx context.Context, docs []string) (<-chan ConfigUpdate, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) +
		"/v1/config/watch?docs=" + url.QueryEscape(strings.Join(docs, ","))

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + c.token}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open config watch: %w", err)
	}

	ch := make(chan ConfigUpdate, 16)
	go func() {
		defer close(ch)
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			var update ConfigUpdate
			if err := wsjson.Read(ctx, conn, &update); err != nil {
				if ctx.Err() == nil {
					c.logger.Printf("config watch closed: %v", err)
				}
				return
			}
			select {
			case ch <- update:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
