package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", log.New(io.Discard, "", 0))
}

func TestClientListProgress(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/progress" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"docs": []ProgressDoc{{Name: "Two Sum", Solved: true}},
		})
	})

	docs, err := c.ListProgress(context.Background(), false)
	if err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
	if len(docs) != 1 || docs[0].Name != "Two Sum" || !docs[0].Solved {
		t.Errorf("docs = %+v", docs)
	}
}

func TestClientListProgressFromCache(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "cache=1" {
			t.Errorf("query = %q, want cache=1", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{"docs": []ProgressDoc{}})
	})
	if _, err := c.ListProgress(context.Background(), true); err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
}

func TestClientStatusTranslation(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrQuotaExceeded},
		{http.StatusUnauthorized, ErrUnauthenticated},
		{http.StatusForbidden, ErrUnauthenticated},
	}
	for _, tt := range tests {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		err := c.PutProgress(context.Background(), []ProgressDoc{{Name: "Two Sum"}})
		if err == nil || !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestClientGetConfigNotFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	if _, err := c.GetConfig(context.Background(), "filters"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClientPutConfigBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/v1/config/uiPrefs" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Payload     json.RawMessage `json:"payload"`
			UpdatedFrom string          `json:"updatedFrom"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.UpdatedFrom != "device-a" {
			t.Errorf("updatedFrom = %q", body.UpdatedFrom)
		}
	})
	err := c.PutConfig(context.Background(), "uiPrefs", json.RawMessage(`{"theme":"dark"}`), "device-a")
	if err != nil {
		t.Fatalf("PutConfig: %v", err)
	}
}
