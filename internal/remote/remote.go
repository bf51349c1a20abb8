// Package remote defines the cloud document store the sync engine talks
// to: one progress document per unique problem name plus four singleton
// config documents, all scoped to the signed-in account.
//
// The interface is intentionally small so the engine can run against the
// HTTP client, the in-memory store used in tests, or any future backend
// without changes.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Sentinel errors implementations translate backend failures into. The
// engine branches on these: quota pauses writes and backs off, while
// generic errors surface immediately without retry.
var (
	ErrNotFound        = errors.New("remote: document not found")
	ErrQuotaExceeded   = errors.New("remote: write quota exceeded")
	ErrUnauthenticated = errors.New("remote: not signed in")
)

// MaxBatchDocs is the backend's hard per-batch write cap.
const MaxBatchDocs = 500

// ProgressDoc is one problem's progress as stored remotely. UpdatedAt is
// assigned by the server on write; UpdatedFrom carries the writing
// device's session id so that device can recognize its own echoes.
type ProgressDoc struct {
	Name        string    `json:"name"`
	Solved      bool      `json:"solved"`
	TimeToSolve string    `json:"time_to_solve"`
	Comments    string    `json:"comments"`
	SolvedDate  string    `json:"solved_date"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedFrom string    `json:"updatedFrom"`
}

// ConfigDoc is one of the four config documents (filters, exportPrefs,
// uiPrefs, awareness).
type ConfigDoc struct {
	Payload     json.RawMessage `json:"payload"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	UpdatedFrom string          `json:"updatedFrom"`
}

// ConfigUpdate is one live change delivered by WatchConfig.
type ConfigUpdate struct {
	Doc string
	ConfigDoc
}

// Store is the remote document store.
type Store interface {
	// ListProgress returns every progress document for the account.
	// With fromCache set, the implementation may serve a cheaper local
	// cache read, transparently falling back to a full read on miss.
	ListProgress(ctx context.Context, fromCache bool) ([]ProgressDoc, error)

	// PutProgress writes one batch of progress documents, keyed by
	// their sanitized names. len(docs) must not exceed MaxBatchDocs;
	// callers chunk. The server assigns UpdatedAt.
	PutProgress(ctx context.Context, docs []ProgressDoc) error

	// DeleteAllProgress removes every progress document for the
	// account. Local data is untouched.
	DeleteAllProgress(ctx context.Context) error

	// GetConfig fetches one config document; ErrNotFound if absent.
	GetConfig(ctx context.Context, doc string) (ConfigDoc, error)

	// PutConfig overwrites one config document.
	PutConfig(ctx context.Context, doc string, payload json.RawMessage, updatedFrom string) error

	// WatchConfig subscribes to live changes of the named config
	// documents until ctx is cancelled. The channel is closed when the
	// subscription ends.
	WatchConfig(ctx context.Context, docs []string) (<-chan ConfigUpdate, error)

	Close() error
}

// docIDMaxLen is the backend's identifier length limit.
const docIDMaxLen = 100

// docIDPlaceholder stands in for names that sanitize to nothing.
const docIDPlaceholder = "unnamed_problem"

// SanitizeDocID turns a problem name into a legal document identifier:
// the characters / \ # $ [ ] become underscores and the result is capped
// at the identifier length limit.
func SanitizeDocID(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', '#', '$', '[', ']':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	id := b.String()
	if len(id) > docIDMaxLen {
		// Cut on a rune boundary so a long multi-byte name never
		// yields an invalid identifier.
		cut := docIDMaxLen
		for cut > 0 && !utf8.RuneStart(id[cut]) {
			cut--
		}
		id = id[:cut]
	}
	if strings.TrimSpace(id) == "" {
		return docIDPlaceholder
	}
	return id
}
