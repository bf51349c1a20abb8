package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and offline development.
// It mimics the backend's observable behavior: server-assigned write
// timestamps, batch cap enforcement, and live config notifications.
type Memory struct {
	mu       sync.Mutex
	progress map[string]ProgressDoc // keyed by sanitized doc id
	config   map[string]ConfigDoc
	watchers []watcher

	// Now supplies server timestamps; tests freeze it.
	Now func() time.Time

	// NextErr, when set, fails the next mutating call and clears.
	NextErr error

	// Puts counts PutProgress batches, for asserting on chunking.
	Puts int
}

type watcher struct {
	docs map[string]bool
	ch   chan ConfigUpdate
	done <-chan struct{}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		progress: make(map[string]ProgressDoc),
		config:   make(map[string]ConfigDoc),
		Now:      time.Now,
	}
}

func (m *Memory) takeErr() error {
	err := m.NextErr
	m.NextErr = nil
	return err
}

// ListProgress returns all progress documents. The cache flag is a no-op
// here; memory has no cheaper tier.
func (m *Memory) ListProgress(_ context.Context, _ bool) ([]ProgressDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	out := make([]ProgressDoc, 0, len(m.progress))
	for _, doc := range m.progress {
		out = append(out, doc)
	}
	return out, nil
}

// PutProgress stores a batch, stamping each document with the current
// server time.
func (m *Memory) PutProgress(_ context.Context, docs []ProgressDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	if len(docs) > MaxBatchDocs {
		return fmt.Errorf("batch of %d exceeds cap of %d", len(docs), MaxBatchDocs)
	}
	m.Puts++
	now := m.Now()
	for _, doc := range docs {
		doc.UpdatedAt = now
		m.progress[SanitizeDocID(doc.Name)] = doc
	}
	return nil
}

// DeleteAllProgress drops every progress document.
func (m *Memory) DeleteAllProgress(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	m.progress = make(map[string]ProgressDoc)
	return nil
}

// GetConfig returns one config document.
func (m *Memory) GetConfig(_ context.Context, doc string) (ConfigDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return ConfigDoc{}, err
	}
	d, ok := m.config[doc]
	if !ok {
		return ConfigDoc{}, ErrNotFound
	}
	return d, nil
}

// PutConfig overwrites one config document and notifies watchers.
func (m *Memory) PutConfig(_ context.Context, doc string, payload json.RawMessage, updatedFrom string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	d := ConfigDoc{Payload: payload, UpdatedAt: m.Now(), UpdatedFrom: updatedFrom}
	m.config[doc] = d

	for _, w := range m.watchers {
		if !w.docs[doc] {
			continue
		}
		update := ConfigUpdate{Doc: doc, ConfigDoc: d}
		select {
		case w.ch <- update:
		case <-w.done:
		default:
			// A watcher that stopped draining loses updates rather
			// than blocking writers.
		}
	}
	return nil
}

// WatchConfig subscribes to the named documents until ctx is cancelled.
func (m *Memory) WatchConfig(ctx context.Context, docs []string) (<-chan ConfigUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}

	w := watcher{docs: make(map[string]bool, len(docs)), ch: make(chan ConfigUpdate, 16), done: ctx.Done()}
	for _, d := range docs {
		w.docs[d] = true
	}
	m.watchers = append(m.watchers, w)

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		for i, other := range m.watchers {
			if other.ch == w.ch {
				m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(w.ch)
	}()

	return w.ch, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }

// ProgressCount reports the number of stored progress documents.
func (m *Memory) ProgressCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.progress)
}

// Progress returns the stored document for a problem name, if present.
func (m *Memory) Progress(name string) (ProgressDoc, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.progress[SanitizeDocID(name)]
	return doc, ok
}
