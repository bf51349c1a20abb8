package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/grindpulse/grindsync/internal/awareness"
	"github.com/grindpulse/grindsync/internal/prefs"
	"github.com/grindpulse/grindsync/internal/remote"
	"github.com/grindpulse/grindsync/internal/store"
)

// The four config documents, each synced independently.
const (
	DocFilters     = "filters"
	DocExportPrefs = "exportPrefs"
	DocUIPrefs     = "uiPrefs"
	DocAwareness   = "awareness"
)

// Config pushes debounce longer than progress pushes since settings
// change less urgently; filters are the most frequently touched of the
// four and get the shortest window.
const (
	filterPushDebounce = 3 * time.Second
	prefsPushDebounce  = 5 * time.Second
)

// ConfigSync keeps the four preference records coherent across local
// storage and the cloud. Unlike bulk progress, the config documents are
// small and singular, so they get live subscriptions; a device ignores
// updates tagged with its own device id, which are echoes of its own
// writes.
type ConfigSync struct {
	local    *store.DB
	remote   remote.Store
	clock    Clock
	deb      *Debouncer
	logger   *log.Logger
	deviceID string
	setKeys  []string

	mu        sync.Mutex
	filters   prefs.FilterConfig
	export    prefs.ExportPrefs
	ui        prefs.UIPrefs
	awareness awareness.Config

	onApply func(doc string)
}

// NewConfigSync loads the locally persisted preference documents over
// built-in defaults. setKeys validates the filter config's active tab.
// A nil remote keeps everything local-only: writes persist but never
// push, and pulls and watches are no-ops.
func NewConfigSync(local *store.DB, rem remote.Store, clock Clock, deviceID string, setKeys []string, logger *log.Logger) *ConfigSync {
	if clock == nil {
		clock = NewClock()
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[configsync] ", log.LstdFlags)
	}
	cs := &ConfigSync{
		local:     local,
		remote:    rem,
		clock:     clock,
		deb:       NewDebouncer(clock),
		logger:    logger,
		deviceID:  deviceID,
		setKeys:   setKeys,
		filters:   prefs.DefaultFilterConfig(setKeys),
		export:    prefs.DefaultExportPrefs(),
		ui:        prefs.DefaultUIPrefs(),
		awareness: awareness.DefaultConfig(),
	}
	cs.loadLocal()
	return cs
}

// OnApply registers a hook fired after a remote config change lands,
// so the caller can re-render.
func (cs *ConfigSync) OnApply(fn func(doc string)) { cs.onApply = fn }

func (cs *ConfigSync) loadLocal() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	load := func(doc string, into any) {
		payload, err := cs.local.LoadConfigDoc(ctx, doc)
		if err != nil {
			cs.logger.Printf("failed to load local config %s: %v", doc, err)
			return
		}
		if payload == nil {
			return
		}
		if err := json.Unmarshal(payload, into); err != nil {
			cs.logger.Printf("unreadable local config %s, using defaults: %v", doc, err)
		}
	}

	load(DocFilters, &cs.filters)
	load(DocExportPrefs, &cs.export)
	load(DocUIPrefs, &cs.ui)
	load(DocAwareness, &cs.awareness)
	cs.awareness.Clamp()
	if cs.filters.TabStates == nil {
		cs.filters.TabStates = make(map[string]prefs.TabFilter)
	}
}

// Filters returns the current filter config.
func (cs *ConfigSync) Filters() prefs.FilterConfig {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.filters
}

// ExportPrefs returns the current export preferences.
func (cs *ConfigSync) ExportPrefs() prefs.ExportPrefs {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.export
}

// UIPrefs returns the current UI preferences.
func (cs *ConfigSync) UIPrefs() prefs.UIPrefs {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.ui
}

// Awareness returns the current awareness config.
func (cs *ConfigSync) Awareness() awareness.Config {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.awareness
}

// SetFilters replaces the filter config, persists it, and schedules a
// debounced push.
func (cs *ConfigSync) SetFilters(cfg prefs.FilterConfig) {
	cs.mu.Lock()
	cs.filters = cfg
	cs.mu.Unlock()
	cs.persistAndPush(DocFilters, filterPushDebounce)
}

// SetExportPrefs replaces the export preferences.
func (cs *ConfigSync) SetExportPrefs(p prefs.ExportPrefs) {
	cs.mu.Lock()
	cs.export = p
	cs.mu.Unlock()
	cs.persistAndPush(DocExportPrefs, prefsPushDebounce)
}

// SetUIPrefs replaces the UI preferences.
func (cs *ConfigSync) SetUIPrefs(p prefs.UIPrefs) {
	cs.mu.Lock()
	cs.ui = p
	cs.mu.Unlock()
	cs.persistAndPush(DocUIPrefs, prefsPushDebounce)
}

// SetAwareness replaces the awareness config, clamping it first.
func (cs *ConfigSync) SetAwareness(cfg awareness.Config) {
	cfg.Clamp()
	cs.mu.Lock()
	cs.awareness = cfg
	cs.mu.Unlock()
	cs.persistAndPush(DocAwareness, prefsPushDebounce)
}

func (cs *ConfigSync) payload(doc string) (json.RawMessage, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	var v any
	switch doc {
	case DocFilters:
		v = cs.filters
	case DocExportPrefs:
		v = cs.export
	case DocUIPrefs:
		v = cs.ui
	case DocAwareness:
		v = cs.awareness
	default:
		return nil, fmt.Errorf("unknown config doc %q", doc)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config doc %s: %w", doc, err)
	}
	return data, nil
}

func (cs *ConfigSync) persistAndPush(doc string, debounce time.Duration) {
	payload, err := cs.payload(doc)
	if err != nil {
		cs.logger.Printf("%v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cs.local.SaveConfigDoc(ctx, doc, payload); err != nil {
		cs.logger.Printf("failed to persist config %s: %v", doc, err)
	}

	cs.deb.Schedule("config:"+doc, debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := cs.push(ctx, doc); err != nil {
			cs.logger.Printf("failed to push config %s: %v", doc, err)
		}
	})
}

func (cs *ConfigSync) push(ctx context.Context, doc string) error {
	if cs.remote == nil {
		return nil
	}
	payload, err := cs.payload(doc)
	if err != nil {
		return err
	}
	return cs.remote.PutConfig(ctx, doc, payload, cs.deviceID)
}

// PullAll fetches all four config documents. A document absent remotely
// means this device is its first writer: the local version is pushed.
// Present documents merge into the local state under each record's own
// policy and the result is persisted.
func (cs *ConfigSync) PullAll(ctx context.Context) error {
	if cs.remote == nil {
		return nil
	}
	for _, doc := range []string{DocFilters, DocExportPrefs, DocUIPrefs, DocAwareness} {
		remoteDoc, err := cs.remote.GetConfig(ctx, doc)
		if errors.Is(err, remote.ErrNotFound) {
			if err := cs.push(ctx, doc); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to pull config %s: %w", doc, err)
		}
		if err := cs.applyCloud(doc, remoteDoc.Payload); err != nil {
			cs.logger.Printf("failed to apply cloud config %s: %v", doc, err)
		}
	}
	return nil
}

// applyCloud merges a cloud payload into the matching local record and
// persists the result.
func (cs *ConfigSync) applyCloud(doc string, payload json.RawMessage) error {
	cs.mu.Lock()
	switch doc {
	case DocFilters:
		var cloud prefs.FilterConfig
		if err := json.Unmarshal(payload, &cloud); err != nil {
			cs.mu.Unlock()
			return err
		}
		cs.filters = cs.filters.MergeCloud(cloud, cs.setKeys)
	case DocExportPrefs:
		var cloud prefs.ExportPrefs
		if err := json.Unmarshal(payload, &cloud); err != nil {
			cs.mu.Unlock()
			return err
		}
		cs.export = cs.export.MergeCloud(cloud)
	case DocUIPrefs:
		var cloud prefs.UIPrefs
		if err := json.Unmarshal(payload, &cloud); err != nil {
			cs.mu.Unlock()
			return err
		}
		cs.ui = cs.ui.MergeCloud(cloud)
	case DocAwareness:
		merged, err := awareness.Merge(cs.awareness, payload)
		if err != nil {
			cs.mu.Unlock()
			return err
		}
		cs.awareness = merged
	default:
		cs.mu.Unlock()
		return fmt.Errorf("unknown config doc %q", doc)
	}
	cs.mu.Unlock()

	merged, err := cs.payload(doc)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cs.local.SaveConfigDoc(ctx, doc, merged); err != nil {
		cs.logger.Printf("failed to persist merged config %s: %v", doc, err)
	}

	if cs.onApply != nil {
		cs.onApply(doc)
	}
	return nil
}

// Watch subscribes to live updates of all four documents until ctx is
// cancelled. Updates written by this device are echoes and are skipped.
// Watch returns when the subscription channel closes; callers wanting a
// resilient subscription re-invoke it.
func (cs *ConfigSync) Watch(ctx context.Context) error {
	if cs.remote == nil {
		return nil
	}
	ch, err := cs.remote.WatchConfig(ctx, []string{DocFilters, DocExportPrefs, DocUIPrefs, DocAwareness})
	if err != nil {
		return fmt.Errorf("failed to watch config: %w", err)
	}

	for update := range ch {
		if update.UpdatedFrom == cs.deviceID {
			continue
		}
		if err := cs.applyCloud(update.Doc, update.Payload); err != nil {
			cs.logger.Printf("failed to apply live config %s: %v", update.Doc, err)
		}
	}
	return ctx.Err()
}

// Flush pushes every config document immediately, canceling pending
// debounced pushes. One-shot CLI invocations call this before exit;
// a long-lived watch session never needs it.
func (cs *ConfigSync) Flush(ctx context.Context) error {
	cs.deb.CancelAll()
	if cs.remote == nil {
		return nil
	}
	var firstErr error
	for _, doc := range []string{DocFilters, DocExportPrefs, DocUIPrefs, DocAwareness} {
		if err := cs.push(ctx, doc); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to flush config %s: %w", doc, err)
		}
	}
	return firstErr
}

// Stop cancels pending config pushes.
func (cs *ConfigSync) Stop() {
	cs.deb.CancelAll()
}
