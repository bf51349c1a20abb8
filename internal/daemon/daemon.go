// Package daemon implements watch mode: it keeps a running tracker in
// step with the problem-set directory on disk and drives the periodic
// awareness refresh.
//
// The daemon:
// 1. Watches the set directory for *.tsv changes
// 2. Reloads changed sets with debouncing, preserving in-memory progress
// 3. Periodically fires the refresh hook and a cooled-down cloud pull
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/grindpulse/grindsync/internal/cloud"
	"github.com/grindpulse/grindsync/internal/model"
	"github.com/grindpulse/grindsync/internal/tracker"
)

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long to wait before reloading a changed
	// set file, batching the write bursts editors produce.
	DebounceInterval time.Duration

	// RefreshInterval is how often the refresh hook fires and a cloud
	// pull is attempted. Zero disables the refresh loop.
	RefreshInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 250 * time.Millisecond,
		RefreshInterval:  24 * time.Hour,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon watches the problem-set directory and keeps the tracker fresh.
type Daemon struct {
	setsDir string
	tracker *tracker.Tracker
	engine  *cloud.Engine // optional
	config  *Config

	onRefresh   func()
	onConflicts func([]cloud.Conflict)

	watcher   *fsnotify.Watcher
	pending   map[string]time.Time // set file path -> last event
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon over the given set directory and tracker. engine
// may be nil when the user is signed out; the refresh loop then only
// fires the refresh hook.
func New(setsDir string, tr *tracker.Tracker, engine *cloud.Engine, config *Config) (*Daemon, error) {
	if setsDir == "" {
		return nil, fmt.Errorf("setsDir cannot be empty")
	}
	if tr == nil {
		return nil, fmt.Errorf("tracker cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		setsDir: setsDir,
		tracker: tr,
		engine:  engine,
		config:  config,
		watcher: watcher,
		pending: make(map[string]time.Time),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// OnRefresh registers the hook fired at every refresh tick, after the
// cloud pull. Watch-mode rendering hangs its redraw here since awareness
// scores drift with the clock even when nothing else changes.
func (d *Daemon) OnRefresh(fn func()) { d.onRefresh = fn }

// OnConflicts registers the hook fired when a refresh pull surfaces sync
// conflicts. Without one the daemon resolves them keep-local so the
// engine is never parked mid-sync in an unattended process.
func (d *Daemon) OnConflicts(fn func([]cloud.Conflict)) { d.onConflicts = fn }

// Start begins watching. It blocks until ctx is cancelled or Stop is
// called.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.watcher.Add(d.setsDir); err != nil {
		return fmt.Errorf("failed to watch set directory %s: %w", d.setsDir, err)
	}
	d.config.Logger.Printf("Watching %s", d.setsDir)

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processPending()

	if d.config.RefreshInterval > 0 {
		d.wg.Add(1)
		go d.refreshLoop()
	}

	select {
	case <-ctx.Done():
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts the daemon down, waiting for the loops to exit.
func (d *Daemon) Stop() error {
	d.cancel()
	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}
	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents queues set-file events for debounced processing.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				// Removals are ignored: the in-memory set stays
				// loaded until restart so progress is never orphaned
				// by a transient editor rename.
				continue
			}
			if !strings.HasSuffix(event.Name, ".tsv") {
				continue
			}
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Daemon) queueChange(path string) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	d.pending[path] = time.Now()
}

// processPending reloads queued files once they have been quiet for the
// debounce interval.
func (d *Daemon) processPending() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			for _, path := range d.takeQuiet(time.Now()) {
				if err := d.reloadSet(path); err != nil {
					d.config.Logger.Printf("Failed to reload %s: %v", filepath.Base(path), err)
				}
			}
		}
	}
}

// takeQuiet drains entries that have not seen a new event for a full
// debounce interval.
func (d *Daemon) takeQuiet(now time.Time) []string {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	var quiet []string
	for path, last := range d.pending {
		if now.Sub(last) >= d.config.DebounceInterval {
			quiet = append(quiet, path)
			delete(d.pending, path)
		}
	}
	return quiet
}

// refreshPull runs the cooled-down cloud pull and settles any conflicts
// it surfaces. The engine leaves conflicted pulls unfinished, so the
// daemon must resolve them or hand them off rather than drop them.
func (d *Daemon) refreshPull() {
	conflicts, err := d.engine.FocusPull(d.ctx)
	if err != nil {
		d.config.Logger.Printf("Refresh pull failed: %v", err)
		return
	}
	if len(conflicts) == 0 {
		return
	}
	if d.onConflicts != nil {
		d.onConflicts(conflicts)
		return
	}
	d.config.Logger.Printf("Resolved %d sync conflict(s) keep-local", len(conflicts))
	if err := d.engine.ResolveConflicts(d.ctx, conflicts, nil); err != nil {
		d.config.Logger.Printf("Conflict resolution failed: %v", err)
	}
}

// reloadSet re-reads one set file and swaps it into the tracker. A file
// for an unknown key becomes a new set.
func (d *Daemon) reloadSet(path string) error {
	set, err := model.ReadSetFile(path)
	if err != nil {
		return err
	}

	for _, existing := range d.tracker.Sets() {
		if existing.Key == set.Key {
			if err := d.tracker.ReplaceSet(set); err != nil {
				return err
			}
			d.config.Logger.Printf("Reloaded set %s (%d problems)", set.Key, len(set.Problems))
			return nil
		}
	}

	if err := d.tracker.AddSet(set); err != nil {
		return err
	}
	d.config.Logger.Printf("Loaded new set %s (%d problems)", set.Key, len(set.Problems))
	return nil
}

// refreshLoop periodically pulls from the cloud and fires the refresh
// hook. The pull rides the engine's focus cooldown, so a short interval
// here never turns into remote read spam.
func (d *Daemon) refreshLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if d.engine != nil {
				d.refreshPull()
			}
			if d.onRefresh != nil {
				d.onRefresh()
			}
		}
	}
}
