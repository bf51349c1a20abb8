// Package cloud implements the two-way sync protocol between the local
// tracker and the remote document store: debounced batched pushes, a
// pull with conflict classification, quota-aware backoff, and live
// config-document synchronization.
package cloud

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/grindpulse/grindsync/internal/model"
	"github.com/grindpulse/grindsync/internal/remote"
	"github.com/grindpulse/grindsync/internal/store"
	"github.com/grindpulse/grindsync/internal/tracker"
)

// State is the sync engine's externally visible condition.
type State string

const (
	StateSignedOut     State = "signedOut"
	StateSyncing       State = "syncing"
	StateSynced        State = "synced"
	StateError         State = "error"
	StateQuotaExceeded State = "quotaExceeded"
)

// Sync timing. The full-sync debounce is longer than the single-set one
// because a full sync is the larger logical operation; the batch flush
// size sits below the backend's hard cap to leave headroom.
const (
	setPushDebounce  = 2 * time.Second
	fullPushDebounce = 5 * time.Second
	batchFlushSize   = 400

	// minWriteGap defers a push whose predecessor was too recent,
	// rescheduling instead of writing immediately.
	minWriteGap = 10 * time.Second

	// focusPullCooldown throttles focus-triggered pulls.
	focusPullCooldown = time.Minute

	backoffInitial = time.Second
	backoffMax     = time.Minute
)

// Debounce keys. Per-set pushes get "set:" + key.
const (
	keyFullPush   = "full"
	keyQuotaRetry = "quota-retry"
)

// metaLastSync is the sync_meta key recording the last completed sync.
const metaLastSync = "lastSync"

// Engine drives progress synchronization for one signed-in account.
type Engine struct {
	tracker *tracker.Tracker
	local   *store.DB
	remote  remote.Store
	clock   Clock
	deb     *Debouncer
	logger  *log.Logger

	deviceID string

	mu            sync.Mutex
	state         State
	lastErr       error
	lastSync      time.Time
	lastWrite     time.Time
	lastFocusPull time.Time
	backoff       time.Duration
	inFlight      bool
	applyingPull  bool

	onState func(State)
}

// NewEngine wires the engine between the tracker and a remote store.
// A fresh random device id is generated per engine, used to recognize
// this session's own echoed writes. A nil clock uses real time; a nil
// logger logs to stderr.
func NewEngine(tr *tracker.Tracker, local *store.DB, rem remote.Store, clock Clock, logger *log.Logger) *Engine {
	if clock == nil {
		clock = NewClock()
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	e := &Engine{
		tracker:  tr,
		local:    local,
		remote:   rem,
		clock:    clock,
		deb:      NewDebouncer(clock),
		logger:   logger,
		deviceID: newDeviceID(),
		state:    StateSignedOut,
		backoff:  backoffInitial,
	}
	tr.OnChange(e.notifyChange)
	return e
}

func newDeviceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("device-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// DeviceID returns this session's device identifier.
func (e *Engine) DeviceID() string { return e.deviceID }

// State returns the current sync state and the last error, if any.
func (e *Engine) State() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.lastErr
}

// LastSync returns when the last sync completed, zero if never.
func (e *Engine) LastSync() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// OnStateChange registers a hook fired on every state transition.
func (e *Engine) OnStateChange(fn func(State)) { e.onState = fn }

func (e *Engine) setState(s State, err error) {
	e.mu.Lock()
	changed := e.state != s
	e.state = s
	e.lastErr = err
	hook := e.onState
	e.mu.Unlock()
	if changed && hook != nil {
		hook(s)
	}
}

// notifyChange is the tracker's change hook: every locally originated
// edit schedules a debounced push for each touched set. Writes the
// engine itself makes while applying a pull are suppressed, otherwise
// every adopted remote document would bounce straight back up.
func (e *Engine) notifyChange(setKeys []string, _ string) {
	e.mu.Lock()
	signedOut := e.state == StateSignedOut
	applying := e.applyingPull
	e.mu.Unlock()
	if signedOut || applying {
		return
	}
	for _, key := range setKeys {
		e.SchedulePushSet(key)
	}
}

// SchedulePushSet debounces a push of one set's progress.
func (e *Engine) SchedulePushSet(setKey string) {
	e.deb.Schedule("set:"+setKey, setPushDebounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := e.pushSet(ctx, setKey); err != nil {
			e.logger.Printf("push for set %s failed: %v", setKey, err)
		}
	})
}

// SchedulePushAll debounces a full push of every set's progress.
func (e *Engine) SchedulePushAll() {
	e.deb.Schedule(keyFullPush, fullPushDebounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := e.PushAll(ctx); err != nil {
			e.logger.Printf("full push failed: %v", err)
		}
	})
}

// deferForWriteGap reschedules a push whose predecessor was too recent.
// It returns true when the push was deferred.
func (e *Engine) deferForWriteGap(key string, reschedule func()) bool {
	e.mu.Lock()
	last := e.lastWrite
	e.mu.Unlock()
	if last.IsZero() {
		return false
	}
	gap := e.clock.Now().Sub(last)
	if gap >= minWriteGap {
		return false
	}
	e.deb.Schedule(key, minWriteGap-gap, reschedule)
	return true
}

// pushSet writes one set's progress-bearing problems.
func (e *Engine) pushSet(ctx context.Context, setKey string) error {
	if e.deferForWriteGap("set:"+setKey, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := e.pushSet(ctx, setKey); err != nil {
			e.logger.Printf("deferred push for set %s failed: %v", setKey, err)
		}
	}) {
		return nil
	}

	var docs []remote.ProgressDoc
	for _, set := range e.tracker.Sets() {
		if set.Key != setKey {
			continue
		}
		for _, p := range set.Problems {
			if up := p.Progress(); up.HasProgress() {
				docs = append(docs, e.toDoc(up))
			}
		}
	}
	return e.writeDocs(ctx, docs)
}

// PushAll writes every progress-bearing problem, de-duplicated by name.
func (e *Engine) PushAll(ctx context.Context) error {
	if e.deferForWriteGap(keyFullPush, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := e.PushAll(ctx); err != nil {
			e.logger.Printf("deferred full push failed: %v", err)
		}
	}) {
		return nil
	}

	items := e.tracker.UniqueProgress()
	docs := make([]remote.ProgressDoc, 0, len(items))
	for _, up := range items {
		docs = append(docs, e.toDoc(up))
	}
	return e.writeDocs(ctx, docs)
}

func (e *Engine) toDoc(up model.UserProgress) remote.ProgressDoc {
	return remote.ProgressDoc{
		Name:        up.Name,
		Solved:      up.Solved,
		TimeToSolve: up.TimeToSolve,
		Comments:    up.Comments,
		SolvedDate:  up.SolvedDate,
		UpdatedFrom: e.deviceID,
	}
}

// writeDocs flushes docs in chunks, transitioning sync state and
// applying quota backoff.
func (e *Engine) writeDocs(ctx context.Context, docs []remote.ProgressDoc) error {
	if len(docs) == 0 {
		e.finish(false)
		return nil
	}
	e.setState(StateSyncing, nil)

	for start := 0; start < len(docs); start += batchFlushSize {
		end := start + batchFlushSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := e.remote.PutProgress(ctx, docs[start:end]); err != nil {
			return e.fail(err)
		}
	}

	e.finish(true)
	return nil
}

// finish records a completed remote operation: synced state, reset
// backoff, bookkeeping timestamps. lastWrite moves only when documents
// were actually written, so read-only pulls never trip the write-gap
// limiter.
func (e *Engine) finish(wrote bool) {
	now := e.clock.Now()
	e.mu.Lock()
	e.state = StateSynced
	e.lastErr = nil
	e.backoff = backoffInitial
	if wrote {
		e.lastWrite = now
	}
	e.lastSync = now
	hook := e.onState
	e.mu.Unlock()
	if hook != nil {
		hook(StateSynced)
	}

	if e.local != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.local.SetMeta(ctx, metaLastSync, now.UTC().Format(time.RFC3339)); err != nil {
			e.logger.Printf("failed to record last sync: %v", err)
		}
	}
}

// fail classifies a remote failure. Quota errors pause writes and retry
// with exponential backoff; anything else surfaces immediately.
func (e *Engine) fail(err error) error {
	if errors.Is(err, remote.ErrQuotaExceeded) {
		e.mu.Lock()
		delay := e.backoff
		e.backoff *= 2
		if e.backoff > backoffMax {
			e.backoff = backoffMax
		}
		e.mu.Unlock()

		e.setState(StateQuotaExceeded, err)
		e.logger.Printf("write quota exceeded, retrying in %v", delay)
		e.deb.Schedule(keyQuotaRetry, delay, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := e.PushAll(ctx); err != nil {
				e.logger.Printf("quota retry failed: %v", err)
			}
		})
		return err
	}

	e.setState(StateError, err)
	return err
}

// PullAll fetches the remote progress collection and reconciles it with
// local data. An empty remote collection means this account has never
// synced: local data is pushed instead. Documents that are clearly newer
// remotely are adopted silently; clearly newer local ones are kept; the
// rest are returned as conflicts for the caller to resolve via
// ResolveConflicts. Remote documents naming problems this device doesn't
// have are ignored.
func (e *Engine) PullAll(ctx context.Context) ([]Conflict, error) {
	return e.pull(ctx, false)
}

func (e *Engine) pull(ctx context.Context, fromCache bool) ([]Conflict, error) {
	e.setState(StateSyncing, nil)

	docs, err := e.remote.ListProgress(ctx, fromCache)
	if err != nil {
		return nil, e.fail(fmt.Errorf("failed to pull progress: %w", err))
	}

	if len(docs) == 0 {
		// First sync for this account: the local state is the truth.
		return nil, e.PushAll(ctx)
	}

	var conflicts []Conflict
	e.beginApply()
	for _, doc := range docs {
		p := e.tracker.Find(doc.Name)
		if p == nil {
			continue
		}
		switch Classify(p.Progress(), doc) {
		case OutcomeRemoteWins:
			if err := e.tracker.Apply(tracker.SetProgress{Progress: RemoteProgress(doc)}); err != nil {
				e.logger.Printf("failed to adopt remote progress for %q: %v", doc.Name, err)
			}
		case OutcomeConflict:
			conflicts = append(conflicts, Conflict{Local: p.Progress(), Remote: doc})
		}
	}
	e.endApply()

	if len(conflicts) > 0 {
		// Not synced until the user decides; stay in syncing so the
		// status surface shows the pull is unfinished.
		return conflicts, nil
	}
	e.finish(false)
	return nil, nil
}

func (e *Engine) beginApply() {
	e.mu.Lock()
	e.applyingPull = true
	e.mu.Unlock()
}

func (e *Engine) endApply() {
	e.mu.Lock()
	e.applyingPull = false
	e.mu.Unlock()
}

// ResolveConflicts applies one resolution per conflict (missing entries
// default to keep-local), then pushes the full merged state.
func (e *Engine) ResolveConflicts(ctx context.Context, conflicts []Conflict, choices map[string]Resolution) error {
	e.beginApply()
	for _, c := range conflicts {
		choice := choices[c.Local.Name]
		if err := e.tracker.Apply(tracker.SetProgress{Progress: c.Apply(choice)}); err != nil {
			e.endApply()
			return fmt.Errorf("failed to apply resolution for %q: %w", c.Local.Name, err)
		}
	}
	e.endApply()
	return e.PushAll(ctx)
}

// FocusPull is the cheap convergence path used when activity resumes.
// It is throttled to one pull per cooldown window and prefers the
// remote's cached snapshot.
func (e *Engine) FocusPull(ctx context.Context) ([]Conflict, error) {
	e.mu.Lock()
	now := e.clock.Now()
	if !e.lastFocusPull.IsZero() && now.Sub(e.lastFocusPull) < focusPullCooldown {
		e.mu.Unlock()
		return nil, nil
	}
	e.lastFocusPull = now
	e.mu.Unlock()

	return e.pull(ctx, true)
}

// ForceSync runs a full push then pull. A second call while one is in
// flight is redundant and returns immediately.
func (e *Engine) ForceSync(ctx context.Context) ([]Conflict, error) {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return nil, nil
	}
	e.inFlight = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	if err := e.PushAll(ctx); err != nil {
		return nil, err
	}
	return e.PullAll(ctx)
}

// SignIn transitions out of signedOut and runs the initial pull.
func (e *Engine) SignIn(ctx context.Context) ([]Conflict, error) {
	e.setState(StateSyncing, nil)
	return e.PullAll(ctx)
}

// SignOut cancels pending work and returns to signedOut. Local data is
// preserved untouched.
func (e *Engine) SignOut() {
	e.deb.CancelAll()
	e.setState(StateSignedOut, nil)
}

// ClearCloudData deletes every remote progress document, keeping local
// data intact.
func (e *Engine) ClearCloudData(ctx context.Context) error {
	if err := e.remote.DeleteAllProgress(ctx); err != nil {
		return e.fail(fmt.Errorf("failed to clear cloud data: %w", err))
	}
	e.finish(false)
	return nil
}
