// Package tracker owns the in-memory problem sets and funnels every
// user-progress mutation through a single propagation engine, so a
// problem duplicated across sets never diverges on its progress fields.
package tracker

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/grindpulse/grindsync/internal/model"
)

// Saver persists one set's user progress. The store package provides the
// durable implementation; tests supply an in-memory one.
type Saver interface {
	SaveSetProgress(setKey string, items []model.UserProgress) error
}

// ChangeFunc is invoked after a mutation lands, once per mutation, with
// the keys of every set the mutation touched. The sync layer hooks this
// to debounce pushes.
type ChangeFunc func(setKeys []string, problemName string)

// Tracker applies progress mutations to the loaded sets, propagates them
// across duplicates, and persists every touched set.
type Tracker struct {
	sets   []*model.ProblemSet
	index  model.DuplicateIndex
	saver  Saver
	logger *log.Logger

	onChange ChangeFunc

	// now is replaceable in tests.
	now func() time.Time
}

// New builds a Tracker over the given sets. The duplicate index is
// derived here and only extended afterward (by imports). A nil logger
// logs to stderr.
func New(sets []*model.ProblemSet, saver Saver, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.New(os.Stderr, "[tracker] ", log.LstdFlags)
	}
	return &Tracker{
		sets:   sets,
		index:  model.BuildDuplicateIndex(sets),
		saver:  saver,
		logger: logger,
		now:    time.Now,
	}
}

// OnChange registers the post-mutation hook. At most one is kept.
func (t *Tracker) OnChange(fn ChangeFunc) { t.onChange = fn }

// Sets returns the loaded sets in load order.
func (t *Tracker) Sets() []*model.ProblemSet { return t.sets }

// Index exposes the duplicate index for read-only use.
func (t *Tracker) Index() model.DuplicateIndex { return t.index }

// Find returns the first occurrence of name across all sets, or nil.
func (t *Tracker) Find(name string) *model.Problem {
	for _, set := range t.sets {
		if p := set.Find(name); p != nil {
			return p
		}
	}
	return nil
}

// Apply executes one mutation: it applies the command to the first
// occurrence, copies the resulting progress onto every other occurrence
// in one flat pass, persists each touched set, and fires the change hook.
// A command that changes nothing is a no-op with no persistence and no
// hook. Applying a command and then persisting is not transactional
// across sets; a save failure is returned after all in-memory writes
// completed, so memory stays consistent even when disk lags.
func (t *Tracker) Apply(cmd Command) error {
	name := cmd.ProblemName()
	primary := t.Find(name)
	if primary == nil {
		return fmt.Errorf("problem %q not found in any set", name)
	}

	if !cmd.apply(primary, t.now()) {
		return nil
	}

	touched := t.propagate(name, primary.Progress())

	var firstErr error
	for _, key := range touched {
		if err := t.saveSet(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if t.onChange != nil {
		t.onChange(touched, name)
	}
	return firstErr
}

// propagate copies progress onto every occurrence of name and returns the
// keys of all sets containing it, the primary's included. One mutation
// makes exactly one pass; adopted copies never re-enter Apply.
func (t *Tracker) propagate(name string, progress model.UserProgress) []string {
	keys := t.index.SetsFor(name)
	if keys == nil {
		// Not duplicated: only the sets that actually hold it (one).
		for _, set := range t.sets {
			if set.Find(name) != nil {
				return []string{set.Key}
			}
		}
		return nil
	}

	for _, key := range keys {
		set := t.setByKey(key)
		if set == nil {
			t.logger.Printf("duplicate index references unknown set %q for %q", key, name)
			continue
		}
		if p := set.Find(name); p != nil {
			p.ApplyProgress(progress)
		}
	}
	return keys
}

func (t *Tracker) setByKey(key string) *model.ProblemSet {
	for _, set := range t.sets {
		if set.Key == key {
			return set
		}
	}
	return nil
}

func (t *Tracker) saveSet(key string) error {
	set := t.setByKey(key)
	if set == nil {
		return fmt.Errorf("unknown set %q", key)
	}
	items := make([]model.UserProgress, 0, len(set.Problems))
	for _, p := range set.Problems {
		items = append(items, p.Progress())
	}
	if err := t.saver.SaveSetProgress(key, items); err != nil {
		return fmt.Errorf("failed to persist set %s: %w", key, err)
	}
	return nil
}

// SaveSet persists one set by key. Imports use this after definition
// edits and additions, which do not flow through Apply.
func (t *Tracker) SaveSet(key string) error {
	return t.saveSet(key)
}

// SaveAll persists every set, used after bulk operations (imports, pull
// application) that bypass per-command saves.
func (t *Tracker) SaveAll() error {
	var firstErr error
	for _, set := range t.sets {
		if err := t.saveSet(set.Key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AddSet registers a new set created by a problems-mode import. The
// duplicate index is rebuilt since the new set can alias any number of
// existing names, and the set is persisted immediately.
func (t *Tracker) AddSet(set *model.ProblemSet) error {
	if t.setByKey(set.Key) != nil {
		return fmt.Errorf("set %q already exists", set.Key)
	}
	t.sets = append(t.sets, set)
	t.index = model.BuildDuplicateIndex(t.sets)
	return t.saveSet(set.Key)
}

// ReplaceSet swaps the named set's problems for a freshly loaded roster,
// as happens when watch mode sees the set file change on disk. Problems
// whose new definition carries no progress of its own keep the progress
// they had in memory, so a definition-only edit to the file never wipes
// solves. The duplicate index is rebuilt and the set persisted.
func (t *Tracker) ReplaceSet(set *model.ProblemSet) error {
	old := t.setByKey(set.Key)
	if old == nil {
		return fmt.Errorf("unknown set %q", set.Key)
	}
	for _, p := range set.Problems {
		if p.Progress().HasProgress() {
			continue
		}
		if prev := old.Find(p.Name); prev != nil {
			p.ApplyProgress(prev.Progress())
		}
	}
	old.Problems = set.Problems
	t.index = model.BuildDuplicateIndex(t.sets)
	return t.saveSet(set.Key)
}

// AddProblem appends a new problem to the named set and extends the
// duplicate index in case the name now spans multiple sets. Used by
// problems-mode imports.
func (t *Tracker) AddProblem(setKey string, p *model.Problem) error {
	set := t.setByKey(setKey)
	if set == nil {
		return fmt.Errorf("unknown set %q", setKey)
	}
	set.Problems = append(set.Problems, p)
	t.index.Extend(t.sets, p.Name)
	return nil
}

// SetProgressCounts returns solved and total counts for one set.
func (t *Tracker) SetProgressCounts(setKey string) (solved, total int) {
	set := t.setByKey(setKey)
	if set == nil {
		return 0, 0
	}
	for _, p := range set.Problems {
		total++
		if p.Solved {
			solved++
		}
	}
	return solved, total
}

// UniqueProgressCounts returns solved and total counts de-duplicated by
// problem name across all sets. The solved count here is the aggregate
// fed into awareness scoring.
func (t *Tracker) UniqueProgressCounts() (solved, total int) {
	seen := make(map[string]bool)
	for _, set := range t.sets {
		for _, p := range set.Problems {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			total++
			if p.Solved {
				solved++
			}
		}
	}
	return solved, total
}

// UniqueProgress returns one progress record per unique problem name that
// carries any progress, in set load order. This is the push payload for
// a full sync.
func (t *Tracker) UniqueProgress() []model.UserProgress {
	seen := make(map[string]bool)
	var out []model.UserProgress
	for _, set := range t.sets {
		for _, p := range set.Problems {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			if up := p.Progress(); up.HasProgress() {
				out = append(out, up)
			}
		}
	}
	return out
}
