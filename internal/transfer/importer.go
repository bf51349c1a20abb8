package transfer

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/grindpulse/grindsync/internal/model"
	"github.com/grindpulse/grindsync/internal/store"
	"github.com/grindpulse/grindsync/internal/tracker"
)

// Resolution says what to do with one conflicting problem during import.
type Resolution string

const (
	// ResolveOverwrite adopts the imported values. The default.
	ResolveOverwrite Resolution = "overwrite"
	// ResolveSkip leaves the existing problem untouched.
	ResolveSkip Resolution = "skip"
	// ResolveKeepLatest adopts the imported values only when their
	// solved date is strictly newer than the existing one. A missing
	// or unparseable date counts as oldest.
	ResolveKeepLatest Resolution = "keep-latest"
)

// Conflict is one problem whose imported values differ from the current
// tracker state on at least one field the import mode is allowed to
// touch.
type Conflict struct {
	Name     string
	Existing model.Problem
	Imported Row
}

// Result summarizes an applied import.
type Result struct {
	Added   int
	Updated int
	Skipped int

	// BackupID identifies the pre-import snapshot, 0 when none was
	// taken (no local store, or the import created a new set).
	BackupID int64
}

// Importer applies parsed import payloads to the tracker. Progress
// writes route through tracker commands so they propagate across
// duplicate sets exactly like direct edits. A nil store disables
// backups and undo.
type Importer struct {
	tracker *tracker.Tracker
	db      *store.DB
	logger  *log.Logger
	now     func() time.Time
}

// NewImporter builds an Importer. A nil logger logs to stderr.
func NewImporter(tr *tracker.Tracker, db *store.DB, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(os.Stderr, "[import] ", log.LstdFlags)
	}
	return &Importer{tracker: tr, db: db, logger: logger, now: time.Now}
}

func (im *Importer) findSet(key string) *model.ProblemSet {
	for _, set := range im.tracker.Sets() {
		if set.Key == key {
			return set
		}
	}
	return nil
}

// DetectConflicts compares an import payload against the current state
// of the named set. Only fields the mode may touch are compared, and
// only fields the payload actually carries. An unknown set has no
// conflicts.
func (im *Importer) DetectConflicts(setKey string, rows []Row, mode Mode) []Conflict {
	set := im.findSet(setKey)
	if set == nil {
		return nil
	}

	var conflicts []Conflict
	for _, r := range rows {
		existing := set.Find(r.Name)
		if existing == nil {
			continue
		}
		if rowConflicts(existing, r, mode) {
			conflicts = append(conflicts, Conflict{
				Name:     r.Name,
				Existing: *existing,
				Imported: r,
			})
		}
	}
	return conflicts
}

func rowConflicts(existing *model.Problem, r Row, mode Mode) bool {
	if mode == ModeUser || mode == ModeFull {
		if r.Solved != nil && existing.Solved != bool(*r.Solved) {
			return true
		}
		if r.TimeToSolve != nil && existing.TimeToSolve != *r.TimeToSolve {
			return true
		}
		if r.Comments != nil && existing.Comments != *r.Comments {
			return true
		}
		if r.SolvedDate != nil && existing.SolvedDate != *r.SolvedDate {
			return true
		}
	}
	if mode == ModeProblems || mode == ModeFull {
		if r.Difficulty != nil && existing.Difficulty != model.ParseDifficulty(*r.Difficulty) {
			return true
		}
		if r.Pattern != nil && existing.Pattern != *r.Pattern {
			return true
		}
		if r.IntermediateTime != nil && existing.IntermediateTime != *r.IntermediateTime {
			return true
		}
		if r.AdvancedTime != nil && existing.AdvancedTime != *r.AdvancedTime {
			return true
		}
		if r.TopTime != nil && existing.TopTime != *r.TopTime {
			return true
		}
	}
	return false
}

// Apply executes an import against the named set. Unknown problem names
// are added in problems and full modes and skipped in user mode. An
// unknown set is created only by a problems-mode import; other modes
// need an existing set to attach progress to.
//
// resolutions maps problem name to the chosen Resolution for problems
// DetectConflicts flagged; absent entries default to ResolveOverwrite.
// Before the first change to an existing set its progress is
// snapshotted, recoverable through Undo for one hour.
func (im *Importer) Apply(ctx context.Context, setKey string, rows []Row, mode Mode, resolutions map[string]Resolution) (*Result, error) {
	set := im.findSet(setKey)
	if set == nil {
		if mode != ModeProblems {
			return nil, fmt.Errorf("unknown set %q: import in problems mode to create it", setKey)
		}
		return im.createSet(setKey, rows)
	}

	res := &Result{}
	if im.db != nil {
		items := make([]model.UserProgress, 0, len(set.Problems))
		for _, p := range set.Problems {
			items = append(items, p.Progress())
		}
		id, err := im.db.SaveBackup(ctx, setKey, items)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot set %s before import: %w", setKey, err)
		}
		res.BackupID = id
	}

	defChanged := false
	var firstErr error
	for _, r := range rows {
		existing := set.Find(r.Name)
		if existing == nil {
			if mode == ModeUser {
				res.Skipped++
				continue
			}
			if err := im.addProblem(setKey, r); err != nil && firstErr == nil {
				firstErr = err
				continue
			}
			defChanged = true
			res.Added++
			continue
		}

		switch resolutions[r.Name] {
		case ResolveSkip:
			res.Skipped++
			continue
		case ResolveKeepLatest:
			existingDate, _ := model.ParseSolvedDate(existing.SolvedDate)
			importedDate, _ := model.ParseSolvedDate(r.fieldValue("solved_date"))
			if !importedDate.After(existingDate) {
				res.Skipped++
				continue
			}
		}

		if mode == ModeProblems || mode == ModeFull {
			if applyDefinition(existing, r) {
				defChanged = true
			}
		}
		if mode == ModeUser || mode == ModeFull {
			progress := mergedProgress(existing, r)
			if err := im.tracker.Apply(tracker.SetProgress{Progress: progress}); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		res.Updated++
	}

	if defChanged {
		if err := im.tracker.SaveSet(setKey); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return res, firstErr
}

// createSet materializes a brand-new set from a problems-mode import.
func (im *Importer) createSet(setKey string, rows []Row) (*Result, error) {
	set := &model.ProblemSet{Key: setKey}
	for _, r := range rows {
		if r.Name == "" {
			continue
		}
		set.Problems = append(set.Problems, problemFromRow(r))
	}
	if len(set.Problems) == 0 {
		return nil, fmt.Errorf("import for new set %q contains no problems", setKey)
	}
	if err := im.tracker.AddSet(set); err != nil {
		return nil, err
	}
	return &Result{Added: len(set.Problems)}, nil
}

func (im *Importer) addProblem(setKey string, r Row) error {
	p := problemFromRow(r)
	if err := im.tracker.AddProblem(setKey, p); err != nil {
		return err
	}
	// Adopt the new problem's progress everywhere it is duplicated.
	if up := p.Progress(); up.HasProgress() {
		return im.tracker.Apply(tracker.SetProgress{Progress: up})
	}
	return nil
}

// problemFromRow builds a full problem from whatever fields the row
// carries, defaulting difficulty to Medium.
func problemFromRow(r Row) *model.Problem {
	p := &model.Problem{Name: r.Name, Difficulty: model.DifficultyMedium}
	applyDefinition(p, r)
	if r.Solved != nil {
		p.Solved = bool(*r.Solved)
	}
	if r.TimeToSolve != nil {
		p.TimeToSolve = *r.TimeToSolve
	}
	if r.Comments != nil {
		p.Comments = *r.Comments
	}
	if r.SolvedDate != nil {
		p.SolvedDate = *r.SolvedDate
	}
	return p
}

// applyDefinition overlays the definition fields the row carries and
// reports whether any value changed.
func applyDefinition(p *model.Problem, r Row) bool {
	changed := false
	if r.Difficulty != nil {
		if d := model.ParseDifficulty(*r.Difficulty); d != p.Difficulty {
			p.Difficulty = d
			changed = true
		}
	}
	if r.IntermediateTime != nil && *r.IntermediateTime != p.IntermediateTime {
		p.IntermediateTime = *r.IntermediateTime
		changed = true
	}
	if r.AdvancedTime != nil && *r.AdvancedTime != p.AdvancedTime {
		p.AdvancedTime = *r.AdvancedTime
		changed = true
	}
	if r.TopTime != nil && *r.TopTime != p.TopTime {
		p.TopTime = *r.TopTime
		changed = true
	}
	if r.Pattern != nil && *r.Pattern != p.Pattern {
		p.Pattern = *r.Pattern
		changed = true
	}
	return changed
}

// mergedProgress overlays the progress fields the row carries onto the
// problem's current progress.
func mergedProgress(p *model.Problem, r Row) model.UserProgress {
	up := p.Progress()
	if r.Solved != nil {
		up.Solved = bool(*r.Solved)
	}
	if r.TimeToSolve != nil {
		up.TimeToSolve = *r.TimeToSolve
	}
	if r.Comments != nil {
		up.Comments = *r.Comments
	}
	if r.SolvedDate != nil {
		up.SolvedDate = *r.SolvedDate
	}
	return up
}

// Undo restores the newest unexpired pre-import snapshot of a set. The
// restored progress propagates across duplicates like any other write,
// and the consumed backup is deleted.
func (im *Importer) Undo(ctx context.Context, setKey string) error {
	if im.db == nil {
		return fmt.Errorf("undo requires a local store")
	}
	backup, err := im.db.LatestBackup(ctx, setKey, im.now())
	if err != nil {
		return err
	}
	if backup == nil {
		return fmt.Errorf("no recent import backup for set %q", setKey)
	}

	var firstErr error
	for _, item := range backup.Items {
		if err := im.tracker.Apply(tracker.SetProgress{Progress: item}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}

	if err := im.db.DeleteBackup(ctx, backup.ID); err != nil {
		im.logger.Printf("failed to delete consumed backup %d: %v", backup.ID, err)
	}
	return nil
}
