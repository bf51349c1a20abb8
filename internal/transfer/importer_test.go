package transfer

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grindpulse/grindsync/internal/model"
	"github.com/grindpulse/grindsync/internal/store"
	"github.com/grindpulse/grindsync/internal/tracker"
)

type memSaver struct {
	saved map[string][]model.UserProgress
}

func (m *memSaver) SaveSetProgress(setKey string, items []model.UserProgress) error {
	m.saved[setKey] = items
	return nil
}

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestImporter(t *testing.T) (*Importer, *tracker.Tracker, *memSaver) {
	t.Helper()
	sets := []*model.ProblemSet{
		{Key: "blind75", Problems: []*model.Problem{
			{Name: "Two Sum", Difficulty: model.DifficultyEasy, Pattern: "Hash Map"},
			{Name: "3Sum", Difficulty: model.DifficultyMedium},
		}},
		{Key: "neetcode150", Problems: []*model.Problem{
			{Name: "Two Sum", Difficulty: model.DifficultyEasy},
		}},
	}
	saver := &memSaver{saved: make(map[string][]model.UserProgress)}
	tr := tracker.New(sets, saver, discard())
	return NewImporter(tr, nil, discard()), tr, saver
}

func TestDetectConflictsHonorsMode(t *testing.T) {
	im, _, _ := newTestImporter(t)

	row := Row{Name: "Two Sum", Difficulty: strPtr("Hard"), Solved: boolPtr(true)}

	// User mode only compares progress fields, so the difficulty
	// disagreement alone is not a conflict.
	if got := im.DetectConflicts("blind75", []Row{{Name: "Two Sum", Difficulty: strPtr("Hard")}}, ModeUser); len(got) != 0 {
		t.Errorf("user-mode conflicts = %+v, want none", got)
	}
	if got := im.DetectConflicts("blind75", []Row{row}, ModeUser); len(got) != 1 {
		t.Fatalf("user-mode conflicts = %+v, want solved flag flagged", got)
	}
	if got := im.DetectConflicts("blind75", []Row{row}, ModeProblems); len(got) != 1 {
		t.Errorf("problems-mode conflicts = %+v, want difficulty flagged", got)
	}
}

func TestDetectConflictsIgnoresAbsentFields(t *testing.T) {
	im, tr, _ := newTestImporter(t)
	tr.Find("Two Sum").Comments = "existing note"

	// The row says nothing about comments, so the difference is not
	// a conflict.
	row := Row{Name: "Two Sum", Solved: boolPtr(false)}
	if got := im.DetectConflicts("blind75", []Row{row}, ModeUser); len(got) != 0 {
		t.Errorf("conflicts = %+v, want none for absent fields", got)
	}
}

func TestDetectConflictsUnknownNamesAndSets(t *testing.T) {
	im, _, _ := newTestImporter(t)
	rows := []Row{{Name: "Word Ladder", Solved: boolPtr(true)}}
	if got := im.DetectConflicts("blind75", rows, ModeUser); len(got) != 0 {
		t.Errorf("unknown problem produced conflicts: %+v", got)
	}
	if got := im.DetectConflicts("nonexistent", rows, ModeUser); len(got) != 0 {
		t.Errorf("unknown set produced conflicts: %+v", got)
	}
}

func TestApplyOverwritePropagatesAcrossSets(t *testing.T) {
	im, tr, saver := newTestImporter(t)

	rows := []Row{{Name: "Two Sum", Solved: boolPtr(true), TimeToSolve: strPtr("12"), SolvedDate: strPtr("2026-01-20")}}
	res, err := im.Apply(context.Background(), "blind75", rows, ModeUser, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Updated != 1 || res.Added != 0 || res.Skipped != 0 {
		t.Errorf("result = %+v, want 1 updated", res)
	}

	for _, set := range tr.Sets() {
		if set.Key == "neetcode150" || set.Key == "blind75" {
			p := set.Find("Two Sum")
			if !p.Solved || p.TimeToSolve != "12" {
				t.Errorf("set %s did not adopt the import: %+v", set.Key, p)
			}
		}
	}
	if _, ok := saver.saved["neetcode150"]; !ok {
		t.Error("propagated set was not persisted")
	}
}

func TestApplySkipResolution(t *testing.T) {
	im, tr, _ := newTestImporter(t)

	rows := []Row{{Name: "Two Sum", Solved: boolPtr(true)}}
	res, err := im.Apply(context.Background(), "blind75", rows, ModeUser,
		map[string]Resolution{"Two Sum": ResolveSkip})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Skipped != 1 || res.Updated != 0 {
		t.Errorf("result = %+v, want 1 skipped", res)
	}
	if tr.Find("Two Sum").Solved {
		t.Error("skipped problem was modified")
	}
}

func TestApplyMixedPerItemResolutions(t *testing.T) {
	im, tr, _ := newTestImporter(t)
	tr.Find("3Sum").Comments = "keep me"

	rows := []Row{
		{Name: "Two Sum", Solved: boolPtr(true)},
		{Name: "3Sum", Comments: strPtr("imported note")},
	}
	res, err := im.Apply(context.Background(), "blind75", rows, ModeUser,
		map[string]Resolution{"Two Sum": ResolveOverwrite, "3Sum": ResolveSkip})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Updated != 1 || res.Skipped != 1 {
		t.Errorf("result = %+v, want one updated and one skipped", res)
	}
	if !tr.Find("Two Sum").Solved {
		t.Error("overwritten row was not applied")
	}
	if got := tr.Find("3Sum").Comments; got != "keep me" {
		t.Errorf("comments = %q, skip resolution applied anyway", got)
	}
}

func TestApplyKeepLatest(t *testing.T) {
	im, tr, _ := newTestImporter(t)
	existing := tr.Find("Two Sum")
	existing.Solved = true
	existing.SolvedDate = "2026-01-20T10:00:00Z"
	existing.Comments = "kept"

	resolutions := map[string]Resolution{"Two Sum": ResolveKeepLatest}

	older := []Row{{Name: "Two Sum", Comments: strPtr("stale"), SolvedDate: strPtr("2026-01-10")}}
	res, err := im.Apply(context.Background(), "blind75", older, ModeUser, resolutions)
	if err != nil {
		t.Fatalf("Apply older: %v", err)
	}
	if res.Skipped != 1 || tr.Find("Two Sum").Comments != "kept" {
		t.Errorf("older import was not skipped: %+v", res)
	}

	newer := []Row{{Name: "Two Sum", Comments: strPtr("fresh"), SolvedDate: strPtr("2026-01-25")}}
	res, err = im.Apply(context.Background(), "blind75", newer, ModeUser, resolutions)
	if err != nil {
		t.Fatalf("Apply newer: %v", err)
	}
	if res.Updated != 1 || tr.Find("Two Sum").Comments != "fresh" {
		t.Errorf("newer import was not applied: %+v", res)
	}
}

func TestApplyAddsNewProblems(t *testing.T) {
	im, tr, _ := newTestImporter(t)

	rows := []Row{
		{Name: "Word Ladder", Pattern: strPtr("BFS")},
		{Name: "3Sum", Difficulty: strPtr("Hard")},
	}
	res, err := im.Apply(context.Background(), "blind75", rows, ModeProblems, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Added != 1 || res.Updated != 1 {
		t.Errorf("result = %+v, want 1 added and 1 updated", res)
	}

	added := tr.Find("Word Ladder")
	if added == nil {
		t.Fatal("new problem was not added")
	}
	if added.Difficulty != model.DifficultyMedium {
		t.Errorf("difficulty = %q, want Medium default", added.Difficulty)
	}
	if got := tr.Find("3Sum").Difficulty; got != model.DifficultyHard {
		t.Errorf("3Sum difficulty = %q, want Hard", got)
	}
}

func TestApplyUserModeSkipsUnknownNames(t *testing.T) {
	im, tr, _ := newTestImporter(t)

	rows := []Row{{Name: "Word Ladder", Solved: boolPtr(true)}}
	res, err := im.Apply(context.Background(), "blind75", rows, ModeUser, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Skipped != 1 || res.Added != 0 {
		t.Errorf("result = %+v, want unknown name skipped", res)
	}
	if tr.Find("Word Ladder") != nil {
		t.Error("user-mode import created a problem")
	}
}

func TestApplyUnknownSet(t *testing.T) {
	im, tr, saver := newTestImporter(t)

	rows := []Row{{Name: "Roman to Integer", Difficulty: strPtr("Easy")}}
	if _, err := im.Apply(context.Background(), "grind75", rows, ModeUser, nil); err == nil {
		t.Fatal("user-mode import into unknown set succeeded, want error")
	} else if !strings.Contains(err.Error(), "problems mode") {
		t.Errorf("error = %v, want problems-mode hint", err)
	}

	res, err := im.Apply(context.Background(), "grind75", rows, ModeProblems, nil)
	if err != nil {
		t.Fatalf("Apply problems mode: %v", err)
	}
	if res.Added != 1 {
		t.Errorf("result = %+v, want 1 added", res)
	}
	found := false
	for _, set := range tr.Sets() {
		if set.Key == "grind75" {
			found = true
		}
	}
	if !found {
		t.Fatal("new set was not registered")
	}
	if _, ok := saver.saved["grind75"]; !ok {
		t.Error("new set was not persisted")
	}
}

func TestBackupAndUndo(t *testing.T) {
	sets := []*model.ProblemSet{
		{Key: "blind75", Problems: []*model.Problem{
			{Name: "Two Sum", Solved: true, Comments: "original"},
		}},
	}
	db, err := store.Open(filepath.Join(t.TempDir(), "grind.db"), discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}

	tr := tracker.New(sets, db, discard())
	im := NewImporter(tr, db, discard())
	ctx := context.Background()

	rows := []Row{{Name: "Two Sum", Solved: boolPtr(false), Comments: strPtr("imported")}}
	res, err := im.Apply(ctx, "blind75", rows, ModeUser, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.BackupID == 0 {
		t.Fatal("no backup was taken")
	}
	if p := tr.Find("Two Sum"); p.Solved || p.Comments != "imported" {
		t.Fatalf("import was not applied: %+v", p)
	}

	if err := im.Undo(ctx, "blind75"); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if p := tr.Find("Two Sum"); !p.Solved || p.Comments != "original" {
		t.Errorf("undo did not restore the snapshot: %+v", p)
	}

	// The consumed backup is gone, so a second undo has nothing to
	// restore.
	if err := im.Undo(ctx, "blind75"); err == nil {
		t.Error("second undo succeeded, want error")
	}
}
