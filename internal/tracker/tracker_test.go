package tracker

import (
	"errors"
	"testing"
	"time"

	"github.com/grindpulse/grindsync/internal/model"
)

type memorySaver struct {
	saved map[string][]model.UserProgress
	calls int
	err   error
}

func newMemorySaver() *memorySaver {
	return &memorySaver{saved: make(map[string][]model.UserProgress)}
}

func (m *memorySaver) SaveSetProgress(setKey string, items []model.UserProgress) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.saved[setKey] = items
	return nil
}

func newTestTracker(t *testing.T) (*Tracker, *memorySaver) {
	t.Helper()
	sets := []*model.ProblemSet{
		{Key: "blind75", Problems: []*model.Problem{
			{Name: "Two Sum", Difficulty: model.DifficultyEasy},
			{Name: "3Sum", Difficulty: model.DifficultyMedium},
		}},
		{Key: "neetcode150", Problems: []*model.Problem{
			{Name: "Two Sum", Difficulty: model.DifficultyEasy},
			{Name: "Group Anagrams", Difficulty: model.DifficultyMedium},
		}},
	}
	saver := newMemorySaver()
	tr := New(sets, saver, nil)
	tr.now = func() time.Time { return time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) }
	return tr, saver
}

func TestApplyPropagatesAcrossDuplicates(t *testing.T) {
	tr, saver := newTestTracker(t)

	var gotKeys []string
	var gotName string
	tr.OnChange(func(keys []string, name string) {
		gotKeys = keys
		gotName = name
	})

	if err := tr.Apply(SetSolved{Name: "Two Sum", Solved: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for _, set := range tr.Sets() {
		p := set.Find("Two Sum")
		if p == nil {
			continue
		}
		if !p.Solved {
			t.Errorf("set %s: Two Sum not solved after propagation", set.Key)
		}
		if p.SolvedDate != "2026-01-15T10:00:00Z" {
			t.Errorf("set %s: solved date = %q", set.Key, p.SolvedDate)
		}
	}

	if len(saver.saved) != 2 {
		t.Errorf("persisted %d sets, want both duplicate sets", len(saver.saved))
	}
	if len(gotKeys) != 2 || gotName != "Two Sum" {
		t.Errorf("change hook got keys=%v name=%q", gotKeys, gotName)
	}
}

func TestApplySingleSetProblemTouchesOneSet(t *testing.T) {
	tr, saver := newTestTracker(t)

	if err := tr.Apply(SetComments{Name: "3Sum", Comments: "sort first"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if saver.calls != 1 {
		t.Errorf("saver called %d times, want 1", saver.calls)
	}
	if _, ok := saver.saved["blind75"]; !ok {
		t.Error("blind75 should have been persisted")
	}
	if _, ok := saver.saved["neetcode150"]; ok {
		t.Error("neetcode150 holds no 3Sum, should not have been persisted")
	}
}

func TestApplyNoopSkipsPersistence(t *testing.T) {
	tr, saver := newTestTracker(t)
	fired := false
	tr.OnChange(func([]string, string) { fired = true })

	if err := tr.Apply(SetTime{Name: "Two Sum", Minutes: ""}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if saver.calls != 0 {
		t.Errorf("no-op command persisted %d sets", saver.calls)
	}
	if fired {
		t.Error("no-op command fired the change hook")
	}
}

func TestApplyUnknownProblem(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.Apply(SetSolved{Name: "Missing", Solved: true}); err == nil {
		t.Fatal("expected an error for an unknown problem")
	}
}

func TestSetSolvedDateStamping(t *testing.T) {
	tr, _ := newTestTracker(t)

	// Pre-dated solve keeps its date.
	if err := tr.Apply(SetSolvedDate{Name: "3Sum", Date: "2025-12-01"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := tr.Apply(SetSolved{Name: "3Sum", Solved: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := tr.Find("3Sum").SolvedDate; got != "2025-12-01" {
		t.Errorf("solved date = %q, want the existing 2025-12-01 preserved", got)
	}

	// Unsolving clears the date.
	if err := tr.Apply(SetSolved{Name: "3Sum", Solved: false}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := tr.Find("3Sum").SolvedDate; got != "" {
		t.Errorf("solved date = %q after unsolve, want empty", got)
	}
}

func TestSetProgressAdoptsWholesale(t *testing.T) {
	tr, _ := newTestTracker(t)

	up := model.UserProgress{
		Name:        "Two Sum",
		Solved:      true,
		TimeToSolve: "9",
		Comments:    "from another device",
		SolvedDate:  "2026-01-10T08:00:00Z",
	}
	if err := tr.Apply(SetProgress{Progress: up}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, set := range tr.Sets() {
		p := set.Find("Two Sum")
		if p == nil {
			continue
		}
		got := p.Progress()
		if !got.Equal(up) || got.SolvedDate != up.SolvedDate {
			t.Errorf("set %s: progress = %+v, want %+v", set.Key, got, up)
		}
	}
}

func TestSaveFailureLeavesMemoryConsistent(t *testing.T) {
	tr, saver := newTestTracker(t)
	saver.err = errors.New("disk full")

	err := tr.Apply(SetSolved{Name: "Two Sum", Solved: true})
	if err == nil {
		t.Fatal("expected the save error to surface")
	}
	for _, set := range tr.Sets() {
		if p := set.Find("Two Sum"); p != nil && !p.Solved {
			t.Errorf("set %s: in-memory write lost on save failure", set.Key)
		}
	}
}

func TestProgressCounts(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.Apply(SetSolved{Name: "Two Sum", Solved: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	solved, total := tr.SetProgressCounts("blind75")
	if solved != 1 || total != 2 {
		t.Errorf("blind75 counts = %d/%d, want 1/2", solved, total)
	}
	solved, total = tr.SetProgressCounts("neetcode150")
	if solved != 1 || total != 2 {
		t.Errorf("neetcode150 counts = %d/%d, want 1/2", solved, total)
	}

	// Two Sum counts once across sets: 1 solved of 3 unique.
	solved, total = tr.UniqueProgressCounts()
	if solved != 1 || total != 3 {
		t.Errorf("unique counts = %d/%d, want 1/3", solved, total)
	}
}

func TestUniqueProgressDeduplicatesPushPayload(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.Apply(SetSolved{Name: "Two Sum", Solved: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := tr.Apply(SetComments{Name: "Group Anagrams", Comments: "bucket by signature"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	items := tr.UniqueProgress()
	if len(items) != 2 {
		t.Fatalf("payload has %d items, want 2 (Two Sum once, Group Anagrams once)", len(items))
	}
	seen := make(map[string]bool)
	for _, up := range items {
		if seen[up.Name] {
			t.Errorf("duplicate %q in push payload", up.Name)
		}
		seen[up.Name] = true
	}
}

func TestAddProblemExtendsIndex(t *testing.T) {
	tr, _ := newTestTracker(t)

	if err := tr.AddProblem("blind75", &model.Problem{Name: "Group Anagrams"}); err != nil {
		t.Fatalf("AddProblem: %v", err)
	}
	if !tr.Index().IsDuplicate("Group Anagrams") {
		t.Fatal("Group Anagrams now spans two sets, index should know")
	}

	if err := tr.Apply(SetSolved{Name: "Group Anagrams", Solved: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, set := range tr.Sets() {
		if p := set.Find("Group Anagrams"); p != nil && !p.Solved {
			t.Errorf("set %s: propagation missed the imported duplicate", set.Key)
		}
	}
}
