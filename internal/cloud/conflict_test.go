package cloud

import (
	"testing"
	"time"

	"github.com/grindpulse/grindsync/internal/model"
	"github.com/grindpulse/grindsync/internal/remote"
)

func TestClassifyEqual(t *testing.T) {
	local := model.UserProgress{Name: "Two Sum", Solved: true, TimeToSolve: "12", SolvedDate: "2026-01-01"}
	rem := remote.ProgressDoc{Name: "Two Sum", Solved: true, TimeToSolve: "12",
		SolvedDate: "2026-05-05", UpdatedAt: time.Now()}

	// Differing solved dates alone are not a divergence.
	if got := Classify(local, rem); got != OutcomeEqual {
		t.Errorf("Classify = %v, want equal", got)
	}
}

func TestClassifyRemoteWins(t *testing.T) {
	local := model.UserProgress{Name: "Two Sum", SolvedDate: "2026-01-01T00:00:00Z"}
	rem := remote.ProgressDoc{
		Name:      "Two Sum",
		Solved:    true,
		UpdatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	if got := Classify(local, rem); got != OutcomeRemoteWins {
		t.Errorf("Classify = %v, want remote-wins", got)
	}
}

func TestClassifyLocalWins(t *testing.T) {
	local := model.UserProgress{Name: "Two Sum", Solved: true, SolvedDate: "2026-03-01T00:00:00Z"}
	rem := remote.ProgressDoc{
		Name:      "Two Sum",
		Comments:  "older remote",
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if got := Classify(local, rem); got != OutcomeLocalWins {
		t.Errorf("Classify = %v, want local-wins", got)
	}
}

func TestClassifyConflictWithinTolerance(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	local := model.UserProgress{Name: "Two Sum", Solved: true, SolvedDate: base.Format(time.RFC3339)}
	rem := remote.ProgressDoc{
		Name:      "Two Sum",
		Comments:  "remote note",
		UpdatedAt: base.Add(3 * time.Second),
	}
	if got := Classify(local, rem); got != OutcomeConflict {
		t.Errorf("Classify = %v, want conflict (3s apart, inside tolerance)", got)
	}
}

func TestClassifyFallsBackToRemoteSolvedDate(t *testing.T) {
	// No server timestamp on the remote doc: its solved date orders it.
	local := model.UserProgress{Name: "Two Sum", SolvedDate: "2026-01-01T00:00:00Z"}
	rem := remote.ProgressDoc{Name: "Two Sum", Solved: true, SolvedDate: "2026-02-01T00:00:00Z"}
	if got := Classify(local, rem); got != OutcomeRemoteWins {
		t.Errorf("Classify = %v, want remote-wins via solved-date fallback", got)
	}
}

func TestClassifyBothTimestampless(t *testing.T) {
	local := model.UserProgress{Name: "Two Sum", Comments: "a"}
	rem := remote.ProgressDoc{Name: "Two Sum", Comments: "b"}
	if got := Classify(local, rem); got != OutcomeConflict {
		t.Errorf("Classify = %v, want conflict when neither side can be ordered", got)
	}
}

func TestMergeProgress(t *testing.T) {
	local := model.UserProgress{Name: "Two Sum", Solved: false, TimeToSolve: "", Comments: "local note", SolvedDate: ""}
	rem := remote.ProgressDoc{Name: "Two Sum", Solved: true, TimeToSolve: "15", Comments: "remote note", SolvedDate: "2026-01-01"}

	got := MergeProgress(local, rem)
	if !got.Solved {
		t.Error("solved should OR to true")
	}
	if got.TimeToSolve != "15" {
		t.Errorf("time = %q, want remote's when local is empty", got.TimeToSolve)
	}
	if got.Comments != "local note"+mergeSeparator+"remote note" {
		t.Errorf("comments = %q, want both concatenated", got.Comments)
	}
	if got.SolvedDate != "2026-01-01" {
		t.Errorf("date = %q, want remote's when local is empty", got.SolvedDate)
	}
}

func TestMergeProgressIdenticalComments(t *testing.T) {
	local := model.UserProgress{Name: "Two Sum", Comments: "same", TimeToSolve: "10", SolvedDate: "2026-01-01"}
	rem := remote.ProgressDoc{Name: "Two Sum", Comments: "same", TimeToSolve: "99", SolvedDate: "2026-02-02"}

	got := MergeProgress(local, rem)
	if got.Comments != "same" {
		t.Errorf("identical comments should not duplicate: %q", got.Comments)
	}
	if got.TimeToSolve != "10" || got.SolvedDate != "2026-01-01" {
		t.Errorf("local non-empty fields should win: %+v", got)
	}
}

func TestConflictApply(t *testing.T) {
	c := Conflict{
		Local:  model.UserProgress{Name: "Two Sum", Comments: "local"},
		Remote: remote.ProgressDoc{Name: "Two Sum", Solved: true, Comments: "remote"},
	}

	if got := c.Apply(ResolveKeepLocal); got.Comments != "local" || got.Solved {
		t.Errorf("keep-local = %+v", got)
	}
	if got := c.Apply(ResolveKeepRemote); got.Comments != "remote" || !got.Solved {
		t.Errorf("keep-remote = %+v", got)
	}
	if got := c.Apply(ResolveMerge); !got.Solved || got.Comments != "local"+mergeSeparator+"remote" {
		t.Errorf("merge = %+v", got)
	}
}
