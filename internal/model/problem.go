// Package model provides the core data structures for GrindPulse problem
// tracking: practice problems, problem sets, and the duplicate index that
// links same-named problems across sets.
package model

import (
	"strconv"
	"strings"
	"time"
)

// Difficulty classifies how hard a problem is considered to be.
type Difficulty string

const (
	DifficultyEasy    Difficulty = "Easy"
	DifficultyMedium  Difficulty = "Medium"
	DifficultyHard    Difficulty = "Hard"
	DifficultyUnknown Difficulty = "Unknown"
)

// ParseDifficulty normalizes free-text difficulty values from problem-set
// files. Unrecognized values map to DifficultyUnknown rather than failing.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy
	case "medium", "med":
		return DifficultyMedium
	case "hard":
		return DifficultyHard
	default:
		return DifficultyUnknown
	}
}

// Problem is one practice item.
//
// The first six fields are immutable problem-definition data loaded from a
// problem-set file. The remaining four are user-progress data, mutated by
// user commands, imports, and sync pulls. This split is the basis of the
// three import/export modes (full, problems, user).
//
// Time fields are kept as the raw text they arrived with; parsing happens
// at the point of use and malformed values degrade to "absent" rather than
// erroring (see ParseMinutes).
type Problem struct {
	// ===== Definition (immutable) =====
	Name             string     `json:"name"`
	Difficulty       Difficulty `json:"difficulty"`
	IntermediateTime string     `json:"intermediate_time"`
	AdvancedTime     string     `json:"advanced_time"`
	TopTime          string     `json:"top_time"`
	Pattern          string     `json:"pattern"`

	// ===== User progress (mutable) =====
	Solved      bool   `json:"solved"`
	TimeToSolve string `json:"time_to_solve"`
	Comments    string `json:"comments"`
	SolvedDate  string `json:"solved_date"`
}

// ProblemDefinition is the definition-only projection of a Problem, used by
// "problems"-mode import/export payloads.
type ProblemDefinition struct {
	Name             string     `json:"name"`
	Difficulty       Difficulty `json:"difficulty"`
	IntermediateTime string     `json:"intermediate_time"`
	AdvancedTime     string     `json:"advanced_time"`
	TopTime          string     `json:"top_time"`
	Pattern          string     `json:"pattern"`
}

// UserProgress is the progress-only projection of a Problem. It is the unit
// of local persistence, remote progress documents, and "user"-mode
// import/export payloads.
type UserProgress struct {
	Name        string `json:"name"`
	Solved      bool   `json:"solved"`
	TimeToSolve string `json:"time_to_solve"`
	Comments    string `json:"comments"`
	SolvedDate  string `json:"solved_date"`
}

// Definition returns the problem-definition projection.
func (p *Problem) Definition() ProblemDefinition {
	return ProblemDefinition{
		Name:             p.Name,
		Difficulty:       p.Difficulty,
		IntermediateTime: p.IntermediateTime,
		AdvancedTime:     p.AdvancedTime,
		TopTime:          p.TopTime,
		Pattern:          p.Pattern,
	}
}

// Progress returns the user-progress projection.
func (p *Problem) Progress() UserProgress {
	return UserProgress{
		Name:        p.Name,
		Solved:      p.Solved,
		TimeToSolve: p.TimeToSolve,
		Comments:    p.Comments,
		SolvedDate:  p.SolvedDate,
	}
}

// ApplyProgress overwrites the four user-progress fields from up.
// The problem's name is not touched; callers match by name beforehand.
func (p *Problem) ApplyProgress(up UserProgress) {
	p.Solved = up.Solved
	p.TimeToSolve = up.TimeToSolve
	p.Comments = up.Comments
	p.SolvedDate = up.SolvedDate
}

// FromParts assembles a full Problem from its two projections.
func FromParts(def ProblemDefinition, up UserProgress) Problem {
	return Problem{
		Name:             def.Name,
		Difficulty:       def.Difficulty,
		IntermediateTime: def.IntermediateTime,
		AdvancedTime:     def.AdvancedTime,
		TopTime:          def.TopTime,
		Pattern:          def.Pattern,
		Solved:           up.Solved,
		TimeToSolve:      up.TimeToSolve,
		Comments:         up.Comments,
		SolvedDate:       up.SolvedDate,
	}
}

// HasProgress reports whether any user-progress field carries data. Only
// problems with progress are pushed to the remote store.
func (up UserProgress) HasProgress() bool {
	return up.Solved || up.TimeToSolve != "" || up.Comments != ""
}

// Equal reports whether the compared progress fields (solved, time,
// comments) match. Solved date is deliberately excluded: it is the
// timestamp used to order versions, not part of the compared payload.
func (up UserProgress) Equal(other UserProgress) bool {
	return up.Solved == other.Solved &&
		up.TimeToSolve == other.TimeToSolve &&
		up.Comments == other.Comments
}

// ParseMinutes parses a minutes value from free text. It returns ok=false
// for empty, non-numeric, or non-positive input; callers treat that as
// "absent" rather than an error.
func ParseMinutes(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// ParseSolvedDate parses an ISO-8601 solved date. Empty input returns
// ok=false with no error distinction; genuinely malformed input also
// returns ok=false. Callers that need to distinguish the two check for
// emptiness first.
func ParseSolvedDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
