package tracker

import (
	"time"

	"github.com/grindpulse/grindsync/internal/model"
)

// Command is a single user-progress mutation. Mutations are expressed as
// typed values rather than (field, value) string pairs so call sites
// cannot invent fields the propagation engine does not know about.
type Command interface {
	// ProblemName is the identity key the mutation targets.
	ProblemName() string

	// apply mutates p in place and reports whether anything changed.
	apply(p *model.Problem, now time.Time) bool
}

// SetSolved marks a problem solved or unsolved. Marking solved stamps the
// solved date with now when none is recorded; unmarking clears it.
type SetSolved struct {
	Name   string
	Solved bool
}

func (c SetSolved) ProblemName() string { return c.Name }

func (c SetSolved) apply(p *model.Problem, now time.Time) bool {
	if p.Solved == c.Solved {
		return false
	}
	p.Solved = c.Solved
	if c.Solved {
		if p.SolvedDate == "" {
			p.SolvedDate = now.UTC().Format(time.RFC3339)
		}
	} else {
		p.SolvedDate = ""
	}
	return true
}

// SetTime records the user's solve time in minutes, kept as entered.
type SetTime struct {
	Name    string
	Minutes string
}

func (c SetTime) ProblemName() string { return c.Name }

func (c SetTime) apply(p *model.Problem, _ time.Time) bool {
	if p.TimeToSolve == c.Minutes {
		return false
	}
	p.TimeToSolve = c.Minutes
	return true
}

// SetComments replaces the problem's free-text notes.
type SetComments struct {
	Name     string
	Comments string
}

func (c SetComments) ProblemName() string { return c.Name }

func (c SetComments) apply(p *model.Problem, _ time.Time) bool {
	if p.Comments == c.Comments {
		return false
	}
	p.Comments = c.Comments
	return true
}

// SetSolvedDate overrides the solved date directly, for back-dating a
// solve or correcting an entry.
type SetSolvedDate struct {
	Name string
	Date string
}

func (c SetSolvedDate) ProblemName() string { return c.Name }

func (c SetSolvedDate) apply(p *model.Problem, _ time.Time) bool {
	if p.SolvedDate == c.Date {
		return false
	}
	p.SolvedDate = c.Date
	return true
}

// SetProgress adopts a full user-progress record wholesale. Sync pulls,
// conflict resolutions, and imports route through this so their writes
// propagate across duplicate sets exactly like direct edits.
type SetProgress struct {
	Progress model.UserProgress
}

func (c SetProgress) ProblemName() string { return c.Progress.Name }

func (c SetProgress) apply(p *model.Problem, _ time.Time) bool {
	before := p.Progress()
	if before.Equal(c.Progress) && before.SolvedDate == c.Progress.SolvedDate {
		return false
	}
	p.ApplyProgress(c.Progress)
	return true
}
