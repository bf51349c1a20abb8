package cloud

import (
	"time"

	"github.com/grindpulse/grindsync/internal/model"
	"github.com/grindpulse/grindsync/internal/remote"
)

// ConflictTolerance is the timestamp proximity window within which two
// differing versions are treated as a true conflict rather than a clear
// winner. It absorbs clock skew and round-trip latency between devices.
const ConflictTolerance = 5 * time.Second

// Outcome classifies a local/remote pair of the same problem's progress.
type Outcome int

const (
	// OutcomeEqual means the compared fields match; nothing to do.
	OutcomeEqual Outcome = iota
	// OutcomeLocalWins means local is clearly newer; keep it.
	OutcomeLocalWins
	// OutcomeRemoteWins means remote is clearly newer; adopt it silently.
	OutcomeRemoteWins
	// OutcomeConflict means the versions differ with timestamps too
	// close to call; the user decides.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEqual:
		return "equal"
	case OutcomeLocalWins:
		return "local-wins"
	case OutcomeRemoteWins:
		return "remote-wins"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Conflict is one unresolved local/remote divergence collected during a
// pull.
type Conflict struct {
	Local  model.UserProgress
	Remote remote.ProgressDoc
}

// RemoteProgress projects a remote document onto the local progress
// shape.
func RemoteProgress(doc remote.ProgressDoc) model.UserProgress {
	return model.UserProgress{
		Name:        doc.Name,
		Solved:      doc.Solved,
		TimeToSolve: doc.TimeToSolve,
		Comments:    doc.Comments,
		SolvedDate:  doc.SolvedDate,
	}
}

// effectiveLocalTime is the local version's timestamp for ordering:
// the solved date when parsable, epoch zero otherwise.
func effectiveLocalTime(up model.UserProgress) time.Time {
	if t, ok := model.ParseSolvedDate(up.SolvedDate); ok {
		return t
	}
	return time.Time{}
}

// effectiveRemoteTime prefers the server write time, falling back to the
// remote solved date, falling back to epoch zero.
func effectiveRemoteTime(doc remote.ProgressDoc) time.Time {
	if !doc.UpdatedAt.IsZero() {
		return doc.UpdatedAt
	}
	if t, ok := model.ParseSolvedDate(doc.SolvedDate); ok {
		return t
	}
	return time.Time{}
}

// Classify decides how a local/remote pair should reconcile.
func Classify(local model.UserProgress, rem remote.ProgressDoc) Outcome {
	if local.Equal(RemoteProgress(rem)) {
		return OutcomeEqual
	}

	lt := effectiveLocalTime(local)
	rt := effectiveRemoteTime(rem)
	switch {
	case lt.Sub(rt) > ConflictTolerance:
		return OutcomeLocalWins
	case rt.Sub(lt) > ConflictTolerance:
		return OutcomeRemoteWins
	default:
		return OutcomeConflict
	}
}

// mergeSeparator joins differing comments from both sides.
const mergeSeparator = "\n---\n"

// MergeProgress combines both versions field-wise: solved is OR'd, the
// solve time and date take the first non-empty value (local first), and
// differing non-empty comments are concatenated so neither side's notes
// are lost.
func MergeProgress(local model.UserProgress, rem remote.ProgressDoc) model.UserProgress {
	out := model.UserProgress{Name: local.Name}
	out.Solved = local.Solved || rem.Solved

	out.TimeToSolve = local.TimeToSolve
	if out.TimeToSolve == "" {
		out.TimeToSolve = rem.TimeToSolve
	}

	switch {
	case local.Comments != "" && rem.Comments != "" && local.Comments != rem.Comments:
		out.Comments = local.Comments + mergeSeparator + rem.Comments
	case local.Comments != "":
		out.Comments = local.Comments
	default:
		out.Comments = rem.Comments
	}

	out.SolvedDate = local.SolvedDate
	if out.SolvedDate == "" {
		out.SolvedDate = rem.SolvedDate
	}
	return out
}

// Resolution is the user's choice for one conflict.
type Resolution int

const (
	// ResolveKeepLocal pushes the local version and discards remote.
	ResolveKeepLocal Resolution = iota
	// ResolveKeepRemote adopts the remote version.
	ResolveKeepRemote
	// ResolveMerge combines both via MergeProgress.
	ResolveMerge
)

// Apply resolves one conflict into the progress record to keep.
func (c Conflict) Apply(r Resolution) model.UserProgress {
	switch r {
	case ResolveKeepRemote:
		return RemoteProgress(c.Remote)
	case ResolveMerge:
		return MergeProgress(c.Local, c.Remote)
	default:
		return c.Local
	}
}
