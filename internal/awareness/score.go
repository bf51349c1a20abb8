package awareness

import (
	"math"
	"time"

	"github.com/grindpulse/grindsync/internal/model"
)

// Bucket is the display class for a score. Unsolved problems carry their
// own bucket so rendering never confuses "never solved" with "fresh".
type Bucket string

const (
	BucketUnsolved Bucket = "awareness-unsolved"
	BucketWhite    Bucket = "awareness-white"
	BucketGreen    Bucket = "awareness-green"
	BucketYellow   Bucket = "awareness-yellow"
	BucketRed      Bucket = "awareness-red"
	BucketDarkRed  Bucket = "awareness-dark-red"
	BucketFlashing Bucket = "awareness-flashing"
)

// Result is the outcome of scoring one problem.
type Result struct {
	Score float64
	Tier  Tier

	// InvalidDate is set when the problem is marked solved but its
	// solved date cannot be parsed. The score is the unsolved sentinel
	// in that case so the row sorts with unsolved problems, but the
	// caller can still surface the data problem.
	InvalidDate bool
}

// UnsolvedScore is the sentinel score for problems with no usable solve
// history.
const UnsolvedScore = -1

// ClassifyTier brackets the user's solve time against the problem's
// reference times. A missing or unparsable user time means the worst
// bracket. A missing reference threshold is treated as unbounded, so the
// comparison falls through to the next bracket.
func ClassifyTier(p *model.Problem) Tier {
	userTime, ok := model.ParseMinutes(p.TimeToSolve)
	if !ok {
		return TierBelow
	}

	top, hasTop := model.ParseMinutes(p.TopTime)
	adv, hasAdv := model.ParseMinutes(p.AdvancedTime)
	inter, hasInter := model.ParseMinutes(p.IntermediateTime)
	if !hasTop {
		top = math.Inf(1)
	}
	if !hasAdv {
		adv = math.Inf(1)
	}
	if !hasInter {
		inter = math.Inf(1)
	}

	switch {
	case userTime <= top:
		return TierTop
	case userTime <= adv:
		return TierAdvanced
	case userTime <= inter:
		return TierIntermediate
	default:
		return TierBelow
	}
}

// multiplier looks up the tier/difficulty decay multiplier. Unknown
// difficulty falls back to Medium; a missing matrix entry falls back to a
// neutral 1.0.
func (c Config) multiplier(tier Tier, d model.Difficulty) float64 {
	row, ok := c.TierDifficulty[tier]
	if !ok {
		return 1.0
	}
	key := string(d)
	if d == model.DifficultyUnknown {
		key = string(model.DifficultyMedium)
	}
	v, ok := row[key]
	if !ok {
		return 1.0
	}
	return v
}

// Score computes the staleness score for one problem as of now.
// totalSolved is the user's aggregate solved count across all sets, used
// to slow decay as experience accumulates.
func Score(p *model.Problem, cfg Config, totalSolved int, now time.Time) Result {
	if !p.Solved {
		return Result{Score: UnsolvedScore, Tier: TierBelow}
	}

	// A solved problem with no date at all is not an error, just
	// unscorable. Only a non-empty date that fails to parse is flagged.
	if p.SolvedDate == "" {
		return Result{Score: UnsolvedScore, Tier: TierBelow}
	}
	solvedAt, ok := model.ParseSolvedDate(p.SolvedDate)
	if !ok {
		return Result{Score: UnsolvedScore, Tier: TierBelow, InvalidDate: true}
	}

	days := now.Sub(solvedAt).Hours() / 24
	if days < 0 {
		days = 0
	}

	tier := ClassifyTier(p)
	mult := cfg.multiplier(tier, p.Difficulty)

	rate := cfg.BaseRate * (cfg.ProblemsPerDay / 2.0) * mult

	scaling := cfg.BaseSolvedScaling + cfg.TierSolvedBonus[tier]
	divisor := 1 + scaling*math.Log2(float64(totalSolved)+1)
	if divisor <= 0 {
		divisor = 1
	}

	return Result{Score: days * rate / divisor, Tier: tier}
}

// BucketFor maps a score onto its display bucket using the configured
// thresholds.
func BucketFor(score float64, t Thresholds) Bucket {
	switch {
	case score < 0:
		return BucketUnsolved
	case score < t.White:
		return BucketWhite
	case score < t.Green:
		return BucketGreen
	case score < t.Yellow:
		return BucketYellow
	case score < t.Red:
		return BucketRed
	case score < t.DarkRed:
		return BucketDarkRed
	default:
		return BucketFlashing
	}
}
