// Package awareness implements the forgetting-curve scoring model: a pure
// computation from a problem record, a configuration, and the aggregate
// solved count to a staleness score and a display bucket.
package awareness

import (
	"encoding/json"
	"time"
)

// Tier is the performance bracket derived from comparing the user's solve
// time to the problem's three reference times.
type Tier string

const (
	TierTop          Tier = "top"
	TierAdvanced     Tier = "advanced"
	TierIntermediate Tier = "intermediate"
	TierBelow        Tier = "below"
)

// rank orders tiers from worst to best, for monotonicity checks.
func (t Tier) rank() int {
	switch t {
	case TierTop:
		return 3
	case TierAdvanced:
		return 2
	case TierIntermediate:
		return 1
	default:
		return 0
	}
}

// Better reports whether t is a higher-ranked tier than other.
func (t Tier) Better(other Tier) bool { return t.rank() > other.rank() }

// Thresholds are the five ascending score boundaries between color
// buckets: white < green < yellow < red < darkRed.
type Thresholds struct {
	White   float64 `json:"white"`
	Green   float64 `json:"green"`
	Yellow  float64 `json:"yellow"`
	Red     float64 `json:"red"`
	DarkRed float64 `json:"darkRed"`
}

// Config is the full awareness configuration. It is an explicit value
// passed into scoring rather than process-global state; load/save lives
// behind the store and cloud boundaries so tests can supply fixed configs.
type Config struct {
	// ProblemsPerDay is the user's commitment rate. 2/day is the
	// normalizing baseline: higher commitment means faster decay.
	ProblemsPerDay float64 `json:"problemsPerDay"`

	Thresholds Thresholds `json:"thresholds"`

	// BaseRate is decay points per elapsed day before adjustment.
	BaseRate float64 `json:"baseRate"`

	// BaseSolvedScaling controls how much the total solved count slows
	// decay; TierSolvedBonus adds a per-tier boost on top.
	BaseSolvedScaling float64         `json:"baseSolvedScaling"`
	TierSolvedBonus   map[Tier]float64 `json:"tierSolvedBonus"`

	// TierDifficulty is the 4x3 tier-by-difficulty decay multiplier
	// matrix. In the top tier the ordering is deliberately inverted:
	// Easy=0 (mastered, never decays) and Medium < Hard. Every other
	// tier follows Easy > Medium > Hard.
	TierDifficulty map[Tier]map[string]float64 `json:"tierDifficultyMultipliers"`

	// RefreshInterval is how often watch mode recomputes colors; zero
	// disables the periodic refresh. RefreshOnFocus additionally
	// refreshes when activity resumes.
	RefreshInterval time.Duration `json:"refreshInterval"`
	RefreshOnFocus  bool          `json:"refreshOnFocus"`
}

// Clamp bounds for user-adjustable values. Out-of-range input snaps to the
// nearest bound; non-finite input falls back to the default.
const (
	minThreshold      = 1
	maxThreshold      = 200
	minBaseRate       = 0.1
	maxBaseRate       = 10
	minProblemsPerDay = 1
	maxProblemsPerDay = 50
	maxSolvedScaling  = 1
	maxMultiplier     = 3
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		ProblemsPerDay: 2,
		Thresholds: Thresholds{
			White:   10,
			Green:   30,
			Yellow:  50,
			Red:     70,
			DarkRed: 90,
		},
		BaseRate:          2.0,
		BaseSolvedScaling: 0.1,
		TierSolvedBonus: map[Tier]float64{
			TierTop:          0.3,
			TierAdvanced:     0.2,
			TierIntermediate: 0.1,
			TierBelow:        0,
		},
		TierDifficulty: map[Tier]map[string]float64{
			TierTop:          {"Easy": 0, "Medium": 0.25, "Hard": 0.4},
			TierAdvanced:     {"Easy": 1.2, "Medium": 0.9, "Hard": 0.7},
			TierIntermediate: {"Easy": 1.5, "Medium": 1.0, "Hard": 0.75},
			TierBelow:        {"Easy": 1.8, "Medium": 1.3, "Hard": 1.0},
		},
		RefreshInterval: 24 * time.Hour,
		RefreshOnFocus:  true,
	}
}

func clamp(v, lo, hi, def float64) float64 {
	if v != v { // NaN
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp snaps every numeric field into its safe range and repairs
// threshold ordering. It returns the receiver for chaining.
func (c *Config) Clamp() *Config {
	def := DefaultConfig()

	c.ProblemsPerDay = clamp(c.ProblemsPerDay, minProblemsPerDay, maxProblemsPerDay, def.ProblemsPerDay)
	c.BaseRate = clamp(c.BaseRate, minBaseRate, maxBaseRate, def.BaseRate)
	c.BaseSolvedScaling = clamp(c.BaseSolvedScaling, 0, maxSolvedScaling, def.BaseSolvedScaling)

	if c.TierSolvedBonus == nil {
		c.TierSolvedBonus = def.TierSolvedBonus
	}
	for tier, v := range c.TierSolvedBonus {
		c.TierSolvedBonus[tier] = clamp(v, 0, maxSolvedScaling, def.TierSolvedBonus[tier])
	}

	if c.TierDifficulty == nil {
		c.TierDifficulty = def.TierDifficulty
	}
	for tier, row := range c.TierDifficulty {
		for diff, v := range row {
			row[diff] = clamp(v, 0, maxMultiplier, 1.0)
		}
		c.TierDifficulty[tier] = row
	}

	c.Thresholds = repairThresholds(c.Thresholds)
	return c
}

// repairThresholds enforces white < green < yellow < red < darkRed.
// An out-of-order value is snapped upward to previous+1 (capped at
// maxThreshold) rather than rejected.
func repairThresholds(t Thresholds) Thresholds {
	def := DefaultConfig().Thresholds
	vals := []float64{t.White, t.Green, t.Yellow, t.Red, t.DarkRed}
	defs := []float64{def.White, def.Green, def.Yellow, def.Red, def.DarkRed}
	for i := range vals {
		vals[i] = clamp(vals[i], minThreshold, maxThreshold, defs[i])
	}
	for i := 1; i < len(vals); i++ {
		if vals[i] <= vals[i-1] {
			vals[i] = vals[i-1] + 1
			if vals[i] > maxThreshold {
				vals[i] = maxThreshold
			}
		}
	}
	return Thresholds{White: vals[0], Green: vals[1], Yellow: vals[2], Red: vals[3], DarkRed: vals[4]}
}

// Ordered reports whether the thresholds are strictly ascending.
func (t Thresholds) Ordered() bool {
	return t.White < t.Green && t.Green < t.Yellow && t.Yellow < t.Red && t.Red < t.DarkRed
}

// Merge applies an overlay (typically the cloud document's payload) on top
// of c, field by field: present overlay keys override, absent keys keep
// the local value. Nested objects merge recursively. The result is
// clamped before being returned.
func Merge(c Config, overlay json.RawMessage) (Config, error) {
	base, err := json.Marshal(c)
	if err != nil {
		return c, err
	}

	var baseMap, overlayMap map[string]any
	if err := json.Unmarshal(base, &baseMap); err != nil {
		return c, err
	}
	if err := json.Unmarshal(overlay, &overlayMap); err != nil {
		return c, err
	}
	// Server bookkeeping fields are not config keys.
	delete(overlayMap, "updatedAt")
	delete(overlayMap, "updatedFrom")

	merged := deepMerge(baseMap, overlayMap)
	data, err := json.Marshal(merged)
	if err != nil {
		return c, err
	}

	out := c
	if err := json.Unmarshal(data, &out); err != nil {
		return c, err
	}
	out.Clamp()
	return out, nil
}

func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := out[k].(map[string]any); ok {
				out[k] = deepMerge(existing, sub)
				continue
			}
		}
		out[k] = v
	}
	return out
}
