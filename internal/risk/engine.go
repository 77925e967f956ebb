package risk

import (
	"github.com/goodtune/taglock/internal/clock"
	"github.com/goodtune/taglock/internal/metrics"
	"github.com/goodtune/taglock/internal/storage"
	"github.com/rs/zerolog"
)

// Level is the categorical risk classification.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Classification thresholds.
const (
	HighThreshold   = 0.7
	MediumThreshold = 0.4
)

// Factor weights for the primary rule engine. They sum to 1.0.
const (
	weightBedtime    = 0.25
	weightFrequency  = 0.20
	weightDuration   = 0.15
	weightRecency    = 0.20
	weightCumulative = 0.15
	weightDay        = 0.05
)

// Factor names. factorOrder is the fixed iteration order used when picking
// the dominant factor; the first highest value wins ties.
const (
	FactorBedtime    = "bedtime"
	FactorFrequency  = "frequency"
	FactorDuration   = "duration"
	FactorRecency    = "recency"
	FactorCumulative = "cumulative"
	FactorDay        = "day"
)

var factorOrder = []string{
	FactorBedtime,
	FactorFrequency,
	FactorDuration,
	FactorRecency,
	FactorCumulative,
	FactorDay,
}

var factorWeights = map[string]float64{
	FactorBedtime:    weightBedtime,
	FactorFrequency:  weightFrequency,
	FactorDuration:   weightDuration,
	FactorRecency:    weightRecency,
	FactorCumulative: weightCumulative,
	FactorDay:        weightDay,
}

// Canned recommendations keyed by the dominant factor of a HIGH assessment.
var highRecommendations = map[string]string{
	FactorBedtime:    "It is late. Screens this close to bedtime make it harder to wind down.",
	FactorFrequency:  "You have been opening apps very frequently. Try stepping away for a few minutes.",
	FactorCumulative: "You have accumulated a lot of screen time today. Take a longer break.",
}

const (
	genericHighRecommendation = "Usage looks risky right now. A short break would help."
	mediumRecommendation      = "Usage is elevated. Keep an eye on it."
	lowRecommendation         = "Usage looks fine."
)

// Assessment is an ephemeral risk evaluation. It is never persisted.
type Assessment struct {
	Score          float64            `json:"score"`
	Level          Level              `json:"level"`
	Factors        map[string]float64 `json:"factors"`
	Recommendation string             `json:"recommendation"`
}

// Engine combines weighted contextual factors into a bounded risk score.
// This is the mandatory deterministic strategy; it needs nothing beyond a
// snapshot of recent events.
type Engine struct {
	clock  clock.Clock
	logger zerolog.Logger
}

// NewEngine creates the deterministic rule-based risk engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		clock:  clock.RealClock{},
		logger: logger.With().Str("component", "risk").Logger(),
	}
}

// SetClock sets the clock used for time-based factors (for testing).
func (e *Engine) SetClock(clk clock.Clock) {
	e.clock = clk
}

// Assess evaluates the current temporal context against recent event
// history. Events are expected most recent first.
func (e *Engine) Assess(evs []storage.UsageEvent) *Assessment {
	now := e.clock.Now()

	factors := map[string]float64{
		FactorBedtime:    bedtimeRisk(now.Hour()),
		FactorFrequency:  frequencyRisk(evs, now),
		FactorDuration:   durationRisk(evs),
		FactorRecency:    recencyRisk(evs, now),
		FactorCumulative: cumulativeRisk(evs, now),
		FactorDay:        dayRisk(int(now.Weekday()) + 1),
	}

	var score float64
	for name, value := range factors {
		score += value * factorWeights[name]
	}
	score = clamp01(score)

	level := Classify(score)
	assessment := &Assessment{
		Score:          score,
		Level:          level,
		Factors:        factors,
		Recommendation: recommend(level, factors),
	}

	metrics.LastRiskScore.Set(score)

	e.logger.Debug().
		Float64("score", score).
		Str("level", string(level)).
		Int("events", len(evs)).
		Msg("Risk assessed")

	return assessment
}

// Classify maps a score to its categorical level.
func Classify(score float64) Level {
	switch {
	case score >= HighThreshold:
		return LevelHigh
	case score >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// TopFactor returns the highest-valued factor in fixed order; ties resolve
// to the first encountered.
func TopFactor(factors map[string]float64) string {
	top := factorOrder[0]
	best := factors[top]
	for _, name := range factorOrder[1:] {
		if factors[name] > best {
			top = name
			best = factors[name]
		}
	}
	return top
}

func recommend(level Level, factors map[string]float64) string {
	switch level {
	case LevelHigh:
		if msg, ok := highRecommendations[TopFactor(factors)]; ok {
			return msg
		}
		return genericHighRecommendation
	case LevelMedium:
		return mediumRecommendation
	default:
		return lowRecommendation
	}
}

// Window returns how much recent history the engine needs for a meaningful
// assessment; callers pass the result of RecentEvents(Window).
func Window() int { return 200 }
