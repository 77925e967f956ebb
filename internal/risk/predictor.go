package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/taglock/internal/aggregate"
	"github.com/goodtune/taglock/internal/storage"
	"github.com/rs/zerolog"
)

// Model produces a risk probability in [0,1] from a feature vector. The
// concrete model is pluggable; a nil model means the fallback heuristic
// is always used.
type Model interface {
	Predict(ctx context.Context, features []float64) (float64, error)
}

// Predictor wraps a Model with a timeout, panic containment and a
// heuristic fallback so a broken or missing model never stops a caller
// from getting a score.
type Predictor struct {
	model   Model
	timeout time.Duration
	logger  zerolog.Logger
}

// NewPredictor creates a predictor around the given model. model may be nil.
func NewPredictor(model Model, timeout time.Duration, logger zerolog.Logger) *Predictor {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Predictor{
		model:   model,
		timeout: timeout,
		logger:  logger.With().Str("component", "predictor").Logger(),
	}
}

// Score returns the model's probability for the event, or the heuristic
// fallback if the model is absent, errors, panics or times out.
func (p *Predictor) Score(ctx context.Context, ev storage.UsageEvent, recent []storage.UsageEvent) float64 {
	if p.model == nil {
		return FallbackScore(ev, recent)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	score, err := p.predict(ctx, Features(ev))
	if err != nil {
		p.logger.Warn().Err(err).Msg("Model prediction failed, using fallback")
		return FallbackScore(ev, recent)
	}
	if score < 0 || score > 1 {
		p.logger.Warn().Float64("score", score).Msg("Model score out of range, using fallback")
		return FallbackScore(ev, recent)
	}
	return score
}

type prediction struct {
	score float64
	err   error
}

// predict runs the model call on its own goroutine so a model that
// ignores ctx cannot stall the caller past the deadline. An abandoned
// call finishes in the background; the buffered channel lets its
// goroutine exit.
func (p *Predictor) predict(ctx context.Context, features []float64) (float64, error) {
	ch := make(chan prediction, 1)
	go func() {
		var res prediction
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("model panic: %v", r)
			}
			ch <- res
		}()
		res.score, res.err = p.model.Predict(ctx, features)
	}()

	select {
	case res := <-ch:
		return res.score, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// FallbackScore is the simple additive heuristic used when no model score
// is available. It is deliberately coarser than the weighted engine.
func FallbackScore(ev storage.UsageEvent, recent []storage.UsageEvent) float64 {
	score := 0.0

	if isBedtimeHour(ev.HourOfDay) {
		score += 0.3
	}

	switch {
	case ev.DailyAppLaunches >= 8:
		score += 0.25
	case ev.DailyAppLaunches >= 4:
		score += 0.15
	default:
		score += 0.05
	}

	avgMin := aggregate.AverageSessionDuration(recent, 10) / float64(time.Minute.Milliseconds())
	switch {
	case avgMin >= 15:
		score += 0.2
	case avgMin >= 7:
		score += 0.1
	}

	sinceMin := float64(ev.TimeSinceLastUseMS) / 60000
	switch {
	case ev.TimeSinceLastUseMS > 0 && sinceMin < 10:
		score += 0.25
	case ev.TimeSinceLastUseMS > 0 && sinceMin < 30:
		score += 0.1
	}

	cumulativeMin := float64(ev.CumulativeDailyScreenTimeMS) / 60000
	switch {
	case cumulativeMin >= 150:
		score += 0.2
	case cumulativeMin >= 90:
		score += 0.1
	}

	return clamp01(score)
}
