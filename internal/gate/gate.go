// Package gate turns foreground app observations into block decisions. A
// blocked app surfacing while the lock is engaged is recorded and handed to
// the presenter; everything else passes through.
package gate

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/goodtune/taglock/internal/events"
	"github.com/goodtune/taglock/internal/metrics"
	"github.com/goodtune/taglock/internal/risk"
	"github.com/goodtune/taglock/internal/storage"
)

// DefaultCooldown suppresses repeat decisions for the same package while
// the blocking UI from the previous decision is still settling.
const DefaultCooldown = 750 * time.Millisecond

const debounceCacheSize = 128

// Presenter surfaces the blocking UI for a package.
type Presenter interface {
	Block(packageName, appName string)
}

// LockState reports whether blocking is engaged. Satisfied by lock.Machine.
type LockState interface {
	Locked() bool
}

// Options tune gate behavior beyond its collaborators.
type Options struct {
	// Cooldown is the per-package debounce window. Zero means
	// DefaultCooldown.
	Cooldown time.Duration
	// SelfPackage is never blocked so the tool cannot fence itself out.
	SelfPackage string
	// BlockOnRecordFailure keeps blocking even when the usage event
	// cannot be persisted. Enabled by default in config; disabling it
	// trades enforcement for consistency of history.
	BlockOnRecordFailure bool
}

// Gate decides, for each foreground observation, whether to let the app
// run or to block it.
type Gate struct {
	lock      LockState
	apps      storage.AppStore
	recorder  *events.Recorder
	presenter Presenter
	policy    *PolicyEngine
	risk      *risk.Engine
	seen      *expirable.LRU[string, struct{}]
	opts      Options
	logger    zerolog.Logger
}

// New creates a gate. policy and riskEngine may be nil; without a risk
// engine blocked events are recorded with a zero risk score.
func New(lock LockState, apps storage.AppStore, recorder *events.Recorder, presenter Presenter, policy *PolicyEngine, riskEngine *risk.Engine, opts Options, logger zerolog.Logger) *Gate {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	return &Gate{
		lock:      lock,
		apps:      apps,
		recorder:  recorder,
		presenter: presenter,
		policy:    policy,
		risk:      riskEngine,
		seen:      expirable.NewLRU[string, struct{}](debounceCacheSize, nil, opts.Cooldown),
		opts:      opts,
		logger:    logger.With().Str("component", "gate").Logger(),
	}
}

// OnForegroundApp handles one observation of pkg in the foreground at
// observedAt. It returns the decision taken; DecisionAllow includes every
// pass-through case.
func (g *Gate) OnForegroundApp(ctx context.Context, pkg string, observedAt time.Time) Decision {
	if !g.lock.Locked() {
		return DecisionAllow
	}
	if pkg == "" || pkg == g.opts.SelfPackage {
		return DecisionAllow
	}

	if _, recent := g.seen.Get(pkg); recent {
		metrics.DebouncedObservations.Inc()
		return DecisionAllow
	}

	app, err := g.apps.Get(ctx, pkg)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		g.logger.Error().Err(err).Str("package", pkg).Msg("App lookup failed")
		return DecisionAllow
	}

	decision := g.decide(ctx, app, pkg, observedAt)
	if decision != DecisionBlock {
		return DecisionAllow
	}

	g.seen.Add(pkg, struct{}{})

	appName := pkg
	category := storage.CategoryBlocked
	if app != nil {
		if app.AppName != "" {
			appName = app.AppName
		}
		if app.Category != "" {
			category = app.Category
		}
	}

	var score float64
	if g.risk != nil {
		if recent, err := g.recorder.Recent(ctx, risk.Window()); err == nil {
			score = g.risk.Assess(recent).Score
		}
	}

	if _, err := g.recorder.Record(ctx, events.RecordInput{
		PackageName:     pkg,
		AppName:         appName,
		Category:        category,
		WasBlocked:      true,
		UnlockAttempted: true,
		RiskScore:       score,
	}); err != nil {
		g.logger.Error().Err(err).Str("package", pkg).Msg("Failed to record blocked launch")
		if !g.opts.BlockOnRecordFailure {
			return DecisionAllow
		}
	}

	metrics.BlockedLaunches.WithLabelValues(pkg).Inc()
	g.logger.Info().Str("package", pkg).Msg("Blocking app")
	g.presenter.Block(pkg, appName)
	return DecisionBlock
}

// decide applies the policy override when present, otherwise the built-in
// rule: block exactly the packages marked blocked.
func (g *Gate) decide(ctx context.Context, app *storage.BlockedApp, pkg string, observedAt time.Time) Decision {
	if g.policy != nil {
		if verdict, ok := g.policy.Decide(ctx, inputFor(app, pkg, true, observedAt)); ok {
			return verdict
		}
	}
	if app != nil && app.IsBlocked {
		return DecisionBlock
	}
	return DecisionAllow
}
