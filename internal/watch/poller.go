package watch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/taglock/internal/gate"
)

// DefaultPollInterval is how often the foreground app is sampled when the
// config leaves it unset.
const DefaultPollInterval = time.Second

// Poller samples the foreground source on a fixed interval and hands each
// observation to the gate. Sampling pauses while the lock is disengaged.
type Poller struct {
	source   Source
	gate     *gate.Gate
	lock     gate.LockState
	interval time.Duration
	logger   zerolog.Logger
}

// NewPoller creates a poller.
func NewPoller(source Source, g *gate.Gate, lock gate.LockState, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		source:   source,
		gate:     g,
		lock:     lock,
		interval: interval,
		logger:   logger.With().Str("component", "watch").Logger(),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info().Dur("interval", p.interval).Msg("Foreground watcher started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Foreground watcher stopped")
			return
		case now := <-ticker.C:
			p.observe(ctx, now)
		}
	}
}

func (p *Poller) observe(ctx context.Context, now time.Time) {
	if !p.lock.Locked() {
		return
	}

	pkg, err := p.source.ForegroundApp(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn().Err(err).Msg("Foreground sample failed")
		}
		return
	}
	if pkg == "" {
		return
	}

	p.gate.OnForegroundApp(ctx, pkg, now)
}
