package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodtune/taglock/internal/clock"
	"github.com/goodtune/taglock/internal/config"
	"github.com/goodtune/taglock/internal/control"
	"github.com/goodtune/taglock/internal/events"
	"github.com/goodtune/taglock/internal/gate"
	"github.com/goodtune/taglock/internal/lock"
	"github.com/goodtune/taglock/internal/metrics"
	"github.com/goodtune/taglock/internal/risk"
	"github.com/goodtune/taglock/internal/storage"
	"github.com/goodtune/taglock/internal/storage/bolt"
	"github.com/goodtune/taglock/internal/storage/redis"
	"github.com/goodtune/taglock/internal/systemd"
	"github.com/goodtune/taglock/internal/watch"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the blocking agent",
	Long: `Runs the long-lived agent: watches the foreground app, blocks configured
packages while the lock is engaged, records usage events, and purges old
history nightly.`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("storage", cfg.Storage.Type).
		Msg("Starting taglock agent")

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	recorder := events.NewRecorder(store.Events(), clock.RealClock{}, logger)

	presenter := &watch.ExecPresenter{
		BlockCommand:   cfg.Watch.BlockCommand,
		UnblockCommand: cfg.Watch.UnblockCommand,
		Logger:         logger,
	}

	machine := lock.NewMachine(store.Sessions(), store.Token(), presenter, logger)
	if err := machine.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore lock state: %w", err)
	}

	var policy *gate.PolicyEngine
	if cfg.Gate.PolicyDir != "" {
		policy, err = gate.LoadPolicies(ctx, cfg.Gate.PolicyDir, logger)
		if err != nil {
			return fmt.Errorf("failed to load gate policies: %w", err)
		}
		logger.Info().Str("dir", cfg.Gate.PolicyDir).Msg("Gate policies loaded")
	}

	riskEngine := risk.NewEngine(logger)

	g := gate.New(machine, store.Apps(), recorder, presenter, policy, riskEngine, gate.Options{
		Cooldown:             parseDuration(cfg.Watch.Cooldown, gate.DefaultCooldown),
		SelfPackage:          cfg.Watch.SelfPackage,
		BlockOnRecordFailure: cfg.Gate.BlockOnRecordFailure,
	}, logger)

	source := &watch.ScriptSource{Command: cfg.Watch.SourceCommand}
	poller := watch.NewPoller(source, g, machine, parseDuration(cfg.Watch.PollInterval, watch.DefaultPollInterval), logger)
	go poller.Run(ctx)

	scheduler, err := events.NewRetentionScheduler(store, cfg.Maintenance.PurgeTime, cfg.Logging.EventRetentionDays, logger)
	if err != nil {
		return fmt.Errorf("failed to create retention scheduler: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	controlServer := control.NewServer(cfg.Control.Address, machine, logger)
	if err := controlServer.Start(); err != nil {
		return fmt.Errorf("failed to start control server: %w", err)
	}
	defer func() {
		if err := controlServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop control server")
		}
	}()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Address, logger)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(); err != nil {
				logger.Error().Err(err).Msg("Failed to stop metrics server")
			}
		}()
	}

	if systemd.IsService() {
		if err := systemd.NotifyReady(); err != nil {
			logger.Warn().Err(err).Msg("Failed to notify systemd")
		}
	}

	logger.Info().Msg("taglock agent ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	if systemd.IsService() {
		if err := systemd.NotifyStopping(); err != nil {
			logger.Warn().Err(err).Msg("Failed to notify systemd")
		}
	}
	cancel()

	return nil
}

// openStore opens the configured storage backend
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "redis":
		return redis.Open(cfg.Storage.Redis)
	default:
		return bolt.Open(cfg.Storage.Path)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
