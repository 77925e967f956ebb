package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goodtune/taglock/internal/config"
	"github.com/goodtune/taglock/internal/risk"
	"github.com/goodtune/taglock/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lock state, current risk, and recent sessions",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()

	printLockState(ctx, store)
	printToken(ctx, store)
	if err := printRisk(ctx, store, cfg); err != nil {
		return err
	}
	return printSessions(ctx, store)
}

func printLockState(ctx context.Context, store storage.Store) {
	open, err := store.Sessions().GetOpen(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Printf("Lock:  %s\n", color.GreenString("disengaged"))
	case err != nil:
		fmt.Printf("Lock:  unknown (%v)\n", err)
	default:
		fmt.Printf("Lock:  %s (since %s)\n",
			color.RedString("engaged"),
			open.StartTime.Format(time.RFC822))
	}
}

func printToken(ctx context.Context, store storage.Store) {
	token, err := store.Token().Get(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Printf("Token: %s\n", color.YellowString("not paired"))
	case err != nil:
		fmt.Printf("Token: unknown (%v)\n", err)
	default:
		fmt.Printf("Token: paired %s\n", token.PairedAt.Format(time.RFC822))
	}
}

func printRisk(ctx context.Context, store storage.Store, cfg *config.Config) error {
	recent, err := store.Events().RecentEvents(ctx, risk.Window())
	if err != nil {
		return fmt.Errorf("failed to load recent events: %w", err)
	}

	assessment := risk.NewEngine(zerolog.Nop()).Assess(recent)

	fmt.Printf("\nRisk:  %s (%.2f)\n", colorLevel(assessment.Level), assessment.Score)
	factorNames := []string{
		risk.FactorBedtime, risk.FactorFrequency, risk.FactorDuration,
		risk.FactorRecency, risk.FactorCumulative, risk.FactorDay,
	}
	for _, name := range factorNames {
		fmt.Printf("  %-11s %.2f\n", name, assessment.Factors[name])
	}
	fmt.Printf("  %s\n", assessment.Recommendation)

	// Heuristic score from the model path, for comparison with the rule
	// engine. No model is configured from the CLI, so this is always the
	// fallback.
	if len(recent) > 0 {
		predictor := risk.NewPredictor(nil, parseDuration(cfg.Risk.ModelTimeout, 2*time.Second), zerolog.Nop())
		fmt.Printf("  model score: %.2f\n", predictor.Score(ctx, recent[0], recent))
	}
	return nil
}

func printSessions(ctx context.Context, store storage.Store) error {
	sessions, err := store.Sessions().Recent(ctx, 5)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}

	fmt.Println("\nRecent sessions:")
	for _, s := range sessions {
		if s.Open() {
			fmt.Printf("  #%d  %s  %s\n", s.ID, s.StartTime.Format(time.RFC822), color.RedString("open"))
			continue
		}
		fmt.Printf("  #%d  %s  %s  (%s)\n",
			s.ID,
			s.StartTime.Format(time.RFC822),
			time.Duration(*s.DurationMS)*time.Millisecond,
			s.UnlockMethod)
	}
	return nil
}

func colorLevel(level risk.Level) string {
	switch level {
	case risk.LevelHigh:
		return color.RedString(string(level))
	case risk.LevelMedium:
		return color.YellowString(string(level))
	default:
		return color.GreenString(string(level))
	}
}
