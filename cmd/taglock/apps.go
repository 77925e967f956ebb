package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/taglock/internal/config"
	"github.com/goodtune/taglock/internal/storage"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage the blocked app list",
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured apps",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			apps, err := store.Apps().List(cmd.Context())
			if err != nil {
				return err
			}
			sort.Slice(apps, func(i, j int) bool { return apps[i].PackageName < apps[j].PackageName })
			for _, app := range apps {
				state := color.GreenString("allowed")
				if app.IsBlocked {
					state = color.RedString("blocked")
				}
				fmt.Printf("%-40s %-12s %s\n", app.PackageName, app.Category, state)
			}
			return nil
		})
	},
}

var appsAddCategory string

var appsAddCmd = &cobra.Command{
	Use:   "add <package> [app name]",
	Short: "Add a package to the blocked list",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			appName := args[0]
			if len(args) > 1 {
				appName = args[1]
			}
			return store.Apps().Upsert(cmd.Context(), storage.BlockedApp{
				PackageName: args[0],
				AppName:     appName,
				Category:    storage.AppCategory(strings.ToUpper(appsAddCategory)),
				IsBlocked:   true,
			})
		})
	},
}

var appsBlockCmd = &cobra.Command{
	Use:   "block <package>",
	Short: "Enable blocking for a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			return store.Apps().SetBlocked(cmd.Context(), args[0], true)
		})
	},
}

var appsUnblockCmd = &cobra.Command{
	Use:   "unblock <package>",
	Short: "Disable blocking for a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			return store.Apps().SetBlocked(cmd.Context(), args[0], false)
		})
	},
}

var appsRmCmd = &cobra.Command{
	Use:   "rm <package>",
	Short: "Remove a package from the list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			return store.Apps().Delete(cmd.Context(), args[0])
		})
	},
}

func init() {
	appsAddCmd.Flags().StringVar(&appsAddCategory, "category", "OTHER",
		"App category: GAME, NEWS, OTHER, PRODUCTIVITY, SOCIAL, VIDEO")
	appsCmd.AddCommand(appsListCmd, appsAddCmd, appsBlockCmd, appsUnblockCmd, appsRmCmd)
	rootCmd.AddCommand(appsCmd)
}

// withStore opens the configured store for a one-shot CLI action
func withStore(fn func(storage.Store) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	return fn(store)
}
