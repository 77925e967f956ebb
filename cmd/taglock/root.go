package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taglock",
	Short: "taglock - NFC-token-gated app blocker",
	Long: `taglock keeps distracting apps locked until a paired physical NFC token
is presented. It watches the foreground app, blocks configured packages while
the lock is engaged, and keeps a local usage history that feeds a contextual
risk score.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to the agent when no subcommand is provided
		return runAgent(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
