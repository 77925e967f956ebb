package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/goodtune/taglock/internal/config"
	"github.com/goodtune/taglock/internal/control"
)

var toggleTokenID string

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Present a token to the running agent to toggle the lock",
	Long: `Sends the token id to the running agent over the local control API, as a
stand-in for a physical tag tap. The lock only toggles when the token matches
the paired one.`,
	RunE: runToggle,
}

func init() {
	toggleCmd.Flags().StringVar(&toggleTokenID, "token", "", "Token id to present")
	toggleCmd.MarkFlagRequired("token")
	rootCmd.AddCommand(toggleCmd)
}

func runToggle(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	body, err := json.Marshal(control.ToggleRequest{TokenID: toggleTokenID})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://%s/v1/toggle", cfg.Control.Address)
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cannot reach the agent at %s (is it running?): %w", cfg.Control.Address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("toggle refused: %s", strings.TrimSpace(string(msg)))
	}

	var state control.StateResponse
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return fmt.Errorf("failed to decode agent response: %w", err)
	}

	if state.Locked {
		fmt.Println("Lock engaged.")
	} else {
		fmt.Println("Lock disengaged.")
	}
	return nil
}
