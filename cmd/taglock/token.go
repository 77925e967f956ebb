package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goodtune/taglock/internal/lock"
	"github.com/goodtune/taglock/internal/storage"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the paired unlock token",
}

var tokenPairCmd = &cobra.Command{
	Use:   "pair <token-id>",
	Short: "Pair a token, replacing any previous pairing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			machine := lock.NewMachine(store.Sessions(), store.Token(), nil, zerolog.Nop())
			if err := machine.PairToken(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Token paired.")
			return nil
		})
	},
}

var tokenUnpairCmd = &cobra.Command{
	Use:   "unpair",
	Short: "Remove the paired token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			machine := lock.NewMachine(store.Sessions(), store.Token(), nil, zerolog.Nop())
			if err := machine.UnpairToken(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Token unpaired. The lock can no longer be toggled until a token is paired.")
			return nil
		})
	},
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show pairing status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			token, err := store.Token().Get(cmd.Context())
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Println("No token paired.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Paired token: %s (since %s)\n", token.TokenID, token.PairedAt.Format(time.RFC822))
			return nil
		})
	},
}

func init() {
	tokenCmd.AddCommand(tokenPairCmd, tokenUnpairCmd, tokenShowCmd)
	rootCmd.AddCommand(tokenCmd)
}
