package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpggio/opsdash/internal/app"
	"github.com/rpggio/opsdash/internal/sqlite"
)

var (
	apiKeyToken       string
	apiKeyDescription string
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apiKeyAddCmd = &cobra.Command{
	Use:   "add <client-id>",
	Short: "Register an API key for a client and print the token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := app.OpenDB(ctx, cfg.DB.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		token := apiKeyToken
		if token == "" {
			buf := make([]byte, 24)
			if _, err := rand.Read(buf); err != nil {
				return err
			}
			token = hex.EncodeToString(buf)
		}
		if err := sqlite.NewAPIKeyRepository(db).Add(ctx, args[0], token, apiKeyDescription); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	apiKeyAddCmd.Flags().StringVar(&apiKeyToken, "token", "", "token to register (generated when empty)")
	apiKeyAddCmd.Flags().StringVar(&apiKeyDescription, "description", "", "free-text note stored with the key")
	apiKeyCmd.AddCommand(apiKeyAddCmd)
}
