package main

import (
	"log/slog"

	"github.com/Veraticus/invoice-chaser/internal/cli"
	"github.com/Veraticus/invoice-chaser/internal/config"
	"github.com/Veraticus/invoice-chaser/internal/googleauth"
	"github.com/spf13/cobra"
)

func authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Gmail and Google Sheets",
		Long: `Run the Google OAuth2 flow for the mailbox that receives vendor replies.

This command will:
1. Print a consent URL to open in your browser
2. Wait for Google to redirect back to a local listener
3. Save the token for later commands

One token covers reading and labelling mail, sending replies, and writing
the export spreadsheet.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadGoogleAuthConfig()

			slog.Info("Starting Google authorization", "token_file", cfg.TokenFile)
			if _, err := googleauth.AuthenticateInteractive(cmd.Context(), cfg); err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess("Google account authorized"))
			return nil
		},
	}
}
