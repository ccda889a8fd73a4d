package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/client"
)

func (a *app) setupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Authorize smsledger with Google for the gmail and sheets plugins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			secretFile, tokenFile := a.cfg.SecretFile, a.cfg.TokenFile

			if _, err := os.Stat(secretFile); os.IsNotExist(err) {
				return fmt.Errorf("client secret not found: %s\n\nTo get one:\n"+
					"1. Go to https://console.cloud.google.com/apis/credentials\n"+
					"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
					"3. Download the JSON file and save it as '%s'", secretFile, secretFile)
			}

			if !force {
				if _, err := client.LoadToken(tokenFile); err == nil {
					fmt.Fprintf(out, "Already authenticated, token file exists: %s\n", tokenFile)
					fmt.Fprintln(out, "To re-authenticate, run: smsledger setup --force")
					return nil
				}
			} else if err := os.Remove(tokenFile); err != nil && !os.IsNotExist(err) {
				a.logger.Warn("failed to remove existing token", "error", err)
			}

			scopes := a.scopes()
			if len(scopes) == 0 {
				fmt.Fprintln(out, "The configured reader and store need no Google authorization.")
				return nil
			}

			fmt.Fprintln(out, "Requesting access to:")
			for _, s := range scopes {
				fmt.Fprintf(out, "  - %s\n", s)
			}
			fmt.Fprintln(out)

			if _, err := client.New(client.Config{
				SecretFile: secretFile,
				TokenFile:  tokenFile,
				Scopes:     scopes,
			}, a.logger.With("component", "oauth")); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}

			fmt.Fprintf(out, "Token saved to: %s\n", tokenFile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "discard the cached token and authenticate again")
	return cmd
}

// scopes returns the OAuth scopes of the configured reader and store, or of
// every registered plugin when neither is configured.
func (a *app) scopes() []string {
	if a.cfg.ReaderPlugin != "" && a.cfg.StorePlugin != "" {
		if scopes, err := a.registry.GetAllScopes(a.cfg.ReaderPlugin, a.cfg.StorePlugin); err == nil {
			return scopes
		}
	}

	var scopes []string
	for _, p := range a.registry.ListReaders() {
		scopes = append(scopes, p.RequiredScopes()...)
	}
	for _, p := range a.registry.ListStores() {
		scopes = append(scopes, p.RequiredScopes()...)
	}
	slices.Sort(scopes)
	return slices.Compact(scopes)
}
