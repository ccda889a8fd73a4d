package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/client"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/rules"
)

func (a *app) statusCmd() *cobra.Command {
	var checkAPI bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check configuration, credentials and rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== smsledger status ===")
			fmt.Fprintln(out)

			allGood := a.checkConfig(out)
			allGood = a.checkRules(out) && allGood

			if a.needsOAuth() {
				credsOK := a.checkCredentials(out)
				if credsOK && checkAPI && a.cfg.ReaderPlugin == "gmail" {
					credsOK = a.checkGmail(cmd.Context(), out)
				}
				allGood = credsOK && allGood
			}

			fmt.Fprintln(out)
			if allGood {
				fmt.Fprintln(out, "Status: ✓ Ready to run")
			} else {
				fmt.Fprintln(out, "Status: ✗ Configuration issues detected")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkAPI, "check-api", false, "call the Gmail API to verify the token")
	return cmd
}

func (a *app) checkConfig(out io.Writer) bool {
	ok := true
	fmt.Fprintf(out, "Reader: %s\n", orUnset(a.cfg.ReaderPlugin))
	fmt.Fprintf(out, "Store:  %s\n", orUnset(a.cfg.StorePlugin))

	fmt.Fprint(out, "Config: ")
	if err := a.cfg.Validate(); err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		ok = false
	} else {
		fmt.Fprintln(out, "✓ Valid")
	}

	if _, err := a.cfg.ReaderConfigJSON(); err != nil {
		fmt.Fprintf(out, "Reader config: ✗ %v\n", err)
		ok = false
	}
	if _, err := a.cfg.StoreConfigJSON(); err != nil {
		fmt.Fprintf(out, "Store config: ✗ %v\n", err)
		ok = false
	}
	return ok
}

func (a *app) checkRules(out io.Writer) bool {
	name := "built-in"
	rs := rules.Default()
	if a.cfg.RulesFile != "" {
		name = a.cfg.RulesFile
		var err error
		if rs, err = rules.Load(a.cfg.RulesFile); err != nil {
			fmt.Fprintf(out, "Rules (%s): ✗ %v\n", name, err)
			return false
		}
	}

	fmt.Fprintf(out, "Rules (%s): ✓ %d bank senders, %d amount patterns, %d merchant patterns, %d categories\n",
		name, len(rs.BankSenders), len(rs.Amount), len(rs.Merchant), len(rs.Categories))
	return true
}

func (a *app) needsOAuth() bool {
	if r, err := a.registry.GetReader(a.cfg.ReaderPlugin); err == nil && len(r.RequiredScopes()) > 0 {
		return true
	}
	if s, err := a.registry.GetStore(a.cfg.StorePlugin); err == nil && len(s.RequiredScopes()) > 0 {
		return true
	}
	return false
}

func (a *app) checkCredentials(out io.Writer) bool {
	ok := true

	fmt.Fprintf(out, "Client secret (%s): ", a.cfg.SecretFile)
	if _, err := os.Stat(a.cfg.SecretFile); err != nil {
		fmt.Fprintln(out, "✗ Not found")
		ok = false
	} else {
		fmt.Fprintln(out, "✓ Found")
	}

	fmt.Fprintf(out, "OAuth token (%s): ", a.cfg.TokenFile)
	token, err := client.LoadToken(a.cfg.TokenFile)
	switch {
	case errors.Is(err, client.ErrNoToken):
		fmt.Fprintln(out, "✗ Not found (run 'smsledger setup')")
		return false
	case err != nil:
		fmt.Fprintf(out, "✗ %v\n", err)
		return false
	case token.Expiry.Before(time.Now()):
		fmt.Fprintln(out, "⚠ Expired (will refresh on next run)")
	default:
		fmt.Fprintf(out, "✓ Valid (expires: %s)\n", token.Expiry.Format(time.RFC3339))
	}
	return ok
}

func (a *app) checkGmail(ctx context.Context, out io.Writer) bool {
	fmt.Fprint(out, "Gmail API: ")
	httpClient, err := a.httpClient(a.cfg, a.cfg.ReaderPlugin, "")
	if err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return false
	}
	if err := pingGmail(ctx, httpClient); err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return false
	}
	fmt.Fprintln(out, "✓ Connected")
	return true
}

func pingGmail(ctx context.Context, httpClient *http.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	if _, err := svc.Users.Labels.List("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("API call failed: %w", err)
	}
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
