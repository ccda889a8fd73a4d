package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/thisisarunc/ArunExpenseTracker/internal/daemon"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/client"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/config"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/ledger"
)

func (a *app) importCmd() *cobra.Command {
	var dryRun, quiet bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import every message from the reader once and exit",
		Example: `  smsledger import --reader smsbackup --reader-config '{"path":"sms.xml"}' \
    --store sqlite --store-config '{"path":"data/ledger.db"}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if dryRun && cfg.StorePlugin == "" {
				cfg.StorePlugin = "memory"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			storeName := cfg.StorePlugin
			if dryRun {
				storeName = ""
			}
			httpClient, err := a.httpClient(cfg, cfg.ReaderPlugin, storeName)
			if err != nil {
				return err
			}
			runner := daemon.New(a.registry, httpClient, a.logger)

			var bar *progressbar.ProgressBar
			if !quiet {
				bar = newSpinner(cmd.ErrOrStderr())
				runner.OnProgress(func() { _ = bar.Add(1) })
			}

			start := time.Now()
			var sum daemon.Summary
			if dryRun {
				store := ledger.NewMemoryStore()
				sum, err = runner.RunWithStore(cmd.Context(), cfg, store)
			} else {
				sum, err = runner.Run(cmd.Context(), cfg)
			}
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), sum, time.Since(start), dryRun)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and dedup in memory without writing to the store")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress spinner")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the import daemon until interrupted",
		Long: `Run keeps the reader open and imports new messages as they arrive. With the
gmail reader it polls on the configured interval. SIGINT or SIGTERM flushes
the pending batch and exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			httpClient, err := a.httpClient(a.cfg, a.cfg.ReaderPlugin, a.cfg.StorePlugin)
			if err != nil {
				return err
			}

			a.logger.Info("starting smsledger",
				"reader", a.cfg.ReaderPlugin,
				"store", a.cfg.StorePlugin,
			)
			sum, err := daemon.New(a.registry, httpClient, a.logger).Run(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			a.logger.Info("smsledger stopped",
				"read", sum.Read,
				"imported", sum.Imported,
				"duplicates", sum.Duplicates,
			)
			return nil
		},
	}
}

// httpClient returns an OAuth client when the named plugins need Google
// scopes, and nil otherwise. An empty name is skipped.
func (a *app) httpClient(cfg config.Config, readerName, storeName string) (*http.Client, error) {
	var scopes []string
	if readerName != "" {
		reader, err := a.registry.GetReader(readerName)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, reader.RequiredScopes()...)
	}
	if storeName != "" {
		store, err := a.registry.GetStore(storeName)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, store.RequiredScopes()...)
	}
	if len(scopes) == 0 {
		return nil, nil
	}

	httpClient, err := client.New(client.Config{
		SecretFile: cfg.SecretFile,
		TokenFile:  cfg.TokenFile,
		Scopes:     scopes,
	}, a.logger.With("component", "oauth"))
	if err != nil {
		return nil, fmt.Errorf("creating http client: %w", err)
	}
	return httpClient, nil
}

func newSpinner(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("parsing messages"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("msg"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func printSummary(w io.Writer, sum daemon.Summary, elapsed time.Duration, dryRun bool) {
	title := "Import complete"
	if dryRun {
		title = "Dry run complete (nothing written)"
	}
	fmt.Fprintln(w, title)
	fmt.Fprintf(w, "  Messages read:   %d\n", sum.Read)
	fmt.Fprintf(w, "  Transactions:    %d\n", sum.Transactions)
	fmt.Fprintf(w, "  New entries:     %d\n", sum.Imported)
	fmt.Fprintf(w, "  Duplicates:      %d\n", sum.Duplicates)
	fmt.Fprintf(w, "  Batches:         %d\n", sum.Batches)
	fmt.Fprintf(w, "  Elapsed:         %s\n", elapsed.Round(time.Millisecond))
}
