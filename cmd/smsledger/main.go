// Command smsledger turns bank SMS and alert emails into ledger entries.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thisisarunc/ArunExpenseTracker/internal/plugins"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/config"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/logging"
)

// app carries state shared by every subcommand. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *plugins.Registry

	logLevel string
	logJSON  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{registry: plugins.Builtin()}

	root := &cobra.Command{
		Use:   "smsledger",
		Short: "Parse bank SMS and alert emails into a ledger",
		Long: `smsledger reads bank messages from an SMS backup, a JSON dump, an mbox file
or Gmail, extracts the amount, direction, merchant and category of every
transaction and stores new entries in a ledger.

Settings come from SMSLEDGER_* environment variables. Flags override them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.prepare,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	pf.BoolVar(&a.logJSON, "log-json", false, "emit JSON logs")
	pf.String("reader", "", "reader plugin (SMSLEDGER_READER)")
	pf.String("store", "", "store plugin (SMSLEDGER_STORE)")
	pf.String("reader-config", "", "reader config as JSON or @file (SMSLEDGER_READER_CONFIG)")
	pf.String("store-config", "", "store config as JSON or @file (SMSLEDGER_STORE_CONFIG)")
	pf.String("rules", "", "rules file, .json or .yaml (SMSLEDGER_RULES_FILE)")
	pf.String("timezone", "", "IANA timezone for message dates (SMSLEDGER_TIMEZONE)")
	pf.Int("workers", 0, "parse workers, 0 for GOMAXPROCS (SMSLEDGER_WORKERS)")
	pf.Int("batch-size", 0, "messages per import batch (SMSLEDGER_BATCH_SIZE)")
	pf.Bool("bank-senders-only", false, "drop messages from non-bank senders (SMSLEDGER_BANK_SENDERS_ONLY)")

	root.AddCommand(
		a.parseCmd(),
		a.addCmd(),
		a.importCmd(),
		a.runCmd(),
		a.dumpCmd(),
		a.pluginsCmd(),
		a.setupCmd(),
		a.statusCmd(),
	)
	return root
}

func (a *app) prepare(cmd *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if cmd.Name() == "run" {
		logCfg = logging.ProductionConfig()
	}
	logCfg.Output = cmd.ErrOrStderr()
	if a.logLevel != "" {
		logCfg.Level = logging.ParseLevel(a.logLevel)
	}
	if a.logJSON {
		logCfg.JSON = true
	}
	a.logger = logging.Setup(logCfg)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	strs := map[string]*string{
		"reader":        &cfg.ReaderPlugin,
		"store":         &cfg.StorePlugin,
		"reader-config": &cfg.ReaderConfig,
		"store-config":  &cfg.StoreConfig,
		"rules":         &cfg.RulesFile,
		"timezone":      &cfg.Timezone,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	ints := map[string]*int{
		"workers":    &cfg.Workers,
		"batch-size": &cfg.BatchSize,
	}
	for name, dst := range ints {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if fs.Changed("bank-senders-only") {
		v, err := fs.GetBool("bank-senders-only")
		if err != nil {
			return err
		}
		cfg.BankSendersOnly = v
	}
	return nil
}
