package main

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/ledger"
)

func (a *app) addCmd() *cobra.Command {
	var amount, direction, category, mode, date, note string

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a manually entered transaction to the store",
		Example: `  smsledger add --store sqlite --amount 120 --category food --note "chai and samosa"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.StorePlugin == "" {
				return fmt.Errorf("a store is required (--store or SMSLEDGER_STORE)")
			}

			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("parsing --amount: %w", err)
			}
			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			day := civil.DateOf(time.Now().In(loc))
			if date != "" {
				if day, err = civil.ParseDate(date); err != nil {
					return fmt.Errorf("parsing --date: %w", err)
				}
			}

			entry, err := ledger.NewManualEntry(ledger.Manual{
				Amount:      amt,
				Direction:   api.Direction(direction),
				Category:    api.Category(category),
				PaymentMode: api.PaymentMode(mode),
				Date:        day,
				Note:        note,
			}, uuid.NewString(), time.Now())
			if err != nil {
				return err
			}

			httpClient, err := a.httpClient(a.cfg, "", a.cfg.StorePlugin)
			if err != nil {
				return err
			}
			storeCfg, err := a.cfg.StoreConfigJSON()
			if err != nil {
				return err
			}
			store, err := a.registry.CreateStore(a.cfg.StorePlugin, httpClient, storeCfg, a.logger.With("component", "store"))
			if err != nil {
				return fmt.Errorf("creating store: %w", err)
			}
			defer store.Close()

			if _, err := store.Save(cmd.Context(), []*api.LedgerEntry{entry}); err != nil {
				return fmt.Errorf("saving entry: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s %s on %s (%s)\n",
				entry.Direction, entry.Amount.StringFixed(2), entry.Category, entry.Date, entry.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&amount, "amount", "", "amount, e.g. 120.50")
	f.StringVar(&direction, "direction", string(api.DirectionExpense), "expense or income")
	f.StringVar(&category, "category", "", "category, defaults to other")
	f.StringVar(&mode, "mode", "", "payment mode: upi, cash, credit, debit, netbanking (default cash)")
	f.StringVar(&date, "date", "", "date as YYYY-MM-DD, defaults to today")
	f.StringVar(&note, "note", "", "free text note")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
