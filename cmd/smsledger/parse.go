package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/thisisarunc/ArunExpenseTracker/internal/daemon"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
)

type parseOutput struct {
	api.ParsedTransaction
	BankSender bool `json:"bankSender"`
}

func (a *app) parseCmd() *cobra.Command {
	var sender, date string

	cmd := &cobra.Command{
		Use:   "parse [body]",
		Short: "Parse one message body and print the result as JSON",
		Long: `Parse runs the field extractor and category classifier on a single message.
The body is taken from the arguments, or from stdin when none are given.`,
		Example: `  smsledger parse --sender VM-HDFCBK "Rs.500 debited from a/c XX1234 at SWIGGY on 05-03-25"
  echo "INR 2,000 credited to your a/c" | smsledger parse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				body = string(b)
			}

			var fallback *civil.Date
			if date != "" {
				d, err := civil.ParseDate(date)
				if err != nil {
					return fmt.Errorf("parsing --date: %w", err)
				}
				fallback = &d
			}

			pipe, err := daemon.NewPipeline(a.cfg, nil)
			if err != nil {
				return err
			}
			p := pipe.Parser()

			out := parseOutput{
				ParsedTransaction: p.Parse(body, sender, fallback),
				BankSender:        p.IsBankSender(sender),
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "sender id, e.g. VM-HDFCBK")
	cmd.Flags().StringVar(&date, "date", "", "fallback date (YYYY-MM-DD) when the body has none; defaults to today")
	return cmd
}
