package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/reader/jsonfile"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/reader/mbox"
)

func (a *app) dumpCmd() *cobra.Command {
	var output, format string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Copy raw messages from a reader into a JSON or mbox file",
		Long: `Dump reads messages from the configured reader without parsing them and
writes them out as a jsonfile dump or an mbox. The output can be fed back
in with the jsonfile or mbox readers, which makes it useful for collecting
test samples. Nothing is acknowledged, so Gmail messages stay unread.`,
		Example: `  smsledger dump --reader gmail --reader-config '{"once":true}' -o samples.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.ReaderPlugin == "" {
				return fmt.Errorf("a reader is required (--reader or SMSLEDGER_READER)")
			}
			if format != "json" && format != "mbox" {
				return fmt.Errorf("unknown format %q (json, mbox)", format)
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			n, err := a.dump(cmd.Context(), w, format)
			if err != nil {
				return err
			}
			a.logger.Info("dump complete", "messages", n, "format", format, "output", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or mbox")
	return cmd
}

func (a *app) dump(ctx context.Context, w io.Writer, format string) (int, error) {
	httpClient, err := a.httpClient(a.cfg, a.cfg.ReaderPlugin, "")
	if err != nil {
		return 0, err
	}
	readerCfg, err := a.cfg.ReaderConfigJSON()
	if err != nil {
		return 0, err
	}
	reader, err := a.registry.CreateReader(a.cfg.ReaderPlugin, httpClient, readerCfg, a.logger.With("component", "reader"))
	if err != nil {
		return 0, fmt.Errorf("creating reader: %w", err)
	}

	// A closed ack channel tells the reader nothing will be acknowledged.
	acks := make(chan string)
	close(acks)

	msgs := make(chan api.RawMessage, 100)
	readErr := make(chan error, 1)
	go func() { readErr <- reader.Read(ctx, msgs, acks) }()

	var (
		n      int
		encErr error
		all    []api.RawMessage
		enc    = jsonfile.NewEncoder(w)
	)
	for m := range msgs {
		n++
		if format == "mbox" {
			all = append(all, m)
			continue
		}
		if encErr == nil {
			encErr = enc.Encode(m)
		}
	}

	if err := <-readErr; err != nil && !errors.Is(err, context.Canceled) {
		return n, fmt.Errorf("reading messages: %w", err)
	}
	if encErr != nil {
		return n, fmt.Errorf("writing dump: %w", encErr)
	}

	if format == "mbox" {
		return n, mbox.Write(w, all)
	}
	return n, enc.Close()
}
