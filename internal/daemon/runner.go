// Package daemon wires a reader, the parsing pipeline and a store together.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/thisisarunc/ArunExpenseTracker/internal/plugins"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/config"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/ledger"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/parser"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/pipeline"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/rules"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/writer/buffered"
)

// Summary totals one run.
type Summary struct {
	// Read is the number of messages received from the reader.
	Read int
	// Transactions is the number of messages accepted as transactions.
	Transactions int
	// Imported is the number of new ledger entries.
	Imported int
	// Duplicates is the number of transactions already in the store.
	Duplicates int
	// Batches is the number of import batches.
	Batches int
}

// Runner manages the import lifecycle.
type Runner struct {
	registry   *plugins.Registry
	httpClient *http.Client
	logger     *slog.Logger
	progress   func()
}

// New creates a new daemon runner.
func New(registry *plugins.Registry, httpClient *http.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		registry:   registry,
		httpClient: httpClient,
		logger:     logger,
	}
}

// OnProgress registers fn to be called once per message inspected.
func (r *Runner) OnProgress(fn func()) *Runner {
	r.progress = fn
	return r
}

// Run creates the reader and store named in cfg and imports until the reader
// finishes or ctx is canceled.
func (r *Runner) Run(ctx context.Context, cfg config.Config) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}

	storeCfg, err := cfg.StoreConfigJSON()
	if err != nil {
		return Summary{}, err
	}
	store, err := r.registry.CreateStore(
		cfg.StorePlugin,
		r.httpClient,
		storeCfg,
		r.logger.With("component", "store", "plugin", cfg.StorePlugin),
	)
	if err != nil {
		return Summary{}, fmt.Errorf("creating store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			r.logger.Error("closing store", "error", err)
		}
	}()

	return r.RunWithStore(ctx, cfg, store)
}

// RunWithStore is Run with a caller-provided store, which it does not close.
func (r *Runner) RunWithStore(ctx context.Context, cfg config.Config, store api.Store) (Summary, error) {
	if cfg.ReaderPlugin == "" {
		return Summary{}, fmt.Errorf("%w: SMSLEDGER_READER is required", config.ErrMissingConfig)
	}

	readerCfg, err := cfg.ReaderConfigJSON()
	if err != nil {
		return Summary{}, err
	}
	reader, err := r.registry.CreateReader(
		cfg.ReaderPlugin,
		r.httpClient,
		readerCfg,
		r.logger.With("component", "reader", "plugin", cfg.ReaderPlugin),
	)
	if err != nil {
		return Summary{}, fmt.Errorf("creating reader: %w", err)
	}

	pipe, err := NewPipeline(cfg, r.progress)
	if err != nil {
		return Summary{}, err
	}

	r.logger.Info("starting import",
		"reader", cfg.ReaderPlugin,
		"store", cfg.StorePlugin,
		"bank_senders_only", cfg.BankSendersOnly,
	)

	importer := ledger.NewImporter(store, r.logger)
	sum, err := Process(ctx, reader, pipe, importer, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, r.logger)

	r.logger.Info("import stopped",
		"read", sum.Read,
		"transactions", sum.Transactions,
		"imported", sum.Imported,
		"duplicates", sum.Duplicates,
	)
	return sum, err
}

// NewPipeline builds the parser and pipeline described by cfg.
func NewPipeline(cfg config.Config, progress func()) (*pipeline.Pipeline, error) {
	rs := rules.Default()
	if cfg.RulesFile != "" {
		var err error
		if rs, err = rules.Load(cfg.RulesFile); err != nil {
			return nil, err
		}
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	p := parser.New(rs, parser.WithLocation(loc))
	return pipeline.New(p,
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithSenderGate(cfg.BankSendersOnly),
		pipeline.WithProgress(progress),
	), nil
}

// Process reads every message from reader, parses it in batches and imports
// the transactions. Keys of stored transactions are acknowledged back to the
// reader; the ack channel is closed once the last batch is imported.
//
// Process returns when the reader has finished, or ctx is canceled and the
// buffered messages have been imported. Cancellation is not an error.
func Process(ctx context.Context, reader api.Reader, pipe *pipeline.Pipeline, importer *ledger.Importer, batch buffered.Config, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan api.RawMessage, 100)
	acks := make(chan string)
	keys := make(chan []string)

	var readErr error
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		readErr = reader.Read(ctx, msgs, acks)
	}()

	ackDone := make(chan struct{})
	go func() {
		defer close(ackDone)
		forwardAcks(ctx, keys, acks, readerDone)
	}()

	var sum Summary
	flush := func(ctx context.Context, items []api.RawMessage) error {
		ptrs := make([]*api.RawMessage, len(items))
		for i := range items {
			ptrs[i] = &items[i]
		}
		parsed := pipe.Process(ptrs)

		res, err := importer.Import(ctx, parsed)
		if err != nil {
			return err
		}

		sum.Read += len(items)
		sum.Transactions += len(parsed)
		sum.Imported += res.Imported
		sum.Duplicates += res.Duplicates
		sum.Batches++

		logger.Info("imported batch",
			"messages", len(items),
			"transactions", len(parsed),
			"imported", res.Imported,
			"duplicates", res.Duplicates,
		)

		if len(res.Keys) > 0 {
			select {
			case keys <- res.Keys:
			case <-ackDone:
			}
		}
		return nil
	}

	w := buffered.New(flush, batch, logger.With("component", "batcher"))
	writeErr := w.Write(ctx, msgs)
	close(keys)

	if writeErr != nil {
		// Unblock a reader still sending.
		cancel()
	}
	<-readerDone
	<-ackDone

	if errors.Is(writeErr, context.Canceled) {
		writeErr = nil
	}
	if errors.Is(readErr, context.Canceled) {
		readErr = nil
	}
	if writeErr != nil {
		return sum, fmt.Errorf("importing: %w", writeErr)
	}
	if readErr != nil {
		return sum, fmt.Errorf("reading: %w", readErr)
	}
	return sum, nil
}

// forwardAcks queues acknowledged keys and hands them to the reader as it
// takes them. Readers that ignore acks never block the import. acks is closed
// once every queued key is delivered, or dropped when the reader stops or ctx ends.
func forwardAcks(ctx context.Context, keys <-chan []string, acks chan<- string, readerDone <-chan struct{}) {
	defer close(acks)

	var queue []string
	for keys != nil || len(queue) > 0 {
		var out chan<- string
		var next string
		if len(queue) > 0 {
			out = acks
			next = queue[0]
		}

		select {
		case ks, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			queue = append(queue, ks...)
		case out <- next:
			queue = queue[1:]
		case <-readerDone:
			drain(keys)
			return
		case <-ctx.Done():
			drain(keys)
			return
		}
	}
}

func drain(keys <-chan []string) {
	if keys == nil {
		return
	}
	for range keys {
	}
}
