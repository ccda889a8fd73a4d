package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisarunc/ArunExpenseTracker/internal/plugins"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/config"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/ledger"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/logging"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/parser"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/pipeline"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/writer/buffered"
	jsonstore "github.com/thisisarunc/ArunExpenseTracker/pkg/writer/json"
)

var inbox = []api.RawMessage{
	{ID: "1", Sender: "VM-HDFCBK", Body: "Rs.250 debited from a/c XX1234 to VPA swiggy@icici on 15-01-25", TimestampMillis: 1736899200000},
	{ID: "2", Sender: "JM-FRIEND", Body: "See you at 7", TimestampMillis: 1736899300000},
	{ID: "3", Sender: "AD-ICICIB", Body: "INR 1,200.00 credited to your account. Refund from AMAZON", TimestampMillis: 1736899400000},
	{ID: "1", Sender: "VM-HDFCBK", Body: "Rs.250 debited from a/c XX1234 to VPA swiggy@icici on 15-01-25", TimestampMillis: 1736899200000},
}

// sliceReader emits msgs, closes out and then collects acks until the ack
// channel is closed, like a reader that marks messages processed.
type sliceReader struct {
	msgs       []api.RawMessage
	ignoreAcks bool
	blockUntil bool

	mu   sync.Mutex
	acks []string
}

func (r *sliceReader) Read(ctx context.Context, out chan<- api.RawMessage, ackChan <-chan string) error {
	for _, m := range r.msgs {
		select {
		case <-ctx.Done():
			close(out)
			return ctx.Err()
		case out <- m:
		}
	}
	if r.blockUntil {
		<-ctx.Done()
		close(out)
		return ctx.Err()
	}
	close(out)
	if r.ignoreAcks {
		return nil
	}
	for k := range ackChan {
		r.mu.Lock()
		r.acks = append(r.acks, k)
		r.mu.Unlock()
	}
	return nil
}

func (r *sliceReader) Acks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.acks...)
}

type failingReader struct{}

func (failingReader) Read(_ context.Context, out chan<- api.RawMessage, _ <-chan string) error {
	close(out)
	return errors.New("disk on fire")
}

func newPipeline() *pipeline.Pipeline {
	return pipeline.New(parser.New(nil, parser.WithLocation(time.UTC)))
}

func TestProcess_ImportsAndAcks(t *testing.T) {
	store := ledger.NewMemoryStore()
	reader := &sliceReader{msgs: inbox}

	sum, err := Process(context.Background(), reader, newPipeline(), ledger.NewImporter(store, logging.Discard()),
		buffered.Config{BatchSize: 10, FlushInterval: time.Minute}, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, Summary{Read: 4, Transactions: 3, Imported: 2, Duplicates: 1, Batches: 1}, sum)
	assert.Equal(t, 2, store.Len())
	assert.ElementsMatch(t, []string{"1", "3"}, reader.Acks())
}

func TestProcess_SecondRunImportsNothing(t *testing.T) {
	store := ledger.NewMemoryStore()
	importer := ledger.NewImporter(store, logging.Discard())
	cfg := buffered.Config{BatchSize: 2, FlushInterval: time.Minute}

	_, err := Process(context.Background(), &sliceReader{msgs: inbox}, newPipeline(), importer, cfg, logging.Discard())
	require.NoError(t, err)

	again := &sliceReader{msgs: inbox}
	sum, err := Process(context.Background(), again, newPipeline(), importer, cfg, logging.Discard())
	require.NoError(t, err)

	assert.Zero(t, sum.Imported)
	assert.Equal(t, 3, sum.Duplicates)
	assert.Equal(t, 2, store.Len())
	// Already stored messages are still acknowledged.
	assert.ElementsMatch(t, []string{"1", "3", "1"}, again.Acks())
}

func TestProcess_ReaderIgnoringAcks(t *testing.T) {
	var msgs []api.RawMessage
	for i := range 300 {
		msgs = append(msgs, api.RawMessage{
			ID:              fmt.Sprintf("m%d", i),
			Sender:          "VM-HDFCBK",
			Body:            fmt.Sprintf("Rs.%d debited from a/c XX1234", i+1),
			TimestampMillis: 1736899200000 + int64(i),
		})
	}
	store := ledger.NewMemoryStore()

	done := make(chan struct{})
	var sum Summary
	go func() {
		defer close(done)
		var err error
		sum, err = Process(context.Background(), &sliceReader{msgs: msgs, ignoreAcks: true}, newPipeline(),
			ledger.NewImporter(store, logging.Discard()), buffered.Config{BatchSize: 1, FlushInterval: time.Minute}, logging.Discard())
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("import blocked on acknowledgements")
	}
	assert.Equal(t, 300, sum.Imported)
	assert.Equal(t, 300, store.Len())
}

func TestProcess_CancelFlushesBuffer(t *testing.T) {
	store := ledger.NewMemoryStore()
	reader := &sliceReader{msgs: inbox[:1], blockUntil: true}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// The single message sits in the buffer until shutdown.
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	sum, err := Process(ctx, reader, newPipeline(), ledger.NewImporter(store, logging.Discard()),
		buffered.Config{BatchSize: 10, FlushInterval: time.Hour}, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Imported)
	assert.Equal(t, 1, store.Len())
}

func TestProcess_ReaderError(t *testing.T) {
	_, err := Process(context.Background(), failingReader{}, newPipeline(),
		ledger.NewImporter(ledger.NewMemoryStore(), logging.Discard()), buffered.Config{}, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "sms.json")
	ledgerPath := filepath.Join(dir, "ledger.json")
	require.NoError(t, os.WriteFile(dump, []byte(`[
  {"id": 1, "address": "VM-HDFCBK", "body": "Rs.250 debited from a/c XX1234 to VPA swiggy@icici", "date": 1736899200000},
  {"id": 2, "address": "JM-FRIEND", "body": "See you at 7", "date": 1736899300000},
  null
]`), 0o600))

	cfg := config.Config{
		ReaderPlugin: "jsonfile",
		ReaderConfig: fmt.Sprintf(`{"path": %q}`, dump),
		StorePlugin:  "json",
		StoreConfig:  fmt.Sprintf(`{"filePath": %q}`, ledgerPath),
		Timezone:     "UTC",
	}

	var ticks atomic.Int32
	runner := New(plugins.Builtin(), nil, logging.Discard()).OnProgress(func() { ticks.Add(1) })

	sum, err := runner.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Read)
	assert.Equal(t, 1, sum.Imported)
	assert.Equal(t, int32(2), ticks.Load())

	sum, err = runner.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Zero(t, sum.Imported)
	assert.Equal(t, 1, sum.Duplicates)

	s, err := jsonstore.New(jsonstore.Config{FilePath: ledgerPath}, logging.Discard())
	require.NoError(t, err)
	require.Len(t, s.Entries(), 1)
	assert.Equal(t, "1", s.Entries()[0].MessageID)
	assert.Equal(t, api.CategoryFood, s.Entries()[0].Category)
}

func TestRunner_RunValidates(t *testing.T) {
	_, err := New(plugins.Builtin(), nil, nil).Run(context.Background(), config.Config{StorePlugin: "json"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingConfig))
}
