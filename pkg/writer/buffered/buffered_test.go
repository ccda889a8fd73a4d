package buffered

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/logging"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]int
	ctxErrs []error
}

func (r *recorder) flush(ctx context.Context, items []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, items)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return nil
}

func (r *recorder) snapshot() [][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]int(nil), r.batches...)
}

func TestWrite_FlushesOnBatchSizeAndClose(t *testing.T) {
	rec := &recorder{}
	w := New(rec.flush, Config{BatchSize: 2, FlushInterval: time.Hour}, logging.Discard())

	in := make(chan int)
	done := make(chan error, 1)
	go func() { done <- w.Write(context.Background(), in) }()

	for i := 1; i <= 5; i++ {
		in <- i
	}
	close(in)

	require.NoError(t, <-done)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, rec.snapshot())
	assert.Zero(t, w.BufferLen())
}

func TestWrite_FlushesOnInterval(t *testing.T) {
	rec := &recorder{}
	w := New(rec.flush, Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, logging.Discard())

	in := make(chan int, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Write(ctx, in) }()

	in <- 7
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, [][]int{{7}}, rec.snapshot())

	close(in)
	require.NoError(t, <-done)
}

func TestWrite_FlushesOnShutdown(t *testing.T) {
	rec := &recorder{}
	w := New(rec.flush, Config{BatchSize: 100, FlushInterval: time.Hour}, logging.Discard())

	in := make(chan int)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Write(ctx, in) }()

	in <- 1
	in <- 2
	cancel()

	err := <-done
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, [][]int{{1, 2}}, rec.snapshot())
	// The final flush must be able to reach the store.
	assert.NoError(t, rec.ctxErrs[0])
}

func TestWrite_CloseFlushError(t *testing.T) {
	boom := errors.New("boom")
	w := New(func(context.Context, []string) error { return boom }, Config{BatchSize: 10}, logging.Discard())

	in := make(chan string, 1)
	in <- "x"
	close(in)

	require.ErrorIs(t, w.Write(context.Background(), in), boom)
}

func TestNew_Defaults(t *testing.T) {
	w := New(func(context.Context, []int) error { return nil }, Config{}, nil)
	assert.Equal(t, DefaultBatchSize, w.config.BatchSize)
	assert.Equal(t, DefaultFlushInterval, w.config.FlushInterval)
}
