package pipeline

import (
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/parser"
)

func millis(t time.Time) int64 { return t.UnixMilli() }

func newTestPipeline(opts ...Option) *Pipeline {
	p := parser.New(nil,
		parser.WithLocation(time.UTC),
		parser.WithClock(func() time.Time { return time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC) }),
	)
	return New(p, opts...)
}

func TestProcess_FiltersAndSorts(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, time.January, d, 9, 0, 0, 0, time.UTC) }

	msgs := []*api.RawMessage{
		{ID: "a", Sender: "VM-HDFCBK", Body: "Rs 100 debited at SWIGGY", TimestampMillis: millis(day(2))},
		nil,
		{ID: "b", Sender: "VM-HDFCBK", Body: "", TimestampMillis: millis(day(3))},
		{ID: "c", Sender: "JM-FRIEND", Body: "Lunch tomorrow?", TimestampMillis: millis(day(4))},
		{ID: "d", Sender: "AD-ICICIB", Body: "INR 2,000 credited to your account", TimestampMillis: millis(day(5))},
		// Body date wins over the timestamp.
		{ID: "e", Sender: "AD-ICICIB", Body: "Rs 50 debited on 10/01/2025", TimestampMillis: millis(day(1))},
		{ID: "f", Sender: "VM-HDFCBK", Body: "Rs 70 debited at ZOMATO", TimestampMillis: millis(day(2).Add(time.Hour))},
		// Amount rule matches but the value is zero.
		{ID: "g", Sender: "VM-HDFCBK", Body: "Rs 0 debited", TimestampMillis: millis(day(6))},
	}

	got := newTestPipeline(WithWorkers(3)).Process(msgs)

	var ids []string
	for _, pm := range got {
		ids = append(ids, pm.Message.ID)
		assert.True(t, pm.Transaction.IsTransaction())
		assert.True(t, pm.Transaction.HasPositiveAmount())
	}
	assert.Equal(t, []string{"e", "d", "f", "a"}, ids)

	require.Len(t, got, 4)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.January, Day: 10}, got[0].Transaction.Date)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.January, Day: 5}, got[1].Transaction.Date)
}

func TestProcess_StableForEqualKeys(t *testing.T) {
	ts := millis(time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC))
	var msgs []*api.RawMessage
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		msgs = append(msgs, &api.RawMessage{ID: id, Body: "Rs 10 debited", TimestampMillis: ts})
	}

	got := newTestPipeline(WithWorkers(4)).Process(msgs)

	var ids []string
	for _, pm := range got {
		ids = append(ids, pm.Message.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, ids)
}

func TestProcess_ZeroTimestampUsesToday(t *testing.T) {
	got := newTestPipeline().Process([]*api.RawMessage{{ID: "x", Body: "Rs 10 debited"}})

	require.Len(t, got, 1)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.March, Day: 9}, got[0].Transaction.Date)
}

func TestProcess_SenderGate(t *testing.T) {
	msgs := []*api.RawMessage{
		{ID: "bank", Sender: "VM-HDFCBK", Body: "Rs 10 debited"},
		{ID: "friend", Sender: "+919800000000", Body: "Rs 10 debited"},
	}

	t.Run("off by default", func(t *testing.T) {
		assert.Len(t, newTestPipeline().Process(msgs), 2)
	})

	t.Run("on", func(t *testing.T) {
		got := newTestPipeline(WithSenderGate(true)).Process(msgs)
		require.Len(t, got, 1)
		assert.Equal(t, "bank", got[0].Message.ID)
	})
}

func TestProcess_Progress(t *testing.T) {
	var n atomic.Int64
	msgs := []*api.RawMessage{
		{Body: "Rs 10 debited"},
		nil,
		{Body: ""},
		{Body: "hello"},
	}

	newTestPipeline(WithProgress(func() { n.Add(1) })).Process(msgs)

	assert.Equal(t, int64(len(msgs)), n.Load())
}

func TestProcess_Empty(t *testing.T) {
	assert.Empty(t, newTestPipeline().Process(nil))
	assert.Empty(t, newTestPipeline().Process([]*api.RawMessage{nil, nil}))
}
