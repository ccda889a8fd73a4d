package mbox

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/logging"
)

const fixture = "From alerts@hdfcbank.net Wed Jan 15 10:30:00 2025\r\n" +
	"From: HDFC Bank InstaAlerts <alerts@hdfcbank.net>\r\n" +
	"Subject: =?UTF-8?Q?You_have_done_a_UPI_txn?=\r\n" +
	"Message-Id: <abc123@hdfcbank.net>\r\n" +
	"Date: Wed, 15 Jan 2025 10:30:00 +0530\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Dear Customer, Rs.250.00 has been debited from account 1234 to VPA swig=\r\n" +
	"gy@icici on 15-01-25.\r\n" +
	"\r\n" +
	"From news@shop.example Wed Jan 15 11:00:00 2025\r\n" +
	"From: Shop <news@shop.example>\r\n" +
	"Subject: Sale\r\n" +
	"Date: Wed, 15 Jan 2025 11:00:00 +0000\r\n" +
	"\r\n" +
	"50% off everything\r\n"

func readAll(t *testing.T, path string, cfg Config) []api.RawMessage {
	t.Helper()
	cfg.Path = path
	r, err := New(cfg, logging.Discard())
	require.NoError(t, err)

	out := make(chan api.RawMessage, 16)
	require.NoError(t, r.Read(context.Background(), out, nil))

	var got []api.RawMessage
	for m := range out {
		got = append(got, m)
	}
	return got
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.mbox")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	t.Run("all messages", func(t *testing.T) {
		got := readAll(t, path, Config{})
		require.Len(t, got, 2)

		first := got[0]
		assert.Equal(t, "abc123@hdfcbank.net", first.ID)
		assert.Equal(t, "alerts@hdfcbank.net", first.Sender)
		assert.Equal(t, "Dear Customer, Rs.250.00 has been debited from account 1234 to VPA swiggy@icici on 15-01-25.", first.Body)
		want := time.Date(2025, 1, 15, 5, 0, 0, 0, time.UTC).UnixMilli()
		assert.Equal(t, want, first.TimestampMillis)
	})

	t.Run("from filter and subject", func(t *testing.T) {
		got := readAll(t, path, Config{FromContains: []string{"HDFCBANK"}, IncludeSubject: true})
		require.Len(t, got, 1)
		assert.Contains(t, got[0].Body, "You have done a UPI txn Dear Customer")
	})
}

func TestWriteThenRead(t *testing.T) {
	msgs := []api.RawMessage{
		{ID: "m1@bank", Sender: "alerts@bank.example", Body: "Rs 10 debited", TimestampMillis: 1736935200000},
		{ID: "m2@bank", Sender: "alerts@bank.example", Body: "INR 99 credited", TimestampMillis: 1736938800000},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, msgs))

	path := filepath.Join(t.TempDir(), "out.mbox")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got := readAll(t, path, Config{})
	assert.Equal(t, msgs, got)
}
