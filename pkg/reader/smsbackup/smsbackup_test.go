package smsbackup

import (
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

const backupXML = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<smses count="4">
  <sms protocol="0" address="VM-HDFCBK" date="1736899200000" type="1" body="Rs.500 debited from a/c XX1234 at SWIGGY" read="1" />
  <sms protocol="0" address="+919800000000" date="1736902800000" type="2" body="sent Rs 200 to you" read="1" />
  <sms protocol="0" address="AD-ICICIB" date="1736985600000" type="1" body="INR 2,000 credited &#55357;&#56842; to your a/c" read="0" />
  <sms protocol="0" address="VM-HDFCBK" date="1704067200000" type="1" body="Rs.10 debited" read="1" />
</smses>
`

func writeBackup(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sms.xml")
	require.NoError(t, os.WriteFile(path, []byte(backupXML), 0o600))
	return path
}

func readAll(t *testing.T, cfg Config) []api.RawMessage {
	t.Helper()
	r, err := New(cfg, logging.Discard())
	require.NoError(t, err)

	out := make(chan api.RawMessage)
	errc := make(chan error, 1)
	go func() { errc <- r.Read(context.Background(), out, nil) }()

	var got []api.RawMessage
	for m := range out {
		got = append(got, m)
	}
	require.NoError(t, <-errc)
	return got
}

func TestRead(t *testing.T) {
	path := writeBackup(t)

	t.Run("inbox only", func(t *testing.T) {
		got := readAll(t, Config{Path: path})
		require.Len(t, got, 3)

		assert.Equal(t, "VM-HDFCBK", got[0].Sender)
		assert.Equal(t, "Rs.500 debited from a/c XX1234 at SWIGGY", got[0].Body)
		assert.Equal(t, int64(1736899200000), got[0].TimestampMillis)
		assert.Empty(t, got[0].ID)
		assert.Contains(t, got[0].Key(), "sha256:")

		assert.Equal(t, "AD-ICICIB", got[1].Sender)
		assert.Contains(t, got[1].Body, "INR 2,000 credited")
	})

	t.Run("include sent", func(t *testing.T) {
		assert.Len(t, readAll(t, Config{Path: path, IncludeSent: true}), 4)
	})

	t.Run("sender filter", func(t *testing.T) {
		got := readAll(t, Config{Path: path, Senders: []string{"vm-hdfcbk"}})
		assert.Len(t, got, 2)
	})

	t.Run("since", func(t *testing.T) {
		got := readAll(t, Config{Path: path, Since: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
		assert.Len(t, got, 2)
	})
}

func TestRead_MissingFile(t *testing.T) {
	r, err := New(Config{Path: filepath.Join(t.TempDir(), "nope.xml")}, nil)
	require.NoError(t, err)

	out := make(chan api.RawMessage)
	err = r.Read(context.Background(), out, nil)
	require.Error(t, err)

	_, open := <-out
	assert.False(t, open, "out must be closed on error")
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
}
