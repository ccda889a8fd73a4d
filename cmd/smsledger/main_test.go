package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/reader/jsonfile"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, v := range []string{"SMSLEDGER_READER", "SMSLEDGER_STORE", "SMSLEDGER_READER_CONFIG", "SMSLEDGER_STORE_CONFIG", "SMSLEDGER_RULES_FILE"} {
		t.Setenv(v, "")
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

const smsDump = `[
  {"id": 1, "address": "VM-HDFCBK", "body": "Rs 1,000.00 debited from A/c XX1234 at SWIGGY on 05-06-2024 UPI/swiggy.food@ybl", "date": 1717570800000},
  {"id": 2, "address": "JM-SWIGGY", "body": "Your order is on the way", "date": 1717574400000},
  null
]`

func writeDump(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sms.json")
	require.NoError(t, os.WriteFile(path, []byte(smsDump), 0o600))
	return path
}

func TestParseCommand(t *testing.T) {
	out, err := execute(t, "", "parse", "--timezone", "UTC", "--sender", "VM-HDFCBK",
		"Rs 1,000.00 debited from A/c XX1234 at SWIGGY on 05-06-2024 UPI/swiggy.food@ybl")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "transaction", got["outcome"])
	assert.Equal(t, "expense", got["direction"])
	assert.Equal(t, "1000", got["amount"])
	assert.Equal(t, "food", got["category"])
	assert.Equal(t, "upi", got["paymentMode"])
	assert.Equal(t, "2024-06-05", got["date"])
	assert.Equal(t, true, got["bankSender"])
}

func TestParseCommand_Stdin(t *testing.T) {
	out, err := execute(t, "", "parse")
	require.NoError(t, err)
	assert.Contains(t, out, `"outcome": "invalid_input"`)
	assert.Contains(t, out, `"bankSender": false`)
}

func TestParseCommand_FallbackDate(t *testing.T) {
	out, err := execute(t, "", "parse", "--date", "2025-01-15", "Rs 250 debited")
	require.NoError(t, err)
	assert.Contains(t, out, `"date": "2025-01-15"`)

	_, err = execute(t, "", "parse", "--date", "15/01/2025", "Rs 250 debited")
	require.Error(t, err)
}

func TestImportCommand(t *testing.T) {
	dump := writeDump(t)
	ledger := filepath.Join(t.TempDir(), "ledger.json")
	args := []string{"import", "-q",
		"--reader", "jsonfile", "--reader-config", `{"path":"` + dump + `"}`,
		"--store", "json", "--store-config", `{"filePath":"` + ledger + `"}`,
	}

	out, err := execute(t, "", args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Import complete")
	assert.Contains(t, out, "Messages read:   2")
	assert.Contains(t, out, "New entries:     1")

	out, err = execute(t, "", args...)
	require.NoError(t, err)
	assert.Contains(t, out, "New entries:     0")
	assert.Contains(t, out, "Duplicates:      1")

	var entries []api.LedgerEntry
	b, err := os.ReadFile(ledger)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "1", entries[0].MessageID)
	assert.Equal(t, api.CategoryFood, entries[0].Category)
}

func TestImportCommand_DryRun(t *testing.T) {
	dump := writeDump(t)
	out, err := execute(t, "", "import", "-q", "--dry-run", "--bank-senders-only",
		"--reader", "jsonfile", "--reader-config", `{"path":"`+dump+`"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run complete")
	assert.Contains(t, out, "Transactions:    1")
	assert.Contains(t, out, "New entries:     1")
}

func TestImportCommand_MissingReader(t *testing.T) {
	_, err := execute(t, "", "import", "-q", "--store", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMSLEDGER_READER")
}

func TestDumpCommand(t *testing.T) {
	dump := writeDump(t)
	outPath := filepath.Join(t.TempDir(), "copy.json")

	_, err := execute(t, "", "dump", "--reader", "jsonfile", "--reader-config", `{"path":"`+dump+`"}`, "-o", outPath)
	require.NoError(t, err)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	var got []api.RawMessage
	_, err = jsonfile.Decode(context.Background(), f, func(m api.RawMessage) error {
		got = append(got, m)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "VM-HDFCBK", got[0].Sender)
	assert.Equal(t, int64(1717574400000), got[1].TimestampMillis)
}

func TestDumpCommand_Mbox(t *testing.T) {
	dump := writeDump(t)
	out, err := execute(t, "", "dump", "-f", "mbox", "--reader", "jsonfile", "--reader-config", `{"path":"`+dump+`"}`)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\nFrom: "))
	assert.Contains(t, out, "Your order is on the way")

	_, err = execute(t, "", "dump", "-f", "xml", "--reader", "jsonfile", "--reader-config", `{"path":"`+dump+`"}`)
	require.Error(t, err)
}

func TestPluginsCommand(t *testing.T) {
	out, err := execute(t, "", "plugins")
	require.NoError(t, err)
	for _, name := range []string{"smsbackup", "jsonfile", "mbox", "gmail", "json", "csv", "sqlite", "postgres", "sheets"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "(oauth: gmail.readonly, gmail.modify)")
}

func TestScopeNote(t *testing.T) {
	tests := []struct {
		name   string
		scopes []string
		want   string
	}{
		{"none", nil, ""},
		{"one", []string{"https://www.googleapis.com/auth/spreadsheets"}, "(oauth: spreadsheets)"},
		{"two", []string{"https://www.googleapis.com/auth/gmail.readonly", "https://www.googleapis.com/auth/gmail.modify"}, "(oauth: gmail.readonly, gmail.modify)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scopeNote(tt.scopes))
		})
	}
}

func TestStatusCommand(t *testing.T) {
	out, err := execute(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Reader: (unset)")
	assert.Contains(t, out, "Rules (built-in): ✓")
	assert.Contains(t, out, "Configuration issues detected")

	dump := writeDump(t)
	out, err = execute(t, "", "status", "--reader", "jsonfile", "--reader-config", `{"path":"`+dump+`"}`,
		"--store", "json", "--store-config", `{"filePath":"ledger.json"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Ready to run")
}

func TestAddCommand(t *testing.T) {
	ledgerPath := filepath.Join(t.TempDir(), "ledger.json")
	store := []string{"--store", "json", "--store-config", `{"filePath":"` + ledgerPath + `"}`}

	out, err := execute(t, "", append([]string{"add", "--amount", "120", "--category", "food", "--date", "2025-02-01", "--note", "chai"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Added expense 120.00 food on 2025-02-01")

	var entries []api.LedgerEntry
	b, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, api.SourceManual, entries[0].Source)
	assert.Equal(t, api.PaymentModeCash, entries[0].PaymentMode)
	assert.True(t, strings.HasPrefix(entries[0].MessageID, "manual:"))

	_, err = execute(t, "", append([]string{"add", "--amount", "-5"}, store...)...)
	require.Error(t, err)
	_, err = execute(t, "", "add", "--amount", "10")
	require.Error(t, err)
}
