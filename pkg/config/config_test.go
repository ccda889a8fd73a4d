package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("SMSLEDGER_READER", "smsbackup")
	t.Setenv("SMSLEDGER_STORE", "sqlite")
	t.Setenv("SMSLEDGER_READER_CONFIG", `{"path": "sms.xml"}`)
	t.Setenv("SMSLEDGER_WORKERS", "4")
	t.Setenv("SMSLEDGER_BATCH_SIZE", "25")
	t.Setenv("SMSLEDGER_FLUSH_INTERVAL", "5s")
	t.Setenv("SMSLEDGER_BANK_SENDERS_ONLY", "true")
	t.Setenv("SMSLEDGER_TIMEZONE", "Asia/Kolkata")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "smsbackup", cfg.ReaderPlugin)
	assert.Equal(t, "sqlite", cfg.StorePlugin)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.FlushInterval)
	assert.True(t, cfg.BankSendersOnly)
	assert.Equal(t, ClientSecretFile, cfg.SecretFile)
	assert.Equal(t, TokenFile, cfg.TokenFile)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())

	raw, err := cfg.ReaderConfigJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"path": "sms.xml"}`, string(raw))

	raw, err = cfg.StoreConfigJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		missing bool
	}{
		{"no reader", Config{StorePlugin: "csv"}, true},
		{"no store", Config{ReaderPlugin: "jsonfile"}, true},
		{"bad timezone", Config{ReaderPlugin: "jsonfile", StorePlugin: "csv", Timezone: "Mars/Base"}, false},
		{"negative workers", Config{ReaderPlugin: "jsonfile", StorePlugin: "csv", Workers: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.missing, errors.Is(err, ErrMissingConfig))
		})
	}
}

func TestPluginConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"filePath": "ledger.csv"}`+"\n"), 0o600))

	raw, err := Config{StoreConfig: "@" + path}.StoreConfigJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"filePath": "ledger.csv"}`, string(raw))

	_, err = Config{StoreConfig: "@" + filepath.Join(t.TempDir(), "missing.json")}.StoreConfigJSON()
	require.Error(t, err)

	_, err = Config{ReaderConfig: "{not json"}.ReaderConfigJSON()
	require.Error(t, err)
}
