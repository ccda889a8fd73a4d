package plugins

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/logging"
)

type stubStore struct {
	name   string
	scopes []string
	config json.RawMessage
}

func (s *stubStore) Name() string                 { return s.name }
func (s *stubStore) Description() string          { return "stub" }
func (s *stubStore) RequiredScopes() []string     { return s.scopes }
func (s *stubStore) ConfigSchema() map[string]any { return nil }
func (s *stubStore) NewStore(_ *http.Client, config json.RawMessage, _ *slog.Logger) (api.Store, error) {
	s.config = config
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	stub := &stubStore{name: "stub", scopes: []string{"b", "a"}}
	require.NoError(t, r.RegisterStore(stub))
	require.Error(t, r.RegisterStore(stub), "duplicate names are rejected")

	t.Run("unknown plugin", func(t *testing.T) {
		_, err := r.GetStore("nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownPlugin))
		assert.Contains(t, err.Error(), "available: stub")

		_, err = r.GetReader("nope")
		assert.True(t, errors.Is(err, ErrUnknownPlugin))
	})

	t.Run("empty config becomes an object", func(t *testing.T) {
		_, err := r.CreateStore("stub", nil, nil, logging.Discard())
		require.NoError(t, err)
		assert.Equal(t, "{}", string(stub.config))
	})
}

func TestBuiltin(t *testing.T) {
	r := Builtin()

	var readers, stores []string
	for _, p := range r.ListReaders() {
		readers = append(readers, p.Name())
	}
	for _, p := range r.ListStores() {
		stores = append(stores, p.Name())
	}
	assert.Equal(t, []string{"gmail", "jsonfile", "mbox", "smsbackup"}, readers)
	assert.Equal(t, []string{"csv", "json", "postgres", "sheets", "sqlite"}, stores)

	scopes, err := r.GetAllScopes("gmail", "sheets")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.googleapis.com/auth/gmail.modify",
		"https://www.googleapis.com/auth/gmail.readonly",
		"https://www.googleapis.com/auth/spreadsheets",
	}, scopes)

	scopes, err = r.GetAllScopes("smsbackup", "sqlite")
	require.NoError(t, err)
	assert.Empty(t, scopes)
}

func TestBuiltin_CreatePlugins(t *testing.T) {
	r := Builtin()
	dir := t.TempDir()

	store, err := r.CreateStore("sqlite", nil, json.RawMessage(`{"path": "`+filepath.ToSlash(filepath.Join(dir, "ledger.db"))+`"}`), logging.Discard())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = r.CreateStore("csv", nil, nil, logging.Discard())
	require.Error(t, err, "csv needs a file path")

	reader, err := r.CreateReader("jsonfile", nil, json.RawMessage(`{"path": "sms.json"}`), logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, reader)

	_, err = r.CreateReader("gmail", nil, json.RawMessage(`{"queries": []}`), logging.Discard())
	require.Error(t, err, "gmail needs at least one query")
}
