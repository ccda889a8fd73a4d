// Package sqlite provides a plugin wrapper for the SQLite store.
package sqlite

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	sqlitestore "github.com/thisisarunc/ArunExpenseTracker/pkg/writer/sqlite"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "data/ledger.db"

// Plugin implements the StorePlugin interface for SQLite.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "sqlite"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Keep the ledger in a local SQLite database"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return nil
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the database file",
				"default":     DefaultPath,
			},
		},
	}
}

// Config represents the SQLite store configuration.
type Config struct {
	Path string `json:"path,omitempty"`
}

// NewStore creates a new SQLite store instance.
func (p *Plugin) NewStore(_ *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Store, error) {
	var cfg Config
	if len(configData) > 0 {
		if err := json.Unmarshal(configData, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling sqlite config: %w", err)
		}
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	return sqlitestore.New(sqlitestore.Config{Path: cfg.Path}, logger)
}
