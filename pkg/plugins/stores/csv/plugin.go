// Package csv provides a plugin wrapper for the CSV store.
package csv

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	csvstore "github.com/thisisarunc/ArunExpenseTracker/pkg/writer/csv"
)

// Plugin implements the StorePlugin interface for CSV files.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "csv"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Append the ledger to a CSV file"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	// CSV store doesn't need OAuth scopes
	return nil
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filePath": map[string]any{
				"type":        "string",
				"description": "Path to the CSV ledger file",
			},
		},
		"required": []string{"filePath"},
	}
}

// Config represents the CSV store configuration.
type Config struct {
	FilePath string `json:"filePath"`
}

// NewStore creates a new CSV store instance.
func (p *Plugin) NewStore(_ *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Store, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling csv config: %w", err)
	}

	// Validate required fields
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("filePath is required")
	}

	return csvstore.New(csvstore.Config{FilePath: cfg.FilePath}, logger)
}
