// Package json provides a plugin wrapper for the JSON store.
package json

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	jsonstore "github.com/thisisarunc/ArunExpenseTracker/pkg/writer/json"
)

// Plugin implements the StorePlugin interface for JSON files.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "json"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Keep the ledger in a JSON file"
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
			"filePath": map[string]any{
				"type":        "string",
				"description": "Path to the JSON ledger file",
			},
		},
		"required": []string{"filePath"},
	}
}

// Config represents the JSON store configuration.
type Config struct {
	FilePath string `json:"filePath"`
}

// NewStore creates a new JSON store instance.
func (p *Plugin) NewStore(_ *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Store, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling json config: %w", err)
	}

	if cfg.FilePath == "" {
		return nil, fmt.Errorf("filePath is required")
	}

	return jsonstore.New(jsonstore.Config{FilePath: cfg.FilePath}, logger)
}
