// Package jsonfile provides a plugin wrapper for the JSON SMS dump reader.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/reader/jsonfile"
)

// Plugin implements the ReaderPlugin interface for JSON SMS dumps.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "jsonfile"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Read SMS from a JSON array of {id, address, body, date}"
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
				"description": "Path to the JSON dump",
			},
		},
		"required": []string{"path"},
	}
}

// Config represents the JSON dump reader configuration.
type Config struct {
	Path string `json:"path"`
}

// NewReader creates a new JSON dump reader instance.
func (p *Plugin) NewReader(_ *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Reader, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling jsonfile config: %w", err)
	}
	return jsonfile.New(jsonfile.Config{Path: cfg.Path}, logger)
}
