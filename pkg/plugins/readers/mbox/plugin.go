// Package mbox provides a plugin wrapper for the mbox email reader.
package mbox

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/reader/mbox"
)

// Plugin implements the ReaderPlugin interface for mbox files.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "mbox"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Read bank alert emails from an mbox export"
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
				"description": "Path to the mbox file",
			},
			"fromContains": map[string]any{
				"type":        "array",
				"description": "Keep messages whose From header contains one of these",
				"items":       map[string]any{"type": "string"},
			},
			"includeSubject": map[string]any{
				"type":        "boolean",
				"description": "Prepend the subject line to the body",
			},
		},
		"required": []string{"path"},
	}
}

// Config represents the mbox reader configuration.
type Config struct {
	Path           string   `json:"path"`
	FromContains   []string `json:"fromContains,omitempty"`
	IncludeSubject bool     `json:"includeSubject,omitempty"`
}

// NewReader creates a new mbox reader instance.
func (p *Plugin) NewReader(_ *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Reader, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling mbox config: %w", err)
	}
	return mbox.New(mbox.Config{
		Path:           cfg.Path,
		FromContains:   cfg.FromContains,
		IncludeSubject: cfg.IncludeSubject,
	}, logger)
}
