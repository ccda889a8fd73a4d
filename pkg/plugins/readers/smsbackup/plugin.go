// Package smsbackup provides a plugin wrapper for the SMS Backup & Restore reader.
package smsbackup

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/reader/smsbackup"
)

// Plugin implements the ReaderPlugin interface for SMS backup files.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "smsbackup"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Read SMS from an SMS Backup & Restore XML file"
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
				"description": "Path to the backup XML file",
			},
			"includeSent": map[string]any{
				"type":        "boolean",
				"description": "Also read sent messages (default: inbox only)",
			},
			"senders": map[string]any{
				"type":        "array",
				"description": "Only read messages from these sender addresses",
				"items":       map[string]any{"type": "string"},
			},
			"since": map[string]any{
				"type":        "string",
				"description": "Skip messages before this date (YYYY-MM-DD)",
			},
		},
		"required": []string{"path"},
	}
}

// Config represents the SMS backup reader configuration.
type Config struct {
	Path        string   `json:"path"`
	IncludeSent bool     `json:"includeSent,omitempty"`
	Senders     []string `json:"senders,omitempty"`
	Since       string   `json:"since,omitempty"`
}

// NewReader creates a new SMS backup reader instance.
func (p *Plugin) NewReader(_ *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Reader, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling smsbackup config: %w", err)
	}

	readerCfg := smsbackup.Config{
		Path:        cfg.Path,
		IncludeSent: cfg.IncludeSent,
		Senders:     cfg.Senders,
	}
	if cfg.Since != "" {
		since, err := time.ParseInLocation(time.DateOnly, cfg.Since, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parsing since: %w", err)
		}
		readerCfg.Since = since
	}

	return smsbackup.New(readerCfg, logger)
}
