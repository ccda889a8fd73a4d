// Package gmail provides a plugin wrapper for the Gmail reader.
package gmail

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	gmailreader "github.com/thisisarunc/ArunExpenseTracker/pkg/reader/gmail"
)

// Plugin implements the ReaderPlugin interface for Gmail.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "gmail"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Read bank alert emails from Gmail"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return []string{
		gmailapi.GmailReadonlyScope,
		gmailapi.GmailModifyScope,
	}
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"queries": map[string]any{
				"type":        "array",
				"description": "Gmail searches that select bank alert emails",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name": map[string]any{
							"type":        "string",
							"description": "Query name for logs",
						},
						"query": map[string]any{
							"type":        "string",
							"description": "Gmail search query to match messages",
						},
						"enabled": map[string]any{
							"type":        "boolean",
							"description": "Whether this query is polled",
						},
					},
					"required": []string{"query", "enabled"},
				},
			},
			"interval": map[string]any{
				"type":        "integer",
				"description": "Interval in seconds between polls (default: 60)",
				"default":     60,
			},
			"once": map[string]any{
				"type":        "boolean",
				"description": "Poll once and stop instead of running forever",
			},
			"maxResults": map[string]any{
				"type":        "integer",
				"description": "Page size for message listing (default: 100)",
				"default":     100,
			},
		},
		"required": []string{"queries"},
	}
}

// Config represents the Gmail reader configuration.
type Config struct {
	Queries    []QueryConfig `json:"queries"`
	Interval   int           `json:"interval,omitempty"` // in seconds
	Once       bool          `json:"once,omitempty"`
	MaxResults int64         `json:"maxResults,omitempty"`
}

// QueryConfig represents a single Gmail query.
type QueryConfig struct {
	Name    string `json:"name"`
	Query   string `json:"query"`
	Enabled bool   `json:"enabled"`
}

// NewReader creates a new Gmail reader instance.
func (p *Plugin) NewReader(httpClient *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Reader, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling gmail config: %w", err)
	}

	queries := make([]gmailreader.Query, 0, len(cfg.Queries))
	for i, q := range cfg.Queries {
		if q.Query == "" {
			return nil, fmt.Errorf("query %d (%s): query is required", i, q.Name)
		}
		queries = append(queries, gmailreader.Query{
			Name:    q.Name,
			Query:   q.Query,
			Enabled: q.Enabled,
		})
	}

	readerCfg := gmailreader.Config{
		Queries:    queries,
		Interval:   time.Duration(cfg.Interval) * time.Second,
		Once:       cfg.Once,
		MaxResults: cfg.MaxResults,
	}

	return gmailreader.New(httpClient, readerCfg, logger)
}
