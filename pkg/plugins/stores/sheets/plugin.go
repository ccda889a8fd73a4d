// Package sheets provides a plugin wrapper for the Google Sheets store.
package sheets

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	sheetsstore "github.com/thisisarunc/ArunExpenseTracker/pkg/writer/sheets"
)

// Plugin implements the StorePlugin interface for Google Sheets.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "sheets"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Append the ledger to a Google Sheet"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return []string{
		sheetsapi.SpreadsheetsScope,
	}
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sheetTitle": map[string]any{
				"type":        "string",
				"description": "Title for a new spreadsheet (used if sheetId is not provided)",
			},
			"sheetId": map[string]any{
				"type":        "string",
				"description": "ID of an existing spreadsheet to use",
			},
			"sheetName": map[string]any{
				"type":        "string",
				"description": "Name of the sheet/tab within the spreadsheet",
			},
		},
		"required": []string{"sheetName"},
	}
}

// Config represents the Sheets store configuration.
type Config struct {
	SheetTitle string `json:"sheetTitle,omitempty"`
	SheetID    string `json:"sheetId,omitempty"`
	SheetName  string `json:"sheetName"`
}

// NewStore creates a new Sheets store instance.
func (p *Plugin) NewStore(httpClient *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Store, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling sheets config: %w", err)
	}

	// Validate required fields
	if cfg.SheetName == "" {
		return nil, fmt.Errorf("sheetName is required")
	}
	if cfg.SheetID == "" && cfg.SheetTitle == "" {
		return nil, fmt.Errorf("either sheetId or sheetTitle is required")
	}

	return sheetsstore.New(httpClient, sheetsstore.Config{
		SheetTitle: cfg.SheetTitle,
		SheetID:    cfg.SheetID,
		SheetName:  cfg.SheetName,
	}, logger)
}
