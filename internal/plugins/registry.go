// Package plugins provides a plugin registry for message readers and ledger stores.
package plugins

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
)

// ErrUnknownPlugin is returned when a plugin name is not registered.
var ErrUnknownPlugin = errors.New("unknown plugin")

// ReaderPlugin defines the interface for message reader plugins.
type ReaderPlugin interface {
	// Name returns the plugin name (e.g., "gmail", "smsbackup").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// ConfigSchema returns a JSON schema describing the plugin's configuration.
	ConfigSchema() map[string]any
	// NewReader creates a new reader instance with the given config.
	NewReader(httpClient *http.Client, config json.RawMessage, logger *slog.Logger) (api.Reader, error)
}

// StorePlugin defines the interface for ledger store plugins.
type StorePlugin interface {
	// Name returns the plugin name (e.g., "sqlite", "csv").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// ConfigSchema returns a JSON schema describing the plugin's configuration.
	ConfigSchema() map[string]any
	// NewStore creates a new store instance with the given config.
	NewStore(httpClient *http.Client, config json.RawMessage, logger *slog.Logger) (api.Store, error)
}

// Registry manages available reader and store plugins.
type Registry struct {
	readers map[string]ReaderPlugin
	stores  map[string]StorePlugin
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		readers: make(map[string]ReaderPlugin),
		stores:  make(map[string]StorePlugin),
	}
}

// RegisterReader registers a reader plugin.
func (r *Registry) RegisterReader(plugin ReaderPlugin) error {
	name := plugin.Name()
	if _, exists := r.readers[name]; exists {
		return fmt.Errorf("reader plugin %q already registered", name)
	}
	r.readers[name] = plugin
	return nil
}

// RegisterStore registers a store plugin.
func (r *Registry) RegisterStore(plugin StorePlugin) error {
	name := plugin.Name()
	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("store plugin %q already registered", name)
	}
	r.stores[name] = plugin
	return nil
}

// GetReader returns a reader plugin by name.
func (r *Registry) GetReader(name string) (ReaderPlugin, error) {
	plugin, exists := r.readers[name]
	if !exists {
		return nil, fmt.Errorf("reader %q: %w (available: %s)", name, ErrUnknownPlugin, strings.Join(r.readerNames(), ", "))
	}
	return plugin, nil
}

// GetStore returns a store plugin by name.
func (r *Registry) GetStore(name string) (StorePlugin, error) {
	plugin, exists := r.stores[name]
	if !exists {
		return nil, fmt.Errorf("store %q: %w (available: %s)", name, ErrUnknownPlugin, strings.Join(r.storeNames(), ", "))
	}
	return plugin, nil
}

// ListReaders returns all registered reader plugins sorted by name.
func (r *Registry) ListReaders() []ReaderPlugin {
	plugins := make([]ReaderPlugin, 0, len(r.readers))
	for _, name := range r.readerNames() {
		plugins = append(plugins, r.readers[name])
	}
	return plugins
}

// ListStores returns all registered store plugins sorted by name.
func (r *Registry) ListStores() []StorePlugin {
	plugins := make([]StorePlugin, 0, len(r.stores))
	for _, name := range r.storeNames() {
		plugins = append(plugins, r.stores[name])
	}
	return plugins
}

func (r *Registry) readerNames() []string {
	names := make([]string, 0, len(r.readers))
	for name := range r.readers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) storeNames() []string {
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GetAllScopes returns all OAuth scopes required by the given reader and store names.
func (r *Registry) GetAllScopes(readerName, storeName string) ([]string, error) {
	reader, err := r.GetReader(readerName)
	if err != nil {
		return nil, err
	}

	store, err := r.GetStore(storeName)
	if err != nil {
		return nil, err
	}

	// Combine and deduplicate scopes
	scopes := append(slices.Clone(reader.RequiredScopes()), store.RequiredScopes()...)
	slices.Sort(scopes)
	return slices.Compact(scopes), nil
}

// CreateReader creates a reader instance from a plugin.
func (r *Registry) CreateReader(name string, httpClient *http.Client, config json.RawMessage, logger *slog.Logger) (api.Reader, error) {
	plugin, err := r.GetReader(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewReader(httpClient, orEmpty(config), logger)
}

// CreateStore creates a store instance from a plugin.
func (r *Registry) CreateStore(name string, httpClient *http.Client, config json.RawMessage, logger *slog.Logger) (api.Store, error) {
	plugin, err := r.GetStore(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewStore(httpClient, orEmpty(config), logger)
}

// orEmpty lets plugins unmarshal an unset config as an empty object.
func orEmpty(config json.RawMessage) json.RawMessage {
	if len(strings.TrimSpace(string(config))) == 0 {
		return json.RawMessage("{}")
	}
	return config
}
