// Package config loads smsledger settings from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SMSLEDGER_"

// Default file locations.
const (
	ClientSecretFile = "data/client_secret.json"
	TokenFile        = "data/token.json"
)

// ErrMissingConfig is returned when a required setting is absent.
var ErrMissingConfig = errors.New("missing configuration")

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// ReaderPlugin names the message source, e.g. "smsbackup" or "gmail".
	// Environment variable: SMSLEDGER_READER
	ReaderPlugin string `koanf:"SMSLEDGER_READER"`

	// StorePlugin names the ledger store, e.g. "sqlite" or "sheets".
	// Environment variable: SMSLEDGER_STORE
	StorePlugin string `koanf:"SMSLEDGER_STORE"`

	// ReaderConfig is the reader plugin's JSON config, or @path to a file holding it.
	// Environment variable: SMSLEDGER_READER_CONFIG
	ReaderConfig string `koanf:"SMSLEDGER_READER_CONFIG"`

	// StoreConfig is the store plugin's JSON config, or @path to a file holding it.
	// Environment variable: SMSLEDGER_STORE_CONFIG
	StoreConfig string `koanf:"SMSLEDGER_STORE_CONFIG"`

	// RulesFile is an optional YAML or JSON ruleset merged over the defaults.
	// Environment variable: SMSLEDGER_RULES_FILE
	RulesFile string `koanf:"SMSLEDGER_RULES_FILE"`

	// Timezone is the IANA zone used for message dates. Defaults to local time.
	// Environment variable: SMSLEDGER_TIMEZONE
	Timezone string `koanf:"SMSLEDGER_TIMEZONE"`

	// Workers bounds parse concurrency. Zero uses GOMAXPROCS.
	// Environment variable: SMSLEDGER_WORKERS
	Workers int `koanf:"SMSLEDGER_WORKERS"`

	// BatchSize is the number of messages imported per batch.
	// Environment variable: SMSLEDGER_BATCH_SIZE
	BatchSize int `koanf:"SMSLEDGER_BATCH_SIZE"`

	// FlushInterval forces a partial batch out after this long, e.g. "30s".
	// Environment variable: SMSLEDGER_FLUSH_INTERVAL
	FlushInterval time.Duration `koanf:"SMSLEDGER_FLUSH_INTERVAL"`

	// BankSendersOnly drops messages from senders that are not bank short codes.
	// Environment variable: SMSLEDGER_BANK_SENDERS_ONLY
	BankSendersOnly bool `koanf:"SMSLEDGER_BANK_SENDERS_ONLY"`

	// SecretFile is the Google OAuth client secret.
	// Environment variable: SMSLEDGER_CLIENT_SECRET
	SecretFile string `koanf:"SMSLEDGER_CLIENT_SECRET"`

	// TokenFile caches the Google OAuth token.
	// Environment variable: SMSLEDGER_TOKEN_FILE
	TokenFile string `koanf:"SMSLEDGER_TOKEN_FILE"`
}

// Load reads SMSLEDGER_* variables from the environment and applies defaults.
// It does not validate; see Validate.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider(EnvPrefix, ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.SecretFile == "" {
		cfg.SecretFile = ClientSecretFile
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = TokenFile
	}
	return cfg, nil
}

// Validate checks that the reader and store are named and that the
// timezone and numeric settings are usable.
func (c Config) Validate() error {
	if c.ReaderPlugin == "" {
		return fmt.Errorf("%w: SMSLEDGER_READER is required", ErrMissingConfig)
	}
	if c.StorePlugin == "" {
		return fmt.Errorf("%w: SMSLEDGER_STORE is required", ErrMissingConfig)
	}
	if c.Workers < 0 || c.BatchSize < 0 || c.FlushInterval < 0 {
		return fmt.Errorf("workers, batch size and flush interval must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ReaderConfigJSON returns the reader plugin config as raw JSON.
func (c Config) ReaderConfigJSON() (json.RawMessage, error) {
	return pluginConfig("reader", c.ReaderConfig)
}

// StoreConfigJSON returns the store plugin config as raw JSON.
func (c Config) StoreConfigJSON() (json.RawMessage, error) {
	return pluginConfig("store", c.StoreConfig)
}

func pluginConfig(kind, v string) (json.RawMessage, error) {
	v = strings.TrimSpace(v)
	if path, ok := strings.CutPrefix(v, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s config: %w", kind, err)
		}
		v = strings.TrimSpace(string(b))
	}
	if v == "" {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid([]byte(v)) {
		return nil, fmt.Errorf("%s config is not valid JSON", kind)
	}
	return json.RawMessage(v), nil
}
