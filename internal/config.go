package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notegraph/internal/analytics"
	"github.com/starford/notegraph/internal/indexer"
	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/sse"
	"github.com/starford/notegraph/internal/storage"
)

// Index backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

var extensionRe = regexp.MustCompile(`^\.?[A-Za-z0-9]+$`)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	Index     IndexConfig       `yaml:"index"`
	Parser    ParserConfig      `yaml:"parser"`
	Analytics AnalyticsConfig   `yaml:"analytics"`
	Watch     WatchConfig       `yaml:"watch"`
	Events    EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Vault, &c.Index, &c.Parser, &c.Analytics, &c.Watch, &c.Events,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig describes the document root.
type VaultConfig struct {
	Path      string `yaml:"path"`
	Extension string `yaml:"extension"`
	// Workers bounds concurrent reads and parses; 0 means one per CPU.
	Workers int `yaml:"workers"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extension, validation.Required, validation.Match(extensionRe)),
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

// IndexConfig selects and configures the persisted index.
type IndexConfig struct {
	Backend string       `yaml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Badger  BadgerConfig `yaml:"badger"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendSQLite, BackendBadger)),
	); err != nil {
		return err
	}
	switch c.Backend {
	case BackendSQLite:
		return c.SQLite.Validate()
	default:
		return c.Badger.Validate()
	}
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// BadgerConfig holds Badger configuration.
type BadgerConfig struct {
	Path       string `yaml:"path"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// Validate validates the Badger configuration.
func (c *BadgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(!c.InMemory, validation.Required)),
	)
}

// ParserConfig tunes note parsing.
type ParserConfig struct {
	WordsPerMinute int `yaml:"words_per_minute"`
}

// Validate validates the parser configuration.
func (c *ParserConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.WordsPerMinute, validation.Required, validation.Min(1)),
	)
}

// AnalyticsConfig tunes the analytics engine.
type AnalyticsConfig struct {
	GapThreshold   float64 `yaml:"gap_threshold"`
	MaxSuggestions int     `yaml:"max_suggestions"`
	Resolution     float64 `yaml:"resolution"`
}

// Validate validates the analytics configuration.
func (c *AnalyticsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GapThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxSuggestions, validation.Min(0)),
		validation.Field(&c.Resolution, validation.Min(0.0)),
	)
}

// Options converts the configuration to engine options.
func (c *AnalyticsConfig) Options() analytics.Options {
	return analytics.Options{
		GapThreshold:   c.GapThreshold,
		MaxSuggestions: c.MaxSuggestions,
		Resolution:     c.Resolution,
	}
}

// WatchConfig controls the file watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// EventsConfig controls the SSE stream.
type EventsConfig struct {
	GraphThrottle time.Duration `yaml:"graph_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphThrottle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:      "./vault",
			Extension: storage.DefaultExtension,
		},
		Index: IndexConfig{
			Backend: BackendSQLite,
			SQLite:  SQLiteConfig{Path: "./notegraph.db"},
			Badger:  BadgerConfig{Path: "./notegraph.badger"},
		},
		Parser: ParserConfig{
			WordsPerMinute: parser.DefaultWordsPerMinute,
		},
		Analytics: AnalyticsConfig{
			GapThreshold:   analytics.DefaultGapThreshold,
			MaxSuggestions: analytics.DefaultMaxSuggestions,
			Resolution:     analytics.DefaultResolution,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: indexer.DefaultDebounce,
		},
		Events: EventsConfig{
			GraphThrottle: sse.DefaultGraphThrottle,
		},
	}
}
