// Package config loads the docqr configuration file. YAML and TOML are
// both accepted, chosen by file extension; keys are kebab-case.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Xangel0s/docqr-Flex-sub000/placement"
)

// Common errors
var (
	ErrConfigurationError = errors.New("configuration error")
	ErrUnexpectedField    = errors.New("unexpected field in configuration")
	ErrUnknownFormat      = errors.New("unknown configuration format")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConfigurationError
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file name. Files without an extension
// are read as YAML.
func FormatOf(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml", "":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", &ConfigError{Message: fmt.Sprintf("cannot read %s", filename), Err: ErrUnknownFormat}
	}
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" toml:"level"`

	// Format is the log format (text, json, logfmt).
	Format string `yaml:"format" toml:"format"`

	// Output is the log output (stdout, stderr, or file path).
	Output string `yaml:"output" toml:"output"`
}

// SetDefaults sets default values for logging configuration.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate validates the logging configuration.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return NewConfigError("logging.level", fmt.Sprintf("unknown level %q", c.Level))
	}
	switch c.Format {
	case "text", "json", "logfmt":
	default:
		return NewConfigError("logging.format", fmt.Sprintf("unknown format %q", c.Format))
	}
	return nil
}

// PlacementConfig contains placement limits, in canonical units, and the
// editor surface size.
type PlacementConfig struct {
	SafeMargin    float64 `yaml:"safe-margin" toml:"safe-margin"`
	MinSize       float64 `yaml:"min-size" toml:"min-size"`
	MaxSize       float64 `yaml:"max-size" toml:"max-size"`
	Tolerance     float64 `yaml:"tolerance" toml:"tolerance"`
	SurfaceWidth  float64 `yaml:"surface-width" toml:"surface-width"`
	SurfaceHeight float64 `yaml:"surface-height" toml:"surface-height"`
}

// SetDefaults sets default values for placement configuration.
func (c *PlacementConfig) SetDefaults() {
	if c.MinSize == 0 {
		c.MinSize = placement.MinSize
	}
	if c.MaxSize == 0 {
		c.MaxSize = placement.MaxSize
	}
	if c.Tolerance == 0 {
		c.Tolerance = placement.SizeTolerance
	}
	if c.SurfaceWidth == 0 {
		c.SurfaceWidth = 600
	}
	if c.SurfaceHeight == 0 {
		c.SurfaceHeight = 800
	}
}

// Validate validates the placement configuration.
func (c *PlacementConfig) Validate() error {
	switch {
	case c.SafeMargin < 0:
		return NewConfigError("placement.safe-margin", "must not be negative")
	case c.MinSize <= 0 || c.MaxSize < c.MinSize:
		return NewConfigError("placement.max-size", fmt.Sprintf("size range [%g, %g] is empty", c.MinSize, c.MaxSize))
	case c.Tolerance < 0:
		return NewConfigError("placement.tolerance", "must not be negative")
	case c.SurfaceWidth <= 0 || c.SurfaceHeight <= 0:
		return NewConfigError("placement.surface-width", "surface must have a positive size")
	}
	return nil
}

// Validator returns the placement validator these limits describe.
func (c *PlacementConfig) Validator() placement.Validator {
	return placement.Validator{
		MinSize:    c.MinSize,
		MaxSize:    c.MaxSize,
		Tolerance:  c.Tolerance,
		SafeMargin: c.SafeMargin,
	}
}

// EmbeddingConfig contains embedding job configuration.
type EmbeddingConfig struct {
	// Workers bounds concurrent embeds.
	Workers int `yaml:"workers" toml:"workers"`

	// MaxExtraPages bounds the page truncation loop.
	MaxExtraPages int `yaml:"max-extra-pages" toml:"max-extra-pages"`

	// MaxOverlayPixels is the largest overlay embedded without downscaling.
	MaxOverlayPixels int `yaml:"max-overlay-pixels" toml:"max-overlay-pixels"`

	// JobTimeout bounds one job; zero disables the limit.
	JobTimeout time.Duration `yaml:"job-timeout" toml:"job-timeout"`
}

// SetDefaults sets default values for embedding configuration.
func (c *EmbeddingConfig) SetDefaults() {
	if c.Workers == 0 {
		c.Workers = 2
	}
	if c.MaxExtraPages == 0 {
		c.MaxExtraPages = 8
	}
	if c.MaxOverlayPixels == 0 {
		c.MaxOverlayPixels = 4096 * 4096
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = 2 * time.Minute
	}
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	switch {
	case c.Workers < 1:
		return NewConfigError("embedding.workers", "at least one worker is required")
	case c.MaxExtraPages < 1:
		return NewConfigError("embedding.max-extra-pages", "must be positive")
	case c.MaxOverlayPixels < 1:
		return NewConfigError("embedding.max-overlay-pixels", "must be positive")
	case c.JobTimeout < 0:
		return NewConfigError("embedding.job-timeout", "must not be negative")
	}
	return nil
}

// InspectConfig contains source inspection configuration.
type InspectConfig struct {
	// Unit is the unit reported for page dimensions.
	Unit string `yaml:"unit" toml:"unit"`
}

// SetDefaults sets default values for inspection configuration.
func (c *InspectConfig) SetDefaults() {
	if c.Unit == "" {
		c.Unit = string(placement.Points)
	}
}

// Validate validates the inspection configuration.
func (c *InspectConfig) Validate() error {
	if _, err := placement.ParseUnit(c.Unit); err != nil {
		return &ConfigError{Field: "inspect.unit", Message: err.Error(), Err: err}
	}
	return nil
}

// StorageConfig contains file storage configuration.
type StorageConfig struct {
	Root string `yaml:"root" toml:"root"`
}

// SetDefaults sets default values for storage configuration.
func (c *StorageConfig) SetDefaults() {
	if c.Root == "" {
		c.Root = "data"
	}
}

// StoreConfig contains document record store configuration.
type StoreConfig struct {
	// Driver is "memory" or "mongo".
	Driver     string `yaml:"driver" toml:"driver"`
	URI        string `yaml:"uri" toml:"uri"`
	Database   string `yaml:"database" toml:"database"`
	Collection string `yaml:"collection" toml:"collection"`
}

// SetDefaults sets default values for store configuration.
func (c *StoreConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "memory"
	}
	if c.Database == "" {
		c.Database = "docqr"
	}
	if c.Collection == "" {
		c.Collection = "documents"
	}
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	switch c.Driver {
	case "memory":
	case "mongo":
		if c.URI == "" {
			return NewConfigError("store.uri", "required when driver is mongo")
		}
	default:
		return NewConfigError("store.driver", fmt.Sprintf("unknown driver %q", c.Driver))
	}
	return nil
}

// LockConfig contains per-document lock configuration.
type LockConfig struct {
	// Driver is "local" or "redis".
	Driver   string        `yaml:"driver" toml:"driver"`
	Addr     string        `yaml:"addr" toml:"addr"`
	Password string        `yaml:"password" toml:"password"`
	DB       int           `yaml:"db" toml:"db"`
	TTL      time.Duration `yaml:"ttl" toml:"ttl"`
}

// SetDefaults sets default values for lock configuration.
func (c *LockConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "local"
	}
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
}

// Validate validates the lock configuration.
func (c *LockConfig) Validate() error {
	switch c.Driver {
	case "local", "redis":
	default:
		return NewConfigError("lock.driver", fmt.Sprintf("unknown driver %q", c.Driver))
	}
	if c.TTL < 0 {
		return NewConfigError("lock.ttl", "must not be negative")
	}
	return nil
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Addr         string        `yaml:"addr" toml:"addr"`
	ReadTimeout  time.Duration `yaml:"read-timeout" toml:"read-timeout"`
	WriteTimeout time.Duration `yaml:"write-timeout" toml:"write-timeout"`
	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64 `yaml:"max-body-bytes" toml:"max-body-bytes"`
}

// SetDefaults sets default values for server configuration.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Minute
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 32 << 20
	}
}

// CodeConfig contains retrieval code configuration.
type CodeConfig struct {
	// BaseURL is prefixed to the document id.
	BaseURL string `yaml:"base-url" toml:"base-url"`

	// Size is the image side in pixels.
	Size int `yaml:"size" toml:"size"`

	// Level is the error correction level (low, medium, high, highest).
	Level string `yaml:"level" toml:"level"`
}

// SetDefaults sets default values for code configuration.
func (c *CodeConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080/d/"
	}
	if c.Size == 0 {
		c.Size = 256
	}
	if c.Level == "" {
		c.Level = "medium"
	}
}

// Validate validates the code configuration.
func (c *CodeConfig) Validate() error {
	if c.Size < 21 {
		return NewConfigError("code.size", "must be at least 21 pixels")
	}
	switch c.Level {
	case "low", "medium", "high", "highest":
	default:
		return NewConfigError("code.level", fmt.Sprintf("unknown level %q", c.Level))
	}
	return nil
}

// EditorConfig contains editor configuration.
type EditorConfig struct {
	// WarnInterval throttles correction warnings.
	WarnInterval time.Duration `yaml:"warn-interval" toml:"warn-interval"`
}

// SetDefaults sets default values for editor configuration.
func (c *EditorConfig) SetDefaults() {
	if c.WarnInterval == 0 {
		c.WarnInterval = time.Second
	}
}

// AppConfig contains the complete application configuration.
type AppConfig struct {
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Placement PlacementConfig `yaml:"placement" toml:"placement"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Inspect   InspectConfig   `yaml:"inspect" toml:"inspect"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Lock      LockConfig      `yaml:"lock" toml:"lock"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Code      CodeConfig      `yaml:"code" toml:"code"`
	Editor    EditorConfig    `yaml:"editor" toml:"editor"`
}

// Default returns a configuration with every default set.
func Default() *AppConfig {
	c := &AppConfig{}
	c.SetDefaults()
	return c
}

// SetDefaults sets defaults on every section.
func (c *AppConfig) SetDefaults() {
	c.Logging.SetDefaults()
	c.Placement.SetDefaults()
	c.Embedding.SetDefaults()
	c.Inspect.SetDefaults()
	c.Storage.SetDefaults()
	c.Store.SetDefaults()
	c.Lock.SetDefaults()
	c.Server.SetDefaults()
	c.Code.SetDefaults()
	c.Editor.SetDefaults()
}

// Validate validates every section.
func (c *AppConfig) Validate() error {
	for _, v := range []interface{ Validate() error }{
		&c.Logging, &c.Placement, &c.Embedding, &c.Inspect, &c.Store, &c.Lock, &c.Code,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoadAppConfig loads the complete application configuration from a file.
func LoadAppConfig(filename string) (*AppConfig, error) {
	format, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseAppConfig(data, format)
}

// ParseAppConfig parses, defaults and validates configuration data.
// Unknown keys are rejected.
func ParseAppConfig(data []byte, format Format) (*AppConfig, error) {
	var config AppConfig
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document is a valid, all-default configuration.
		if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
			if strings.Contains(err.Error(), "not found in type") {
				return nil, &ConfigError{Message: err.Error(), Err: ErrUnexpectedField}
			}
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, &ConfigError{
				Message: fmt.Sprintf("unexpected keys: %s", strings.Join(keys, ", ")),
				Err:     ErrUnexpectedField,
			}
		}
	default:
		return nil, &ConfigError{Message: fmt.Sprintf("format %q", format), Err: ErrUnknownFormat}
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
