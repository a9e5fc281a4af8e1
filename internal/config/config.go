// Package config loads the openplatform CLI configuration.
//
// Files ending in .yaml/.yml are parsed as YAML; anything else as JSON5 so
// comments and trailing commas are allowed. A missing file yields Default().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "OPENPLATFORM_CONFIG"
	EnvSignatureURL = "OPENPLATFORM_SIGNATURE_URL"
	EnvPageURL      = "OPENPLATFORM_PAGE_URL"

	DefaultConfigPath = "~/.openplatform/config.json5"
)

// Host modes.
const (
	HostScript  = "script"  // goja VM running local shim scripts
	HostBrowser = "browser" // Chrome page driven through go-rod
)

// Config is the root configuration.
type Config struct {
	// Platform forces an adapter ("dingtalk" or "feishu"); empty means detect.
	Platform     string          `json:"platform,omitempty" yaml:"platform,omitempty"`
	PageURL      string          `json:"pageUrl,omitempty" yaml:"pageUrl,omitempty"`
	SignatureURL string          `json:"signatureUrl,omitempty" yaml:"signatureUrl,omitempty"`
	Host         HostConfig      `json:"host" yaml:"host"`
	Signature    SignatureConfig `json:"signature" yaml:"signature"`
	Telemetry    TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Log          LogConfig       `json:"log" yaml:"log"`
}

// HostConfig selects and configures the bridge host.
type HostConfig struct {
	Mode       string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	Scripts    []string `json:"scripts,omitempty" yaml:"scripts,omitempty"` // shims evaluated before detection
	Headless   *bool    `json:"headless,omitempty" yaml:"headless,omitempty"`
	ControlURL string   `json:"controlUrl,omitempty" yaml:"controlUrl,omitempty"` // existing Chrome DevTools URL
}

// IsHeadless reports the browser headless setting (default true).
func (h HostConfig) IsHeadless() bool {
	return h.Headless == nil || *h.Headless
}

// SignatureConfig tunes requests to the signing endpoint.
type SignatureConfig struct {
	TimeoutMs     int `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	RatePerMinute int `json:"ratePerMinute,omitempty" yaml:"ratePerMinute,omitempty"` // 0 = unlimited
}

// TelemetryConfig configures OTLP trace export (only with -tags otel).
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty" yaml:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName string            `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // text or json
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Host:      HostConfig{Mode: HostScript},
		Signature: SignatureConfig{TimeoutMs: 30000},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// ResolvePath returns the config path from the flag value, the environment,
// or the default, with ~ expanded.
func ResolvePath(flagValue string) string {
	p := flagValue
	if p == "" {
		p = os.Getenv(EnvConfigPath)
	}
	if p == "" {
		p = DefaultConfigPath
	}
	return ExpandHome(p)
}

// Load reads path, applies env overrides and normalizes the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := json5.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSignatureURL); v != "" {
		c.SignatureURL = v
	}
	if v := os.Getenv(EnvPageURL); v != "" {
		c.PageURL = v
	}
}

// Validate checks values Load cannot default.
func (c *Config) Validate() error {
	if c.Platform != "" && c.Platform != "dingtalk" && c.Platform != "feishu" {
		return fmt.Errorf("platform must be dingtalk, feishu or empty, got %q", c.Platform)
	}
	switch c.Host.Mode {
	case HostScript, HostBrowser:
	default:
		return fmt.Errorf("host.mode must be %q or %q, got %q", HostScript, HostBrowser, c.Host.Mode)
	}
	if c.Host.Mode == HostBrowser && c.PageURL == "" {
		return fmt.Errorf("host.mode %q requires pageUrl", HostBrowser)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.enabled requires telemetry.endpoint")
	}
	return nil
}

// Save writes cfg to path, creating parent directories. YAML paths are
// written as YAML; everything else as JSON, which JSON5 also accepts.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
