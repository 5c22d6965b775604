// Package config loads runtime configuration from YAML, .env and the
// environment.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration of the server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	TLS           TLSConfig           `yaml:"tls"`
	Storage       StorageConfig       `yaml:"storage"`
	Presentation  PresentationConfig  `yaml:"presentation"`
	Converter     ConverterConfig     `yaml:"converter"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             string        `yaml:"port"`
	CORSOrigins      []string      `yaml:"cors_origins"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// TLSConfig holds HTTPS settings.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"`
}

// StorageConfig says where decks and the settings database live.
type StorageConfig struct {
	DataDir  string `yaml:"data_dir"`
	DBPath   string `yaml:"db_path"`
	DecksDir string `yaml:"decks_dir"`
	Watch    bool   `yaml:"watch"`
}

// PresentationConfig holds the coordinator defaults.
type PresentationConfig struct {
	LanguageA    string        `yaml:"language_a"`
	LanguageB    string        `yaml:"language_b"`
	SyncWindow   time.Duration `yaml:"sync_window"`
	SettleWindow time.Duration `yaml:"settle_window"`
	FadeDuration time.Duration `yaml:"fade_duration"`
	SyncMode     bool          `yaml:"sync_mode"`
}

// ConverterConfig describes the external conversion tool.
type ConverterConfig struct {
	Command        string        `yaml:"command"`
	Args           []string      `yaml:"args"`
	Width          int           `yaml:"width"`
	Height         int           `yaml:"height"`
	ThumbnailWidth int           `yaml:"thumbnail_width"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file, then .env, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	_ = godotenv.Load() // .env is optional

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns defaults suitable for a single machine.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             "8080",
			ReadTimeout:      15 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		TLS: TLSConfig{
			MinVersion: "1.2",
		},
		Storage: StorageConfig{
			DataDir: "./data",
			Watch:   true,
		},
		Presentation: PresentationConfig{
			LanguageA:    "ru",
			LanguageB:    "en",
			SyncWindow:   100 * time.Millisecond,
			SettleWindow: 500 * time.Millisecond,
			FadeDuration: 300 * time.Millisecond,
		},
		Converter: ConverterConfig{
			Command:        "pptx-convert",
			Width:          1920,
			Height:         1080,
			ThumbnailWidth: 300,
			Timeout:        10 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %q", c.Server.Port)
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls enabled but cert_file or key_file missing")
	}
	switch c.TLS.MinVersion {
	case "", "1.0", "1.1", "1.2", "1.3":
	default:
		return fmt.Errorf("invalid tls min_version: %s", c.TLS.MinVersion)
	}

	p := c.Presentation
	if p.LanguageA == "" || p.LanguageB == "" {
		return fmt.Errorf("both presentation languages are required")
	}
	if p.LanguageA == p.LanguageB {
		return fmt.Errorf("presentation languages must differ: %s", p.LanguageA)
	}
	if p.SyncWindow <= 0 {
		return fmt.Errorf("sync_window must be positive")
	}
	if p.SettleWindow < 0 || p.FadeDuration < 0 {
		return fmt.Errorf("settle_window and fade_duration must not be negative")
	}

	if c.Converter.Width <= 0 || c.Converter.Height <= 0 {
		return fmt.Errorf("invalid converter resolution: %dx%d", c.Converter.Width, c.Converter.Height)
	}

	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Observability.LogFormat)
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// DeckDir returns the conversion output directory of a language.
func (c *Config) DeckDir(lang string) string {
	return filepath.Join(c.Storage.DecksDir, lang)
}

func (c *Config) resolvePaths() {
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = filepath.Join(c.Storage.DataDir, "syncdisplay.db")
	}
	if c.Storage.DecksDir == "" {
		c.Storage.DecksDir = filepath.Join(c.Storage.DataDir, "decks")
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := firstEnv("SYNCDISPLAY_PORT", "PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("SYNCDISPLAY_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	if v := os.Getenv("TLS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse TLS_ENABLED: %w", err)
		}
		cfg.TLS.Enabled = enabled
	}
	if v := os.Getenv("TLS_CERT_FILE"); v != "" {
		cfg.TLS.CertFile = v
	}
	if v := os.Getenv("TLS_KEY_FILE"); v != "" {
		cfg.TLS.KeyFile = v
	}
	if v := os.Getenv("TLS_MIN_VERSION"); v != "" {
		cfg.TLS.MinVersion = v
	}

	if v := os.Getenv("SYNCDISPLAY_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := firstEnv("SYNCDISPLAY_DB_PATH", "DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("SYNCDISPLAY_DECKS_DIR"); v != "" {
		cfg.Storage.DecksDir = v
	}

	if v := os.Getenv("SYNCDISPLAY_LANGUAGES"); v != "" {
		langs := splitList(v)
		if len(langs) != 2 {
			return fmt.Errorf("SYNCDISPLAY_LANGUAGES needs exactly two languages, got %q", v)
		}
		cfg.Presentation.LanguageA, cfg.Presentation.LanguageB = langs[0], langs[1]
	}
	for name, dst := range map[string]*time.Duration{
		"SYNCDISPLAY_SYNC_WINDOW":     &cfg.Presentation.SyncWindow,
		"SYNCDISPLAY_SETTLE_WINDOW":   &cfg.Presentation.SettleWindow,
		"SYNCDISPLAY_FADE":            &cfg.Presentation.FadeDuration,
		"SYNCDISPLAY_CONVERT_TIMEOUT": &cfg.Converter.Timeout,
	} {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", name, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("SYNCDISPLAY_CONVERTER"); v != "" {
		cfg.Converter.Command = v
	}

	if v := firstEnv("SYNCDISPLAY_LOG_LEVEL", "LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := firstEnv("SYNCDISPLAY_LOG_FORMAT", "LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	return nil
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
