// Package daemon manages the chaos daemon lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config holds all daemon configuration.
type Config struct {
	// DataDir holds state.db. Defaults to ChaosHome().
	DataDir   string          `toml:"data_dir" validate:"required"`
	API       APIConfig       `toml:"api"`
	Console   ConsoleConfig   `toml:"console"`
	Backend   BackendConfig   `toml:"backend"`
	Chat      ChatConfig      `toml:"chat"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host" validate:"required"`
	Port int    `toml:"port" validate:"gte=1,lte=65535"`
}

// ConsoleConfig describes the actor the console runs for.
type ConsoleConfig struct {
	// AllowedSystems is the access policy, in display order. Empty hides
	// every system.
	AllowedSystems  []string `toml:"allowed_systems" validate:"dive,required"`
	PreferredSystem string   `toml:"preferred_system"`
	CurrentUser     string   `toml:"current_user" validate:"required"`
}

// BackendConfig selects where systems and runs live.
type BackendConfig struct {
	// Mode is "local" (embedded SQLite catalog) or "remote" (another chaos
	// server reached over HTTP).
	Mode string `toml:"mode" validate:"oneof=local remote"`
	URL  string `toml:"url" validate:"omitempty,url"`
	// Seed installs the built-in catalog on first start in local mode.
	Seed bool `toml:"seed"`
	// SeedFile replaces the built-in catalog with a YAML file.
	SeedFile string `toml:"seed_file"`
}

// ChatConfig controls the AI analyst.
type ChatConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "demo".
	Provider string `toml:"provider" validate:"oneof=openai demo"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url" validate:"omitempty,url"`
	// APIKeyEnv names the environment variable holding the API key. Without
	// a key the demo provider is used.
	APIKeyEnv         string `toml:"api_key_env"`
	Instruction       string `toml:"instruction"`
	RequestsPerMinute int    `toml:"requests_per_minute" validate:"gte=0"`
	FailureThreshold  uint32 `toml:"failure_threshold"`
	OpenTimeout       string `toml:"open_timeout" validate:"omitempty,duration"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// TelemetryConfig controls metrics and health checks.
type TelemetryConfig struct {
	Metrics        bool   `toml:"metrics"`
	HealthInterval string `toml:"health_interval" validate:"omitempty,duration"`
}

// DefaultInstruction is the system prompt sent with every analyst turn.
const DefaultInstruction = "You are a specialized financial systems analyst AI. Be concise, professional, and data-driven."

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		DataDir: chaosHome(),
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7373,
		},
		Console: ConsoleConfig{
			AllowedSystems: []string{
				"financial-market-stability-v1",
				"supply-chain-resilience-v1",
			},
			CurrentUser: "sysadmin-001",
		},
		Backend: BackendConfig{
			Mode: "local",
			Seed: true,
		},
		Chat: ChatConfig{
			Provider:          "openai",
			APIKeyEnv:         "OPENAI_API_KEY",
			Instruction:       DefaultInstruction,
			RequestsPerMinute: 30,
			FailureThreshold:  5,
			OpenTimeout:       "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Metrics:        true,
			HealthInterval: "60s",
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks the config against its struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Backend.Mode == "remote" && c.Backend.URL == "" {
		return fmt.Errorf("invalid config: backend.url is required in remote mode")
	}
	return nil
}

// LoadConfig reads config from $CHAOS_HOME/config.toml, falling back to
// defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom reads config from path. A missing file yields defaults.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to $CHAOS_HOME/config.toml.
func SaveConfig(cfg Config) error {
	return SaveConfigTo(ConfigPath(), cfg)
}

// SaveConfigTo writes the config to path.
func SaveConfigTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the path of the config file.
func ConfigPath() string {
	return filepath.Join(chaosHome(), "config.toml")
}

// chaosHome returns the chaos data directory.
func chaosHome() string {
	if env := os.Getenv("CHAOS_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chaos")
}

// ChaosHome is exported for use by other packages.
func ChaosHome() string {
	return chaosHome()
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
