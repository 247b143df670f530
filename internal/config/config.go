package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/martinemde/caveagent/agentloop"
	"github.com/martinemde/caveagent/game"
)

const (
	defaultProvider        = "ollama"
	defaultModel           = "phi4-mini"
	defaultLogLevel        = "info"
	defaultMaxNewTokens    = agentloop.DefaultMaxNewTokens
	defaultReadDelay       = game.DefaultReadDelay
	defaultReadBufferBytes = game.DefaultReadBufferSize
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".caveagent"

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Config stores runtime settings loaded from TOML files and flags.
type Config struct {
	Game            string
	GameArgs        []string
	GameDir         string
	ReadDelay       time.Duration
	ReadBufferBytes int

	Provider       string
	Model          string
	APIKeyEnv      string
	MaxNewTokens   int
	ReturnFullText bool
	Temperature    *float64
	MaxRetries     int

	MaxTurns      int
	Instructions  string
	Bootstrap     []string
	Context       agentloop.ContextPolicy
	LoopDetection agentloop.LoopDetectionConfig

	LogLevel string
	LogDir   string
}

type fileConfig struct {
	Game            *string             `toml:"game"`
	GameArgs        *[]string           `toml:"game_args"`
	GameDir         *string             `toml:"game_dir"`
	ReadDelay       *string             `toml:"read_delay"`
	ReadBufferBytes *int                `toml:"read_buffer_bytes"`
	Provider        *string             `toml:"provider"`
	Model           *string             `toml:"model"`
	APIKeyEnv       *string             `toml:"api_key_env"`
	MaxNewTokens    *int                `toml:"max_new_tokens"`
	ReturnFullText  *bool               `toml:"return_full_text"`
	Temperature     *float64            `toml:"temperature"`
	MaxRetries      *int                `toml:"max_retries"`
	MaxTurns        *int                `toml:"max_turns"`
	Instructions    *string             `toml:"instructions"`
	Bootstrap       *[]string           `toml:"bootstrap"`
	Context         *contextConfig      `toml:"context"`
	LoopDetection   *loopDetectionTable `toml:"loop_detection"`
	LogLevel        *string             `toml:"log_level"`
	LogDir          *string             `toml:"log_dir"`
}

type contextConfig struct {
	Policy          *string `toml:"policy"`
	MaxMessages     *int    `toml:"max_messages"`
	MaxMessageChars *int    `toml:"max_message_chars"`
}

type loopDetectionTable struct {
	Enabled *bool `toml:"enabled"`
	Window  *int  `toml:"window"`
}

// Load reads config from ~/.caveagent/config.toml, overlays a project-local
// .caveagent/config.toml and then explicitPath when it is set. Missing home
// and project files are skipped; a missing explicit file is an error.
func Load(ctx context.Context, explicitPath string) (*Config, error) {
	cfg := Defaults()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	paths := []string{
		filepath.Join(homeDir, DirName, "config.toml"),
		filepath.Join(workingDir, DirName, "config.toml"),
	}
	for _, path := range paths {
		if err := overlayFromFile(&cfg, path, false); err != nil {
			return nil, err
		}
	}

	if explicitPath = strings.TrimSpace(explicitPath); explicitPath != "" {
		if err := overlayFromFile(&cfg, explicitPath, true); err != nil {
			return nil, err
		}
	}

	_ = ctx
	return &cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Game:            game.DefaultExecutable,
		ReadDelay:       defaultReadDelay,
		ReadBufferBytes: defaultReadBufferBytes,
		Provider:        defaultProvider,
		Model:           defaultModel,
		MaxNewTokens:    defaultMaxNewTokens,
		Bootstrap:       agentloop.DefaultBootstrap(),
		Context:         agentloop.DefaultContextPolicy(),
		LoopDetection:   agentloop.LoopDetectionConfig{Window: agentloop.DefaultLoopDetectionWindow},
		LogLevel:        defaultLogLevel,
	}
}

func overlayFromFile(cfg *Config, path string, required bool) error {
	if cfg == nil {
		return errors.New("config must not be nil")
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("stat config file %q: %w", path, err)
	}

	var decoded fileConfig
	meta, err := toml.DecodeFile(path, &decoded)
	if err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("decode config file %q: unsupported key %q", path, undecoded[0].String())
	}

	if err := applyGameOverrides(cfg, decoded, path); err != nil {
		return err
	}
	applyModelOverrides(cfg, decoded)
	applyLoopOverrides(cfg, decoded)
	return nil
}

func applyGameOverrides(cfg *Config, decoded fileConfig, path string) error {
	if decoded.Game != nil {
		cfg.Game = strings.TrimSpace(*decoded.Game)
	}
	if decoded.GameArgs != nil {
		cfg.GameArgs = append([]string(nil), (*decoded.GameArgs)...)
	}
	if decoded.GameDir != nil {
		cfg.GameDir = strings.TrimSpace(*decoded.GameDir)
	}
	if decoded.ReadDelay != nil {
		value, err := parseDuration(*decoded.ReadDelay, "read_delay", path)
		if err != nil {
			return err
		}
		cfg.ReadDelay = value
	}
	if decoded.ReadBufferBytes != nil {
		cfg.ReadBufferBytes = *decoded.ReadBufferBytes
	}
	return nil
}

func applyModelOverrides(cfg *Config, decoded fileConfig) {
	if decoded.Provider != nil {
		cfg.Provider = normalizeKey(*decoded.Provider)
	}
	if decoded.Model != nil {
		cfg.Model = strings.TrimSpace(*decoded.Model)
	}
	if decoded.APIKeyEnv != nil {
		cfg.APIKeyEnv = strings.TrimSpace(*decoded.APIKeyEnv)
	}
	if decoded.MaxNewTokens != nil {
		cfg.MaxNewTokens = *decoded.MaxNewTokens
	}
	if decoded.ReturnFullText != nil {
		cfg.ReturnFullText = *decoded.ReturnFullText
	}
	if decoded.Temperature != nil {
		temp := *decoded.Temperature
		cfg.Temperature = &temp
	}
	if decoded.MaxRetries != nil {
		cfg.MaxRetries = *decoded.MaxRetries
	}
	if decoded.Instructions != nil {
		cfg.Instructions = *decoded.Instructions
	}
}

func applyLoopOverrides(cfg *Config, decoded fileConfig) {
	if decoded.MaxTurns != nil {
		cfg.MaxTurns = *decoded.MaxTurns
	}
	if decoded.Bootstrap != nil {
		cfg.Bootstrap = append([]string{}, (*decoded.Bootstrap)...)
	}
	if c := decoded.Context; c != nil {
		if c.Policy != nil {
			cfg.Context.Kind = contextKind(*c.Policy)
		}
		if c.MaxMessages != nil {
			cfg.Context.MaxMessages = *c.MaxMessages
		}
		if c.MaxMessageChars != nil {
			cfg.Context.MaxMessageChars = *c.MaxMessageChars
		}
	}
	if l := decoded.LoopDetection; l != nil {
		if l.Enabled != nil {
			cfg.LoopDetection.Enabled = *l.Enabled
		}
		if l.Window != nil {
			cfg.LoopDetection.Window = *l.Window
		}
	}
	if decoded.LogLevel != nil {
		cfg.LogLevel = normalizeKey(*decoded.LogLevel)
	}
	if decoded.LogDir != nil {
		cfg.LogDir = strings.TrimSpace(*decoded.LogDir)
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config must not be nil")
	}
	switch {
	case c.Game == "":
		return errors.New("game must not be empty")
	case c.ReadDelay < 0:
		return fmt.Errorf("read_delay must not be negative, got %s", c.ReadDelay)
	case c.ReadBufferBytes <= 0:
		return fmt.Errorf("read_buffer_bytes must be > 0, got %d", c.ReadBufferBytes)
	case c.Provider == "":
		return errors.New("provider must not be empty")
	case c.MaxNewTokens <= 0:
		return fmt.Errorf("max_new_tokens must be > 0, got %d", c.MaxNewTokens)
	case c.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	case c.MaxTurns < 0:
		return fmt.Errorf("max_turns must not be negative, got %d", c.MaxTurns)
	case !validLogLevels[c.LogLevel]:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	case c.LoopDetection.Enabled && c.LoopDetection.Window < 2:
		return fmt.Errorf("loop_detection.window must be at least 2, got %d", c.LoopDetection.Window)
	}
	if err := c.Context.Validate(); err != nil {
		return err
	}
	return nil
}

// APIKey returns the provider key from the configured environment
// variable, or from the provider's conventional variable.
func (c *Config) APIKey() string {
	name := c.APIKeyEnv
	if name == "" {
		name = DefaultAPIKeyEnv(c.Provider)
	}
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}

// DefaultAPIKeyEnv names the conventional key variable for provider. Local
// providers have none.
func DefaultAPIKeyEnv(provider string) string {
	switch normalizeKey(provider) {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	default:
		return ""
	}
}

func parseDuration(value, key, path string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s in %q: %w", key, path, err)
	}
	return parsed, nil
}

func contextKind(value string) agentloop.ContextPolicyKind {
	return agentloop.ContextPolicyKind(normalizeKey(value))
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
