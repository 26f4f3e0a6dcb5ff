// Package config loads cetcompare settings from defaults, an optional YAML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "cetcompare.yaml"

// Config is the full application configuration.
type Config struct {
	DataDir  string       `yaml:"data_dir"`
	DataURL  string       `yaml:"data_url"`
	LogLevel string       `yaml:"log_level"`
	Server   ServerConfig `yaml:"server"`
	Client   ClientConfig `yaml:"client"`
	Chat     ChatConfig   `yaml:"chat"`
}

// ServerConfig configures the HTTP backend.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	AllowedOrigin  string        `yaml:"allowed_origin"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Watch          bool          `yaml:"watch"`
}

// ClientConfig locates the backend for the terminal UI and CLI commands.
type ClientConfig struct {
	APIURL     string        `yaml:"api_url"`
	CompareURL string        `yaml:"compare_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ChatConfig selects the assistant provider. Keys only come from the environment.
type ChatConfig struct {
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	GeminiAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:  ".",
		LogLevel: "info",
		Server: ServerConfig{
			Port:           5000,
			AllowedOrigin:  "http://localhost:5173",
			RequestTimeout: 60 * time.Second,
		},
		Client: ClientConfig{
			APIURL:  "http://localhost:5000/api",
			Timeout: 30 * time.Second,
		},
		Chat: ChatConfig{
			Provider: "auto",
		},
	}
}

// Load builds the configuration. An explicit path must exist; without
// one, DefaultFile is used when present.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize derives dependent settings and validates. Call it again after
// changing a loaded config, e.g. from command line flags.
func (c *Config) Finalize() error {
	c.fillDerived()
	return c.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.DataDir, "CET_DATA_DIR")
	setString(&c.DataURL, "CET_DATA_URL")
	setString(&c.LogLevel, "CET_LOG_LEVEL")
	setString(&c.Server.AllowedOrigin, "CET_ALLOWED_ORIGIN")
	setString(&c.Client.APIURL, "CET_API_URL")
	setString(&c.Client.CompareURL, "CET_COMPARE_URL")
	setString(&c.Chat.Provider, "CET_CHAT_PROVIDER")
	setString(&c.Chat.Model, "CET_CHAT_MODEL")
	setString(&c.Chat.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.Chat.AnthropicAPIKey, "ANTHROPIC_API_KEY")

	if v := os.Getenv("CET_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CET_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("CET_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CET_TIMEOUT %q: %w", v, err)
		}
		c.Client.Timeout = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (c *Config) fillDerived() {
	c.Client.APIURL = strings.TrimRight(c.Client.APIURL, "/")
	if c.Client.CompareURL == "" {
		c.Client.CompareURL = c.Client.APIURL + "/compare"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir cannot be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Client.Timeout <= 0 {
		return errors.New("client.timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	switch strings.ToLower(c.Chat.Provider) {
	case "auto", "gemini", "anthropic", "fallback":
	default:
		return fmt.Errorf("chat.provider %q is not one of auto, gemini, anthropic, fallback", c.Chat.Provider)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}
