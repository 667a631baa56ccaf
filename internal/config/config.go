package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"linkshare/internal/deploy"
	"linkshare/pkg/cmdutil"
	"linkshare/pkg/fileutil"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is searched for in the default config locations
	FileName = "linkshare.yaml"

	DefaultHost             = "127.0.0.1"
	DefaultPort             = 5000
	DefaultDBPath           = "links.db"
	DefaultWebhookRateLimit = 30 // requests per minute per IP
	DefaultLogLevel         = "info"
)

// Environment variables that override the config file
const (
	EnvWebhookSecret = "WEBHOOK_SECRET"
	EnvDBPath        = "LINKSHARE_DB_PATH"
	EnvHost          = "LINKSHARE_HOST"
	EnvPort          = "LINKSHARE_PORT"
	EnvDeployCommand = "LINKSHARE_DEPLOY_COMMAND"
	EnvLogFile       = "LINKSHARE_LOG_FILE"
	EnvLogLevel      = "LINKSHARE_LOG_LEVEL"
)

// Config is the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Deploy   DeployConfig   `yaml:"deploy"`
	Log      LogConfig      `yaml:"log"`

	// Source is the file the config was read from, empty when none was found
	Source string `yaml:"-"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// WebhookRateLimit is requests per minute per client IP; 0 disables it
	WebhookRateLimit int `yaml:"webhook_rate_limit"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type WebhookConfig struct {
	// Secret is normally supplied through WEBHOOK_SECRET rather than the file
	Secret string `yaml:"secret"`
}

type DeployConfig struct {
	Command   string        `yaml:"command"`
	Dir       string        `yaml:"dir"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing else is specified
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             DefaultHost,
			Port:             DefaultPort,
			WebhookRateLimit: DefaultWebhookRateLimit,
		},
		Database: DatabaseConfig{Path: DefaultDBPath},
		Deploy: DeployConfig{
			Command:   deploy.DefaultCommand,
			QueueSize: deploy.DefaultQueueSize,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or the
// first one found in the default locations when path is empty), a .env file
// in the working directory, and the environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = fileutil.FindConfigOptional(FileName)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
		cfg.Source = path
	}

	// .env never overrides variables already present in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvWebhookSecret); ok {
		c.Webhook.Secret = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvHost); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvDeployCommand); v != "" {
		c.Deploy.Command = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate reports every problem at once. A missing webhook secret is not a
// configuration error here: the server starts and answers webhook calls with 500.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("  - server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.WebhookRateLimit < 0 {
		problems = append(problems, fmt.Sprintf("  - server.webhook_rate_limit cannot be negative, got %d", c.Server.WebhookRateLimit))
	}
	if c.Database.Path == "" {
		problems = append(problems, "  - database.path is required")
	}
	if _, err := cmdutil.ParseCommandString(c.Deploy.Command); err != nil {
		problems = append(problems, fmt.Sprintf("  - deploy.command: %v", err))
	}
	if c.Deploy.QueueSize < 1 {
		problems = append(problems, fmt.Sprintf("  - deploy.queue_size must be at least 1, got %d", c.Deploy.QueueSize))
	}
	if c.Deploy.Timeout < 0 {
		problems = append(problems, fmt.Sprintf("  - deploy.timeout cannot be negative, got %s", c.Deploy.Timeout))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		problems = append(problems, fmt.Sprintf("  - log.level: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// Addr returns host:port for the HTTP listener
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DeployOptions converts the deploy section for the dispatcher
func (d DeployConfig) DeployOptions() deploy.Config {
	return deploy.Config{
		Command:   d.Command,
		Dir:       d.Dir,
		QueueSize: d.QueueSize,
		Timeout:   d.Timeout,
	}
}

// SlogLevel parses the configured level name
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", l.Level)
	}
	return level, nil
}
