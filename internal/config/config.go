package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// OpenAIConfig holds OpenAI API configuration.
// An empty APIKey leaves quote drafting on the keyword fallback.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PromptsPath string        `mapstructure:"prompts_path"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	DevMode        bool   `mapstructure:"dev_mode"`
	DevTokenPrefix string `mapstructure:"dev_token_prefix"`
}

// WorkflowConfig holds approval workflow settings
type WorkflowConfig struct {
	MaxProcessingDays        int               `mapstructure:"max_processing_days"`
	EscalationProcessingDays int               `mapstructure:"escalation_processing_days"`
	AllowParallelSteps       bool              `mapstructure:"allow_parallel_steps"`
	EscalationMap            map[string]string `mapstructure:"escalation_map"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file, an optional .env
// file and the environment, in increasing order of precedence.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// gotenv never overrides variables that are already set
		if err := gotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CPQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/cpq.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("openai.max_tokens", 800)
	v.SetDefault("openai.timeout", 30*time.Second)
	v.SetDefault("openai.prompts_path", "")

	// Auth defaults
	v.SetDefault("auth.dev_mode", false)
	v.SetDefault("auth.dev_token_prefix", "dev-token-")

	// Workflow defaults
	v.SetDefault("workflow.max_processing_days", 3)
	v.SetDefault("workflow.escalation_processing_days", 2)
	v.SetDefault("workflow.allow_parallel_steps", false)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the unprefixed variables deployments already use
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"openai.api_key":  {"CPQ_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"auth.jwt_secret": {"CPQ_AUTH_JWT_SECRET", "JWT_SECRET", "SUPABASE_JWT_SECRET"},
		"database.path":   {"CPQ_DATABASE_PATH", "DATABASE_PATH"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}

	if !validLogLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("logger.level %q is not one of debug, info, warn, error", c.Logger.Level)
	}

	if !c.Auth.DevMode && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required unless auth.dev_mode is enabled")
	}

	for from, to := range c.Workflow.EscalationMap {
		if _, ok := entity.ParsePersona(from); !ok {
			return fmt.Errorf("workflow.escalation_map: unknown persona %q", from)
		}
		if _, ok := entity.ParsePersona(to); !ok {
			return fmt.Errorf("workflow.escalation_map: unknown persona %q", to)
		}
	}

	return nil
}

// EnsureDataDir creates the directory holding the database file
func (c *Config) EnsureDataDir() error {
	dir := filepath.Dir(c.Database.Path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
