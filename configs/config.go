package configs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "TOOLCALL"

	// DefaultConfigFile is read when TOOLCALL_CONFIG_FILE is unset. It may be absent.
	DefaultConfigFile = "configs/toolcall.yaml"
)

// Config holds the final application configuration.
// Precedence, lowest first: field defaults, the YAML file, TOOLCALL_* environment variables.
type Config struct {
	ConfigFilePath string `envconfig:"CONFIG_FILE" yaml:"-"`

	LogLevel string `envconfig:"LOG_LEVEL" yaml:"log_level" default:"info"`
	// LogFile receives server logs in serve mode, keeping stdout free for protocol traffic.
	LogFile string `envconfig:"LOG_FILE" yaml:"log_file" default:"mcp_server.log"`

	ServerName    string `envconfig:"SERVER_NAME" yaml:"server_name" default:"Langchain-MCP-Server"`
	ServerVersion string `envconfig:"SERVER_VERSION" yaml:"server_version" default:"1.0.0"`
	ClientName    string `envconfig:"CLIENT_NAME" yaml:"client_name" default:"Langchain-MCP-Client"`
	ClientVersion string `envconfig:"CLIENT_VERSION" yaml:"client_version" default:"1.0.0"`

	ToolTimeout        time.Duration `envconfig:"TOOL_TIMEOUT" yaml:"tool_timeout" default:"30s"`
	CallTimeout        time.Duration `envconfig:"CALL_TIMEOUT" yaml:"call_timeout" default:"60s"`
	MaxConcurrentTools int           `envconfig:"MAX_CONCURRENT_TOOLS" yaml:"max_concurrent_tools" default:"0"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" default:"5s"`

	WorkDirectory         string   `envconfig:"WORK_DIRECTORY" yaml:"work_directory" default:"./workspace"`
	MaxFileSize           int64    `envconfig:"MAX_FILE_SIZE" yaml:"max_file_size" default:"1048576"`
	AllowedFileExtensions []string `envconfig:"ALLOWED_FILE_EXTENSIONS" yaml:"allowed_file_extensions" default:".txt,.md,.json,.csv,.log"`

	OtelExporterOtlpEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" yaml:"otel_exporter_otlp_endpoint"`
	OtelExporterOtlpInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" yaml:"otel_exporter_otlp_insecure" default:"true"`
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerName == "" {
		errs = append(errs, errors.New("server name must not be empty"))
	}
	if c.ToolTimeout <= 0 {
		errs = append(errs, fmt.Errorf("tool timeout must be positive, got %s", c.ToolTimeout))
	}
	if c.CallTimeout < 0 {
		errs = append(errs, fmt.Errorf("call timeout must not be negative, got %s", c.CallTimeout))
	}
	if c.MaxConcurrentTools < 0 {
		errs = append(errs, fmt.Errorf("max concurrent tools must not be negative, got %d", c.MaxConcurrentTools))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("max file size must be positive, got %d", c.MaxFileSize))
	}
	for _, ext := range c.AllowedFileExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("file extension %q must start with a dot", ext))
		}
	}
	return errors.Join(errs...)
}

// Load reads the environment, then the YAML file it points to, then applies
// explicitly set environment variables on top of the file.
func Load() (*Config, error) {
	// 1. Defaults plus environment, primarily to find the config file.
	var envCfg Config
	if err := envconfig.Process(envPrefix, &envCfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	cfg := envCfg
	path := cfg.ConfigFilePath
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	// 2. The file overrides defaults.
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", path, err)
		}
		cfg.ConfigFilePath = path
		slog.Debug("Loaded configuration from file.", "path", path)
	case errors.Is(err, os.ErrNotExist) && !explicit:
		slog.Debug("No config file found, using defaults/env vars only.", "path", path)
	default:
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	// 3. Explicit environment variables override the file.
	overlayEnv(&cfg, &envCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// overlayEnv copies every field whose environment variable is set from env to dst.
func overlayEnv(dst, env *Config) {
	dv := reflect.ValueOf(dst).Elem()
	ev := reflect.ValueOf(env).Elem()
	t := dv.Type()
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("envconfig")
		if key == "" {
			continue
		}
		if _, ok := os.LookupEnv(envPrefix + "_" + key); ok {
			dv.Field(i).Set(ev.Field(i))
		}
	}
}
