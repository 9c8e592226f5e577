// Package config loads application configuration: defaults first, then
// an optional YAML file, then REPORTPULSE_* environment variables. Env
// always wins. Job definitions live in the same file under "jobs".
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	pipeerrors "reportcli/internal/errors"
)

// envPrefix namespaces the environment variables read by Load.
const envPrefix = "REPORTPULSE"

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Jobs    []JobConfig   `yaml:"jobs" envconfig:"-"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT"`
	ReadTimeout     Duration        `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    Duration        `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     Duration        `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains API rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"` // stdout, file or both
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths.
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// Default returns the baseline configuration Load starts from.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/reportpulse.log",
		},
		Paths: PathsConfig{
			DataDir:    "data",
			ReportsDir: "reports",
			LogsDir:    "logs",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty or the file does not exist) and the
// environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, pipeerrors.ConfigError("config", fmt.Sprintf("read %s", path), err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, pipeerrors.ConfigError("config", fmt.Sprintf("parse %s", path), err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, pipeerrors.ConfigError("config", "process environment", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Job looks a job up by name.
func (c *Config) Job(name string) (JobConfig, bool) {
	for _, j := range c.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return JobConfig{}, false
}

// EnsureDirectories creates the configured directories if absent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ReportsDir, c.Paths.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return pipeerrors.ConfigError("config", fmt.Sprintf("create directory %s", dir), err)
		}
	}
	return nil
}

// ReportPath resolves a job output path against the reports directory.
func (c *Config) ReportPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.ReportsDir, name)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return pipeerrors.ConfigError("config", fmt.Sprintf("invalid server port %d", c.Server.Port), nil)
	}
	switch c.Logging.Output {
	case "stdout", "file", "both":
	default:
		return pipeerrors.ConfigError("config",
			fmt.Sprintf("logging output must be stdout, file or both, got %q", c.Logging.Output), nil)
	}
	if (c.Logging.Output == "file" || c.Logging.Output == "both") && c.Logging.FilePath == "" {
		return pipeerrors.ConfigError("config", "logging to file requires a file path", nil)
	}

	v := validator.New()
	seen := make(map[string]struct{}, len(c.Jobs))
	for i := range c.Jobs {
		job := &c.Jobs[i]
		if _, dup := seen[job.Name]; dup {
			return pipeerrors.ConfigError("config", fmt.Sprintf("duplicate job name %q", job.Name), nil)
		}
		seen[job.Name] = struct{}{}
		if err := v.Struct(job); err != nil {
			return pipeerrors.ConfigError("config", fmt.Sprintf("job %q is invalid", job.Name), err)
		}
		if err := job.check(); err != nil {
			return err
		}
	}
	return nil
}
