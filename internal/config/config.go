// Package config loads planloop configuration via viper, merging the
// config file, PLANLOOP_* environment variables, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete planloop configuration.
type Config struct {
	Plan    PlanConfig    `mapstructure:"plan" yaml:"plan"`
	Loop    LoopConfig    `mapstructure:"loop" yaml:"loop"`
	Host    HostConfig    `mapstructure:"host" yaml:"host"`
	Git     GitConfig     `mapstructure:"git" yaml:"git"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// PlanConfig controls where the plan file lives.
type PlanConfig struct {
	// Path is the plan file location relative to the working directory.
	Path string `mapstructure:"path" yaml:"path"`
}

// LoopConfig controls loop state and iteration behavior.
type LoopConfig struct {
	// StatePath is the loop state file, distinct from the plan file.
	StatePath string `mapstructure:"state_path" yaml:"state_path"`
	// EventsDir is the spool directory the host drops idle events into.
	EventsDir string `mapstructure:"events_dir" yaml:"events_dir"`
	// DefaultMaxIterations applies when loop start omits --max-iterations.
	// Zero means unbounded.
	DefaultMaxIterations int `mapstructure:"default_max_iterations" yaml:"default_max_iterations"`
}

// HostConfig controls how planloop reaches the agent host.
type HostConfig struct {
	// BaseURL is the host's local HTTP endpoint.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// GitConfig controls per-task commit creation.
type GitConfig struct {
	// CommitTag prefixes every commit subject: "<tag>: task <N> - <title>".
	CommitTag string `mapstructure:"commit_tag" yaml:"commit_tag"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Path is the log file; empty logs to stderr.
	Path string `mapstructure:"path" yaml:"path"`
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" yaml:"level"`
}

// SetDefaults registers default values with viper. Called before the
// config file is read so defaults hold even without one.
func SetDefaults() {
	viper.SetDefault("plan.path", ".opencode/plans/PLAN.md")
	viper.SetDefault("loop.state_path", ".opencode/planloop-loop.local.json")
	viper.SetDefault("loop.events_dir", ".opencode/planloop-events")
	viper.SetDefault("loop.default_max_iterations", 0)
	viper.SetDefault("host.base_url", "http://127.0.0.1:4096")
	viper.SetDefault("git.commit_tag", "planloop")
	viper.SetDefault("logging.path", "")
	viper.SetDefault("logging.level", "INFO")
}

// Load unmarshals the merged viper state into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ConfigDir returns the per-user config directory.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "planloop")
}

// WriteDefault writes the default configuration as YAML to path,
// refusing to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	SetDefaults()
	cfg, err := Load()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
