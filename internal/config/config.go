// ABOUTME: Configuration loading and parsing for loom
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete loom configuration
type Config struct {
	Matrix    MatrixConfig    `yaml:"matrix"`
	Database  DatabaseConfig  `yaml:"database"`
	Agent     AgentConfig     `yaml:"agent"`
	Voice     VoiceConfig     `yaml:"voice"`
	HTTP      HTTPConfig      `yaml:"http"`
	Listener  ListenerConfig  `yaml:"listener"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Skills    SkillsConfig    `yaml:"skills"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MatrixConfig holds Matrix homeserver connection settings
type MatrixConfig struct {
	Homeserver   string   `yaml:"homeserver"`
	UserID       string   `yaml:"user_id"`
	AccessToken  string   `yaml:"access_token"`
	AllowedRooms []string `yaml:"allowed_rooms"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AgentConfig holds agent process configuration
type AgentConfig struct {
	// Binary is the agent executable spawned for each exchange
	Binary string `yaml:"binary"`
	// Args are extra arguments passed before the per-exchange flags
	Args []string `yaml:"args"`
	// WorkingContext is the workspace directory handed to the agent
	WorkingContext string `yaml:"working_context"`

	// Timeout bounds a single exchange; zero means no cutoff
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// VoiceConfig holds speech transcription/synthesis settings
type VoiceConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	TranscribeModel string `yaml:"transcribe_model"`
	SpeechModel     string `yaml:"speech_model"`
	SpeechVoice     string `yaml:"speech_voice"`
}

// HTTPConfig holds the operational HTTP API settings
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// ListenerConfig holds the remote command listener settings
type ListenerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// SchedulerConfig holds proactive reminder delivery settings
type SchedulerConfig struct {
	Interval    time.Duration `yaml:"-"`
	IntervalRaw string        `yaml:"interval"`
}

// SkillsConfig points at the skill library definition file
type SkillsConfig struct {
	Path string `yaml:"path"`
}

// BridgeConfig holds inbound message handling settings
type BridgeConfig struct {
	CommandPrefix   string `yaml:"command_prefix"`
	TypingIndicator bool   `yaml:"typing_indicator"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Agent.Binary == "" {
		return fmt.Errorf("agent.binary is required")
	}
	if c.Listener.Enabled && c.Listener.Token == "" {
		return fmt.Errorf("listener.token is required when listener is enabled")
	}
	if c.Voice.Enabled && c.Voice.BaseURL == "" {
		return fmt.Errorf("voice.base_url is required when voice is enabled")
	}
	return nil
}

// applyDefaults fills in values that have sensible fallbacks. HTTP.Addr has
// none: an empty address means the HTTP API stays off.
func applyDefaults(cfg *Config) {
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = time.Minute
	}
	if cfg.Voice.TranscribeModel == "" {
		cfg.Voice.TranscribeModel = "whisper-1"
	}
	if cfg.Voice.SpeechModel == "" {
		cfg.Voice.SpeechModel = "tts-1"
	}
	if cfg.Voice.SpeechVoice == "" {
		cfg.Voice.SpeechVoice = "alloy"
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Agent.TimeoutRaw != "" {
		cfg.Agent.Timeout, err = time.ParseDuration(cfg.Agent.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing agent.timeout %q: %w", cfg.Agent.TimeoutRaw, err)
		}
	}

	if cfg.Scheduler.IntervalRaw != "" {
		cfg.Scheduler.Interval, err = time.ParseDuration(cfg.Scheduler.IntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing scheduler.interval %q: %w", cfg.Scheduler.IntervalRaw, err)
		}
	}

	return nil
}
