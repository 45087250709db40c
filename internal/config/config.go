package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/is57/scorebot/internal/adapters/telegram"
	"github.com/is57/scorebot/internal/logging"
	"github.com/is57/scorebot/internal/scoring"
	"github.com/is57/scorebot/internal/storage"
)

// Environment variables that override the config file.
const (
	EnvBotToken    = "BOT_TOKEN"
	EnvAdminUserID = "ADMIN_USER_ID"
	EnvAPIBaseURL  = "IS57_API_BASE_URL"
	EnvDataDir     = "SCOREBOT_DATA_DIR"
)

// ErrMissingBotToken is returned when the bot is started without a token.
var ErrMissingBotToken = errors.New("telegram bot token is not set (BOT_TOKEN)")

// Config represents the main configuration
type Config struct {
	Telegram    *telegram.Config   `yaml:"telegram"`
	AdminUserID int64              `yaml:"admin_user_id"`
	Scoring     *ScoringConfig     `yaml:"scoring"`
	Storage     *StorageConfig     `yaml:"storage"`
	Competition *CompetitionConfig `yaml:"competition"`
	Maintenance *MaintenanceConfig `yaml:"maintenance"`
	Logging     *logging.Config    `yaml:"logging"`
}

// ScoringConfig holds the scoring backend connection settings
type ScoringConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig selects where the allow-lists, token and selections live
type StorageConfig struct {
	Backend      string `yaml:"backend"`       // file or sqlite
	Path         string `yaml:"path"`          // data directory
	SQLiteDriver string `yaml:"sqlite_driver"` // sqlite (pure Go) or sqlite3 (cgo)
}

// CompetitionConfig lists the values accepted when creating teams and tasks
type CompetitionConfig struct {
	Subjects  []string `yaml:"subjects"`
	Buildings []int    `yaml:"buildings"`
}

// MaintenanceConfig holds cron schedules for background jobs
type MaintenanceConfig struct {
	Timezone         string        `yaml:"timezone"`
	RateLimitCleanup string        `yaml:"rate_limit_cleanup"`
	RateLimitMaxAge  time.Duration `yaml:"rate_limit_max_age"`
	StateSummary     string        `yaml:"state_summary"`
}

// DefaultSubjects are the subjects known to the scoring backend.
var DefaultSubjects = []string{
	"биология",
	"география",
	"информатика",
	"история",
	"лингвистика",
	"литература",
	"математика",
	"мхк",
	"физика",
	"химия",
	"экономика",
	"игровая",
	"спортивная",
	"творческое задание",
	"английский язык",
}

// DefaultBuildings are the school buildings teams belong to.
var DefaultBuildings = []int{1, 3}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Telegram: telegram.DefaultConfig(),
		Scoring: &ScoringConfig{
			BaseURL: scoring.DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
		Storage: &StorageConfig{
			Backend:      storage.BackendFile,
			Path:         filepath.Join(homeDir, ".scorebot", "data"),
			SQLiteDriver: storage.DriverModernc,
		},
		Competition: &CompetitionConfig{
			Subjects:  append([]string(nil), DefaultSubjects...),
			Buildings: append([]int(nil), DefaultBuildings...),
		},
		Maintenance: &MaintenanceConfig{
			RateLimitCleanup: "@hourly",
			RateLimitMaxAge:  time.Hour,
			StateSummary:     "0 */6 * * *",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file and applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	config.fillDefaults()

	config.Storage.Path = expandPath(config.Storage.Path)
	if config.Logging.Output != "stdout" && config.Logging.Output != "stderr" {
		config.Logging.Output = expandPath(config.Logging.Output)
	}

	return config, nil
}

// applyEnv overrides file values with the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBotToken); ok && v != "" {
		c.Telegram.BotToken = v
	}
	if v, ok := lookup(EnvAdminUserID); ok && v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvAdminUserID, v, err)
		}
		c.AdminUserID = id
	}
	if v, ok := lookup(EnvAPIBaseURL); ok && v != "" {
		c.Scoring.BaseURL = v
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.Storage.Path = v
	}
	return nil
}

// fillDefaults restores sections a config file set to null.
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.Telegram == nil {
		c.Telegram = d.Telegram
	}
	if c.Telegram.RateLimit == nil {
		c.Telegram.RateLimit = d.Telegram.RateLimit
	}
	if c.Scoring == nil {
		c.Scoring = d.Scoring
	}
	if c.Storage == nil {
		c.Storage = d.Storage
	}
	if c.Competition == nil {
		c.Competition = d.Competition
	}
	if c.Maintenance == nil {
		c.Maintenance = d.Maintenance
	}
	if c.Logging == nil {
		c.Logging = d.Logging
	}
}

// Save saves configuration to a file. The file may hold the bot token, so
// it is only readable by the owner.
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".scorebot", "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate checks everything except the bot token, which only the polling
// bot needs; see ValidateForPolling.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case storage.BackendFile, storage.BackendSQLite:
	default:
		return fmt.Errorf("invalid storage backend %q (want %s or %s)", c.Storage.Backend, storage.BackendFile, storage.BackendSQLite)
	}
	if c.Storage.Backend == storage.BackendSQLite {
		switch c.Storage.SQLiteDriver {
		case storage.DriverModernc, storage.DriverMattn:
		default:
			return fmt.Errorf("invalid sqlite driver %q (want %s or %s)", c.Storage.SQLiteDriver, storage.DriverModernc, storage.DriverMattn)
		}
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage path is required")
	}

	if len(c.Competition.Subjects) == 0 {
		return fmt.Errorf("at least one subject is required")
	}
	for _, s := range c.Competition.Subjects {
		if s != strings.ToLower(strings.TrimSpace(s)) || s == "" {
			return fmt.Errorf("subject %q must be lower-case without surrounding spaces", s)
		}
	}
	if len(c.Competition.Buildings) == 0 {
		return fmt.Errorf("at least one building is required")
	}

	if c.Telegram.Workers < 1 {
		return fmt.Errorf("telegram workers must be at least 1, got %d", c.Telegram.Workers)
	}
	if c.Telegram.PollTimeout < 0 {
		return fmt.Errorf("telegram poll timeout must not be negative")
	}
	if rl := c.Telegram.RateLimit; rl.Enabled && rl.MessagesPerMinute < 1 {
		return fmt.Errorf("rate limit messages_per_minute must be at least 1")
	}

	for name, spec := range map[string]string{
		"rate_limit_cleanup": c.Maintenance.RateLimitCleanup,
		"state_summary":      c.Maintenance.StateSummary,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid maintenance.%s schedule %q: %w", name, spec, err)
		}
	}
	return nil
}

// ValidateForPolling runs Validate and additionally requires a bot token.
func (c *Config) ValidateForPolling() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return ErrMissingBotToken
	}
	return c.Validate()
}
