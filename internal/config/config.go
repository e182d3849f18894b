// Package config handles Kai configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kaiassist/kai/internal/core"
)

// Storage backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Core
	Storage     StorageConfig     `json:"storage" mapstructure:"storage"`
	Tasks       TaskConfig        `json:"tasks" mapstructure:"tasks"`
	Personality PersonalityConfig `json:"personality" mapstructure:"personality"`

	// Collaborators
	Research ResearchConfig `json:"research" mapstructure:"research"`
	Mail     MailConfig     `json:"mail" mapstructure:"mail"`

	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig for HTTP server
type ServerConfig struct {
	Port int    `json:"port" mapstructure:"port"`
	Host string `json:"host" mapstructure:"host"`
}

// StorageConfig selects where tasks and the memory log are kept
type StorageConfig struct {
	Backend    string `json:"backend" mapstructure:"backend"` // "file" or "sqlite"
	Driver     string `json:"driver" mapstructure:"driver"`   // sql driver name: "sqlite" or "sqlite3"
	TasksFile  string `json:"tasks_file" mapstructure:"tasks_file"`
	MemoryFile string `json:"memory_file" mapstructure:"memory_file"`
	DBFile     string `json:"db_file" mapstructure:"db_file"`
}

// TaskConfig for reminders
type TaskConfig struct {
	DelayUnit string        `json:"delay_unit" mapstructure:"delay_unit"` // "seconds" or "minutes"
	Tick      time.Duration `json:"tick" mapstructure:"tick"`
}

// PersonalityConfig for the response styling engine
type PersonalityConfig struct {
	DefaultMode string `json:"default_mode" mapstructure:"default_mode"`
	TableFile   string `json:"table_file" mapstructure:"table_file"` // YAML transform table, optional
	Watch       bool   `json:"watch" mapstructure:"watch"`           // reload table on change
}

// ResearchConfig for topic summaries
type ResearchConfig struct {
	BaseURL       string        `json:"base_url" mapstructure:"base_url"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxParagraphs int           `json:"max_paragraphs" mapstructure:"max_paragraphs"`
	UserAgent     string        `json:"user_agent" mapstructure:"user_agent"`
}

// MailConfig for outbound email
type MailConfig struct {
	SMTPHost    string        `json:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort    int           `json:"smtp_port" mapstructure:"smtp_port"`
	Username    string        `json:"username" mapstructure:"username"`
	Password    string        `json:"password" mapstructure:"password"`
	FromEmail   string        `json:"from_email" mapstructure:"from_email"`
	FromName    string        `json:"from_name" mapstructure:"from_name"`
	UseTLS      bool          `json:"use_tls" mapstructure:"use_tls"`
	UseStartTLS bool          `json:"use_starttls" mapstructure:"use_starttls"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`

	// Gmail API delivery, used instead of SMTP when a token file is set
	GmailTokenFile       string `json:"gmail_token_file" mapstructure:"gmail_token_file"`
	GmailCredentialsFile string `json:"gmail_credentials_file" mapstructure:"gmail_credentials_file"`
}

// LoggingConfig for the logger
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir: filepath.Join(home, ".kai"),
		Server: ServerConfig{
			Port: 5000,
			Host: "0.0.0.0",
		},
		Storage: StorageConfig{
			Backend:    BackendFile,
			Driver:     "sqlite",
			TasksFile:  "tasks.json",
			MemoryFile: "memory.json",
			DBFile:     "kai.db",
		},
		Tasks: TaskConfig{
			DelayUnit: string(core.DelaySeconds),
			Tick:      time.Second,
		},
		Personality: PersonalityConfig{
			DefaultMode: string(core.DefaultMode),
		},
		Research: ResearchConfig{
			BaseURL:       "https://en.wikipedia.org",
			Timeout:       10 * time.Second,
			MaxParagraphs: 3,
			UserAgent:     "kai-assistant/0.1",
		},
		Mail: MailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 465,
			FromName: "Kai",
			UseTLS:   true,
			Timeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// setDefaults registers every key so env overrides apply even without a file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.tasks_file", cfg.Storage.TasksFile)
	v.SetDefault("storage.memory_file", cfg.Storage.MemoryFile)
	v.SetDefault("storage.db_file", cfg.Storage.DBFile)
	v.SetDefault("tasks.delay_unit", cfg.Tasks.DelayUnit)
	v.SetDefault("tasks.tick", cfg.Tasks.Tick)
	v.SetDefault("personality.default_mode", cfg.Personality.DefaultMode)
	v.SetDefault("personality.table_file", cfg.Personality.TableFile)
	v.SetDefault("personality.watch", cfg.Personality.Watch)
	v.SetDefault("research.base_url", cfg.Research.BaseURL)
	v.SetDefault("research.timeout", cfg.Research.Timeout)
	v.SetDefault("research.max_paragraphs", cfg.Research.MaxParagraphs)
	v.SetDefault("research.user_agent", cfg.Research.UserAgent)
	v.SetDefault("mail.smtp_host", cfg.Mail.SMTPHost)
	v.SetDefault("mail.smtp_port", cfg.Mail.SMTPPort)
	v.SetDefault("mail.username", cfg.Mail.Username)
	v.SetDefault("mail.password", cfg.Mail.Password)
	v.SetDefault("mail.from_email", cfg.Mail.FromEmail)
	v.SetDefault("mail.from_name", cfg.Mail.FromName)
	v.SetDefault("mail.use_tls", cfg.Mail.UseTLS)
	v.SetDefault("mail.use_starttls", cfg.Mail.UseStartTLS)
	v.SetDefault("mail.timeout", cfg.Mail.Timeout)
	v.SetDefault("mail.gmail_token_file", cfg.Mail.GmailTokenFile)
	v.SetDefault("mail.gmail_credentials_file", cfg.Mail.GmailCredentialsFile)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// Load loads config from file, falling back to defaults.
// KAI_* environment variables override both (KAI_SERVER_PORT, KAI_MAIL_PASSWORD, ...).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.json")
	}

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix("KAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks enumerated fields
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("%w: storage.backend %q", core.ErrInvalidInput, c.Storage.Backend)
	}
	switch core.DelayUnit(c.Tasks.DelayUnit) {
	case core.DelaySeconds, core.DelayMinutes:
	default:
		return fmt.Errorf("%w: tasks.delay_unit %q", core.ErrInvalidInput, c.Tasks.DelayUnit)
	}
	if c.Tasks.Tick <= 0 {
		return fmt.Errorf("%w: tasks.tick must be positive", core.ErrInvalidInput)
	}
	return nil
}

// DelayUnit returns the configured task delay unit
func (c *Config) DelayUnit() core.DelayUnit {
	return core.DelayUnit(c.Tasks.DelayUnit)
}

// Path resolves a storage file name against the data directory
func (c *Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.json")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	// Don't save the mail password to file
	safeCfg := *c
	safeCfg.Mail.Password = ""

	data, err := json.MarshalIndent(safeCfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
