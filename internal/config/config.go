// internal/config/config.go
//
// This package handles configuration and the .roster directory structure.
// Every project that uses roster gets a .roster/ folder created in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/roster/internal/store"
)

const (
	// RosterDir is the name of the directory we create in each project
	RosterDir = ".roster"

	defaultBaseURL    = "http://127.0.0.1:8787/sites/roster"
	defaultCollection = "EmployeeDetails"
	defaultTokenEnv   = "ROSTER_STORE_TOKEN"
	defaultTimeout    = 30 * time.Second
	defaultTitle      = "Employee Details"
)

const defaultProjectConfigYAML = `# roster project configuration
version: 1

# The remote list holding employee records. base_url is the site root; the
# list is addressed by title underneath it.
store:
  base_url: http://127.0.0.1:8787/sites/roster
  collection: EmployeeDetails
  # Name of the environment variable (or .env key) holding the bearer token.
  token_env: ROSTER_STORE_TOKEN
  timeout: 30s

log:
  level: info
  json: false
  max_size_mb: 10
  max_backups: 3
  max_age_days: 14

ui:
  title: Employee Details
`

// StoreSettings points the client at the remote list.
type StoreSettings struct {
	BaseURL    string        `yaml:"base_url"`
	Collection string        `yaml:"collection"`
	TokenEnv   string        `yaml:"token_env,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// LogSettings controls the zap logger and its rotation.
type LogSettings struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// UISettings tweaks the terminal UI.
type UISettings struct {
	Title string `yaml:"title,omitempty"`
}

// ProjectConfig models .roster/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	Store   StoreSettings `yaml:"store"`
	Log     LogSettings   `yaml:"log"`
	UI      UISettings    `yaml:"ui"`
}

// Config holds the runtime configuration for roster.
type Config struct {
	// ProjectDir is the directory where the user ran `roster` from
	ProjectDir string

	// RosterProjectDir is ProjectDir/.roster
	RosterProjectDir string

	Project ProjectConfig

	// dotenv holds values read from ProjectDir/.env. The process environment
	// wins over it.
	dotenv map[string]string
}

// InitRosterDir creates the .roster directory structure in the given project
// directory and writes a default config.yaml when none exists.
//
// Structure created:
// .roster/
// ├── config.yaml
// ├── logs/   <- roster.log (zap) and journey.log (logbook)
// └── state/
func InitRosterDir(projectDir string) error {
	rosterDir := filepath.Join(projectDir, RosterDir)
	dirs := []string{
		filepath.Join(rosterDir, "logs"),
		filepath.Join(rosterDir, "state"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(rosterDir, "config.yaml"))
}

// NewConfig loads .env, .roster/config.yaml and environment overrides, in
// that order of increasing precedence.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:       projectDir,
		RosterProjectDir: filepath.Join(projectDir, RosterDir),
		Project:          defaultProjectConfig(),
	}
	if err := cfg.loadDotEnv(); err != nil {
		return nil, err
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.Project.normalize()
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.RosterProjectDir, "logs")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.RosterProjectDir, "state")
}

// LogFilePath is where the zap logger writes.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.LogsDir(), "roster.log")
}

// JourneyLogPath is the logbook file shown in the UI's log panel.
func (c *Config) JourneyLogPath() string {
	return filepath.Join(c.LogsDir(), "journey.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.RosterProjectDir, "config.yaml")
}

// StoreConfig returns the remote list coordinates for store.New.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		BaseURL:    c.Project.Store.BaseURL,
		Collection: c.Project.Store.Collection,
	}
}

// Timeout is the per-request deadline for store calls.
func (c *Config) Timeout() time.Duration {
	return c.Project.Store.Timeout
}

// Token returns the bearer token for the store, or "" when none is set.
func (c *Config) Token() string {
	return c.lookupEnv(c.Project.Store.TokenEnv)
}

// Title is the heading shown above the list.
func (c *Config) Title() string {
	return c.Project.UI.Title
}

func (c *Config) loadDotEnv() error {
	path := filepath.Join(c.ProjectDir, ".env")
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	c.dotenv = values
	return nil
}

func (c *Config) lookupEnv(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(c.dotenv[key])
}

func (c *Config) applyEnvOverrides() {
	if value := c.lookupEnv("ROSTER_BASE_URL"); value != "" {
		c.Project.Store.BaseURL = value
	}
	if value := c.lookupEnv("ROSTER_COLLECTION"); value != "" {
		c.Project.Store.Collection = value
	}
	if value := c.lookupEnv("ROSTER_LOG_LEVEL"); value != "" {
		c.Project.Log.Level = value
	}
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Store.BaseURL == "" {
		pc.Store.BaseURL = defaultBaseURL
	}
	if pc.Store.Collection == "" {
		pc.Store.Collection = defaultCollection
	}
	if pc.Store.TokenEnv == "" {
		pc.Store.TokenEnv = defaultTokenEnv
	}
	if pc.Store.Timeout == 0 {
		pc.Store.Timeout = defaultTimeout
	}
	if pc.Log.Level == "" {
		pc.Log.Level = "info"
	}
	if pc.Log.MaxSizeMB == 0 {
		pc.Log.MaxSizeMB = 10
	}
	if pc.Log.MaxBackups == 0 {
		pc.Log.MaxBackups = 3
	}
	if pc.UI.Title == "" {
		pc.UI.Title = defaultTitle
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Store.BaseURL = strings.TrimRight(strings.TrimSpace(pc.Store.BaseURL), "/")
	pc.Store.Collection = strings.TrimSpace(pc.Store.Collection)
	pc.Store.TokenEnv = strings.TrimSpace(pc.Store.TokenEnv)
	pc.Log.Level = strings.ToLower(strings.TrimSpace(pc.Log.Level))
	pc.UI.Title = strings.TrimSpace(pc.UI.Title)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if err := pc.StoreConfig().Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if pc.Store.Timeout < 0 {
		return fmt.Errorf("store.timeout must not be negative")
	}
	if _, err := zapcore.ParseLevel(pc.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if pc.Log.MaxSizeMB < 0 || pc.Log.MaxBackups < 0 || pc.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	return nil
}

// StoreConfig is the store section as client settings.
func (pc ProjectConfig) StoreConfig() store.Config {
	return store.Config{BaseURL: pc.Store.BaseURL, Collection: pc.Store.Collection}
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

// Save persists the current project config back to .roster/config.yaml.
func (c *Config) Save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.RosterProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure roster dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
