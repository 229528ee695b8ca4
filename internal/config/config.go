package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file created by `tally init`.
const FileName = "tally.yaml"

// EnvPrefix prefixes environment overrides, e.g. TALLY_DATABASE_DSN.
const EnvPrefix = "TALLY"

// Config represents the top-level tally.yaml configuration.
type Config struct {
	Workspace  WorkspaceConfig  `yaml:"workspace" mapstructure:"workspace"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Import     ImportConfig     `yaml:"import" mapstructure:"import"`
	Categorize CategorizeConfig `yaml:"categorize" mapstructure:"categorize"`
	Audit      AuditConfig      `yaml:"audit" mapstructure:"audit"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// WorkspaceConfig names the household the CLI works on.
type WorkspaceConfig struct {
	ID   string `yaml:"id,omitempty" mapstructure:"id"`
	Name string `yaml:"name" mapstructure:"name"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr        string   `yaml:"addr" mapstructure:"addr"`
	BodyLimitMB int      `yaml:"body_limit_mb" mapstructure:"body_limit_mb"`
	CORSOrigins []string `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
}

// DatabaseConfig selects the gorm driver. Driver is sqlite, postgres or mysql.
type DatabaseConfig struct {
	Driver  string `yaml:"driver" mapstructure:"driver"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
	LogMode string `yaml:"log_mode" mapstructure:"log_mode"` // silent, error, warn, info
}

// ImportConfig controls statement parsing.
type ImportConfig struct {
	Strict   bool   `yaml:"strict" mapstructure:"strict"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"` // IANA name, e.g. America/Sao_Paulo
	InboxDir string `yaml:"inbox_dir" mapstructure:"inbox_dir"`
}

// CategorizeConfig enables the suggestion sources tried after the rules.
type CategorizeConfig struct {
	Bayes  bool         `yaml:"bayes" mapstructure:"bayes"`
	Gemini GeminiConfig `yaml:"gemini" mapstructure:"gemini"`
}

// GeminiConfig holds the optional LLM suggester settings. An empty APIKey
// disables it.
type GeminiConfig struct {
	APIKey string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Model  string `yaml:"model" mapstructure:"model"`
}

// AuditConfig locates the append-only audit log.
type AuditConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig sets the structured logger level.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// Location resolves the import timezone. Empty means time.Local.
func (c ImportConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads a tally.yaml file from disk and applies TALLY_* environment
// overrides on top of it. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new household.
func Default(workspaceName string) *Config {
	return &Config{
		Workspace: WorkspaceConfig{Name: workspaceName},
		Server: ServerConfig{
			Addr:        ":8080",
			BodyLimitMB: 10,
		},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			DSN:     "tally.db",
			LogMode: "warn",
		},
		Import: ImportConfig{
			Timezone: "America/Sao_Paulo",
			InboxDir: "inbox",
		},
		Categorize: CategorizeConfig{
			Bayes:  true,
			Gemini: GeminiConfig{Model: "gemini-2.5-flash"},
		},
		Audit: AuditConfig{Path: "logs/audit-log.csv"},
		Log:   LogConfig{Level: "info"},
	}
}

// LoadEnvFile loads KEY=value pairs from a .env file into the process
// environment without overriding variables already set. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env overrides for keys viper already knows.
	d := Default("")
	defaults := map[string]any{
		"workspace.id":              d.Workspace.ID,
		"workspace.name":            d.Workspace.Name,
		"server.addr":               d.Server.Addr,
		"server.body_limit_mb":      d.Server.BodyLimitMB,
		"server.cors_origins":       d.Server.CORSOrigins,
		"database.driver":           d.Database.Driver,
		"database.dsn":              d.Database.DSN,
		"database.log_mode":         d.Database.LogMode,
		"import.strict":             d.Import.Strict,
		"import.timezone":           d.Import.Timezone,
		"import.inbox_dir":          d.Import.InboxDir,
		"categorize.bayes":          d.Categorize.Bayes,
		"categorize.gemini.api_key": d.Categorize.Gemini.APIKey,
		"categorize.gemini.model":   d.Categorize.Gemini.Model,
		"audit.path":                d.Audit.Path,
		"log.level":                 d.Log.Level,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}
