// Package config loads service settings from defaults, a YAML file and
// WELLSTEP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"wellstep/internal/history"
	"wellstep/pkg/database"
	"wellstep/pkg/logging"
)

const (
	// EnvPrefix prefixes every environment override, e.g. WELLSTEP_SERVER_PORT
	EnvPrefix = "WELLSTEP"
	// ConfigFileEnv names the variable holding the YAML config path
	ConfigFileEnv = "WELLSTEP_CONFIG"
	// DefaultConfigFile is read when present and ConfigFileEnv is unset
	DefaultConfigFile = "config.yaml"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	History  HistoryConfig  `yaml:"history"`
	Resample ResampleConfig `yaml:"resample"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" split_words:"true"`
	Port            int           `yaml:"port" split_words:"true" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true" validate:"gt=0"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host" split_words:"true" validate:"required"`
	Port            int           `yaml:"port" split_words:"true" validate:"min=1,max=65535"`
	User            string        `yaml:"user" split_words:"true" validate:"required"`
	Password        string        `yaml:"password" split_words:"true"`
	Database        string        `yaml:"database" split_words:"true" validate:"required"`
	SSLMode         string        `yaml:"ssl_mode" split_words:"true" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `yaml:"max_open_conns" split_words:"true" validate:"min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" split_words:"true" validate:"min=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" split_words:"true"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" split_words:"true"`
}

// Postgres converts the section into pool settings for database.NewPostgresDB
func (d DatabaseConfig) Postgres() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// LoggingConfig contains logging configuration. An empty FilePath logs to stdout only.
type LoggingConfig struct {
	Level      string `yaml:"level" split_words:"true" validate:"oneof=debug info warn warning error fatal"`
	FilePath   string `yaml:"file_path" split_words:"true"`
	MaxSizeMB  int    `yaml:"max_size_mb" split_words:"true" validate:"min=1"`
	MaxBackups int    `yaml:"max_backups" split_words:"true" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" split_words:"true" validate:"min=0"`
	Compress   bool   `yaml:"compress" split_words:"true"`
}

// Options converts the section to logger options
func (l LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      logging.ParseLevel(l.Level),
		FilePath:   l.FilePath,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// HistoryConfig describes the layout of history CSV files
type HistoryConfig struct {
	SkipRows   int    `yaml:"skip_rows" split_words:"true" validate:"min=0"`
	MaxRows    int    `yaml:"max_rows" split_words:"true" validate:"min=0"`
	DateColumn string `yaml:"date_column" split_words:"true" validate:"required"`
	WellColumn string `yaml:"well_column" split_words:"true" validate:"required,nefield=DateColumn"`
	DateLayout string `yaml:"date_layout" split_words:"true" validate:"required"`
	Lenient    bool   `yaml:"lenient" split_words:"true"`
}

// Options converts the section to reader options
func (h HistoryConfig) Options() history.Options {
	return history.Options{
		SkipRows:   h.SkipRows,
		MaxRows:    h.MaxRows,
		DateColumn: h.DateColumn,
		WellColumn: h.WellColumn,
		DateLayout: h.DateLayout,
		Lenient:    h.Lenient,
	}
}

// ResampleConfig holds the default grid and the fan-out width
type ResampleConfig struct {
	Step    time.Duration `yaml:"step" split_words:"true" validate:"gt=0"`
	Points  int           `yaml:"points" split_words:"true" validate:"min=1"`
	Workers int           `yaml:"workers" split_words:"true" validate:"min=1"`
}

// IngestConfig controls batched inserts
type IngestConfig struct {
	BatchSize int `yaml:"batch_size" split_words:"true" validate:"min=1,max=100000"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "wellstep",
			Password:        "wellstep",
			Database:        "wellstep",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		History: HistoryConfig{
			SkipRows:   3,
			MaxRows:    10179,
			DateColumn: "DATE",
			WellColumn: "WELL",
			DateLayout: "02/01/2006",
		},
		Resample: ResampleConfig{
			Step:    6 * time.Hour,
			Points:  116,
			Workers: 4,
		},
		Ingest: IngestConfig{
			BatchSize: 1000,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// WELLSTEP_CONFIG (or config.yaml when present) and WELLSTEP_* variables,
// in that order of precedence.
func LoadConfig() (*Config, error) {
	path, explicit := os.LookupEnv(ConfigFileEnv)
	if !explicit {
		path = DefaultConfigFile
	}
	return Load(path, explicit)
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is an error only when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) || required {
				return nil, err
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks every section against its constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %v fails %q", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return err
	}
	return nil
}
