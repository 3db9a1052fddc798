package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellstep/pkg/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 6*time.Hour, cfg.Resample.Step)
	assert.Equal(t, 116, cfg.Resample.Points)
	assert.Equal(t, 3, cfg.History.SkipRows)
	assert.Equal(t, 10179, cfg.History.MaxRows)
	assert.Equal(t, "02/01/2006", cfg.History.DateLayout)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		env         map[string]string
		wantErr     bool
		checkValues func(t *testing.T, cfg *Config)
	}{
		{
			name: "file overrides defaults",
			yaml: `
server:
  port: 9090
  read_timeout: 5s
resample:
  step: 1h
  points: 24
history:
  lenient: true
`,
			checkValues: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, time.Hour, cfg.Resample.Step)
				assert.Equal(t, 24, cfg.Resample.Points)
				assert.True(t, cfg.History.Lenient)
				assert.Equal(t, "DATE", cfg.History.DateColumn, "unset keys keep defaults")
				assert.Equal(t, 4, cfg.Resample.Workers)
			},
		},
		{
			name: "environment overrides file",
			yaml: "server:\n  port: 9090\n",
			env: map[string]string{
				"WELLSTEP_SERVER_PORT":       "7070",
				"WELLSTEP_DATABASE_HOST":     "db.internal",
				"WELLSTEP_DATABASE_SSL_MODE": "require",
				"WELLSTEP_RESAMPLE_STEP":     "12h",
				"WELLSTEP_INGEST_BATCH_SIZE": "250",
				"WELLSTEP_LOGGING_FILE_PATH": "/var/log/wellstep.log",
			},
			checkValues: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "db.internal", cfg.Database.Host)
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.Equal(t, 12*time.Hour, cfg.Resample.Step)
				assert.Equal(t, 250, cfg.Ingest.BatchSize)
				assert.Equal(t, "/var/log/wellstep.log", cfg.Logging.FilePath)
			},
		},
		{
			name:    "malformed yaml",
			yaml:    "server: [",
			wantErr: true,
		},
		{
			name:    "malformed environment value",
			yaml:    "",
			env:     map[string]string{"WELLSTEP_SERVER_PORT": "eighty"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(writeConfig(t, tt.yaml), true)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())
			if tt.checkValues != nil {
				tt.checkValues(t, cfg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)

	_, err = Load(missing, true)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfig_UsesConfigEnv(t *testing.T) {
	t.Setenv(ConfigFileEnv, writeConfig(t, "ingest:\n  batch_size: 42\n"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Ingest.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "Config.Server.Port"},
		{"unknown ssl mode", func(c *Config) { c.Database.SSLMode = "sometimes" }, "Config.Database.SSLMode"},
		{"idle above open", func(c *Config) { c.Database.MaxIdleConns = 50 }, "Config.Database.MaxIdleConns"},
		{"zero step", func(c *Config) { c.Resample.Step = 0 }, "Config.Resample.Step"},
		{"no points", func(c *Config) { c.Resample.Points = 0 }, "Config.Resample.Points"},
		{"no workers", func(c *Config) { c.Resample.Workers = 0 }, "Config.Resample.Workers"},
		{"same key columns", func(c *Config) { c.History.WellColumn = "DATE" }, "Config.History.WellColumn"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, "Config.Logging.Level"},
		{"zero batch", func(c *Config) { c.Ingest.BatchSize = 0 }, "Config.Ingest.BatchSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSectionOptions(t *testing.T) {
	cfg := Default()
	cfg.History.Lenient = true
	cfg.Logging.Level = "debug"
	cfg.Logging.FilePath = "app.log"

	opts := cfg.History.Options()
	assert.Equal(t, 3, opts.SkipRows)
	assert.Equal(t, "WELL", opts.WellColumn)
	assert.True(t, opts.Lenient)

	lopts := cfg.Logging.Options()
	assert.Equal(t, logging.DebugLevel, lopts.Level)
	assert.Equal(t, "app.log", lopts.FilePath)
	assert.Equal(t, 100, lopts.MaxSizeMB)

	db := cfg.Database.Postgres()
	assert.Equal(t, "localhost", db.Host)
	assert.Equal(t, 25, db.MaxOpenConns)
	assert.Equal(t, "host=localhost port=5432 user=wellstep password=wellstep dbname=wellstep sslmode=disable", db.DSN())
}
