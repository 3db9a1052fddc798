package database

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellstep/pkg/logging"
	"wellstep/pkg/metrics"
)

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		Host:     "db",
		Port:     5433,
		User:     "wellstep",
		Password: "secret",
		Database: "wells",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5433 user=wellstep password=secret dbname=wells sslmode=disable", cfg.DSN())
}

func TestNewPostgresDB_Unreachable(t *testing.T) {
	cfg := &Config{
		Host:         "127.0.0.1",
		Port:         1,
		User:         "wellstep",
		Database:     "wells",
		SSLMode:      "disable",
		MaxOpenConns: 1,
	}

	db, err := NewPostgresDB(cfg, logging.NewNop(), metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry()))
	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping database")
}
