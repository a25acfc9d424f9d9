package repository

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/estate-registry/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGormConfig(t *testing.T) {
	cfg := NewGormConfig(config.DatabaseConfig{SlowQueryLog: true, SlowQueryTime: time.Second}, nil)
	assert.True(t, cfg.TranslateError)
	require.NotNil(t, cfg.Logger)
	assert.Equal(t, time.UTC, cfg.NowFunc().Location())
}

func TestPing(t *testing.T) {
	db, _ := newMockDB(t)

	require.NoError(t, Ping(context.Background(), db))
}
