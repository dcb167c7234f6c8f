package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castleryder/dividend-harvest/pkg/config"
)

func TestNew_Disabled(t *testing.T) {
	db, err := New(context.Background(), &config.Config{})
	assert.Nil(t, db)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNew_BadURL(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "::not a url::"}}
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDisabled)
}

func TestCloseNil(t *testing.T) {
	var db *DB
	db.Close()
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := New(context.Background(), &config.Config{
		Database: config.DatabaseConfig{URL: url, MaxConns: 4, MinConns: 1},
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestNew(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, db.Ping(ctx))
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Error)
	assert.Equal(t, int32(4), status.Stats.MaxConns)
}
