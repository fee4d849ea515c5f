package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLevel(t *testing.T) {
	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range testCases {
		assert.Equal(t, want, toLevel(in), "level %q", in)
	}
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	// given
	var buf bytes.Buffer
	log := newLogger(&buf, "warn")
	// when
	log.Info("dropped")
	log.Warn("kept")
	// then
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
}

func TestNewRedisClient(t *testing.T) {
	t.Run("Success - connects and pings", func(t *testing.T) {
		// given
		mr := miniredis.RunT(t)
		// when
		client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr(), time.Second)
		// then
		require.NoError(t, err)
		defer client.Close()
		assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	})

	t.Run("Failure - invalid URL", func(t *testing.T) {
		_, err := NewRedisClient(context.Background(), "http://localhost", time.Second)
		assert.ErrorContains(t, err, "invalid redis URL")
	})

	t.Run("Failure - unreachable server", func(t *testing.T) {
		// given
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		// when
		_, err := NewRedisClient(context.Background(), "redis://"+addr, 200*time.Millisecond)
		// then
		assert.ErrorContains(t, err, "failed to ping redis")
	})
}
