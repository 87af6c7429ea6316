package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"

	"fintrack/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger(log.ComponentHTTP, "debug", "json")
	require.NotNil(t, logger)
	assert.Equal(t, log.ComponentHTTP, logger.Component())
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestGracefulShutdownRunsCleanup(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Format: log.FormatText, Level: slog.LevelInfo, Component: "test"})

	cleaned := make(chan struct{})
	ctx, done := gracefulShutdown(logger, time.Second, func(context.Context) { close(cleaned) }, syscall.SIGUSR1)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	assert.Error(t, ctx.Err())
	select {
	case <-cleaned:
	default:
		t.Fatal("cleanup not called")
	}
	assert.Contains(t, buf.String(), "Shutdown complete")
}

func TestGracefulShutdownTimeout(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Format: log.FormatText, Level: slog.LevelInfo, Component: "test"})

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	ctx, done := gracefulShutdown(logger, 20*time.Millisecond, func(context.Context) { <-block }, syscall.SIGUSR2)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR2))

	WaitForShutdown(ctx, done)
	assert.Contains(t, buf.String(), "Shutdown timeout reached")
}
