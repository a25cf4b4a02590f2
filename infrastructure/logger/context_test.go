package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
)

func newObserved() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewFromZap(zap.New(core)), logs
}

func TestFromContext_ReturnsAttachedLogger(t *testing.T) {
	t.Parallel()

	l, logs := newObserved()
	ctx := logger.WithContext(context.Background(), l.With(logger.JobID("job-1")))

	logger.FromContext(ctx).Info("running", logger.DOI("10.5438/0012"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "running", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "job-1", fields["job_id"])
	assert.Equal(t, "10.5438/0012", fields["doi"])
}

func TestFromContext_FallbackIsSingleton(t *testing.T) {
	t.Parallel()

	a := logger.FromContext(context.Background())
	b := logger.FromContext(context.Background())

	require.NotNil(t, a)
	assert.Same(t, a, b)
	a.Warn("fallback usable", logger.String("key", "value"))
}

func TestWithContext_Overwrites(t *testing.T) {
	t.Parallel()

	first, firstLogs := newObserved()
	second, secondLogs := newObserved()

	ctx := logger.WithContext(context.Background(), first)
	ctx = logger.WithContext(ctx, second)
	logger.FromContext(ctx).Warn("hello")

	assert.Equal(t, 0, firstLogs.Len())
	assert.Equal(t, 1, secondLogs.Len())
}

func TestNop_DiscardsEverything(t *testing.T) {
	t.Parallel()

	l := logger.NewNop()
	l.Error("ignored", logger.Error(context.Canceled))
	assert.Same(t, l, l.With(logger.String("a", "b")))
	assert.NoError(t, l.Sync())
}

func TestFromContextOr(t *testing.T) {
	t.Parallel()

	attached, attachedLogs := newObserved()
	fallback, fallbackLogs := newObserved()

	logger.FromContextOr(context.Background(), fallback).Info("no logger")
	logger.FromContextOr(logger.WithContext(context.Background(), attached), fallback).Info("attached")

	assert.Equal(t, 1, fallbackLogs.Len())
	assert.Equal(t, 1, attachedLogs.Len())
}
