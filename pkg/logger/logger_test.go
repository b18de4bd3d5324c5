package logger

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerFallsBackToGlobal(t *testing.T) {
	ctx := context.Background()
	entry := GetLogger(ctx)
	require.NotNil(t, entry)
	assert.Equal(t, L.Logger, entry.Logger)
}

func TestWithLoggerRoundTrip(t *testing.T) {
	ctx := context.Background()
	custom := logrus.NewEntry(logrus.New()).WithField("component", "store")

	ctx = WithLogger(ctx, custom)
	got := GetLogger(ctx)
	assert.Equal(t, "store", got.Data["component"])
}

func TestSetLogLevel(t *testing.T) {
	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())

	assert.Error(t, SetLogLevel("not-a-level"))

	require.NoError(t, SetLogLevel("info"))
}

func TestSetGlobalFormat(t *testing.T) {
	SetGlobalFormat("json")
	assert.IsType(t, &logrus.JSONFormatter{}, L.Logger.Formatter)

	SetGlobalFormat("text")
	assert.IsType(t, &logrus.TextFormatter{}, L.Logger.Formatter)
}
