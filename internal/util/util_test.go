package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger("production", "warn"))
	assert.False(t, GetLogger().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, GetLogger().Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, InitLogger("development", "loud"))
}

func TestInitTracerWithoutExporter(t *testing.T) {
	tp, err := InitTracer("checkout-test", "", 1)
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := StartSpan(context.Background(), "test")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.IsRecording())
}
