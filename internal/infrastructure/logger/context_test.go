package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestWithContext(t *testing.T) {
	logger, err := NewForEnvironment("development")
	require.NoError(t, err)

	ctx := context.Background()
	ctxWithLogger := WithContext(ctx, logger)

	retrievedLogger := FromContext(ctxWithLogger)
	assert.NotNil(t, retrievedLogger)
}

func TestFromContext_NotFound(t *testing.T) {
	ctx := context.Background()
	logger := FromContext(ctx)

	// Should return a no-op logger
	assert.NotNil(t, logger)
}

func TestWithRequestID(t *testing.T) {
	logger, err := NewForEnvironment("development")
	require.NoError(t, err)

	ctx := context.Background()
	requestID := "req-123"

	newCtx, newLogger := WithRequestID(ctx, logger, requestID)

	assert.NotNil(t, newCtx)
	assert.NotNil(t, newLogger)
	assert.Equal(t, requestID, GetRequestID(newCtx))
}

func TestWithTenantID(t *testing.T) {
	logger, err := NewForEnvironment("development")
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := "tenant-456"

	newCtx, newLogger := WithTenantID(ctx, logger, tenantID)

	assert.NotNil(t, newCtx)
	assert.NotNil(t, newLogger)
	assert.Equal(t, tenantID, GetTenantID(newCtx))
}

func TestWithEventID(t *testing.T) {
	logger, err := NewForEnvironment("development")
	require.NoError(t, err)

	ctx := context.Background()
	eventID := "evt-789"

	newCtx, newLogger := WithEventID(ctx, logger, eventID)

	assert.NotNil(t, newCtx)
	assert.NotNil(t, newLogger)
	assert.Equal(t, eventID, GetEventID(newCtx))
}

func TestGetRequestID_NotFound(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
}

func TestGetTenantID_NotFound(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTenantID(ctx))
}

func TestGetEventID_NotFound(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetEventID(ctx))
}

func TestContextChaining(t *testing.T) {
	logger, err := NewForEnvironment("development")
	require.NoError(t, err)

	ctx := context.Background()
	ctx, logger = WithRequestID(ctx, logger, "req-1")
	ctx, logger = WithTenantID(ctx, logger, "tenant-1")
	ctx, _ = WithEventID(ctx, logger, "evt-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "tenant-1", GetTenantID(ctx))
	assert.Equal(t, "evt-1", GetEventID(ctx))
}

func TestContextKeysAreDistinct(t *testing.T) {
	assert.NotEqual(t, RequestIDKey, TenantIDKey)
	assert.NotEqual(t, TenantIDKey, EventIDKey)
	assert.NotEqual(t, LoggerKey, EventIDKey)
}

// capturingLogger returns a logger that writes JSON entries into buf.
func capturingLogger(buf *bytes.Buffer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey: "msg",
		LevelKey:   "level",
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}

func TestL_InjectsContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := capturingLogger(&buf)

	ctx := context.Background()
	ctx, base = WithTenantID(ctx, base, "tenant-abc")
	ctx, _ = WithEventID(ctx, base, "evt-abc")

	L(ctx).Info("processing")

	out := buf.String()
	assert.Contains(t, out, "processing")
	assert.Contains(t, out, "tenant-abc")
	assert.Contains(t, out, "evt-abc")
}

func TestL_NoLoggerInContext(t *testing.T) {
	// Must not panic with an empty context
	assert.NotPanics(t, func() {
		L(context.Background()).Info("no-op")
	})
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	base := capturingLogger(&buf)

	cl := WithLogger(context.Background(), base)
	cl.Info("direct logger")

	assert.Contains(t, buf.String(), "direct logger")
}

func TestContextLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base := capturingLogger(&buf)

	cl := WithLogger(context.Background(), base).With(zap.String("component", "ledger"))
	cl.Info("with fields")

	out := buf.String()
	assert.Contains(t, out, "with fields")
	assert.Contains(t, out, "ledger")
}

func TestContextLogger_Zap(t *testing.T) {
	var buf bytes.Buffer
	base := capturingLogger(&buf)

	zl := WithLogger(context.Background(), base).Zap()
	require.NotNil(t, zl)
	zl.Info("zap passthrough")

	assert.Contains(t, buf.String(), "zap passthrough")
}

func TestContextLogger_Sugar(t *testing.T) {
	var buf bytes.Buffer
	base := capturingLogger(&buf)

	sl := WithLogger(context.Background(), base).Sugar()
	require.NotNil(t, sl)
	sl.Infow("sugar passthrough")

	assert.Contains(t, buf.String(), "sugar passthrough")
}
