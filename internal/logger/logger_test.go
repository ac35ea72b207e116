package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"logworker/pkg/logging"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		log, err := New("debug", format)
		require.NoError(t, err)
		assert.NotNil(t, log)
	}

	_, err := New("info", "xml")
	assert.Error(t, err)
}

func TestInfowCtx_PrependsContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewFromZap(zap.New(core))
	log.(*SugaredLogger).SetServiceName("worker-service")

	ctx := logging.WithMessageID(context.Background(), "m-1")
	ctx = logging.WithRecordKey(ctx, "acme", "log_1")

	log.InfowCtx(ctx, "document_saved", "path", "tenants/acme/processed_logs/log_1")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "m-1", fields["message_id"])
	assert.Equal(t, "acme", fields["tenant_id"])
	assert.Equal(t, "log_1", fields["log_id"])
	assert.Equal(t, "worker-service", fields["service_name"])
	assert.Equal(t, "tenants/acme/processed_logs/log_1", fields["path"])
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewFromZap(zap.New(core)).With("component", "store")

	log.Infow("ready")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "store", logs.All()[0].ContextMap()["component"])
}
