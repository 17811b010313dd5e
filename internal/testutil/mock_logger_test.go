package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/internal/testutil"
)

var _ logging.Logger = (*testutil.MockLogger)(nil)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)

	logger.Clear()
	assert.Len(t, logger.GetMessages(), 0)

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_DerivedLoggersShareRecord(t *testing.T) {
	root := testutil.NewMockLogger()
	child := root.Named("kafka").Named("consumer").With(logging.UserID("u1"))

	child.Warn("retrying", logging.Int("attempt", 2))

	msg := root.Find("warn", "retrying")
	require.NotNil(t, msg)
	assert.Equal(t, "kafka.consumer", msg.Logger)
	v, ok := msg.Field("user_id")
	assert.True(t, ok)
	assert.Equal(t, "u1", v)
	v, ok = msg.Field("attempt")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}
