package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	v, ok := messages[0].Field("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	logger.Clear()
	assert.Empty(t, logger.GetMessages())

	logger.Warn("compound not found")
	assert.True(t, logger.HasMessage("warn", "compound not found"))
	assert.False(t, logger.HasMessage("info", "compound not found"))
}

func TestMockLogger_WithSharesBuffer(t *testing.T) {
	logger := testutil.NewMockLogger()
	child := logger.With(logging.String("run_id", "abc"))

	child.Warn("skipped")

	msgs := logger.Messages("warn")
	require.Len(t, msgs, 1)
	v, ok := msgs[0].Field("run_id")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}
