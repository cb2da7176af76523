package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithAttachesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithUserID(context.Background(), "user-1")
	ctx = WithRunID(ctx, "01J0RUN")
	ctx = WithApplicationID(ctx, "app-1")

	With(ctx, &base).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "user-1", line["user_id"])
	assert.Equal(t, "01J0RUN", line["run_id"])
	assert.Equal(t, "app-1", line["application_id"])
	assert.NotContains(t, line, "trace_id")
	assert.Equal(t, "user-1", UserID(ctx))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "ada@example.com", Redact("ada@example.com", true))
	assert.Equal(t, "a***@example.com", Redact("ada@example.com", false))
	assert.Equal(t, "***", Redact("12345", false))
	assert.Equal(t, "+44 ...00", Redact("+44 20 7946 0000", false))
}
