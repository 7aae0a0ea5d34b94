package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_Levels(t *testing.T) {
	cases := []struct {
		level string
		debug bool
		info  bool
		warn  bool
	}{
		{"debug", true, true, true},
		{"", false, true, true},
		{"WARN", false, false, true},
		{"error", false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(&buf, tc.level)
			ctx := context.Background()
			assert.Equal(t, tc.debug, l.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tc.info, l.Enabled(ctx, slog.LevelInfo))
			assert.Equal(t, tc.warn, l.Enabled(ctx, slog.LevelWarn))
		})
	}
}

func TestNewWithWriter_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "info").Info("product_created", "product_id", "p1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "product_created", line["msg"])
	assert.Equal(t, "p1", line["product_id"])
}

func TestContextRoundTrip(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := NewWithWriter(&bytes.Buffer{}, "info")
	ctx := IntoContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
