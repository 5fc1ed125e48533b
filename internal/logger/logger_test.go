package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, "info")

	log.Info().Str("account_id", "a1").Msg("posted")

	assert.Contains(t, buf.String(), "posted")
	assert.Contains(t, buf.String(), `"account_id":"a1"`)
}

func TestNewWithWriter_Level(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, "warn")

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf, "info"))

	logger := FromContext(ctx, Nop())
	logger.Info().Msg("from context")
	assert.Contains(t, buf.String(), "from context")
}

func TestFromContext_Fallback(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := FromContext(context.Background(), NewWithWriter(buf, "info"))
	logger.Info().Msg("fallback")
	assert.Contains(t, buf.String(), "fallback")
}
