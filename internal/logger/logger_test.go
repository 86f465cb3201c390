package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json config", config: &Config{Level: "debug", Format: "json", Output: io.Discard}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
		{name: "missing output", config: &Config{Level: "warn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.Info().Str("table", "users").Msg("inferred")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "inferred", entry["message"])
	assert.Equal(t, "users", entry["table"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	child := log.With().
		Str("driver", "postgres").
		Int("tables", 12).
		Strs("ignored", []string{"migrations"}).
		Err(errors.New("partial")).
		Logger()

	child.Warn().Msg("snapshot loaded")

	entry := decode(t, buf)
	assert.Equal(t, "postgres", entry["driver"])
	assert.Equal(t, float64(12), entry["tables"])
	assert.Equal(t, []any{"migrations"}, entry["ignored"])
	assert.Equal(t, "partial", entry["error"])
	assert.Equal(t, "warn", entry["level"])
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := log.WithContext(context.Background())
	FromContext(ctx).Info().Msg("from context")

	assert.Equal(t, "from context", decode(t, buf)["message"])
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })

	buf := &bytes.Buffer{}
	SetGlobal(New(&Config{Level: "info", Format: "json", Output: buf}))

	FromContext(context.Background()).Info().Msg("global")
	assert.Equal(t, "global", decode(t, buf)["message"])
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		logFunc func(*Logger)
		logged  bool
	}{
		{"debug level logs debug", "debug", func(l *Logger) { l.Debug().Msg("d") }, true},
		{"info level skips debug", "info", func(l *Logger) { l.Debug().Msg("d") }, false},
		{"unknown level means info", "verbose", func(l *Logger) { l.Info().Msg("i") }, true},
		{"error level skips warn", "error", func(l *Logger) { l.Warn().Msg("w") }, false},
		{"error level logs error", "ERROR", func(l *Logger) { l.Error().Msg("e") }, true},
		{"disabled logs nothing", "off", func(l *Logger) { l.Error().Msg("e") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.logFunc(New(&Config{Level: tt.level, Format: "json", Output: buf}))

			if tt.logged {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Error().Msg("dropped")
	assert.Equal(t, zerolog.Disabled, log.Zerolog().GetLevel())
}

func BenchmarkLogger_WithFields(b *testing.B) {
	log := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.With().
			Str("table", "users").
			Int("request", i).
			Logger().
			Info().Msg("benchmark")
	}
}
