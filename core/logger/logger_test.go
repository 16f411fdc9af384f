package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"DEBUG":    zerolog.DebugLevel,
		"":         zerolog.InfoLevel,
		" info ":   zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
	}

	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			got, err := ParseLevel(raw)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(buf, zerolog.InfoLevel)

	log.Debug().Msg("hidden")
	log.Info().Str("remote", "127.0.0.1:9").Msg("accepted")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "accepted")
	assert.Contains(t, buf.String(), "remote=127.0.0.1:9")
}

func TestForFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := ForFormat(buf, "json", zerolog.InfoLevel)
	assert.NoError(t, err)
	log.Info().Msg("listening")
	assert.True(t, json.Valid(buf.Bytes()))

	buf.Reset()
	log, err = ForFormat(buf, "console", zerolog.InfoLevel)
	assert.NoError(t, err)
	log.Info().Msg("listening")
	assert.False(t, json.Valid(buf.Bytes()))
	assert.Contains(t, buf.String(), "listening")

	_, err = ForFormat(buf, "xml", zerolog.InfoLevel)
	assert.Error(t, err)
}

func TestNewJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewJSON(buf, zerolog.DebugLevel)
	log.Debug().Int("status", 3).Msg("pipeline finished")

	var entry map[string]interface{}
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pipeline finished", entry["message"])
	assert.Equal(t, float64(3), entry["status"])
	assert.Equal(t, "debug", entry["level"])
}
