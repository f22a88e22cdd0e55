package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level zerolog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Logger{zl: zerolog.New(&buf).Level(level)}, &buf
}

func TestFieldsAreEncoded(t *testing.T) {
	l, buf := newBufferLogger(zerolog.DebugLevel)

	l.With(String("component", "scheduler")).Info("cycle done",
		Int("cycle", 3),
		Float64("price", 43251.5),
		Duration("took", 1500*time.Millisecond),
		Bool("synthetic", true),
		Strings("symbols", []string{"BTCUSDT", "ETHUSDT"}),
		Error(errors.New("boom")),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "scheduler", got["component"])
	assert.Equal(t, "cycle done", got["message"])
	assert.EqualValues(t, 3, got["cycle"])
	assert.EqualValues(t, 43251.5, got["price"])
	assert.EqualValues(t, 1500, got["took"])
	assert.Equal(t, true, got["synthetic"])
	assert.Equal(t, "BTCUSDT, ETHUSDT", got["symbols"])
	assert.Equal(t, "boom", got["error"])
}

func TestDisabledLevelWritesNothing(t *testing.T) {
	l, buf := newBufferLogger(zerolog.WarnLevel)
	l.Debug("hidden", String("k", "v"))
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}
