package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordEvent("publish", "price_update")
	r.RecordEvent("publish", "price_update")
	r.RecordError("source_unavailable")
	r.RecordLastPrice("BTCUSDT", 43251.5)
	r.SetSubscribers(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.events.WithLabelValues("publish", "price_update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("source_unavailable")))
	assert.Equal(t, 43251.5, testutil.ToFloat64(r.lastPrice.WithLabelValues("BTCUSDT")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.subscribers))
}
