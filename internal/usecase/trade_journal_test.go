package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/metrics"
)

type fakePublisher struct {
	got    []models.TradeRecord
	err    error
	closed bool
}

func (f *fakePublisher) PublishBatch(_ context.Context, t []models.TradeRecord) error {
	f.got = append(f.got, t...)
	return f.err
}

func (f *fakePublisher) Close() error { f.closed = true; return nil }

type fakeStorage struct {
	got    []models.TradeRecord
	closed bool
}

func (f *fakeStorage) Init(context.Context) error   { return nil }
func (f *fakeStorage) Health(context.Context) error { return nil }
func (f *fakeStorage) Close() error                 { f.closed = true; return nil }

func (f *fakeStorage) StoreBatch(_ context.Context, t []models.TradeRecord) error {
	f.got = append(f.got, t...)
	return nil
}

func TestTradeJournal_Routing(t *testing.T) {
	recs := []models.TradeRecord{{ID: "1", Symbol: "BTCUSDT", ExecutedAt: time.Now()}}

	pub, store := &fakePublisher{}, &fakeStorage{}
	require.NoError(t, NewTradeJournal(pub, store, metrics.Noop{}, BackendKafka).ProcessBatch(context.Background(), recs))
	assert.Len(t, pub.got, 1)
	assert.Empty(t, store.got)

	pub, store = &fakePublisher{}, &fakeStorage{}
	require.NoError(t, NewTradeJournal(pub, store, metrics.Noop{}, BackendClickHouse).ProcessBatch(context.Background(), recs))
	assert.Empty(t, pub.got)
	assert.Len(t, store.got, 1)

	j := NewTradeJournal(nil, nil, metrics.Noop{}, "")
	assert.Equal(t, BackendNone, j.Backend())
	assert.NoError(t, j.ProcessBatch(context.Background(), recs))

	assert.Error(t, NewTradeJournal(nil, nil, metrics.Noop{}, "s3").ProcessBatch(context.Background(), recs))
}

func TestTradeJournal_WrapsBackendError(t *testing.T) {
	boom := errors.New("broker down")
	j := NewTradeJournal(&fakePublisher{err: boom}, nil, metrics.Noop{}, BackendKafka)
	err := j.ProcessBatch(context.Background(), []models.TradeRecord{{ID: "1"}})
	assert.ErrorIs(t, err, boom)
}

func TestTradeJournal_Close(t *testing.T) {
	pub, store := &fakePublisher{}, &fakeStorage{}
	NewTradeJournal(pub, store, metrics.Noop{}, BackendKafka).Close()
	assert.True(t, pub.closed)
	assert.True(t, store.closed)
}
