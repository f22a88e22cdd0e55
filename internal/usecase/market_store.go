package usecase

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"CoinPulse/internal/domain/models"
)

type storeEntry struct {
	snap     *models.MarketSnapshot
	storedAt time.Time
}

// MarketStore holds the current snapshot behind an atomic pointer. Readers
// never lock and always see a whole snapshot.
type MarketStore struct {
	current atomic.Pointer[storeEntry]
	writeMu sync.Mutex
	now     func() time.Time
}

func NewMarketStore() *MarketStore {
	return &MarketStore{now: time.Now}
}

// Replace installs snap with the next sequence number and returns the
// stored snapshot.
func (s *MarketStore) Replace(snap *models.MarketSnapshot) (*models.MarketSnapshot, error) {
	if snap.Len() == 0 {
		return nil, models.ErrEmptySnapshot
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var seq uint64 = 1
	if prev := s.current.Load(); prev != nil {
		seq = prev.snap.Seq() + 1
	}
	next := snap.WithSeq(seq)
	s.current.Store(&storeEntry{snap: next, storedAt: s.now()})
	return next, nil
}

// Read returns the current snapshot, or nil before the first Replace.
func (s *MarketStore) Read() *models.MarketSnapshot {
	if e := s.current.Load(); e != nil {
		return e.snap
	}
	return nil
}

func (s *MarketStore) LastUpdatedAt() time.Time {
	if e := s.current.Load(); e != nil {
		return e.storedAt
	}
	return time.Time{}
}

func (s *MarketStore) Quote(symbol string) (models.Quote, bool) {
	return s.Read().Get(symbol)
}

// Age is how long ago the current snapshot was stored; effectively infinite
// when nothing is stored yet.
func (s *MarketStore) Age(now time.Time) time.Duration {
	e := s.current.Load()
	if e == nil {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(e.storedAt)
}
