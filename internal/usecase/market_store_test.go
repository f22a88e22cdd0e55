package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
)

func TestMarketStore_EmptyBeforeFirstReplace(t *testing.T) {
	s := NewMarketStore()
	assert.Nil(t, s.Read())
	assert.True(t, s.LastUpdatedAt().IsZero())
	_, ok := s.Quote("BTCUSDT")
	assert.False(t, ok)
}

func TestMarketStore_RejectsEmpty(t *testing.T) {
	s := NewMarketStore()
	_, err := s.Replace(models.NewMarketSnapshot("x", time.Now(), nil))
	assert.ErrorIs(t, err, models.ErrEmptySnapshot)
	assert.Nil(t, s.Read())
}

func TestMarketStore_SequenceIncreases(t *testing.T) {
	s := NewMarketStore()
	for i := 1; i <= 3; i++ {
		snap, err := s.Replace(models.NewMarketSnapshot("x", time.Now(), []models.Quote{quote("BTCUSDT", 100, 0)}))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), snap.Seq())
	}
	assert.Equal(t, uint64(3), s.Read().Seq())
}

// Readers racing a writer must only ever observe one whole snapshot: either
// every quote from generation A or every quote from generation B.
func TestMarketStore_ReadersSeeWholeSnapshots(t *testing.T) {
	s := NewMarketStore()
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"}
	gen := func(price float64) *models.MarketSnapshot {
		qs := make([]models.Quote, 0, len(symbols))
		for _, sym := range symbols {
			qs = append(qs, quote(sym, price, 0))
		}
		return models.NewMarketSnapshot("x", time.Now(), qs)
	}
	_, err := s.Replace(gen(1))
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 2; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = s.Replace(gen(float64(i)))
		}
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				snap := s.Read()
				first, _ := snap.Get(symbols[0])
				for _, sym := range symbols[1:] {
					q, ok := snap.Get(sym)
					if !assert.True(t, ok) || !assert.Equal(t, first.Price, q.Price) {
						return
					}
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestMarketStore_Age(t *testing.T) {
	s := NewMarketStore()
	base := time.Unix(1000, 0)
	s.now = func() time.Time { return base }
	_, err := s.Replace(models.NewMarketSnapshot("x", base, []models.Quote{quote("BTCUSDT", 1, 0)}))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, s.Age(base.Add(5*time.Second)))
}
