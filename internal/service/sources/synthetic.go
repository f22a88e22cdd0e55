package sources

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
)

// DefaultSeed is served before any real snapshot has ever been fetched.
var DefaultSeed = []models.Quote{
	{Symbol: "BTCUSDT", Price: 43251.50, ChangePercent24h: 2.45, Volume24h: 125_000_000, High24h: 44100.00, Low24h: 42800.00},
	{Symbol: "ETHUSDT", Price: 2651.75, ChangePercent24h: -1.23, Volume24h: 89_000_000, High24h: 2720.50, Low24h: 2580.25},
	{Symbol: "BNBUSDT", Price: 315.20, ChangePercent24h: 0.85, Volume24h: 45_000_000, High24h: 325.80, Low24h: 308.90},
	{Symbol: "ADAUSDT", Price: 0.4856, ChangePercent24h: 3.21, Volume24h: 28_000_000, High24h: 0.5120, Low24h: 0.4650},
	{Symbol: "SOLUSDT", Price: 98.45, ChangePercent24h: -2.10, Volume24h: 67_000_000, High24h: 105.20, Low24h: 95.80},
	{Symbol: "DOTUSDT", Price: 7.85, ChangePercent24h: 1.45, Volume24h: 23_000_000, High24h: 8.15, Low24h: 7.60},
}

// SyntheticSource generates quotes locally: a fixed seed, or a small random
// walk from the last known snapshot.
type SyntheticSource struct {
	mu     sync.Mutex
	rng    *rand.Rand
	jitter float64
	seed   map[string]models.Quote
}

// NewSyntheticSource moves prices by at most jitterPct percent per call.
// A nil rng is seeded from the clock.
func NewSyntheticSource(jitterPct float64, rng *rand.Rand) *SyntheticSource {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>17))
	}
	seed := make(map[string]models.Quote, len(DefaultSeed))
	for _, q := range DefaultSeed {
		q.DisplaySymbol = models.DisplaySymbolFor(q.Symbol)
		seed[q.Symbol] = q
	}
	return &SyntheticSource{
		rng:    rng,
		jitter: jitterPct / 100,
		seed:   seed,
	}
}

// Seed returns the static seed for symbols. Unknown symbols get a neutral
// placeholder so the snapshot is never empty.
func (s *SyntheticSource) Seed(symbols []string, at time.Time) *models.MarketSnapshot {
	quotes := make([]models.Quote, 0, len(symbols))
	for _, sym := range symbols {
		q := s.seedQuote(sym)
		q.ObservedAt = at
		quotes = append(quotes, q)
	}
	return models.NewSyntheticSnapshot(at, quotes)
}

// Perturb moves every requested symbol from its last known quote, or from
// the seed when last lacks it.
func (s *SyntheticSource) Perturb(last *models.MarketSnapshot, symbols []string, at time.Time) *models.MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	quotes := make([]models.Quote, 0, len(symbols))
	for _, sym := range symbols {
		base, ok := last.Get(sym)
		if !ok {
			base = s.seedQuote(sym)
		}
		quotes = append(quotes, s.step(base, at))
	}
	return models.NewSyntheticSnapshot(at, quotes)
}

func (s *SyntheticSource) step(base models.Quote, at time.Time) models.Quote {
	move := (s.rng.Float64()*2 - 1) * s.jitter
	price := round8(base.Price * (1 + move))

	prevClose := base.Price
	if f := 1 + base.ChangePercent24h/100; f > 0 {
		prevClose = base.Price / f
	}
	q := base
	q.Price = price
	q.ChangePercent24h = math.Round((price/prevClose-1)*100*100) / 100
	q.High24h = math.Max(base.High24h, price)
	q.Low24h = math.Min(base.Low24h, price)
	q.ObservedAt = at
	return q
}

func (s *SyntheticSource) seedQuote(sym string) models.Quote {
	if q, ok := s.seed[sym]; ok {
		return q
	}
	return models.Quote{
		Symbol:        sym,
		DisplaySymbol: models.DisplaySymbolFor(sym),
		Price:         100,
		High24h:       102,
		Low24h:        98,
	}
}

func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
