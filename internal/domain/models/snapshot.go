package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MarketSnapshot is an immutable set of quotes captured together. It has no
// mutators; a new cycle always builds a new snapshot, so readers can share
// one without copying.
type MarketSnapshot struct {
	quotes     map[string]Quote
	symbols    []string
	source     string
	capturedAt time.Time
	seq        uint64
	synthetic  bool
}

// NewMarketSnapshot copies quotes into a new snapshot. A later duplicate
// symbol replaces an earlier one.
func NewMarketSnapshot(source string, capturedAt time.Time, quotes []Quote) *MarketSnapshot {
	m := make(map[string]Quote, len(quotes))
	for _, q := range quotes {
		m[q.Symbol] = q
	}
	symbols := make([]string, 0, len(m))
	for s := range m {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	return &MarketSnapshot{
		quotes:     m,
		symbols:    symbols,
		source:     source,
		capturedAt: capturedAt,
	}
}

// NewSyntheticSnapshot builds a snapshot flagged as locally generated.
func NewSyntheticSnapshot(capturedAt time.Time, quotes []Quote) *MarketSnapshot {
	s := NewMarketSnapshot("synthetic", capturedAt, quotes)
	s.synthetic = true
	return s
}

func (s *MarketSnapshot) Get(symbol string) (Quote, bool) {
	if s == nil {
		return Quote{}, false
	}
	q, ok := s.quotes[symbol]
	return q, ok
}

func (s *MarketSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.quotes)
}

// Symbols returns the sorted symbol list.
func (s *MarketSnapshot) Symbols() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// Quotes returns the quotes ordered by symbol.
func (s *MarketSnapshot) Quotes() []Quote {
	if s == nil {
		return nil
	}
	out := make([]Quote, 0, len(s.symbols))
	for _, sym := range s.symbols {
		out = append(out, s.quotes[sym])
	}
	return out
}

func (s *MarketSnapshot) Source() string        { return s.source }
func (s *MarketSnapshot) CapturedAt() time.Time { return s.capturedAt }
func (s *MarketSnapshot) Seq() uint64           { return s.seq }
func (s *MarketSnapshot) Synthetic() bool       { return s.synthetic }

// WithSeq returns a copy carrying seq. The quote map is shared.
func (s *MarketSnapshot) WithSeq(seq uint64) *MarketSnapshot {
	c := *s
	c.seq = seq
	return &c
}

// Covers reports which of the requested symbols are missing or invalid.
func (s *MarketSnapshot) Covers(symbols []string) error {
	var problems []string
	for _, sym := range symbols {
		q, ok := s.Get(sym)
		if !ok {
			problems = append(problems, sym+": missing")
			continue
		}
		if err := q.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("incomplete snapshot: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MarshalJSON renders the snapshot as a symbol keyed object, the shape the
// dashboard consumes.
func (s *MarketSnapshot) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.quotes)
}
