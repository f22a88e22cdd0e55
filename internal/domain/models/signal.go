package models

import "time"

type Verdict string

const (
	VerdictBuy  Verdict = "BUY"
	VerdictSell Verdict = "SELL"
	VerdictHold Verdict = "HOLD"
)

// Signal is an advisory verdict for one symbol.
type Signal struct {
	Symbol     string    `json:"pair"`
	Verdict    Verdict   `json:"signal"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"reasoning"`
	ComputedAt time.Time `json:"timestamp"`
}
