package core

import "time"

// Candle is one OHLCV sample for a fixed period.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Timestamp returns the candle open time in milliseconds since epoch.
func (c Candle) Timestamp() int64 {
	return c.Time.UnixMilli()
}

// Action represents a trading decision for one candle.
type Action string

const (
	ActionNone Action = ""
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// String renders ActionNone as "none" so exports never carry empty cells.
func (a Action) String() string {
	if a == ActionNone {
		return "none"
	}
	return string(a)
}
