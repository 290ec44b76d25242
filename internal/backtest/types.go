package backtest

import (
	"time"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/strategy"
)

// TradeType is the direction of an executed trade.
type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

// Reasons a trade was executed.
const (
	ReasonSignal = "signal"
	ReasonStop   = "stop"
)

// Trade is an immutable record of an executed buy or sell.
type Trade struct {
	Time    time.Time `json:"time"`
	Type    TradeType `json:"type"`
	Price   float64   `json:"price"`
	Amount  float64   `json:"amount"`
	Cost    float64   `json:"cost,omitempty"`   // buys only
	Profit  float64   `json:"profit,omitempty"` // sells only
	Balance float64   `json:"balance"`          // cash after the trade
	Reason  string    `json:"reason"`
}

// HasProfit reports whether the trade realized a profit or loss.
func (t Trade) HasProfit() bool {
	return t.Type == TradeSell
}

// IsWin returns true if the trade closed a position at a gain
func (t Trade) IsWin() bool {
	return t.HasProfit() && t.Profit > 0
}

// Position is an open long holding.
type Position struct {
	Side       string    `json:"side"`
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   float64   `json:"quantity"`
	StopLoss   float64   `json:"stop_loss,omitempty"` // 0 until a trailing stop is set
}

// Cost is the capital committed when the position was opened.
func (p Position) Cost() float64 {
	return p.Quantity * p.EntryPrice
}

// ResultRow is one entry of the per-candle results table.
type ResultRow struct {
	Time    time.Time   `json:"time"`
	Close   float64     `json:"close"`
	Balance float64     `json:"balance"` // cash
	Equity  float64     `json:"equity"`  // cash plus open positions at close
	Signal  core.Action `json:"signal"`
}

// Result holds the complete output of one backtest run. It is read-only
// once returned.
type Result struct {
	Params        strategy.Params `json:"params"`
	Rows          []ResultRow     `json:"rows"`
	Trades        []Trade         `json:"trades"`
	OpenPositions []Position      `json:"open_positions"`
	Metrics       Metrics         `json:"metrics"`
	// NextParams is the configuration suggested for a subsequent run after
	// volatility adjustment.
	NextParams strategy.Params `json:"next_params"`
}
