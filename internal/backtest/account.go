package backtest

import (
	"fmt"
	"time"

	"github.com/newthinker/momentum/internal/core"
	"go.uber.org/zap"
)

// ClosePolicy selects which open position a sell signal closes.
type ClosePolicy string

const (
	CloseLIFO ClosePolicy = "lifo" // most recently opened first
	CloseFIFO ClosePolicy = "fifo" // oldest first
)

// Account is the simulated account state of a single run: cash, a stack of
// open long positions and the trade log. It is not safe for concurrent use
// and must never be shared between runs.
type Account struct {
	cash      float64
	realized  float64
	positions []Position
	trades    []Trade
	policy    ClosePolicy
	log       *zap.Logger
}

// NewAccount creates an account funded with initial cash.
func NewAccount(initial float64, policy ClosePolicy, log *zap.Logger) *Account {
	if log == nil {
		log = zap.NewNop()
	}
	if policy == "" {
		policy = CloseLIFO
	}
	return &Account{
		cash:   initial,
		policy: policy,
		log:    log,
	}
}

// ApplyBuy spends fraction of the current cash on a new long position.
// Spending more than the available cash is an invariant violation.
func (a *Account) ApplyBuy(price float64, at time.Time, fraction float64) error {
	spend := a.cash * fraction
	if spend > a.cash || spend < 0 || price <= 0 {
		a.log.Error("buy rejected: invariant violated",
			zap.Float64("cash", a.cash),
			zap.Float64("spend", spend),
			zap.Float64("price", price),
			zap.Float64("fraction", fraction),
			zap.Int("open_positions", len(a.positions)),
			zap.Int("trades", len(a.trades)),
			zap.Time("time", at),
		)
		return core.WrapError(core.ErrSimulationInvariant,
			fmt.Errorf("buy of %.8f at %.8f with %.8f cash", spend, price, a.cash))
	}

	quantity := spend / price
	a.cash -= spend
	a.positions = append(a.positions, Position{
		Side:       "long",
		EntryTime:  at,
		EntryPrice: price,
		Quantity:   quantity,
	})
	a.trades = append(a.trades, Trade{
		Time:    at,
		Type:    TradeBuy,
		Price:   price,
		Amount:  quantity,
		Cost:    spend,
		Balance: a.cash,
		Reason:  ReasonSignal,
	})
	return nil
}

// ApplySell closes one open position chosen by the close policy. With no
// open positions the sell is dropped and false is returned.
func (a *Account) ApplySell(price float64, at time.Time, reason string) bool {
	if len(a.positions) == 0 {
		return false
	}

	idx := len(a.positions) - 1
	if a.policy == CloseFIFO {
		idx = 0
	}
	a.close(idx, price, at, reason)
	return true
}

// UpdateTrailingStop raises the stop of every open position to
// price*(1-pct) when that is higher. Stops never move down.
func (a *Account) UpdateTrailingStop(price, pct float64) {
	candidate := price * (1 - pct)
	for i := range a.positions {
		if candidate > a.positions[i].StopLoss {
			a.positions[i].StopLoss = candidate
		}
	}
}

// TriggerStops closes every position whose stop has been breached by price
// and returns how many were closed. Newer positions are closed first.
func (a *Account) TriggerStops(price float64, at time.Time) int {
	closed := 0
	for i := len(a.positions) - 1; i >= 0; i-- {
		stop := a.positions[i].StopLoss
		if stop > 0 && price <= stop {
			a.close(i, price, at, ReasonStop)
			closed++
		}
	}
	return closed
}

func (a *Account) close(idx int, price float64, at time.Time, reason string) {
	pos := a.positions[idx]
	proceeds := pos.Quantity * price
	profit := proceeds - pos.Cost()

	a.cash += proceeds
	a.realized += profit
	a.positions = append(a.positions[:idx], a.positions[idx+1:]...)
	a.trades = append(a.trades, Trade{
		Time:    at,
		Type:    TradeSell,
		Price:   price,
		Amount:  pos.Quantity,
		Profit:  profit,
		Balance: a.cash,
		Reason:  reason,
	})
}

// Cash returns the available cash balance.
func (a *Account) Cash() float64 {
	return a.cash
}

// RealizedProfit returns the sum of profits over all closed positions.
func (a *Account) RealizedProfit() float64 {
	return a.realized
}

// Equity returns cash plus open positions marked at price.
func (a *Account) Equity(price float64) float64 {
	equity := a.cash
	for _, p := range a.positions {
		equity += p.Quantity * price
	}
	return equity
}

// Positions returns a copy of the open positions, oldest first.
func (a *Account) Positions() []Position {
	return append([]Position(nil), a.positions...)
}

// Trades returns a copy of the trade log.
func (a *Account) Trades() []Trade {
	return append([]Trade(nil), a.trades...)
}
