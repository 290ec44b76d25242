package strategy

import (
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/indicator"
)

// Generate maps one indicator row to a trading decision. Buy is checked
// before sell; rows with any undefined indicator never produce a signal.
func Generate(row indicator.Row, p Params) core.Action {
	if !row.Ready() {
		return core.ActionNone
	}

	volumeOK := !p.VolumeConfirmation || row.VolumeRatio > p.VolumeThreshold

	switch {
	case row.RSI < p.RSIOversold && row.MACD > row.SignalLine && volumeOK:
		return core.ActionBuy
	case row.RSI > p.RSIOverbought && row.MACD < row.SignalLine && volumeOK:
		return core.ActionSell
	}
	return core.ActionNone
}

// GenerateAt is Generate for the row at index i of a computed series. The
// first Warmup rows never signal, even where the shorter volume window has
// already filled.
func GenerateAt(i int, row indicator.Row, p Params) core.Action {
	if i < p.Warmup() {
		return core.ActionNone
	}
	return Generate(row, p)
}
