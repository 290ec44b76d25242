package strategy

import "math"

// VolatilityPolicy describes how configuration reacts to realized volatility
// when preparing the next run.
type VolatilityPolicy struct {
	// SizeFactor scales the base position size in high-volatility regimes.
	SizeFactor float64 `mapstructure:"size_factor" json:"size_factor"`
	// HighRSIPeriod is used when volatility exceeds the threshold.
	HighRSIPeriod int `mapstructure:"high_rsi_period" json:"high_rsi_period"`
	// NormalRSIPeriod is used otherwise.
	NormalRSIPeriod int `mapstructure:"normal_rsi_period" json:"normal_rsi_period"`
}

// DefaultVolatilityPolicy returns the production adjustment constants.
func DefaultVolatilityPolicy() VolatilityPolicy {
	return VolatilityPolicy{
		SizeFactor:      0.8,
		HighRSIPeriod:   10,
		NormalRSIPeriod: 14,
	}
}

// AdjustForVolatility returns the configuration to use on a subsequent run
// given the annualized volatility of this one. p itself is unchanged, and an
// undefined volatility leaves the configuration as is.
//
// The size is always derived from the base size, so feeding the result back
// in repeatedly scales it at most once and a calm run restores it.
func (p Params) AdjustForVolatility(volatility float64, policy VolatilityPolicy) Params {
	if math.IsNaN(volatility) {
		return p
	}

	next := p
	next.BasePositionSize = p.baseSize()
	if volatility > p.VolatilityThreshold {
		next.PositionSize = next.BasePositionSize * policy.SizeFactor
		next.RSIPeriod = policy.HighRSIPeriod
	} else {
		next.PositionSize = next.BasePositionSize
		next.RSIPeriod = policy.NormalRSIPeriod
	}
	return next
}

func (p Params) baseSize() float64 {
	if p.BasePositionSize > 0 {
		return p.BasePositionSize
	}
	return p.PositionSize
}
