package strategy

import (
	"fmt"
	"math"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/indicator"
)

// Tunable parameter names, as used by config files and optimizer grids.
const (
	ParamRSIPeriod           = "rsi_period"
	ParamRSIOverbought       = "rsi_overbought"
	ParamRSIOversold         = "rsi_oversold"
	ParamPositionSize        = "position_size"
	ParamVolumeThreshold     = "volume_threshold"
	ParamVolumeWindow        = "volume_window"
	ParamMACDFast            = "macd_fast"
	ParamMACDSlow            = "macd_slow"
	ParamMACDSignal          = "macd_signal"
	ParamTrailingStopPct     = "trailing_stop_pct"
	ParamVolatilityThreshold = "volatility_threshold"
)

// paramAliases maps alternative spellings onto canonical names.
var paramAliases = map[string]string{
	"position_size_fraction": ParamPositionSize,
}

// integerParams must hold whole numbers.
var integerParams = map[string]bool{
	ParamRSIPeriod:    true,
	ParamVolumeWindow: true,
	ParamMACDFast:     true,
	ParamMACDSlow:     true,
	ParamMACDSignal:   true,
}

// Params is one immutable snapshot of strategy configuration. It is a plain
// value: copies never share state, so a run can adjust its own copy freely.
type Params struct {
	RSIPeriod           int     `mapstructure:"rsi_period" json:"rsi_period"`
	RSIOverbought       float64 `mapstructure:"rsi_overbought" json:"rsi_overbought"`
	RSIOversold         float64 `mapstructure:"rsi_oversold" json:"rsi_oversold"`
	MACDFast            int     `mapstructure:"macd_fast" json:"macd_fast"`
	MACDSlow            int     `mapstructure:"macd_slow" json:"macd_slow"`
	MACDSignal          int     `mapstructure:"macd_signal" json:"macd_signal"`
	VolumeWindow        int     `mapstructure:"volume_window" json:"volume_window"`
	VolumeThreshold     float64 `mapstructure:"volume_threshold" json:"volume_threshold"`
	VolumeConfirmation  bool    `mapstructure:"volume_confirmation" json:"volume_confirmation"`
	PositionSize        float64 `mapstructure:"position_size" json:"position_size"`
	TrailingStopPct     float64 `mapstructure:"trailing_stop_pct" json:"trailing_stop_pct"`
	VolatilityThreshold float64 `mapstructure:"volatility_threshold" json:"volatility_threshold"`

	// BasePositionSize is the unadjusted PositionSize, recorded by the first
	// volatility adjustment. Zero means PositionSize is the base.
	BasePositionSize float64 `mapstructure:"base_position_size" json:"base_position_size,omitempty"`
}

// DefaultParams returns the production momentum configuration.
func DefaultParams() Params {
	return Params{
		RSIPeriod:           10,
		RSIOverbought:       75,
		RSIOversold:         25,
		MACDFast:            12,
		MACDSlow:            26,
		MACDSignal:          9,
		VolumeWindow:        20,
		VolumeThreshold:     1.2,
		VolumeConfirmation:  true,
		PositionSize:        0.02,
		TrailingStopPct:     0.02,
		VolatilityThreshold: 2.5,
	}
}

// Indicators returns the indicator windows implied by p.
func (p Params) Indicators() indicator.Settings {
	return indicator.Settings{
		RSIPeriod:    p.RSIPeriod,
		MACDFast:     p.MACDFast,
		MACDSlow:     p.MACDSlow,
		MACDSignal:   p.MACDSignal,
		VolumeWindow: p.VolumeWindow,
	}
}

// Warmup is the number of leading candles that can never produce a signal.
func (p Params) Warmup() int {
	return p.Indicators().Warmup()
}

// Validate checks every field is in range.
func (p Params) Validate() error {
	periods := []struct {
		name  string
		value int
	}{
		{ParamRSIPeriod, p.RSIPeriod},
		{ParamMACDFast, p.MACDFast},
		{ParamMACDSlow, p.MACDSlow},
		{ParamMACDSignal, p.MACDSignal},
		{ParamVolumeWindow, p.VolumeWindow},
	}
	for _, period := range periods {
		if period.value <= 0 {
			return invalid("%s must be positive, got %d", period.name, period.value)
		}
	}
	if p.MACDFast >= p.MACDSlow {
		return invalid("macd_fast (%d) must be less than macd_slow (%d)", p.MACDFast, p.MACDSlow)
	}
	if !finite(p.RSIOversold, p.RSIOverbought, p.VolumeThreshold, p.PositionSize, p.TrailingStopPct, p.VolatilityThreshold) {
		return invalid("parameters must be finite")
	}
	if p.RSIOversold < 0 || p.RSIOverbought > 100 || p.RSIOversold >= p.RSIOverbought {
		return invalid("need 0 <= rsi_oversold < rsi_overbought <= 100, got %g/%g", p.RSIOversold, p.RSIOverbought)
	}
	if p.PositionSize <= 0 || p.PositionSize > 1 {
		return invalid("position_size must be in (0, 1], got %g", p.PositionSize)
	}
	if p.BasePositionSize < 0 || p.BasePositionSize > 1 || !finite(p.BasePositionSize) {
		return invalid("base_position_size must be in [0, 1], got %g", p.BasePositionSize)
	}
	if p.VolumeThreshold < 0 {
		return invalid("volume_threshold cannot be negative, got %g", p.VolumeThreshold)
	}
	if p.TrailingStopPct < 0 || p.TrailingStopPct >= 1 {
		return invalid("trailing_stop_pct must be in [0, 1), got %g", p.TrailingStopPct)
	}
	if p.VolatilityThreshold < 0 {
		return invalid("volatility_threshold cannot be negative, got %g", p.VolatilityThreshold)
	}
	return nil
}

// Get returns the named parameter as a float.
func (p Params) Get(name string) (float64, error) {
	switch CanonicalName(name) {
	case ParamRSIPeriod:
		return float64(p.RSIPeriod), nil
	case ParamRSIOverbought:
		return p.RSIOverbought, nil
	case ParamRSIOversold:
		return p.RSIOversold, nil
	case ParamPositionSize:
		return p.PositionSize, nil
	case ParamVolumeThreshold:
		return p.VolumeThreshold, nil
	case ParamVolumeWindow:
		return float64(p.VolumeWindow), nil
	case ParamMACDFast:
		return float64(p.MACDFast), nil
	case ParamMACDSlow:
		return float64(p.MACDSlow), nil
	case ParamMACDSignal:
		return float64(p.MACDSignal), nil
	case ParamTrailingStopPct:
		return p.TrailingStopPct, nil
	case ParamVolatilityThreshold:
		return p.VolatilityThreshold, nil
	}
	return 0, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown parameter %q", name))
}

// With returns a copy of p with the named parameter overridden. The receiver
// is never modified.
func (p Params) With(name string, value float64) (Params, error) {
	name = CanonicalName(name)
	if integerParams[name] && value != math.Trunc(value) {
		return p, invalid("%s must be a whole number, got %g", name, value)
	}

	switch name {
	case ParamRSIPeriod:
		p.RSIPeriod = int(value)
	case ParamRSIOverbought:
		p.RSIOverbought = value
	case ParamRSIOversold:
		p.RSIOversold = value
	case ParamPositionSize:
		p.PositionSize = value
		p.BasePositionSize = 0
	case ParamVolumeThreshold:
		p.VolumeThreshold = value
	case ParamVolumeWindow:
		p.VolumeWindow = int(value)
	case ParamMACDFast:
		p.MACDFast = int(value)
	case ParamMACDSlow:
		p.MACDSlow = int(value)
	case ParamMACDSignal:
		p.MACDSignal = int(value)
	case ParamTrailingStopPct:
		p.TrailingStopPct = value
	case ParamVolatilityThreshold:
		p.VolatilityThreshold = value
	default:
		return p, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown parameter %q", name))
	}
	return p, nil
}

// IsParam reports whether name is a tunable parameter.
func IsParam(name string) bool {
	_, err := Params{}.Get(name)
	return err == nil
}

// CanonicalName resolves parameter aliases such as position_size_fraction.
func CanonicalName(name string) string {
	if c, ok := paramAliases[name]; ok {
		return c
	}
	return name
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func invalid(format string, args ...any) error {
	return core.WrapError(core.ErrConfigInvalid, fmt.Errorf(format, args...))
}
