package strategy_test

import (
	"errors"
	"testing"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParams(t *testing.T) {
	p := strategy.DefaultParams()

	assert.Equal(t, 10, p.RSIPeriod)
	assert.Equal(t, 75.0, p.RSIOverbought)
	assert.Equal(t, 25.0, p.RSIOversold)
	assert.Equal(t, 0.02, p.PositionSize)
	assert.Equal(t, 20, p.Warmup())
	assert.NoError(t, p.Validate())
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*strategy.Params)
	}{
		{"negative period", func(p *strategy.Params) { p.RSIPeriod = -1 }},
		{"zero volume window", func(p *strategy.Params) { p.VolumeWindow = 0 }},
		{"fast not below slow", func(p *strategy.Params) { p.MACDFast = 26 }},
		{"size above one", func(p *strategy.Params) { p.PositionSize = 1.5 }},
		{"zero size", func(p *strategy.Params) { p.PositionSize = 0 }},
		{"inverted thresholds", func(p *strategy.Params) { p.RSIOversold = 80 }},
		{"overbought above 100", func(p *strategy.Params) { p.RSIOverbought = 120 }},
		{"negative volume threshold", func(p *strategy.Params) { p.VolumeThreshold = -1 }},
		{"stop of 100%", func(p *strategy.Params) { p.TrailingStopPct = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := strategy.DefaultParams()
			tt.mutate(&p)

			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrConfigInvalid))
		})
	}
}

func TestParams_WithDoesNotMutate(t *testing.T) {
	base := strategy.DefaultParams()

	next, err := base.With(strategy.ParamRSIPeriod, 16)
	require.NoError(t, err)

	assert.Equal(t, 16, next.RSIPeriod)
	assert.Equal(t, 10, base.RSIPeriod, "receiver must be unchanged")
}

func TestParams_GetWithRoundTrip(t *testing.T) {
	names := []string{
		strategy.ParamRSIPeriod, strategy.ParamRSIOverbought, strategy.ParamRSIOversold,
		strategy.ParamPositionSize, strategy.ParamVolumeThreshold, strategy.ParamVolumeWindow,
		strategy.ParamMACDFast, strategy.ParamMACDSlow, strategy.ParamMACDSignal,
		strategy.ParamTrailingStopPct, strategy.ParamVolatilityThreshold,
	}

	p := strategy.DefaultParams()
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			next, err := p.With(name, 7)
			require.NoError(t, err)
			got, err := next.Get(name)
			require.NoError(t, err)
			assert.Equal(t, 7.0, got)
		})
	}
}

func TestParams_WithAlias(t *testing.T) {
	p, err := strategy.DefaultParams().With("position_size_fraction", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.PositionSize)
}

func TestParams_WithRejects(t *testing.T) {
	p := strategy.DefaultParams()

	_, err := p.With(strategy.ParamRSIPeriod, 12.5)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid), "fractional period should be rejected")

	_, err = p.With("no_such_param", 1)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid), "unknown name should be rejected")

	assert.False(t, strategy.IsParam("no_such_param"))
	assert.True(t, strategy.IsParam(strategy.ParamVolumeThreshold))
}
