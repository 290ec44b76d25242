// internal/api/handler/api/request.go
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/strategy"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// DataSpec selects the candle series of a request. Empty fields use the
// server configuration.
type DataSpec struct {
	Source    string `json:"source,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	Since     string `json:"since,omitempty"` // RFC 3339 or YYYY-MM-DD
	Limit     int    `json:"limit,omitempty"`
}

func (d DataSpec) request() (app.DataRequest, error) {
	req := app.DataRequest{
		Source:    d.Source,
		Symbol:    d.Symbol,
		Timeframe: d.Timeframe,
		Limit:     d.Limit,
	}
	if d.Limit < 0 {
		return req, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("limit cannot be negative"))
	}
	if d.Since != "" {
		since, err := parseSince(d.Since)
		if err != nil {
			return req, core.WrapError(core.ErrConfigInvalid, err)
		}
		req.Since = since
	}
	return req, nil
}

func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since %q (expected RFC 3339 or YYYY-MM-DD)", s)
	}
	return t, nil
}

// Overrides adjusts the configured strategy parameters.
type Overrides struct {
	Params             map[string]float64 `json:"params,omitempty"`
	VolumeConfirmation *bool              `json:"volume_confirmation,omitempty"`
}

// apply returns base with the overrides applied in name order.
func (o Overrides) apply(base strategy.Params) (strategy.Params, error) {
	names := make([]string, 0, len(o.Params))
	for name := range o.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	p := base
	for _, name := range names {
		var err error
		if p, err = p.With(name, o.Params[name]); err != nil {
			return base, err
		}
	}
	if o.VolumeConfirmation != nil {
		p.VolumeConfirmation = *o.VolumeConfirmation
	}
	return p, p.Validate()
}

// decode reads a JSON body into dest, rejecting unknown fields.
func decode(r *http.Request, dest any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil && err != io.EOF {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("decoding request: %w", err))
	}
	return nil
}
