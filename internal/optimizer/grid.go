package optimizer

import (
	"fmt"
	"math"
	"slices"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/strategy"
	"github.com/samber/lo"
)

// Dimension is one tunable parameter and its candidate values, kept in
// ascending order without duplicates.
type Dimension struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// NewDimension builds a dimension from values in any order.
func NewDimension(name string, values ...float64) Dimension {
	vals := lo.Uniq(values)
	slices.Sort(vals)
	return Dimension{Name: strategy.CanonicalName(name), Values: vals}
}

// Range builds a dimension stepping from start to stop inclusive.
func Range(name string, start, stop, step float64) (Dimension, error) {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return Dimension{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("%s: step must be positive, got %g", name, step))
	}
	if stop < start {
		return Dimension{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("%s: stop %g is below start %g", name, stop, start))
	}

	n := int(math.Floor((stop-start)/step+1e-9)) + 1
	values := make([]float64, n)
	for i := range values {
		// rounding keeps 0.1+0.2 style drift out of exported tables
		values[i] = math.Round((start+float64(i)*step)*1e9) / 1e9
	}
	return NewDimension(name, values...), nil
}

// Grid is an ordered list of dimensions. Enumeration follows declaration
// order with the last dimension varying fastest.
type Grid []Dimension

// Names returns the dimension names in declaration order.
func (g Grid) Names() []string {
	return lo.Map(g, func(d Dimension, _ int) string { return d.Name })
}

// Size is the number of combinations in the Cartesian product.
func (g Grid) Size() int {
	return lo.Reduce(g, func(acc int, d Dimension, _ int) int {
		return acc * len(d.Values)
	}, 1)
}

// Validate checks every dimension names a known parameter, appears once and
// has at least one finite candidate.
func (g Grid) Validate() error {
	if dups := lo.FindDuplicates(g.Names()); len(dups) > 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("duplicate grid parameters %v", dups))
	}
	for _, d := range g {
		if !strategy.IsParam(d.Name) {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown grid parameter %q", d.Name))
		}
		if len(d.Values) == 0 {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("grid parameter %q has no values", d.Name))
		}
		for _, v := range d.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("grid parameter %q has non-finite value", d.Name))
			}
		}
	}
	return nil
}

// Combination is one point of the grid applied to a base configuration.
type Combination struct {
	Index  int
	Values []float64 // aligned with Grid.Names()
	Params strategy.Params
}

// Combinations enumerates the Cartesian product over base. Each returned
// Params is an independent copy that has passed validation.
func (g Grid) Combinations(base strategy.Params) ([]Combination, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	points := [][]float64{{}}
	for _, d := range g {
		points = lo.FlatMap(points, func(prefix []float64, _ int) [][]float64 {
			return lo.Map(d.Values, func(v float64, _ int) []float64 {
				next := make([]float64, len(prefix), len(prefix)+1)
				copy(next, prefix)
				return append(next, v)
			})
		})
	}

	combos := make([]Combination, len(points))
	for i, values := range points {
		params := base
		for j, v := range values {
			var err error
			if params, err = params.With(g[j].Name, v); err != nil {
				return nil, err
			}
		}
		if err := params.Validate(); err != nil {
			return nil, fmt.Errorf("combination %d %v: %w", i, g.describe(values), err)
		}
		combos[i] = Combination{Index: i, Values: values, Params: params}
	}
	return combos, nil
}

func (g Grid) describe(values []float64) map[string]float64 {
	out := make(map[string]float64, len(g))
	for i, d := range g {
		out[d.Name] = values[i]
	}
	return out
}
