package strategy

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

// Params are the free-form strategy parameters from run configuration.
type Params map[string]string

// Builder constructs a fresh strategy instance from run parameters. Every
// run gets its own instance so concurrent runs never share indicator state.
type Builder func(params Params) (Strategy, error)

// Registry maps strategy identifiers to builders. It is built once at
// startup and treated as immutable for the process lifetime; there is no
// re-registration during active runs.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry creates a registry containing the built-in strategies plus any
// extra builders supplied by the caller.
func NewRegistry(extra map[string]Builder) *Registry {
	builders := map[string]Builder{
		"sma_cross": func(params Params) (Strategy, error) {
			short := params.intOr("short_period", 5)
			long := params.intOr("long_period", 20)

			return NewSMACrossover(short, long), nil
		},
		"momentum": func(params Params) (Strategy, error) {
			lookback := params.intOr("lookback", 10)

			threshold, err := params.decimalOr("threshold", decimal.RequireFromString("0.02"))
			if err != nil {
				return nil, err
			}

			return NewMomentum(lookback, threshold), nil
		},
	}

	for name, builder := range extra {
		builders[name] = builder
	}

	return &Registry{builders: builders}
}

// Build constructs a new strategy instance by name.
func (r *Registry) Build(name string, params Params) (Strategy, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidStrategy, "unknown strategy %q", name)
	}

	return builder(params)
}

// Names returns the registered strategy names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
