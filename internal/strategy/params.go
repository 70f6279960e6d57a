package strategy

import (
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

func (p Params) intOr(key string, fallback int) int {
	raw, ok := p[key]
	if !ok {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}

	return value
}

func (p Params) decimalOr(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw, ok := p[key]
	if !ok {
		return fallback, nil
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrCodeInvalidStrategy, err, "invalid decimal parameter %q", key)
	}

	return value, nil
}
