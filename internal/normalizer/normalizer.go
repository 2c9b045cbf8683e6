// Package normalizer turns connector-native responses into the gateway's
// model types. Every function is pure: monetary values go through exact
// decimal parsing, timestamps come out in UTC, and values the exchange did
// not report stay unset instead of becoming zero.
package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedResponse is returned when a connector response cannot be
// represented in the unified model.
var ErrMalformedResponse = errors.New("malformed exchange response")

// DefaultTolerance bounds |filled + remaining - quantity| for non-rejected orders.
var DefaultTolerance = decimal.New(1, -8)

var hundred = decimal.NewFromInt(100)

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// optional parses a value the exchange may omit.
func optional(field, raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, malformed("%s %q: %v", field, raw, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// required parses a value that must be present.
func required(field, raw string) (decimal.Decimal, error) {
	v, err := optional(field, raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !v.Valid {
		return decimal.Decimal{}, malformed("%s is missing", field)
	}
	return v.Decimal, nil
}

// timestamp converts epoch milliseconds to UTC, using now when the exchange sent none.
func timestamp(ms int64, now time.Time) time.Time {
	if ms <= 0 {
		return now.UTC()
	}
	return time.UnixMilli(ms).UTC()
}

func percentOf(delta, base decimal.Decimal) decimal.NullDecimal {
	if !base.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(delta.Div(base).Mul(hundred))
}
