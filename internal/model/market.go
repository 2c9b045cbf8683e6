package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is a point-in-time view of one symbol's ticker.
// Only Last is guaranteed; the other numeric fields are unset when the
// exchange did not report them.
type MarketSnapshot struct {
	Exchange      string
	Symbol        string
	Last          decimal.Decimal
	High          decimal.NullDecimal
	Low           decimal.NullDecimal
	Bid           decimal.NullDecimal
	Ask           decimal.NullDecimal
	BaseVolume    decimal.NullDecimal
	QuoteVolume   decimal.NullDecimal
	ChangePercent decimal.NullDecimal
	SpreadPercent decimal.NullDecimal
	Timestamp     time.Time
}

// Candle is one OHLCV point.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// Trade is one public execution on an exchange.
type Trade struct {
	ID           string
	Symbol       string
	Side         Side
	Price        decimal.Decimal
	Amount       decimal.Decimal
	Cost         decimal.Decimal
	TakerOrMaker string
	Timestamp    time.Time
}

// PriceLevel is one aggregated order book level.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBookSnapshot holds bids sorted by descending price and asks by ascending price.
type OrderBookSnapshot struct {
	Exchange  string
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestBid returns the top bid level, if any.
func (b OrderBookSnapshot) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level, if any.
func (b OrderBookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// PrecisionMode tells how a Precision constrains values.
type PrecisionMode int

const (
	PrecisionUnset PrecisionMode = iota
	// PrecisionDecimalPlaces limits the number of fractional digits.
	PrecisionDecimalPlaces
	// PrecisionTickSize requires values to be multiples of Step.
	PrecisionTickSize
)

// Precision is the granularity an exchange accepts for a field.
type Precision struct {
	Mode   PrecisionMode
	Places int32
	Step   decimal.Decimal
}

// Places returns a decimal-places precision.
func Places(n int32) Precision {
	return Precision{Mode: PrecisionDecimalPlaces, Places: n}
}

// Step returns a tick-size precision.
func Step(step decimal.Decimal) Precision {
	return Precision{Mode: PrecisionTickSize, Step: step}
}

// MarketMetadata describes one tradable symbol on one exchange.
type MarketMetadata struct {
	Exchange        string
	Symbol          string
	Base            string
	Quote           string
	Active          bool
	AmountPrecision Precision
	PricePrecision  Precision
	MinAmount       decimal.NullDecimal
}
