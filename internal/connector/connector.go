// Package connector defines the capability the gateway needs from an
// exchange and the exchange-native shapes it returns. Adapters in the
// sub-packages translate each exchange SDK into these shapes without
// interpreting them; numeric values stay as the exchange's decimal strings
// and timestamps as epoch milliseconds.
package connector

import "context"

// Connector talks to one exchange. Symbols are unified BASE/QUOTE strings;
// adapters convert them to the native form.
type Connector interface {
	Name() string
	// HasCredentials reports whether private endpoints can be called.
	HasCredentials() bool

	LoadMarkets(ctx context.Context) ([]Market, error)
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]OHLCV, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error)
	FetchTrades(ctx context.Context, symbol string, limit int) ([]Trade, error)
	FetchBalance(ctx context.Context) ([]BalanceEntry, error)
	FetchOrder(ctx context.Context, orderID, symbol string) (Order, error)
	// FetchOpenOrders lists open orders; an empty symbol means all symbols.
	FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	CreateOrder(ctx context.Context, params OrderParams) (Order, error)
	CancelOrder(ctx context.Context, orderID, symbol string) error
}

// PrecisionMode tells how a Market's precision strings are to be read.
type PrecisionMode int

const (
	// PrecisionAuto reads integral values as decimal places and fractional
	// values as tick sizes.
	PrecisionAuto PrecisionMode = iota
	PrecisionDecimalPlaces
	PrecisionTickSize
)

// Market is the exchange's description of one tradable symbol.
type Market struct {
	Symbol          string
	Base            string
	Quote           string
	Active          bool
	PrecisionMode   PrecisionMode
	AmountPrecision string
	PricePrecision  string
	MinAmount       string
}

// Ticker is a 24h rolling ticker. Empty strings mean the exchange did not report the value.
type Ticker struct {
	Symbol        string
	Last          string
	Open          string
	High          string
	Low           string
	Bid           string
	Ask           string
	BaseVolume    string
	QuoteVolume   string
	Change        string
	ChangePercent string
	Timestamp     int64
}

// OHLCV is one candle.
type OHLCV struct {
	Timestamp int64
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
}

// OrderBook holds [price, size] pairs in whatever order the exchange sent them.
type OrderBook struct {
	Symbol    string
	Bids      [][2]string
	Asks      [][2]string
	Timestamp int64
}

// Trade is one public execution.
type Trade struct {
	ID           string
	Symbol       string
	Side         string
	Price        string
	Amount       string
	Cost         string
	TakerOrMaker string
	Timestamp    int64
}

// BalanceEntry is one asset in an account. Free may be empty when the
// exchange only reports total and locked.
type BalanceEntry struct {
	Asset  string
	Free   string
	Locked string
	Total  string
}

// Order is an exchange order in native vocabulary. Status is the raw
// exchange status string.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          string
	Type          string
	Status        string
	Amount        string
	Filled        string
	Remaining     string
	Price         string
	Average       string
	Cost          string
	Timestamp     int64
}

// OrderParams are the already-adjusted values of an order to submit.
// Price and StopPrice are empty when not applicable.
type OrderParams struct {
	Symbol        string
	Side          string
	Type          string
	Amount        string
	Price         string
	StopPrice     string
	ClientOrderID string
}
