// Package connectortest provides a scripted connector for tests.
package connectortest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"exgateway/internal/connector"
)

// Method names recorded in Call.Method.
const (
	MethodLoadMarkets     = "LoadMarkets"
	MethodFetchTicker     = "FetchTicker"
	MethodFetchOHLCV      = "FetchOHLCV"
	MethodFetchOrderBook  = "FetchOrderBook"
	MethodFetchTrades     = "FetchTrades"
	MethodFetchBalance    = "FetchBalance"
	MethodFetchOrder      = "FetchOrder"
	MethodFetchOpenOrders = "FetchOpenOrders"
	MethodCreateOrder     = "CreateOrder"
	MethodCancelOrder     = "CancelOrder"
)

// Call is one recorded invocation.
type Call struct {
	Method string
	Symbol string
	At     time.Time
	Params connector.OrderParams
}

// Fake is an in-memory connector. Zero-value maps behave as empty.
type Fake struct {
	ExchangeName string
	Credentials  bool

	Markets []connector.Market
	Tickers map[string]connector.Ticker
	Candles []connector.OHLCV
	Book    connector.OrderBook
	Trades  []connector.Trade
	Balance []connector.BalanceEntry
	Orders  map[string]connector.Order

	// CreateOrderFunc answers CreateOrder; by default the order is echoed back as NEW.
	CreateOrderFunc func(connector.OrderParams) (connector.Order, error)

	mu     sync.Mutex
	errs   map[string]error
	panics map[string]bool
	calls  []Call
}

// New returns a fake with credentials configured.
func New(name string) *Fake {
	return &Fake{
		ExchangeName: name,
		Credentials:  true,
		Tickers:      make(map[string]connector.Ticker),
		Orders:       make(map[string]connector.Order),
	}
}

var _ connector.Connector = (*Fake)(nil)

// Fail makes every later call to method return err. A nil err clears it.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// Panic makes method panic when called.
func (f *Fake) Panic(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics == nil {
		f.panics = make(map[string]bool)
	}
	f.panics[method] = true
}

// Calls returns the recorded invocations of method, or all when method is empty.
func (f *Fake) Calls(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, 0, len(f.calls))
	for _, c := range f.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(method, symbol string, params connector.OrderParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, Symbol: symbol, At: time.Now(), Params: params})
	if f.panics[method] {
		panic(fmt.Sprintf("connectortest: %s panicked", method))
	}
	return f.errs[method]
}

func (f *Fake) Name() string         { return f.ExchangeName }
func (f *Fake) HasCredentials() bool { return f.Credentials }

func (f *Fake) LoadMarkets(ctx context.Context) ([]connector.Market, error) {
	if err := f.record(MethodLoadMarkets, "", connector.OrderParams{}); err != nil {
		return nil, err
	}
	return append([]connector.Market(nil), f.Markets...), nil
}

func (f *Fake) FetchTicker(ctx context.Context, symbol string) (connector.Ticker, error) {
	if err := f.record(MethodFetchTicker, symbol, connector.OrderParams{}); err != nil {
		return connector.Ticker{}, err
	}
	t, ok := f.Tickers[symbol]
	if !ok {
		return connector.Ticker{}, connector.Classify(fmt.Errorf("no ticker for %s", symbol), connector.ErrBadSymbol)
	}
	return t, nil
}

func (f *Fake) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]connector.OHLCV, error) {
	if err := f.record(MethodFetchOHLCV, symbol, connector.OrderParams{}); err != nil {
		return nil, err
	}
	out := f.Candles
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]connector.OHLCV(nil), out...), nil
}

func (f *Fake) FetchOrderBook(ctx context.Context, symbol string, depth int) (connector.OrderBook, error) {
	if err := f.record(MethodFetchOrderBook, symbol, connector.OrderParams{}); err != nil {
		return connector.OrderBook{}, err
	}
	book := f.Book
	if book.Symbol == "" {
		book.Symbol = symbol
	}
	return book, nil
}

func (f *Fake) FetchTrades(ctx context.Context, symbol string, limit int) ([]connector.Trade, error) {
	if err := f.record(MethodFetchTrades, symbol, connector.OrderParams{}); err != nil {
		return nil, err
	}
	return append([]connector.Trade(nil), f.Trades...), nil
}

func (f *Fake) FetchBalance(ctx context.Context) ([]connector.BalanceEntry, error) {
	if err := f.record(MethodFetchBalance, "", connector.OrderParams{}); err != nil {
		return nil, err
	}
	return append([]connector.BalanceEntry(nil), f.Balance...), nil
}

func (f *Fake) FetchOrder(ctx context.Context, orderID, symbol string) (connector.Order, error) {
	if err := f.record(MethodFetchOrder, symbol, connector.OrderParams{}); err != nil {
		return connector.Order{}, err
	}
	f.mu.Lock()
	o, ok := f.Orders[orderID]
	f.mu.Unlock()
	if !ok {
		return connector.Order{}, connector.Classify(fmt.Errorf("order %s does not exist", orderID), connector.ErrOrderNotFound)
	}
	return o, nil
}

func (f *Fake) FetchOpenOrders(ctx context.Context, symbol string) ([]connector.Order, error) {
	if err := f.record(MethodFetchOpenOrders, symbol, connector.OrderParams{}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []connector.Order
	for _, o := range f.Orders {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *Fake) CreateOrder(ctx context.Context, params connector.OrderParams) (connector.Order, error) {
	if err := f.record(MethodCreateOrder, params.Symbol, params); err != nil {
		return connector.Order{}, err
	}
	if f.CreateOrderFunc != nil {
		return f.CreateOrderFunc(params)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o := connector.Order{
		ID:            fmt.Sprintf("%d", len(f.Orders)+1),
		ClientOrderID: params.ClientOrderID,
		Symbol:        params.Symbol,
		Side:          params.Side,
		Type:          params.Type,
		Status:        "NEW",
		Amount:        params.Amount,
		Filled:        "0",
		Price:         params.Price,
		Timestamp:     time.Now().UnixMilli(),
	}
	f.Orders[o.ID] = o
	return o, nil
}

func (f *Fake) CancelOrder(ctx context.Context, orderID, symbol string) error {
	if err := f.record(MethodCancelOrder, symbol, connector.OrderParams{}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Orders[orderID]; !ok {
		return connector.Classify(fmt.Errorf("order %s does not exist", orderID), connector.ErrOrderNotFound)
	}
	delete(f.Orders, orderID)
	return nil
}
