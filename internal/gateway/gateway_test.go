package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"exgateway/internal/connector"
	"exgateway/internal/connector/connectortest"
	"exgateway/internal/gwerror"
	"exgateway/internal/model"
	"exgateway/logger"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quietLogger() *logger.Log {
	log := logger.Logger()
	log.SetOutput(io.Discard)
	return log
}

func btcMarket() connector.Market {
	return connector.Market{
		Symbol: "BTC/USDT", Base: "BTC", Quote: "USDT", Active: true,
		PrecisionMode: connector.PrecisionDecimalPlaces, AmountPrecision: "3", PricePrecision: "2",
	}
}

func newFake(name string) *connectortest.Fake {
	f := connectortest.New(name)
	f.Markets = []connector.Market{
		btcMarket(),
		{Symbol: "ETH/USDT", Base: "ETH", Quote: "USDT", Active: true, AmountPrecision: "0.0001", PricePrecision: "0.01", MinAmount: "0.01"},
		{Symbol: "LUNA/USDT", Base: "LUNA", Quote: "USDT", Active: false, AmountPrecision: "2", PricePrecision: "4"},
	}
	f.Tickers["ETH/USDT"] = connector.Ticker{Symbol: "ETH/USDT", Last: "3000", Open: "2900", Bid: "2999", Ask: "3001"}
	return f
}

// newGateway wires fakes with throttling disabled unless a test sets its own interval.
func newGateway(t *testing.T, settings Settings, fakes ...*connectortest.Fake) *Gateway {
	t.Helper()
	if settings.Intervals == nil {
		settings.Intervals = map[string]time.Duration{}
		for _, f := range fakes {
			settings.Intervals[f.Name()] = 0
		}
	}
	opts := []Option{WithClientOrderIDs(func() string { return "cid-1" })}
	for _, f := range fakes {
		opts = append(opts, WithConnector(f))
	}
	g := New(settings, quietLogger(), opts...)
	g.Start(context.Background())
	return g
}

func TestPlaceOrderTruncatesQuantity(t *testing.T) {
	f := newFake("binance")
	g := newGateway(t, Settings{}, f)

	resp, err := g.PlaceOrder(context.Background(), model.OrderRequest{
		Symbol: "BTC/USDT", Side: model.SideBuy, Type: model.OrderTypeMarket, Quantity: d("0.123456"),
	}, "")
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	calls := f.Calls(connectortest.MethodCreateOrder)
	if len(calls) != 1 {
		t.Fatalf("expected one submission, got %d", len(calls))
	}
	if calls[0].Params.Amount != "0.123" {
		t.Fatalf("submitted quantity %s, want 0.123", calls[0].Params.Amount)
	}
	if calls[0].Params.ClientOrderID != "cid-1" || resp.ClientOrderID != "cid-1" {
		t.Fatalf("client order id not propagated: %+v", resp)
	}
	if resp.Status != model.StatusNew || !resp.Quantity.Equal(d("0.123")) || !resp.RemainingQuantity.Equal(d("0.123")) {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPlaceOrderAdjustsPrices(t *testing.T) {
	f := newFake("binance")
	g := newGateway(t, Settings{}, f)

	_, err := g.PlaceOrder(context.Background(), model.OrderRequest{
		Symbol: "eth/usdt", Side: model.SideSell, Type: model.OrderTypeStopLimit, Quantity: d("1.23456"),
		Price: decimal.NewNullDecimal(d("3000.129")), StopPrice: decimal.NewNullDecimal(d("2999.999")),
	}, "binance")
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	p := f.Calls(connectortest.MethodCreateOrder)[0].Params
	if p.Symbol != "ETH/USDT" || p.Amount != "1.2345" || p.Price != "3000.12" || p.StopPrice != "2999.99" {
		t.Fatalf("unexpected params: %+v", p)
	}
}

func TestPlaceOrderLocalValidation(t *testing.T) {
	cases := []struct {
		name string
		req  model.OrderRequest
		want error
	}{
		{"limit without price", model.OrderRequest{Symbol: "BTC/USDT", Side: model.SideBuy, Type: model.OrderTypeLimit, Quantity: d("1")}, gwerror.ErrInvalidOrderParameters},
		{"unknown symbol", model.OrderRequest{Symbol: "DOGE/USDT", Side: model.SideBuy, Type: model.OrderTypeMarket, Quantity: d("1")}, gwerror.ErrSymbolNotSupported},
		{"inactive symbol", model.OrderRequest{Symbol: "LUNA/USDT", Side: model.SideBuy, Type: model.OrderTypeMarket, Quantity: d("1")}, gwerror.ErrSymbolNotSupported},
		{"rounds to zero", model.OrderRequest{Symbol: "BTC/USDT", Side: model.SideBuy, Type: model.OrderTypeMarket, Quantity: d("0.0009")}, gwerror.ErrInvalidOrderParameters},
		{"below minimum", model.OrderRequest{Symbol: "ETH/USDT", Side: model.SideBuy, Type: model.OrderTypeMarket, Quantity: d("0.005")}, gwerror.ErrInvalidOrderParameters},
		{"price rounds to zero", model.OrderRequest{Symbol: "BTC/USDT", Side: model.SideBuy, Type: model.OrderTypeLimit, Quantity: d("1"), Price: decimal.NewNullDecimal(d("0.001"))}, gwerror.ErrInvalidOrderParameters},
	}
	for _, c := range cases {
		f := newFake("binance")
		g := newGateway(t, Settings{}, f)
		_, err := g.PlaceOrder(context.Background(), c.req, "")
		if !errors.Is(err, c.want) {
			t.Errorf("%s: err = %v, want %v", c.name, err, c.want)
		}
		if n := len(f.Calls(connectortest.MethodCreateOrder)); n != 0 {
			t.Errorf("%s: %d remote submissions attempted", c.name, n)
		}
	}
}

func TestPlaceOrderTranslatesExchangeErrors(t *testing.T) {
	f := newFake("binance")
	f.Fail(connectortest.MethodCreateOrder, connector.Classify(errors.New("Account has insufficient balance"), connector.ErrInsufficientFunds))
	g := newGateway(t, Settings{}, f)

	_, err := g.MarketBuy(context.Background(), "BTC/USDT", d("1"), "")
	if !errors.Is(err, gwerror.ErrInsufficientFunds) {
		t.Fatalf("err = %v", err)
	}
	var gerr *gwerror.Error
	if !errors.As(err, &gerr) || gerr.Exchange != "binance" || gerr.Op != opCreateOrder {
		t.Fatalf("unexpected error details: %+v", gerr)
	}
}

func TestPlaceOrderRejectsMalformedResponse(t *testing.T) {
	f := newFake("binance")
	f.CreateOrderFunc = func(p connector.OrderParams) (connector.Order, error) {
		return connector.Order{ID: "9", Side: p.Side, Type: p.Type, Amount: p.Amount, Filled: "0.1", Remaining: "5", Status: "NEW"}, nil
	}
	g := newGateway(t, Settings{}, f)
	if _, err := g.MarketBuy(context.Background(), "BTC/USDT", d("1"), ""); !errors.Is(err, gwerror.ErrUnknown) {
		t.Fatalf("err = %v", err)
	}
}

func TestUnknownExchange(t *testing.T) {
	g := newGateway(t, Settings{}, newFake("binance"))
	if _, err := g.GetMarketData(context.Background(), "ETH/USDT", "ftx"); !errors.Is(err, gwerror.ErrExchangeUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestSequentialMarketDataCallsAreSpaced(t *testing.T) {
	const interval = 50 * time.Millisecond
	f := newFake("binance")
	g := newGateway(t, Settings{MinRequestInterval: interval, Intervals: map[string]time.Duration{}}, f)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := g.GetMarketData(ctx, "ETH/USDT", ""); err != nil {
			t.Fatalf("GetMarketData failed: %v", err)
		}
	}
	calls := f.Calls(connectortest.MethodFetchTicker)
	if len(calls) != 2 {
		t.Fatalf("expected 2 ticker calls, got %d", len(calls))
	}
	if gap := calls[1].At.Sub(calls[0].At); gap < interval-2*time.Millisecond {
		t.Fatalf("ticker calls spaced %s, want >= %s", gap, interval)
	}
}

func TestGetMarketData(t *testing.T) {
	g := newGateway(t, Settings{}, newFake("binance"))
	snap, err := g.GetMarketData(context.Background(), "ETH/USDT", "")
	if err != nil {
		t.Fatalf("GetMarketData failed: %v", err)
	}
	if snap.Exchange != "binance" || !snap.Last.Equal(d("3000")) || !snap.Bid.Valid || snap.High.Valid {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	price, err := g.GetPrice(context.Background(), "ETH/USDT", "binance")
	if err != nil || !price.Equal(d("3000")) {
		t.Fatalf("GetPrice = %s, %v", price, err)
	}
	if _, err := g.GetMarketData(context.Background(), "XRP/USDT", ""); !errors.Is(err, gwerror.ErrSymbolNotSupported) {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelOrderIdempotent(t *testing.T) {
	f := newFake("binance")
	f.Orders["7"] = connector.Order{ID: "7", Symbol: "BTC/USDT", Side: "BUY", Type: "LIMIT", Amount: "1", Status: "NEW"}
	g := newGateway(t, Settings{}, f)
	ctx := context.Background()

	res, err := g.CancelOrder(ctx, "7", "BTC/USDT", "")
	if err != nil || res.Outcome != model.CancelOutcomeCanceled || !res.Success() {
		t.Fatalf("first cancel = %+v, %v", res, err)
	}
	res, err = g.CancelOrder(ctx, "7", "BTC/USDT", "")
	if err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	if !res.Success() || res.Outcome != model.CancelOutcomeAlreadyGone || res.Note == "" {
		t.Fatalf("second cancel = %+v", res)
	}
}

func TestCancelOrderPropagatesFailures(t *testing.T) {
	f := newFake("binance")
	f.Fail(connectortest.MethodCancelOrder, connector.Classify(errors.New("dial tcp: refused"), connector.ErrNetwork))
	g := newGateway(t, Settings{}, f)

	if _, err := g.CancelOrder(context.Background(), "1", "BTC/USDT", ""); !errors.Is(err, gwerror.ErrExchangeUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if _, err := g.CancelOrder(context.Background(), "", "BTC/USDT", ""); !errors.Is(err, gwerror.ErrInvalidOrderParameters) {
		t.Fatalf("empty id: err = %v", err)
	}
}

func TestGetOrder(t *testing.T) {
	f := newFake("binance")
	f.Orders["5"] = connector.Order{ID: "5", Side: "SELL", Type: "LIMIT", Amount: "2", Filled: "2", Average: "101.5", Status: "FILLED"}
	g := newGateway(t, Settings{}, f)
	ctx := context.Background()

	o, err := g.GetOrder(ctx, "5", "BTC/USDT", "")
	if err != nil || o == nil {
		t.Fatalf("GetOrder = %v, %v", o, err)
	}
	if o.Symbol != "BTC/USDT" || o.Status != model.StatusFilled || !o.AveragePrice.Decimal.Equal(d("101.5")) {
		t.Fatalf("unexpected order: %+v", o)
	}

	missing, err := g.GetOrder(ctx, "404", "BTC/USDT", "")
	if err != nil || missing != nil {
		t.Fatalf("missing order = %v, %v", missing, err)
	}
}

func TestGetOpenOrders(t *testing.T) {
	f := newFake("binance")
	f.Orders["1"] = connector.Order{ID: "1", Symbol: "BTC/USDT", Side: "BUY", Type: "LIMIT", Amount: "1", Filled: "0.5", Status: "PARTIALLY_FILLED"}
	f.Orders["2"] = connector.Order{ID: "2", Symbol: "ETH/USDT", Side: "BUY", Type: "LIMIT", Amount: "1", Status: "NEW"}
	g := newGateway(t, Settings{}, f)

	orders, err := g.GetOpenOrders(context.Background(), "BTC/USDT", "")
	if err != nil {
		t.Fatalf("GetOpenOrders failed: %v", err)
	}
	if len(orders) != 1 || orders[0].Status != model.StatusPartiallyFilled {
		t.Fatalf("unexpected orders: %+v", orders)
	}
	all, err := g.GetOpenOrders(context.Background(), "", "")
	if err != nil || len(all) != 2 {
		t.Fatalf("all open orders = %d, %v", len(all), err)
	}
}

func TestGetBalanceOmitsEmptyAssets(t *testing.T) {
	f := newFake("binance")
	f.Balance = []connector.BalanceEntry{
		{Asset: "BTC", Free: "0.5", Locked: "0"},
		{Asset: "ETH", Free: "0", Locked: "3"},
		{Asset: "DOGE", Free: "0", Locked: "0"},
		{Asset: "USDT", Total: "100", Locked: "25"},
	}
	g := newGateway(t, Settings{}, f)

	bal, err := g.GetBalance(context.Background(), "")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	for asset, b := range bal {
		if !b.Free.IsPositive() {
			t.Errorf("asset %s with free %s returned", asset, b.Free)
		}
	}
	if len(bal) != 2 || !bal["USDT"].Free.Equal(d("75")) {
		t.Fatalf("unexpected balance: %+v", bal)
	}

	eth, err := g.GetAssetBalance(context.Background(), "eth", "")
	if err != nil || !eth.Locked.Equal(d("3")) {
		t.Fatalf("GetAssetBalance = %+v, %v", eth, err)
	}
	none, err := g.GetAssetBalance(context.Background(), "SOL", "")
	if err != nil || !none.Total.IsZero() {
		t.Fatalf("missing asset = %+v, %v", none, err)
	}
}

func TestGetOrderBook(t *testing.T) {
	f := newFake("binance")
	f.Book = connector.OrderBook{
		Bids: [][2]string{{"1", "1"}, {"3", "1"}, {"2", "1"}},
		Asks: [][2]string{{"5", "1"}, {"4", "1"}},
	}
	g := newGateway(t, Settings{}, f)

	book, err := g.GetOrderBook(context.Background(), "BTC/USDT", 2, "")
	if err != nil {
		t.Fatalf("GetOrderBook failed: %v", err)
	}
	if book.Symbol != "BTC/USDT" || len(book.Bids) != 2 || !book.Bids[0].Price.Equal(d("3")) || !book.Asks[0].Price.Equal(d("4")) {
		t.Fatalf("unexpected book: %+v", book)
	}
}

func TestBestEffortPaths(t *testing.T) {
	f := newFake("binance")
	f.Candles = []connector.OHLCV{{Timestamp: 1, Open: "1", High: "1", Low: "1", Close: "1", Volume: "1"}}
	f.Trades = []connector.Trade{{ID: "t", Side: "buy", Price: "1", Amount: "2"}}
	g := newGateway(t, Settings{}, f)
	ctx := context.Background()

	if got := g.FetchCandles(ctx, "BTC/USDT", "1h", 10, ""); len(got) != 1 {
		t.Fatalf("candles = %+v", got)
	}
	if got := g.GetRecentTrades(ctx, "BTC/USDT", 10, ""); len(got) != 1 || !got[0].Cost.Equal(d("2")) {
		t.Fatalf("trades = %+v", got)
	}

	f.Fail(connectortest.MethodFetchOHLCV, errors.New("gateway timeout"))
	f.Fail(connectortest.MethodFetchTrades, errors.New("gateway timeout"))
	if got := g.FetchCandles(ctx, "BTC/USDT", "1h", 10, ""); got == nil || len(got) != 0 {
		t.Fatalf("failed candles = %#v", got)
	}
	if got := g.GetRecentTrades(ctx, "BTC/USDT", 10, ""); got == nil || len(got) != 0 {
		t.Fatalf("failed trades = %#v", got)
	}
	if got := g.FetchCandles(ctx, "BTC/USDT", "1h", 10, "nowhere"); len(got) != 0 {
		t.Fatalf("unknown exchange candles = %#v", got)
	}
}

func TestGetActiveSymbols(t *testing.T) {
	f := newFake("binance")
	g := newGateway(t, Settings{SupportedSymbols: []string{"ETH/USDT", "LUNA/USDT", "DOGE/USDT", "BTC/USDT"}}, f)
	got := g.GetActiveSymbols(context.Background(), "")
	if fmt.Sprint(got) != "[ETH/USDT BTC/USDT]" {
		t.Fatalf("active symbols = %v", got)
	}

	all := newGateway(t, Settings{}, newFake("binance"))
	if got := all.GetActiveSymbols(context.Background(), ""); fmt.Sprint(got) != "[BTC/USDT ETH/USDT]" {
		t.Fatalf("unfiltered active symbols = %v", got)
	}
}

func TestGetActiveSymbolsCapAndFallback(t *testing.T) {
	many := connectortest.New("bybit")
	for i := 0; i < 30; i++ {
		many.Markets = append(many.Markets, connector.Market{Symbol: fmt.Sprintf("C%02d/USDT", i), Active: true})
	}
	g := newGateway(t, Settings{}, many)
	if got := g.GetActiveSymbols(context.Background(), ""); len(got) != MaxActiveSymbols || got[0] != "C00/USDT" {
		t.Fatalf("capped symbols = %v", got)
	}

	broken := connectortest.New("kucoin")
	broken.Fail(connectortest.MethodLoadMarkets, errors.New("maintenance"))
	fb := newGateway(t, Settings{FallbackSymbols: []string{"BTC/USDT", "ETH/USDT"}}, broken)
	if got := fb.GetActiveSymbols(context.Background(), ""); fmt.Sprint(got) != "[BTC/USDT ETH/USDT]" {
		t.Fatalf("fallback symbols = %v", got)
	}
	if got := fb.GetActiveSymbols(context.Background(), "unknown"); len(got) != 2 {
		t.Fatalf("unknown exchange fallback = %v", got)
	}
	plain := newGateway(t, Settings{}, broken)
	if got := plain.GetActiveSymbols(context.Background(), ""); len(got) != len(defaultFallbackSymbols) {
		t.Fatalf("default fallback = %v", got)
	}
}

func TestHealthCheckIsolatesFailures(t *testing.T) {
	good := newFake("binance")
	auth := newFake("bybit")
	auth.Fail(connectortest.MethodFetchBalance, connector.Classify(errors.New("invalid api key"), connector.ErrAuthentication))
	noKeys := newFake("kucoin")
	noKeys.Credentials = false
	crashing := newFake("paper")
	crashing.Panic(connectortest.MethodFetchBalance)

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	g := New(Settings{Intervals: map[string]time.Duration{"binance": 0, "bybit": 0, "kucoin": 0, "paper": 0}}, quietLogger(),
		WithConnector(good), WithConnector(auth), WithConnector(noKeys), WithConnector(crashing),
		WithClock(func() time.Time { return now }))

	res := g.HealthCheck(context.Background())
	if len(res) != 4 {
		t.Fatalf("expected 4 results, got %d", len(res))
	}
	if s := res["binance"]; s.Status != model.HealthConnected || !s.HasCredentials || !s.TestedAt.Equal(now) {
		t.Errorf("binance = %+v", s)
	}
	if s := res["bybit"]; s.Status != model.HealthDisconnected || s.Detail == "" || !s.HasCredentials {
		t.Errorf("bybit = %+v", s)
	}
	if s := res["kucoin"]; s.Status != model.HealthDisconnected || s.HasCredentials {
		t.Errorf("kucoin = %+v", s)
	}
	if n := len(noKeys.Calls(connectortest.MethodFetchBalance)); n != 0 {
		t.Errorf("probed exchange without credentials %d times", n)
	}
	if s := res["paper"]; s.Status != model.HealthDisconnected {
		t.Errorf("paper = %+v", s)
	}
}

type countingRecorder struct {
	mu     sync.Mutex
	calls  map[string]int
	errors map[string]int
	health map[string]bool
}

func (r *countingRecorder) RecordCall(exchange, op string, _ time.Duration, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[op]++
	if kind != "" {
		r.errors[kind]++
	}
}

func (r *countingRecorder) RecordRateLimitWait(string, string, time.Duration) {}

func (r *countingRecorder) RecordHealth(exchange string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health[exchange] = ok
}

func TestRecorderReceivesCalls(t *testing.T) {
	rec := &countingRecorder{calls: map[string]int{}, errors: map[string]int{}, health: map[string]bool{}}
	f := newFake("binance")
	g := New(Settings{Intervals: map[string]time.Duration{"binance": 0}}, quietLogger(), WithConnector(f), WithRecorder(rec))
	ctx := context.Background()

	_, _ = g.GetMarketData(ctx, "ETH/USDT", "")
	_, _ = g.GetMarketData(ctx, "NOPE/USDT", "")
	g.HealthCheck(ctx)

	if rec.calls[opFetchTicker] != 2 || rec.errors[string(gwerror.KindSymbolNotSupported)] != 1 {
		t.Fatalf("recorded calls = %v errors = %v", rec.calls, rec.errors)
	}
	if !rec.health["binance"] {
		t.Fatalf("health not recorded: %v", rec.health)
	}
}

func TestReloadMarkets(t *testing.T) {
	f := newFake("binance")
	g := newGateway(t, Settings{}, f)
	ctx := context.Background()

	if _, err := g.MarketBuy(ctx, "SOL/USDT", d("1"), ""); !errors.Is(err, gwerror.ErrSymbolNotSupported) {
		t.Fatalf("err = %v", err)
	}
	f.Markets = append(f.Markets, connector.Market{Symbol: "SOL/USDT", Active: true, AmountPrecision: "2"})
	if err := g.ReloadMarkets(ctx, ""); err != nil {
		t.Fatalf("ReloadMarkets failed: %v", err)
	}
	if _, err := g.MarketBuy(ctx, "SOL/USDT", d("1.239"), ""); err != nil {
		t.Fatalf("MarketBuy after reload failed: %v", err)
	}
	markets, err := g.Markets("binance")
	if err != nil || len(markets) != 4 || markets[0].Symbol != "BTC/USDT" {
		t.Fatalf("Markets = %v, %v", markets, err)
	}
	if n := len(f.Calls(connectortest.MethodLoadMarkets)); n != 2 {
		t.Fatalf("markets loaded %d times, want 2", n)
	}
}

func TestMarketsLoadedLazilyAfterFailedStart(t *testing.T) {
	f := newFake("binance")
	f.Fail(connectortest.MethodLoadMarkets, errors.New("maintenance"))
	g := newGateway(t, Settings{}, f)

	f.Fail(connectortest.MethodLoadMarkets, nil)
	if _, err := g.MarketBuy(context.Background(), "BTC/USDT", d("0.5"), ""); err != nil {
		t.Fatalf("MarketBuy failed: %v", err)
	}
}

func TestConcurrentFirstUseLoadsMarketsOnce(t *testing.T) {
	f := newFake("binance")
	f.Fail(connectortest.MethodLoadMarkets, errors.New("maintenance"))
	g := newGateway(t, Settings{}, f)
	f.Fail(connectortest.MethodLoadMarkets, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.GetActiveSymbols(context.Background(), "")
		}()
	}
	wg.Wait()

	// one failed load from Start plus a single lazy load
	if n := len(f.Calls(connectortest.MethodLoadMarkets)); n != 2 {
		t.Fatalf("markets loaded %d times, want 2", n)
	}
}

func TestAliasListingDoesNotReplaceActiveMarket(t *testing.T) {
	f := newFake("kucoin")
	f.Markets = []connector.Market{
		btcMarket(),
		{Symbol: "BTC/USDT", Base: "BTC", Quote: "USDT", Active: false, AmountPrecision: "0.0001", PricePrecision: "0.01"},
	}
	g := newGateway(t, Settings{}, f)

	markets, err := g.Markets("kucoin")
	if err != nil || len(markets) != 1 {
		t.Fatalf("Markets = %v, %v", markets, err)
	}
	if !markets[0].Active || markets[0].AmountPrecision.Places != 3 {
		t.Fatalf("alias listing replaced the active market: %+v", markets[0])
	}

	f.Markets = []connector.Market{f.Markets[1], btcMarket()}
	if err := g.ReloadMarkets(context.Background(), ""); err != nil {
		t.Fatalf("ReloadMarkets failed: %v", err)
	}
	markets, _ = g.Markets("kucoin")
	if len(markets) != 1 || !markets[0].Active {
		t.Fatalf("active listing did not win: %+v", markets)
	}
}

func TestClose(t *testing.T) {
	g := newGateway(t, Settings{}, newFake("binance"))
	if err := g.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := g.GetBalance(context.Background(), ""); !errors.Is(err, gwerror.ErrExchangeUnavailable) {
		t.Fatalf("err after close = %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestDefaultExchange(t *testing.T) {
	g := newGateway(t, Settings{DefaultExchange: "bybit"}, newFake("binance"), newFake("bybit"))
	if g.DefaultExchange() != "bybit" {
		t.Fatalf("default = %s", g.DefaultExchange())
	}
	first := newGateway(t, Settings{}, newFake("kucoin"), newFake("binance"))
	if first.DefaultExchange() != "kucoin" {
		t.Fatalf("default = %s", first.DefaultExchange())
	}
	if fmt.Sprint(first.Exchanges()) != "[kucoin binance]" {
		t.Fatalf("exchanges = %v", first.Exchanges())
	}
}
