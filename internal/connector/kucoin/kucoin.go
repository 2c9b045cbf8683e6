// Package kucoin adapts the KuCoin spot REST API, through the universal SDK,
// to connector.Connector.
package kucoin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	api "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/api"
	"github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/account/account"
	"github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/spot/market"
	"github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/spot/order"
	sdktype "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/types"
	"github.com/shopspring/decimal"

	"exgateway/internal/connector"
	"exgateway/internal/symbols"
	"exgateway/logger"
)

const (
	mainnetURL = "https://api.kucoin.com"
	sandboxURL = "https://openapi-sandbox.kucoin.com"
)

type Config struct {
	Name       string
	APIKey     string
	APISecret  string
	Passphrase string
	Testnet    bool
	BaseURL    string
	Pool       connector.PoolSettings
}

// The subsets of the SDK services the adapter calls.
type marketAPI interface {
	GetAllSymbols(req *market.GetAllSymbolsReq, ctx context.Context) (*market.GetAllSymbolsResp, error)
	Get24hrStats(req *market.Get24hrStatsReq, ctx context.Context) (*market.Get24hrStatsResp, error)
	GetKlines(req *market.GetKlinesReq, ctx context.Context) (*market.GetKlinesResp, error)
	GetPartOrderBook(req *market.GetPartOrderBookReq, ctx context.Context) (*market.GetPartOrderBookResp, error)
	GetTradeHistory(req *market.GetTradeHistoryReq, ctx context.Context) (*market.GetTradeHistoryResp, error)
}

type orderAPI interface {
	AddOrderSync(req *order.AddOrderSyncReq, ctx context.Context) (*order.AddOrderSyncResp, error)
	GetOrderByOrderId(req *order.GetOrderByOrderIdReq, ctx context.Context) (*order.GetOrderByOrderIdResp, error)
	GetOpenOrders(req *order.GetOpenOrdersReq, ctx context.Context) (*order.GetOpenOrdersResp, error)
	GetSymbolsWithOpenOrder(ctx context.Context) (*order.GetSymbolsWithOpenOrderResp, error)
	CancelOrderByOrderIdSync(req *order.CancelOrderByOrderIdSyncReq, ctx context.Context) (*order.CancelOrderByOrderIdSyncResp, error)
}

type accountAPI interface {
	GetSpotAccountList(req *account.GetSpotAccountListReq, ctx context.Context) (*account.GetSpotAccountListResp, error)
}

// Connector talks to KuCoin spot.
type Connector struct {
	name    string
	market  marketAPI
	orders  orderAPI
	account accountAPI
	symbols *symbols.Registry
	creds   bool
	now     func() time.Time
	log     *logger.Entry
}

var _ connector.Connector = (*Connector)(nil)

func New(cfg Config) *Connector {
	base := mainnetURL
	switch {
	case cfg.BaseURL != "":
		base = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.Testnet:
		base = sandboxURL
	}

	transportOpt := sdktype.NewTransportOptionBuilder().
		SetMaxIdleConns(cfg.Pool.MaxIdleConns).
		SetMaxIdleConnsPerHost(cfg.Pool.MaxIdleConns).
		SetMaxConnsPerHost(cfg.Pool.MaxConnsPerHost).
		SetIdleConnTimeout(cfg.Pool.IdleConnTimeout).
		SetTimeout(cfg.Pool.Timeout).
		Build()

	option := sdktype.NewClientOptionBuilder().
		WithKey(cfg.APIKey).
		WithSecret(cfg.APISecret).
		WithPassphrase(cfg.Passphrase).
		WithSpotEndpoint(base).
		WithTransportOption(transportOpt).
		Build()

	rest := api.NewClient(option).RestService()
	c := newConnector(cfg.Name,
		rest.GetSpotService().GetMarketAPI(),
		rest.GetSpotService().GetOrderAPI(),
		rest.GetAccountService().GetAccountAPI(),
		cfg.APIKey != "" && cfg.APISecret != "" && cfg.Passphrase != "",
	)
	c.log.WithFields(logger.Fields{
		"base_url": base,
		"testnet":  cfg.Testnet,
		"timeout":  cfg.Pool.Timeout,
	}).Info("kucoin connector initialized")
	return c
}

func newConnector(name string, m marketAPI, o orderAPI, a accountAPI, creds bool) *Connector {
	if name == "" {
		name = "kucoin"
	}
	return &Connector{
		name:    name,
		market:  m,
		orders:  o,
		account: a,
		symbols: symbols.NewRegistry("kucoin"),
		creds:   creds,
		now:     time.Now,
		log:     logger.GetLogger().WithComponent("kucoin_connector").WithFields(logger.Fields{"exchange": name}),
	}
}

func (c *Connector) Name() string         { return c.name }
func (c *Connector) HasCredentials() bool { return c.creds }

func (c *Connector) native(symbol string) (string, error) {
	n, err := c.symbols.Native(symbol)
	if err != nil {
		return "", connector.Classify(err, connector.ErrBadSymbol)
	}
	return n, nil
}

// LoadMarkets reads the symbol list. KuCoin publishes increments, so
// precision is always tick-size based.
func (c *Connector) LoadMarkets(ctx context.Context) ([]connector.Market, error) {
	resp, err := c.market.GetAllSymbols(market.NewGetAllSymbolsReqBuilder().Build(), ctx)
	if err != nil {
		return nil, classify(err)
	}
	unified := make([]string, len(resp.Data))
	for i, s := range resp.Data {
		unified[i] = c.symbols.Add(s.Symbol, s.BaseCurrency, s.QuoteCurrency)
	}
	out := make([]connector.Market, 0, len(resp.Data))
	for i, s := range resp.Data {
		// XBT-USDT and BTC-USDT both unify to BTC/USDT; only the routed one is listed
		if !c.symbols.Routes(s.Symbol) {
			continue
		}
		out = append(out, connector.Market{
			Symbol:          unified[i],
			Base:            symbols.NormalizeAsset(s.BaseCurrency),
			Quote:           symbols.NormalizeAsset(s.QuoteCurrency),
			Active:          s.EnableTrading,
			PrecisionMode:   connector.PrecisionTickSize,
			AmountPrecision: s.BaseIncrement,
			PricePrecision:  s.PriceIncrement,
			MinAmount:       s.BaseMinSize,
		})
	}
	c.log.WithFields(logger.Fields{"markets": len(out)}).Debug("kucoin markets loaded")
	return out, nil
}

// FetchTicker reads 24h stats. The open is recovered from last and the
// absolute change; changeRate is a fraction.
func (c *Connector) FetchTicker(ctx context.Context, symbol string) (connector.Ticker, error) {
	native, err := c.native(symbol)
	if err != nil {
		return connector.Ticker{}, err
	}
	s, err := c.market.Get24hrStats(market.NewGet24hrStatsReqBuilder().SetSymbol(native).Build(), ctx)
	if err != nil {
		return connector.Ticker{}, classify(err)
	}
	if s.Last == "" {
		return connector.Ticker{}, connector.Classify(fmt.Errorf("no ticker for %s", native), connector.ErrBadSymbol)
	}
	t := connector.Ticker{
		Symbol:      symbol,
		Last:        s.Last,
		High:        s.High,
		Low:         s.Low,
		Bid:         s.Buy,
		Ask:         s.Sell,
		BaseVolume:  s.Vol,
		QuoteVolume: s.VolValue,
		Change:      s.ChangePrice,
		Timestamp:   s.Time,
	}
	last, errLast := decimal.NewFromString(s.Last)
	change, errChange := decimal.NewFromString(s.ChangePrice)
	if errLast == nil && errChange == nil {
		t.Open = last.Sub(change).String()
	}
	if rate, err := decimal.NewFromString(s.ChangeRate); err == nil {
		t.ChangePercent = rate.Shift(2).String()
	}
	return t, nil
}

var klineTypes = map[string]struct {
	name string
	span time.Duration
}{
	"1m":  {"1min", time.Minute},
	"3m":  {"3min", 3 * time.Minute},
	"5m":  {"5min", 5 * time.Minute},
	"15m": {"15min", 15 * time.Minute},
	"30m": {"30min", 30 * time.Minute},
	"1h":  {"1hour", time.Hour},
	"2h":  {"2hour", 2 * time.Hour},
	"4h":  {"4hour", 4 * time.Hour},
	"6h":  {"6hour", 6 * time.Hour},
	"8h":  {"8hour", 8 * time.Hour},
	"12h": {"12hour", 12 * time.Hour},
	"1d":  {"1day", 24 * time.Hour},
	"1w":  {"1week", 7 * 24 * time.Hour},
}

// FetchOHLCV has no limit parameter on the wire; the window start is derived
// from limit and the result trimmed to the newest limit candles.
func (c *Connector) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]connector.OHLCV, error) {
	native, err := c.native(symbol)
	if err != nil {
		return nil, err
	}
	kt, ok := klineTypes[timeframe]
	if !ok {
		return nil, connector.Classify(fmt.Errorf("kucoin has no %q candles", timeframe), connector.ErrNotSupported)
	}
	b := market.NewGetKlinesReqBuilder().SetSymbol(native).SetType(kt.name)
	if limit > 0 {
		now := c.now()
		b = b.SetStartAt(now.Add(-time.Duration(limit) * kt.span).Unix()).SetEndAt(now.Unix())
	}
	resp, err := c.market.GetKlines(b.Build(), ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]connector.OHLCV, 0, len(resp.Data))
	for _, row := range resp.Data {
		// [time(s), open, close, high, low, volume, turnover]
		if len(row) < 6 {
			return nil, fmt.Errorf("kucoin: kline row has %d fields", len(row))
		}
		sec, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, fmt.Errorf("kucoin: kline time %q: %w", row[0], err)
		}
		out = append(out, connector.OHLCV{
			Timestamp: sec.IntPart() * 1000,
			Open:      row[1],
			Close:     row[2],
			High:      row[3],
			Low:       row[4],
			Volume:    row[5],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (c *Connector) FetchOrderBook(ctx context.Context, symbol string, depth int) (connector.OrderBook, error) {
	native, err := c.native(symbol)
	if err != nil {
		return connector.OrderBook{}, err
	}
	size := "100"
	if depth > 0 && depth <= 20 {
		size = "20"
	}
	resp, err := c.market.GetPartOrderBook(market.NewGetPartOrderBookReqBuilder().SetSymbol(native).SetSize(size).Build(), ctx)
	if err != nil {
		return connector.OrderBook{}, classify(err)
	}
	return connector.OrderBook{
		Symbol:    symbol,
		Bids:      levels(resp.Bids, depth),
		Asks:      levels(resp.Asks, depth),
		Timestamp: resp.Time,
	}, nil
}

func levels(rows [][]string, depth int) [][2]string {
	if depth > 0 && len(rows) > depth {
		rows = rows[:depth]
	}
	out := make([][2]string, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		out = append(out, [2]string{r[0], r[1]})
	}
	return out
}

func (c *Connector) FetchTrades(ctx context.Context, symbol string, limit int) ([]connector.Trade, error) {
	native, err := c.native(symbol)
	if err != nil {
		return nil, err
	}
	resp, err := c.market.GetTradeHistory(market.NewGetTradeHistoryReqBuilder().SetSymbol(native).Build(), ctx)
	if err != nil {
		return nil, classify(err)
	}
	data := resp.Data
	if limit > 0 && len(data) > limit {
		data = data[len(data)-limit:]
	}
	out := make([]connector.Trade, 0, len(data))
	for _, t := range data {
		out = append(out, connector.Trade{
			ID:           t.Sequence,
			Symbol:       symbol,
			Side:         strings.ToLower(t.Side),
			Price:        t.Price,
			Amount:       t.Size,
			TakerOrMaker: "taker",
			// nanoseconds
			Timestamp: t.Time / int64(time.Millisecond),
		})
	}
	return out, nil
}
