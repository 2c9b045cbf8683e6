// Package bybit adapts the Bybit v5 spot REST API to connector.Connector.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"exgateway/internal/connector"
	"exgateway/internal/symbols"
	"exgateway/logger"
)

const (
	mainnetURL = "https://api.bybit.com"
	testnetURL = "https://api-testnet.bybit.com"
	category   = "spot"
)

type Config struct {
	Name      string
	APIKey    string
	APISecret string
	Testnet   bool
	BaseURL   string
	Pool      connector.PoolSettings
}

// Connector talks to Bybit spot through the unified trading account.
type Connector struct {
	name    string
	client  *bybit.Client
	symbols *symbols.Registry
	creds   bool
	log     *logger.Entry
}

var _ connector.Connector = (*Connector)(nil)

func New(cfg Config) *Connector {
	if cfg.Name == "" {
		cfg.Name = "bybit"
	}
	base := mainnetURL
	switch {
	case cfg.BaseURL != "":
		base = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.Testnet:
		base = testnetURL
	}

	client := bybit.NewBybitHttpClient(cfg.APIKey, cfg.APISecret, bybit.WithBaseURL(base))
	client.HTTPClient = connector.NewHTTPClient(cfg.Pool)

	log := logger.GetLogger().WithComponent("bybit_connector").WithFields(logger.Fields{"exchange": cfg.Name})
	log.WithFields(logger.Fields{
		"base_url": base,
		"testnet":  cfg.Testnet,
		"timeout":  cfg.Pool.Timeout,
	}).Info("bybit connector initialized")

	return &Connector{
		name:    cfg.Name,
		client:  client,
		symbols: symbols.NewRegistry("bybit"),
		creds:   cfg.APIKey != "" && cfg.APISecret != "",
		log:     log,
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

// decode checks retCode and re-reads the untyped result into out.
func decode(resp *bybit.ServerResponse, err error, out interface{}) error {
	if err != nil {
		return classify(err)
	}
	if resp == nil {
		return connector.Classify(fmt.Errorf("bybit: empty response"), connector.ErrExchangeNotAvailable)
	}
	if resp.RetCode != 0 {
		return classify(APIError{Code: resp.RetCode, Msg: resp.RetMsg})
	}
	if out == nil {
		return nil
	}
	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("bybit: re-encode result: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("bybit: decode result: %w", err)
	}
	return nil
}

type instrument struct {
	Symbol        string `json:"symbol"`
	BaseCoin      string `json:"baseCoin"`
	QuoteCoin     string `json:"quoteCoin"`
	Status        string `json:"status"`
	LotSizeFilter struct {
		BasePrecision string `json:"basePrecision"`
		MinOrderQty   string `json:"minOrderQty"`
	} `json:"lotSizeFilter"`
	PriceFilter struct {
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
}

func (c *Connector) LoadMarkets(ctx context.Context) ([]connector.Market, error) {
	var res struct {
		List []instrument `json:"list"`
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{"category": category}).GetInstrumentInfo(ctx)
	if err := decode(resp, err, &res); err != nil {
		return nil, err
	}
	unified := make([]string, len(res.List))
	for i, in := range res.List {
		unified[i] = c.symbols.Add(in.Symbol, in.BaseCoin, in.QuoteCoin)
	}
	out := make([]connector.Market, 0, len(res.List))
	for i, in := range res.List {
		if !c.symbols.Routes(in.Symbol) {
			continue
		}
		out = append(out, connector.Market{
			Symbol:          unified[i],
			Base:            symbols.NormalizeAsset(in.BaseCoin),
			Quote:           symbols.NormalizeAsset(in.QuoteCoin),
			Active:          strings.EqualFold(in.Status, "Trading"),
			PrecisionMode:   connector.PrecisionTickSize,
			AmountPrecision: in.LotSizeFilter.BasePrecision,
			PricePrecision:  in.PriceFilter.TickSize,
			MinAmount:       in.LotSizeFilter.MinOrderQty,
		})
	}
	c.log.WithFields(logger.Fields{"markets": len(out)}).Debug("bybit markets loaded")
	return out, nil
}

type ticker struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	PrevPrice24h string `json:"prevPrice24h"`
	HighPrice24h string `json:"highPrice24h"`
	LowPrice24h  string `json:"lowPrice24h"`
	Bid1Price    string `json:"bid1Price"`
	Ask1Price    string `json:"ask1Price"`
	Volume24h    string `json:"volume24h"`
	Turnover24h  string `json:"turnover24h"`
	Price24hPcnt string `json:"price24hPcnt"`
}

func (c *Connector) FetchTicker(ctx context.Context, symbol string) (connector.Ticker, error) {
	native, err := c.native(symbol)
	if err != nil {
		return connector.Ticker{}, err
	}
	var res struct {
		List []ticker `json:"list"`
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{"category": category, "symbol": native}).GetMarketTickers(ctx)
	if err := decode(resp, err, &res); err != nil {
		return connector.Ticker{}, err
	}
	if len(res.List) == 0 {
		return connector.Ticker{}, connector.Classify(fmt.Errorf("no ticker for %s", native), connector.ErrBadSymbol)
	}
	t := res.List[0]
	// price24hPcnt is a fraction; the normalizer computes the percentage from open.
	return connector.Ticker{
		Symbol:      c.symbols.Unified(t.Symbol, symbol),
		Last:        t.LastPrice,
		Open:        t.PrevPrice24h,
		High:        t.HighPrice24h,
		Low:         t.LowPrice24h,
		Bid:         t.Bid1Price,
		Ask:         t.Ask1Price,
		BaseVolume:  t.Volume24h,
		QuoteVolume: t.Turnover24h,
	}, nil
}

var klineIntervals = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W", "1M": "M",
}

func (c *Connector) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]connector.OHLCV, error) {
	native, err := c.native(symbol)
	if err != nil {
		return nil, err
	}
	interval, ok := klineIntervals[timeframe]
	if !ok {
		return nil, connector.Classify(fmt.Errorf("bybit has no %q candles", timeframe), connector.ErrNotSupported)
	}
	params := map[string]interface{}{"category": category, "symbol": native, "interval": interval}
	if limit > 0 {
		params["limit"] = limit
	}
	var res struct {
		List [][]string `json:"list"`
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err := decode(resp, err, &res); err != nil {
		return nil, err
	}
	out := make([]connector.OHLCV, 0, len(res.List))
	for _, row := range res.List {
		if len(row) < 6 {
			return nil, fmt.Errorf("bybit: kline row has %d fields", len(row))
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bybit: kline start time %q: %w", row[0], err)
		}
		out = append(out, connector.OHLCV{Timestamp: ts, Open: row[1], High: row[2], Low: row[3], Close: row[4], Volume: row[5]})
	}
	// newest first on the wire
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (c *Connector) FetchOrderBook(ctx context.Context, symbol string, depth int) (connector.OrderBook, error) {
	native, err := c.native(symbol)
	if err != nil {
		return connector.OrderBook{}, err
	}
	if depth <= 0 || depth > 200 {
		depth = 200
	}
	var res struct {
		Bids [][2]string `json:"b"`
		Asks [][2]string `json:"a"`
		TS   int64       `json:"ts"`
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{"category": category, "symbol": native, "limit": depth}).GetOrderBookInfo(ctx)
	if err := decode(resp, err, &res); err != nil {
		return connector.OrderBook{}, err
	}
	return connector.OrderBook{Symbol: symbol, Bids: res.Bids, Asks: res.Asks, Timestamp: res.TS}, nil
}

func (c *Connector) FetchTrades(ctx context.Context, symbol string, limit int) ([]connector.Trade, error) {
	native, err := c.native(symbol)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{"category": category, "symbol": native}
	if limit > 0 {
		params["limit"] = limit
	}
	var res struct {
		List []struct {
			ExecID string `json:"execId"`
			Price  string `json:"price"`
			Size   string `json:"size"`
			Side   string `json:"side"`
			Time   string `json:"time"`
		} `json:"list"`
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(params).GetPublicRecentTrades(ctx)
	if err := decode(resp, err, &res); err != nil {
		return nil, err
	}
	out := make([]connector.Trade, 0, len(res.List))
	for _, t := range res.List {
		ts, _ := strconv.ParseInt(t.Time, 10, 64)
		out = append(out, connector.Trade{
			ID:           t.ExecID,
			Symbol:       symbol,
			Side:         strings.ToLower(t.Side),
			Price:        t.Price,
			Amount:       t.Size,
			TakerOrMaker: "taker",
			Timestamp:    ts,
		})
	}
	return out, nil
}
