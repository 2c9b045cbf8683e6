// Package binance adapts the Binance spot REST API to connector.Connector.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gobinance "github.com/adshao/go-binance/v2"

	"exgateway/internal/connector"
	"exgateway/internal/symbols"
	"exgateway/logger"
)

const testnetURL = "https://testnet.binance.vision"

// Config selects the account and endpoint of one Binance connection.
type Config struct {
	Name      string
	APIKey    string
	APISecret string
	Testnet   bool
	// BaseURL overrides the REST endpoint, e.g. for a regional mirror.
	BaseURL string
	Pool    connector.PoolSettings
}

// Connector talks to Binance spot.
type Connector struct {
	name    string
	client  *gobinance.Client
	symbols *symbols.Registry
	creds   bool
	log     *logger.Entry
}

var _ connector.Connector = (*Connector)(nil)

func New(cfg Config) *Connector {
	if cfg.Name == "" {
		cfg.Name = "binance"
	}
	client := gobinance.NewClient(cfg.APIKey, cfg.APISecret)
	client.HTTPClient = connector.NewHTTPClient(cfg.Pool)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.Testnet:
		client.BaseURL = testnetURL
	}

	log := logger.GetLogger().WithComponent("binance_connector").WithFields(logger.Fields{"exchange": cfg.Name})
	log.WithFields(logger.Fields{
		"base_url":           client.BaseURL,
		"testnet":            cfg.Testnet,
		"max_idle_conns":     cfg.Pool.MaxIdleConns,
		"max_conns_per_host": cfg.Pool.MaxConnsPerHost,
		"timeout":            cfg.Pool.Timeout,
	}).Info("binance connector initialized")

	return &Connector{
		name:    cfg.Name,
		client:  client,
		symbols: symbols.NewRegistry("binance"),
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

// LoadMarkets reads exchangeInfo. Precision comes from the LOT_SIZE step and
// PRICE_FILTER tick.
func (c *Connector) LoadMarkets(ctx context.Context) ([]connector.Market, error) {
	info, err := c.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	unified := make([]string, len(info.Symbols))
	for i, s := range info.Symbols {
		unified[i] = c.symbols.Add(s.Symbol, s.BaseAsset, s.QuoteAsset)
	}
	out := make([]connector.Market, 0, len(info.Symbols))
	for i, s := range info.Symbols {
		if !c.symbols.Routes(s.Symbol) {
			continue
		}
		m := connector.Market{
			Symbol:        unified[i],
			Base:          symbols.NormalizeAsset(s.BaseAsset),
			Quote:         symbols.NormalizeAsset(s.QuoteAsset),
			Active:        s.Status == "TRADING",
			PrecisionMode: connector.PrecisionTickSize,
		}
		if lot := s.LotSizeFilter(); lot != nil {
			m.AmountPrecision = lot.StepSize
			m.MinAmount = lot.MinQuantity
		} else {
			m.PrecisionMode = connector.PrecisionDecimalPlaces
			m.AmountPrecision = strconv.Itoa(s.BaseAssetPrecision)
		}
		if pf := s.PriceFilter(); pf != nil && m.PrecisionMode == connector.PrecisionTickSize {
			m.PricePrecision = pf.TickSize
		}
		out = append(out, m)
	}
	c.log.WithFields(logger.Fields{"markets": len(out)}).Debug("binance markets loaded")
	return out, nil
}

func (c *Connector) FetchTicker(ctx context.Context, symbol string) (connector.Ticker, error) {
	native, err := c.native(symbol)
	if err != nil {
		return connector.Ticker{}, err
	}
	stats, err := c.client.NewListPriceChangeStatsService().Symbol(native).Do(ctx)
	if err != nil {
		return connector.Ticker{}, classify(err)
	}
	if len(stats) == 0 {
		return connector.Ticker{}, connector.Classify(fmt.Errorf("no ticker for %s", native), connector.ErrBadSymbol)
	}
	s := stats[0]
	return connector.Ticker{
		Symbol:        c.symbols.Unified(s.Symbol, symbol),
		Last:          s.LastPrice,
		Open:          s.OpenPrice,
		High:          s.HighPrice,
		Low:           s.LowPrice,
		Bid:           s.BidPrice,
		Ask:           s.AskPrice,
		BaseVolume:    s.Volume,
		QuoteVolume:   s.QuoteVolume,
		Change:        s.PriceChange,
		ChangePercent: s.PriceChangePercent,
		Timestamp:     s.CloseTime,
	}, nil
}

func (c *Connector) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]connector.OHLCV, error) {
	native, err := c.native(symbol)
	if err != nil {
		return nil, err
	}
	svc := c.client.NewKlinesService().Symbol(native).Interval(timeframe)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]connector.OHLCV, 0, len(klines))
	for _, k := range klines {
		out = append(out, connector.OHLCV{
			Timestamp: k.OpenTime,
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		})
	}
	return out, nil
}

// depthLimits are the book sizes the depth endpoint accepts.
var depthLimits = []int{5, 10, 20, 50, 100, 500, 1000, 5000}

func depthLimit(depth int) int {
	for _, l := range depthLimits {
		if depth <= l {
			return l
		}
	}
	return depthLimits[len(depthLimits)-1]
}

func (c *Connector) FetchOrderBook(ctx context.Context, symbol string, depth int) (connector.OrderBook, error) {
	native, err := c.native(symbol)
	if err != nil {
		return connector.OrderBook{}, err
	}
	res, err := c.client.NewDepthService().Symbol(native).Limit(depthLimit(depth)).Do(ctx)
	if err != nil {
		return connector.OrderBook{}, classify(err)
	}
	book := connector.OrderBook{
		Symbol: symbol,
		Bids:   make([][2]string, 0, len(res.Bids)),
		Asks:   make([][2]string, 0, len(res.Asks)),
	}
	for _, b := range res.Bids {
		book.Bids = append(book.Bids, [2]string{b.Price, b.Quantity})
	}
	for _, a := range res.Asks {
		book.Asks = append(book.Asks, [2]string{a.Price, a.Quantity})
	}
	return book, nil
}

func (c *Connector) FetchTrades(ctx context.Context, symbol string, limit int) ([]connector.Trade, error) {
	native, err := c.native(symbol)
	if err != nil {
		return nil, err
	}
	svc := c.client.NewRecentTradesService().Symbol(native)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	trades, err := svc.Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]connector.Trade, 0, len(trades))
	for _, t := range trades {
		// the taker sold into a resting buy when the buyer is the maker
		side := "buy"
		if t.IsBuyerMaker {
			side = "sell"
		}
		out = append(out, connector.Trade{
			ID:           strconv.FormatInt(t.ID, 10),
			Symbol:       symbol,
			Side:         side,
			Price:        t.Price,
			Amount:       t.Quantity,
			Cost:         t.QuoteQuantity,
			TakerOrMaker: "taker",
			Timestamp:    t.Time,
		})
	}
	return out, nil
}
