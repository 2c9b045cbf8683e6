package gateway

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"exgateway/internal/connector"
	"exgateway/internal/model"
	"exgateway/internal/normalizer"
	"exgateway/logger"
)

const defaultOrderBookDepth = 20

// GetMarketData returns the current ticker snapshot of symbol.
func (g *Gateway) GetMarketData(ctx context.Context, symbol, exchange string) (model.MarketSnapshot, error) {
	c, err := g.resolve(exchange)
	if err != nil {
		return model.MarketSnapshot{}, err
	}

	var raw connector.Ticker
	err = g.call(ctx, c, opFetchTicker, symbol, func(ctx context.Context) error {
		var err error
		raw, err = c.conn.FetchTicker(ctx, symbol)
		return err
	})
	if err != nil {
		return model.MarketSnapshot{}, err
	}

	if raw.Symbol == "" {
		raw.Symbol = symbol
	}
	snap, err := normalizer.ToMarketSnapshot(c.name, raw, g.now())
	if err != nil {
		return model.MarketSnapshot{}, malformed(c.name, opFetchTicker, err)
	}
	return snap, nil
}

// GetPrice returns the last traded price of symbol.
func (g *Gateway) GetPrice(ctx context.Context, symbol, exchange string) (decimal.Decimal, error) {
	snap, err := g.GetMarketData(ctx, symbol, exchange)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return snap.Last, nil
}

// FetchCandles returns up to limit candles, oldest first. Candle history is
// best-effort: any failure is logged and yields an empty slice.
func (g *Gateway) FetchCandles(ctx context.Context, symbol, timeframe string, limit int, exchange string) []model.Candle {
	log := g.log.WithComponent("gateway").WithFields(logger.Fields{
		"symbol":    symbol,
		"timeframe": timeframe,
	})
	c, err := g.resolve(exchange)
	if err != nil {
		log.WithError(err).Warn("candles unavailable")
		return []model.Candle{}
	}

	var raw []connector.OHLCV
	err = g.call(ctx, c, opFetchOHLCV, symbol, func(ctx context.Context) error {
		var err error
		raw, err = c.conn.FetchOHLCV(ctx, symbol, timeframe, limit)
		return err
	})
	if err != nil {
		return []model.Candle{}
	}

	candles, err := normalizer.ToCandles(raw)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"exchange": c.name}).Warn("discarding malformed candles")
		return []model.Candle{}
	}
	return candles
}

// GetOrderBook returns up to depth levels per side; depth <= 0 means 20.
func (g *Gateway) GetOrderBook(ctx context.Context, symbol string, depth int, exchange string) (model.OrderBookSnapshot, error) {
	if depth <= 0 {
		depth = defaultOrderBookDepth
	}
	c, err := g.resolve(exchange)
	if err != nil {
		return model.OrderBookSnapshot{}, err
	}

	var raw connector.OrderBook
	err = g.call(ctx, c, opFetchOrderBook, symbol, func(ctx context.Context) error {
		var err error
		raw, err = c.conn.FetchOrderBook(ctx, symbol, depth)
		return err
	})
	if err != nil {
		return model.OrderBookSnapshot{}, err
	}

	if raw.Symbol == "" {
		raw.Symbol = symbol
	}
	book, err := normalizer.ToOrderBookSnapshot(c.name, raw, depth, g.now())
	if err != nil {
		return model.OrderBookSnapshot{}, malformed(c.name, opFetchOrderBook, err)
	}
	return book, nil
}

// GetRecentTrades returns recent public trades. Like candles it is
// best-effort and yields an empty slice on failure.
func (g *Gateway) GetRecentTrades(ctx context.Context, symbol string, limit int, exchange string) []model.Trade {
	log := g.log.WithComponent("gateway").WithFields(logger.Fields{"symbol": symbol})
	c, err := g.resolve(exchange)
	if err != nil {
		log.WithError(err).Warn("recent trades unavailable")
		return []model.Trade{}
	}

	var raw []connector.Trade
	err = g.call(ctx, c, opFetchTrades, symbol, func(ctx context.Context) error {
		var err error
		raw, err = c.conn.FetchTrades(ctx, symbol, limit)
		return err
	})
	if err != nil {
		return []model.Trade{}
	}

	trades, err := normalizer.ToTradeList(symbol, raw, g.now())
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"exchange": c.name}).Warn("discarding malformed trades")
		return []model.Trade{}
	}
	return trades
}

// GetActiveSymbols lists tradable symbols, capped at the configured maximum.
// With supported symbols configured their order is kept and inactive ones
// are dropped; otherwise every active market is listed alphabetically. When
// market metadata cannot be obtained the static fallback list is returned.
func (g *Gateway) GetActiveSymbols(ctx context.Context, exchange string) []string {
	c, err := g.resolve(exchange)
	if err != nil {
		return g.fallbackSymbols()
	}
	if err := g.ensureMarkets(ctx, c); err != nil {
		g.log.WithComponent("gateway").WithError(err).WithFields(logger.Fields{"exchange": c.name}).Warn("using fallback symbol list")
		return g.fallbackSymbols()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.markets) == 0 {
		return g.fallbackSymbols()
	}

	var active []string
	if len(g.settings.SupportedSymbols) > 0 {
		for _, sym := range g.settings.SupportedSymbols {
			if md, ok := c.markets[sym]; ok && md.Active {
				active = append(active, sym)
			}
		}
	} else {
		for sym, md := range c.markets {
			if md.Active {
				active = append(active, sym)
			}
		}
		sort.Strings(active)
	}
	return capSymbols(active, g.settings.MaxActiveSymbols)
}

func (g *Gateway) fallbackSymbols() []string {
	list := g.settings.FallbackSymbols
	if len(list) == 0 {
		list = g.settings.SupportedSymbols
	}
	if len(list) == 0 {
		list = defaultFallbackSymbols
	}
	list = capSymbols(list, maxFallbackSymbols)
	return capSymbols(list, g.settings.MaxActiveSymbols)
}

func capSymbols(list []string, max int) []string {
	if len(list) > max {
		list = list[:max]
	}
	return append([]string(nil), list...)
}
