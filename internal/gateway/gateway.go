// Package gateway is the single entry point for talking to exchanges. It
// owns the rate limiter and the per-exchange market metadata cache, and wraps
// every connector call with throttling, normalization and error translation.
package gateway

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"exgateway/internal/connector"
	"exgateway/internal/gwerror"
	"exgateway/internal/model"
	"exgateway/internal/normalizer"
	"exgateway/internal/ratelimit"
	"exgateway/logger"
)

// Endpoint identifiers used as rate-limit keys, log fields and metric dimensions.
const (
	opLoadMarkets     = "load_markets"
	opFetchTicker     = "fetch_ticker"
	opFetchOHLCV      = "fetch_ohlcv"
	opFetchOrderBook  = "fetch_order_book"
	opFetchTrades     = "fetch_trades"
	opFetchBalance    = "fetch_balance"
	opFetchOrder      = "fetch_order"
	opFetchOpenOrders = "fetch_open_orders"
	opCreateOrder     = "create_order"
	opCancelOrder     = "cancel_order"
)

type connection struct {
	name string
	conn connector.Connector

	reload  sync.Mutex
	mu      sync.RWMutex
	markets map[string]model.MarketMetadata
	loaded  bool
}

func (c *connection) market(symbol string) (model.MarketMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	md, ok := c.markets[symbol]
	return md, ok
}

func (c *connection) isLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Gateway routes operations to named exchange connections.
type Gateway struct {
	settings Settings
	log      *logger.Log
	limiter  *ratelimit.Limiter
	recorder Recorder
	now      func() time.Time
	newID    func() string

	mu     sync.RWMutex
	conns  map[string]*connection
	order  []string
	closed bool
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithConnector registers a connector under its Name.
func WithConnector(c connector.Connector) Option {
	return func(g *Gateway) {
		name := c.Name()
		if _, exists := g.conns[name]; !exists {
			g.order = append(g.order, name)
		}
		g.conns[name] = &connection{name: name, conn: c, markets: map[string]model.MarketMetadata{}}
	}
}

// WithRecorder sends call metrics to r.
func WithRecorder(r Recorder) Option {
	return func(g *Gateway) {
		if r != nil {
			g.recorder = r
		}
	}
}

// WithClock replaces the clock used for timestamps the exchange did not provide.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithClientOrderIDs replaces the client order id generator.
func WithClientOrderIDs(next func() string) Option {
	return func(g *Gateway) { g.newID = next }
}

// New builds a gateway. Connectors are attached with WithConnector.
func New(settings Settings, log *logger.Log, opts ...Option) *Gateway {
	if log == nil {
		log = logger.GetLogger()
	}
	settings = settings.withDefaults()

	g := &Gateway{
		settings: settings,
		log:      log,
		limiter:  ratelimit.New(settings.MinRequestInterval),
		recorder: nopRecorder{},
		now:      time.Now,
		newID:    uuid.NewString,
		conns:    make(map[string]*connection),
	}
	for _, opt := range opts {
		opt(g)
	}
	for name, interval := range settings.Intervals {
		g.limiter.SetInterval(name, interval)
	}
	if g.settings.DefaultExchange == "" && len(g.order) > 0 {
		g.settings.DefaultExchange = g.order[0]
	}
	return g
}

// Exchanges returns the registered exchange names in registration order.
func (g *Gateway) Exchanges() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// DefaultExchange is used when an operation is called with an empty exchange name.
func (g *Gateway) DefaultExchange() string {
	return g.settings.DefaultExchange
}

// Limiter exposes the request spacing state for observability.
func (g *Gateway) Limiter() *ratelimit.Limiter {
	return g.limiter
}

// Start loads market metadata for every exchange. Failures are logged and
// leave that exchange's cache empty until the next explicit reload or first use.
func (g *Gateway) Start(ctx context.Context) {
	log := g.log.WithComponent("gateway")
	var wg sync.WaitGroup
	for _, name := range g.Exchanges() {
		c, err := g.resolve(name)
		if err != nil {
			continue
		}
		wg.Add(1)
		go func(c *connection) {
			defer wg.Done()
			if err := g.loadMarkets(ctx, c); err != nil {
				log.WithError(err).WithFields(logger.Fields{"exchange": c.name}).Warn("failed to load markets")
			}
		}(c)
	}
	wg.Wait()
	log.WithFields(logger.Fields{
		"exchanges": g.Exchanges(),
		"default":   g.settings.DefaultExchange,
	}).Info("exchange gateway started")
}

// ReloadMarkets refreshes one exchange's market metadata. Reloads of the same
// exchange are serialized; readers see either the old or the new set.
func (g *Gateway) ReloadMarkets(ctx context.Context, exchange string) error {
	c, err := g.resolve(exchange)
	if err != nil {
		return err
	}
	return g.loadMarkets(ctx, c)
}

// Markets returns the cached market metadata of an exchange, sorted by symbol.
func (g *Gateway) Markets(exchange string) ([]model.MarketMetadata, error) {
	c, err := g.resolve(exchange)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.MarketMetadata, 0, len(c.markets))
	for _, md := range c.markets {
		out = append(out, md)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// Close stops the gateway. Later operations fail with ExchangeUnavailable.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	conns := make([]*connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	var firstErr error
	for _, c := range conns {
		if closer, ok := c.conn.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("close %s: %w", c.name, err)
			}
		}
	}
	g.log.WithComponent("gateway").Info("exchange gateway stopped")
	return firstErr
}

func (g *Gateway) resolve(exchange string) (*connection, error) {
	if exchange == "" {
		exchange = g.settings.DefaultExchange
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return nil, gwerror.New(gwerror.KindExchangeUnavailable, exchange, "", "gateway is closed")
	}
	c, ok := g.conns[exchange]
	if !ok {
		return nil, gwerror.New(gwerror.KindExchangeUnavailable, exchange, "", "exchange %q is not configured", exchange)
	}
	return c, nil
}

func (g *Gateway) loadMarkets(ctx context.Context, c *connection) error {
	c.reload.Lock()
	defer c.reload.Unlock()
	return g.loadMarketsLocked(ctx, c)
}

// loadMarketsLocked expects c.reload to be held.
func (g *Gateway) loadMarketsLocked(ctx context.Context, c *connection) error {
	var raw []connector.Market
	err := g.call(ctx, c, opLoadMarkets, "", func(ctx context.Context) error {
		var err error
		raw, err = c.conn.LoadMarkets(ctx)
		return err
	})
	if err != nil {
		return err
	}

	markets := make(map[string]model.MarketMetadata, len(raw))
	for _, m := range raw {
		md, ok := normalizer.ToMarketMetadata(c.name, m)
		if !ok {
			continue
		}
		// listings that unify to one symbol (XBT-USDT, BTC-USDT) keep the
		// first one unless a later one is the active market
		if prev, dup := markets[md.Symbol]; dup && (prev.Active || !md.Active) {
			continue
		}
		markets[md.Symbol] = md
	}

	c.mu.Lock()
	c.markets = markets
	c.loaded = true
	c.mu.Unlock()

	g.log.WithComponent("gateway").WithFields(logger.Fields{
		"exchange": c.name,
		"markets":  len(markets),
	}).Info("market metadata loaded")
	return nil
}

// ensureMarkets performs the session's first load when Start could not.
func (g *Gateway) ensureMarkets(ctx context.Context, c *connection) error {
	if c.isLoaded() {
		return nil
	}
	c.reload.Lock()
	defer c.reload.Unlock()
	if c.isLoaded() {
		return nil
	}
	return g.loadMarketsLocked(ctx, c)
}

// call gates fn through the rate limiter and records its outcome. Failures
// come back translated.
func (g *Gateway) call(ctx context.Context, c *connection, op, symbol string, fn func(context.Context) error) error {
	wait, err := g.limiter.Acquire(ctx, c.name, op)
	if err != nil {
		return gwerror.Translate(c.name, op, err)
	}
	if wait > 0 {
		g.recorder.RecordRateLimitWait(c.name, op, wait)
	}

	start := time.Now()
	err = fn(ctx)
	elapsed := time.Since(start)

	fields := logger.Fields{"exchange": c.name}
	if symbol != "" {
		fields["symbol"] = symbol
	}
	entry := g.log.WithFields(fields)

	if err != nil {
		gerr := gwerror.Translate(c.name, op, err)
		g.recorder.RecordCall(c.name, op, elapsed, string(gerr.Kind))
		entry.WithComponent("gateway").WithError(gerr).WithFields(logger.Fields{
			"operation":  op,
			"error_kind": string(gerr.Kind),
		}).Warn("exchange call failed")
		return gerr
	}
	g.recorder.RecordCall(c.name, op, elapsed, "")
	logger.LogPerformanceEntry(entry, "gateway", op, elapsed, nil)
	return nil
}

// malformed reports a response the normalizer could not accept.
func malformed(exchange, op string, err error) error {
	return &gwerror.Error{Kind: gwerror.KindUnknown, Exchange: exchange, Op: op, Message: err.Error(), Err: err}
}
