// Package paper is a simulated exchange with virtual balances. Orders fill
// against a reference price per market instead of a real order book.
package paper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"exgateway/internal/connector"
	"exgateway/internal/symbols"
	"exgateway/logger"
)

const (
	statusNew      = "NEW"
	statusFilled   = "FILLED"
	statusCanceled = "CANCELED"
)

// Market seeds one simulated market.
type Market struct {
	Symbol          string
	Price           decimal.Decimal
	AmountPrecision string
	PricePrecision  string
	MinAmount       decimal.Decimal
	Inactive        bool
}

type market struct {
	Market
	base, quote string
}

type order struct {
	id, clientID string
	symbol       string
	side, kind   string
	status       string
	amount       decimal.Decimal
	price        decimal.Decimal
	stop         decimal.Decimal
	average      decimal.Decimal
	filled       decimal.Decimal
	created      int64

	// funds locked while the order rests
	reservedAsset string
	reserved      decimal.Decimal
}

func (o *order) open() bool { return o.status == statusNew }

func (o *order) view() connector.Order {
	out := connector.Order{
		ID:            o.id,
		ClientOrderID: o.clientID,
		Symbol:        o.symbol,
		Side:          o.side,
		Type:          o.kind,
		Status:        o.status,
		Amount:        o.amount.String(),
		Filled:        o.filled.String(),
		Remaining:     o.amount.Sub(o.filled).String(),
		Timestamp:     o.created,
	}
	if !o.price.IsZero() {
		out.Price = o.price.String()
	}
	if o.filled.IsPositive() {
		out.Average = o.average.String()
		out.Cost = o.average.Mul(o.filled).String()
	}
	return out
}

// Option customises an Exchange.
type Option func(*Exchange)

// WithClock replaces the clock used for order and trade timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Exchange) { e.now = now }
}

// WithOrderIDs replaces the order id generator.
func WithOrderIDs(next func() string) Option {
	return func(e *Exchange) { e.newID = next }
}

// Exchange implements connector.Connector in memory.
type Exchange struct {
	name  string
	log   *logger.Entry
	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	markets map[string]*market
	free    map[string]decimal.Decimal
	locked  map[string]decimal.Decimal
	orders  map[string]*order
	fills   map[string][]connector.Trade
}

var _ connector.Connector = (*Exchange)(nil)

// New builds a paper exchange with the given starting balances.
func New(name string, balances map[string]decimal.Decimal, markets []Market, opts ...Option) *Exchange {
	e := &Exchange{
		name:    name,
		log:     logger.GetLogger().WithComponent("paper").WithFields(logger.Fields{"exchange": name}),
		now:     time.Now,
		newID:   uuid.NewString,
		markets: make(map[string]*market, len(markets)),
		free:    make(map[string]decimal.Decimal, len(balances)),
		locked:  make(map[string]decimal.Decimal),
		orders:  make(map[string]*order),
		fills:   make(map[string][]connector.Trade),
	}
	for _, opt := range opts {
		opt(e)
	}
	for asset, amt := range balances {
		e.free[symbols.NormalizeAsset(asset)] = amt
	}
	for _, m := range markets {
		base, quote, err := symbols.Split(m.Symbol)
		if err != nil {
			e.log.WithError(err).Warn("skipping paper market")
			continue
		}
		base, quote = symbols.NormalizeAsset(base), symbols.NormalizeAsset(quote)
		m.Symbol = symbols.Unified(base, quote)
		e.markets[m.Symbol] = &market{Market: m, base: base, quote: quote}
	}
	return e
}

func (e *Exchange) Name() string { return e.name }

// HasCredentials is always true; the virtual account needs no keys.
func (e *Exchange) HasCredentials() bool { return true }

func (e *Exchange) LoadMarkets(ctx context.Context) ([]connector.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]connector.Market, 0, len(e.markets))
	for _, m := range e.markets {
		cm := connector.Market{
			Symbol:          m.Symbol,
			Base:            m.base,
			Quote:           m.quote,
			Active:          !m.Inactive,
			PrecisionMode:   connector.PrecisionAuto,
			AmountPrecision: m.AmountPrecision,
			PricePrecision:  m.PricePrecision,
		}
		if m.MinAmount.IsPositive() {
			cm.MinAmount = m.MinAmount.String()
		}
		out = append(out, cm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// SetPrice moves the reference price of symbol and fills resting orders that
// became marketable.
func (e *Exchange) SetPrice(symbol string, price decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(symbol)
	if err != nil {
		return err
	}
	m.Price = price

	var ready []*order
	for _, o := range e.orders {
		if o.open() && o.symbol == m.Symbol && immediate(o, price) {
			ready = append(ready, o)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].created < ready[j].created })
	for _, o := range ready {
		// resting orders fill at their own limit or stop price
		e.release(o)
		if err := e.fill(m, o, o.restPrice()); err != nil {
			e.log.WithError(err).WithFields(logger.Fields{"order_id": o.id}).Warn("resting paper order could not fill")
			_ = e.reserve(m, o, o.restPrice())
		}
	}
	return nil
}

func (e *Exchange) market(symbol string) (*market, error) {
	m, ok := e.markets[strings.ToUpper(symbol)]
	if !ok {
		return nil, connector.Classify(fmt.Errorf("paper market %s does not exist", symbol), connector.ErrBadSymbol)
	}
	return m, nil
}

func (e *Exchange) FetchTicker(ctx context.Context, symbol string) (connector.Ticker, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(symbol)
	if err != nil {
		return connector.Ticker{}, err
	}
	p := m.Price.String()
	return connector.Ticker{
		Symbol:    m.Symbol,
		Last:      p,
		Open:      p,
		High:      p,
		Low:       p,
		Bid:       p,
		Ask:       p,
		Timestamp: e.now().UnixMilli(),
	}, nil
}

var timeframes = map[string]time.Duration{
	"1m": time.Minute, "5m": 5 * time.Minute, "15m": 15 * time.Minute, "30m": 30 * time.Minute,
	"1h": time.Hour, "4h": 4 * time.Hour, "1d": 24 * time.Hour,
}

// FetchOHLCV returns flat candles at the reference price, newest ending at the current period.
func (e *Exchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]connector.OHLCV, error) {
	step, ok := timeframes[timeframe]
	if !ok {
		return nil, connector.Classify(fmt.Errorf("timeframe %q", timeframe), connector.ErrNotSupported)
	}
	if limit <= 0 {
		limit = 100
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(symbol)
	if err != nil {
		return nil, err
	}

	p := m.Price.String()
	last := e.now().Truncate(step)
	out := make([]connector.OHLCV, 0, limit)
	for i := limit - 1; i >= 0; i-- {
		out = append(out, connector.OHLCV{
			Timestamp: last.Add(-time.Duration(i) * step).UnixMilli(),
			Open:      p, High: p, Low: p, Close: p, Volume: "0",
		})
	}
	return out, nil
}

// FetchOrderBook aggregates resting paper orders by price.
func (e *Exchange) FetchOrderBook(ctx context.Context, symbol string, depth int) (connector.OrderBook, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(symbol)
	if err != nil {
		return connector.OrderBook{}, err
	}

	bids := map[string]decimal.Decimal{}
	asks := map[string]decimal.Decimal{}
	for _, o := range e.orders {
		if !o.open() || o.symbol != m.Symbol || o.price.IsZero() {
			continue
		}
		side := bids
		if o.side == "SELL" {
			side = asks
		}
		k := o.price.String()
		side[k] = side[k].Add(o.amount.Sub(o.filled))
	}
	return connector.OrderBook{
		Symbol:    m.Symbol,
		Bids:      levels(bids),
		Asks:      levels(asks),
		Timestamp: e.now().UnixMilli(),
	}, nil
}

func levels(agg map[string]decimal.Decimal) [][2]string {
	out := make([][2]string, 0, len(agg))
	for price, size := range agg {
		out = append(out, [2]string{price, size.String()})
	}
	return out
}

// FetchTrades returns the most recent paper fills of symbol, oldest first.
func (e *Exchange) FetchTrades(ctx context.Context, symbol string, limit int) ([]connector.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(symbol)
	if err != nil {
		return nil, err
	}
	trades := e.fills[m.Symbol]
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	return append([]connector.Trade(nil), trades...), nil
}

func (e *Exchange) FetchBalance(ctx context.Context) ([]connector.BalanceEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	assets := make(map[string]struct{}, len(e.free))
	for a := range e.free {
		assets[a] = struct{}{}
	}
	for a := range e.locked {
		assets[a] = struct{}{}
	}
	out := make([]connector.BalanceEntry, 0, len(assets))
	for a := range assets {
		free, locked := e.free[a], e.locked[a]
		out = append(out, connector.BalanceEntry{
			Asset:  a,
			Free:   free.String(),
			Locked: locked.String(),
			Total:  free.Add(locked).String(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (e *Exchange) FetchOrder(ctx context.Context, orderID, symbol string) (connector.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return connector.Order{}, notFound(orderID)
	}
	return o.view(), nil
}

func (e *Exchange) FetchOpenOrders(ctx context.Context, symbol string) ([]connector.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	symbol = strings.ToUpper(symbol)
	var open []*order
	for _, o := range e.orders {
		if o.open() && (symbol == "" || o.symbol == symbol) {
			open = append(open, o)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].created != open[j].created {
			return open[i].created < open[j].created
		}
		return open[i].id < open[j].id
	})
	out := make([]connector.Order, 0, len(open))
	for _, o := range open {
		out = append(out, o.view())
	}
	return out, nil
}

// CreateOrder fills market orders and marketable limit or triggered stop
// orders immediately at the reference price. Anything else rests with its
// funds locked.
func (e *Exchange) CreateOrder(ctx context.Context, p connector.OrderParams) (connector.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.market(p.Symbol)
	if err != nil {
		return connector.Order{}, err
	}
	if m.Inactive {
		return connector.Order{}, invalid("market %s is not trading", m.Symbol)
	}
	o, err := e.newOrder(m, p)
	if err != nil {
		return connector.Order{}, err
	}

	if immediate(o, m.Price) {
		if err := e.fill(m, o, m.Price); err != nil {
			return connector.Order{}, err
		}
	} else if err := e.reserve(m, o, o.restPrice()); err != nil {
		return connector.Order{}, err
	}
	e.orders[o.id] = o
	return o.view(), nil
}

func (e *Exchange) newOrder(m *market, p connector.OrderParams) (*order, error) {
	side := strings.ToUpper(p.Side)
	if side != "BUY" && side != "SELL" {
		return nil, invalid("side %q", p.Side)
	}
	kind := strings.ToUpper(p.Type)
	switch kind {
	case "MARKET", "LIMIT", "STOP", "STOP_LIMIT":
	default:
		return nil, invalid("order type %q", p.Type)
	}

	amount, err := decimal.NewFromString(p.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, invalid("amount %q", p.Amount)
	}
	o := &order{
		id:       e.newID(),
		clientID: p.ClientOrderID,
		symbol:   m.Symbol,
		side:     side,
		kind:     kind,
		status:   statusNew,
		amount:   amount,
		created:  e.now().UnixMilli(),
	}
	if kind == "LIMIT" || kind == "STOP_LIMIT" {
		if o.price, err = decimal.NewFromString(p.Price); err != nil || !o.price.IsPositive() {
			return nil, invalid("price %q", p.Price)
		}
	}
	if kind == "STOP" || kind == "STOP_LIMIT" {
		if o.stop, err = decimal.NewFromString(p.StopPrice); err != nil || !o.stop.IsPositive() {
			return nil, invalid("stop price %q", p.StopPrice)
		}
	}
	return o, nil
}

func (o *order) restPrice() decimal.Decimal {
	if o.kind == "STOP" {
		return o.stop
	}
	return o.price
}

func triggered(o *order, ref decimal.Decimal) bool {
	if o.side == "BUY" {
		return ref.GreaterThanOrEqual(o.stop)
	}
	return ref.LessThanOrEqual(o.stop)
}

func marketable(o *order, ref decimal.Decimal) bool {
	if o.side == "BUY" {
		return o.price.GreaterThanOrEqual(ref)
	}
	return o.price.LessThanOrEqual(ref)
}

func immediate(o *order, ref decimal.Decimal) bool {
	switch o.kind {
	case "MARKET":
		return true
	case "LIMIT":
		return marketable(o, ref)
	case "STOP":
		return triggered(o, ref)
	default:
		return triggered(o, ref) && marketable(o, ref)
	}
}

// fill settles o in full at price. The caller must have released any lock.
func (e *Exchange) fill(m *market, o *order, price decimal.Decimal) error {
	cost := price.Mul(o.amount)
	if o.side == "BUY" {
		if e.free[m.quote].LessThan(cost) {
			return insufficient(m.quote, cost, e.free[m.quote])
		}
		e.free[m.quote] = e.free[m.quote].Sub(cost)
		e.free[m.base] = e.free[m.base].Add(o.amount)
	} else {
		if e.free[m.base].LessThan(o.amount) {
			return insufficient(m.base, o.amount, e.free[m.base])
		}
		e.free[m.base] = e.free[m.base].Sub(o.amount)
		e.free[m.quote] = e.free[m.quote].Add(cost)
	}

	o.status = statusFilled
	o.filled = o.amount
	o.average = price
	e.fills[m.Symbol] = append(e.fills[m.Symbol], connector.Trade{
		ID:           e.newID(),
		Symbol:       m.Symbol,
		Side:         strings.ToLower(o.side),
		Price:        price.String(),
		Amount:       o.amount.String(),
		Cost:         cost.String(),
		TakerOrMaker: "taker",
		Timestamp:    e.now().UnixMilli(),
	})
	e.log.WithFields(logger.Fields{
		"order_id": o.id,
		"symbol":   m.Symbol,
		"side":     o.side,
		"amount":   o.amount.String(),
		"price":    price.String(),
	}).Info("paper order filled")
	return nil
}

func (e *Exchange) reserve(m *market, o *order, price decimal.Decimal) error {
	asset, need := m.base, o.amount
	if o.side == "BUY" {
		asset, need = m.quote, price.Mul(o.amount)
	}
	if e.free[asset].LessThan(need) {
		return insufficient(asset, need, e.free[asset])
	}
	e.free[asset] = e.free[asset].Sub(need)
	e.locked[asset] = e.locked[asset].Add(need)
	o.reservedAsset, o.reserved = asset, need
	return nil
}

func (e *Exchange) release(o *order) {
	if o.reserved.IsZero() {
		return
	}
	e.locked[o.reservedAsset] = e.locked[o.reservedAsset].Sub(o.reserved)
	if e.locked[o.reservedAsset].IsZero() {
		delete(e.locked, o.reservedAsset)
	}
	e.free[o.reservedAsset] = e.free[o.reservedAsset].Add(o.reserved)
	o.reserved = decimal.Zero
}

// CancelOrder releases a resting order's funds. Orders that are unknown or
// no longer open are reported as not found.
func (e *Exchange) CancelOrder(ctx context.Context, orderID, symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok || !o.open() {
		return notFound(orderID)
	}
	e.release(o)
	o.status = statusCanceled
	e.log.WithFields(logger.Fields{"order_id": orderID, "symbol": o.symbol}).Info("paper order canceled")
	return nil
}

func notFound(id string) error {
	return connector.Classify(fmt.Errorf("paper order %s does not exist or is closed", id), connector.ErrOrderNotFound)
}

func invalid(format string, args ...interface{}) error {
	return connector.Classify(fmt.Errorf("invalid "+format, args...), connector.ErrInvalidOrder)
}

func insufficient(asset string, need, have decimal.Decimal) error {
	return connector.Classify(fmt.Errorf("insufficient %s balance: need %s, have %s", asset, need, have), connector.ErrInsufficientFunds)
}
