package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"exgateway/internal/connector"
	"exgateway/internal/symbols"
)

func (c *Connector) FetchBalance(ctx context.Context) ([]connector.BalanceEntry, error) {
	acct, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]connector.BalanceEntry, 0, len(acct.Balances))
	for _, b := range acct.Balances {
		out = append(out, connector.BalanceEntry{
			Asset:  symbols.NormalizeAsset(b.Asset),
			Free:   b.Free,
			Locked: b.Locked,
		})
	}
	return out, nil
}

func parseOrderID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, connector.Classify(fmt.Errorf("order id %q is not numeric", id), connector.ErrOrderNotFound)
	}
	return n, nil
}

func (c *Connector) FetchOrder(ctx context.Context, orderID, symbol string) (connector.Order, error) {
	native, err := c.native(symbol)
	if err != nil {
		return connector.Order{}, err
	}
	id, err := parseOrderID(orderID)
	if err != nil {
		return connector.Order{}, err
	}
	o, err := c.client.NewGetOrderService().Symbol(native).OrderID(id).Do(ctx)
	if err != nil {
		return connector.Order{}, classify(err)
	}
	return c.fromOrder(o, symbol), nil
}

func (c *Connector) FetchOpenOrders(ctx context.Context, symbol string) ([]connector.Order, error) {
	svc := c.client.NewListOpenOrdersService()
	if symbol != "" {
		native, err := c.native(symbol)
		if err != nil {
			return nil, err
		}
		svc = svc.Symbol(native)
	}
	orders, err := svc.Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]connector.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, c.fromOrder(o, ""))
	}
	return out, nil
}

// orderType maps a unified order type to the spot API vocabulary.
func orderType(t string) (gobinance.OrderType, bool) {
	switch strings.ToUpper(t) {
	case "MARKET":
		return gobinance.OrderTypeMarket, true
	case "LIMIT":
		return gobinance.OrderTypeLimit, true
	case "STOP":
		return gobinance.OrderTypeStopLoss, true
	case "STOP_LIMIT":
		return gobinance.OrderTypeStopLossLimit, true
	}
	return "", false
}

func (c *Connector) CreateOrder(ctx context.Context, p connector.OrderParams) (connector.Order, error) {
	native, err := c.native(p.Symbol)
	if err != nil {
		return connector.Order{}, err
	}
	kind, ok := orderType(p.Type)
	if !ok {
		return connector.Order{}, connector.Classify(fmt.Errorf("binance spot does not support %s orders", p.Type), connector.ErrInvalidOrder)
	}

	svc := c.client.NewCreateOrderService().
		Symbol(native).
		Side(gobinance.SideType(strings.ToUpper(p.Side))).
		Type(kind).
		Quantity(p.Amount).
		NewOrderRespType(gobinance.NewOrderRespTypeFULL)
	if p.ClientOrderID != "" {
		svc = svc.NewClientOrderID(p.ClientOrderID)
	}
	if p.Price != "" && kind != gobinance.OrderTypeMarket && kind != gobinance.OrderTypeStopLoss {
		svc = svc.Price(p.Price).TimeInForce(gobinance.TimeInForceTypeGTC)
	}
	if p.StopPrice != "" {
		svc = svc.StopPrice(p.StopPrice)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return connector.Order{}, classify(err)
	}

	o := connector.Order{
		ID:            strconv.FormatInt(res.OrderID, 10),
		ClientOrderID: res.ClientOrderID,
		Symbol:        c.symbols.Unified(res.Symbol, p.Symbol),
		Side:          string(res.Side),
		Type:          string(res.Type),
		Status:        string(res.Status),
		Amount:        res.OrigQuantity,
		Filled:        res.ExecutedQuantity,
		Price:         res.Price,
		Cost:          res.CummulativeQuoteQuantity,
		Timestamp:     res.TransactTime,
	}
	if avg := averageFromFills(res.Fills); avg != "" {
		o.Average = avg
	}
	return o, nil
}

// averageFromFills computes the volume weighted fill price of a FULL response.
func averageFromFills(fills []*gobinance.Fill) string {
	var qty, notional decimal.Decimal
	for _, f := range fills {
		p, err1 := decimal.NewFromString(f.Price)
		q, err2 := decimal.NewFromString(f.Quantity)
		if err1 != nil || err2 != nil {
			return ""
		}
		qty = qty.Add(q)
		notional = notional.Add(p.Mul(q))
	}
	if !qty.IsPositive() {
		return ""
	}
	return notional.DivRound(qty, 16).String()
}

func (c *Connector) CancelOrder(ctx context.Context, orderID, symbol string) error {
	native, err := c.native(symbol)
	if err != nil {
		return err
	}
	id, err := parseOrderID(orderID)
	if err != nil {
		return err
	}
	if _, err := c.client.NewCancelOrderService().Symbol(native).OrderID(id).Do(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Connector) fromOrder(o *gobinance.Order, fallback string) connector.Order {
	out := connector.Order{
		ID:            strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Symbol:        c.symbols.Unified(o.Symbol, fallback),
		Side:          string(o.Side),
		Type:          string(o.Type),
		Status:        string(o.Status),
		Amount:        o.OrigQuantity,
		Filled:        o.ExecutedQuantity,
		Price:         o.Price,
		Cost:          o.CummulativeQuoteQuantity,
		Timestamp:     o.Time,
	}
	return out
}
