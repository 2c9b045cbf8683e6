package kucoin

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/account/account"
	"github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/spot/order"

	"exgateway/internal/connector"
	"exgateway/internal/symbols"
)

func (c *Connector) FetchBalance(ctx context.Context) ([]connector.BalanceEntry, error) {
	resp, err := c.account.GetSpotAccountList(account.NewGetSpotAccountListReqBuilder().SetType("trade").Build(), ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]connector.BalanceEntry, 0, len(resp.Data))
	for _, a := range resp.Data {
		out = append(out, connector.BalanceEntry{
			Asset:  symbols.NormalizeAsset(a.Currency),
			Free:   a.Available,
			Locked: a.Holds,
			Total:  a.Balance,
		})
	}
	return out, nil
}

// orderStatus folds KuCoin's active and cancelExist flags into a status
// word the normalizer understands.
func orderStatus(active, cancelExist bool) string {
	switch {
	case active:
		return "open"
	case cancelExist:
		return "canceled"
	}
	return "closed"
}

func (c *Connector) FetchOrder(ctx context.Context, orderID, symbol string) (connector.Order, error) {
	native, err := c.native(symbol)
	if err != nil {
		return connector.Order{}, err
	}
	o, err := c.orders.GetOrderByOrderId(order.NewGetOrderByOrderIdReqBuilder().SetOrderId(orderID).SetSymbol(native).Build(), ctx)
	if err != nil {
		return connector.Order{}, classify(err)
	}
	if o.Id == "" {
		return connector.Order{}, connector.Classify(fmt.Errorf("kucoin order %s not found", orderID), connector.ErrOrderNotFound)
	}
	return connector.Order{
		ID:            o.Id,
		ClientOrderID: o.ClientOid,
		Symbol:        c.symbols.Unified(o.Symbol, symbol),
		Side:          o.Side,
		Type:          o.Type,
		Status:        orderStatus(o.Active, o.CancelExist),
		Amount:        o.Size,
		Filled:        o.DealSize,
		Price:         o.Price,
		Cost:          o.DealFunds,
		Timestamp:     o.CreatedAt,
	}, nil
}

// FetchOpenOrders queries per symbol; without one it first asks which
// symbols hold open orders.
func (c *Connector) FetchOpenOrders(ctx context.Context, symbol string) ([]connector.Order, error) {
	var natives []string
	if symbol != "" {
		native, err := c.native(symbol)
		if err != nil {
			return nil, err
		}
		natives = []string{native}
	} else {
		resp, err := c.orders.GetSymbolsWithOpenOrder(ctx)
		if err != nil {
			return nil, classify(err)
		}
		natives = resp.Symbols
	}

	var out []connector.Order
	for _, native := range natives {
		resp, err := c.orders.GetOpenOrders(order.NewGetOpenOrdersReqBuilder().SetSymbol(native).Build(), ctx)
		if err != nil {
			return nil, classify(err)
		}
		for _, o := range resp.Data {
			out = append(out, connector.Order{
				ID:            o.Id,
				ClientOrderID: o.ClientOid,
				Symbol:        c.symbols.Unified(o.Symbol, symbol),
				Side:          o.Side,
				Type:          o.Type,
				Status:        orderStatus(o.Active, o.CancelExist),
				Amount:        o.Size,
				Filled:        o.DealSize,
				Price:         o.Price,
				Cost:          o.DealFunds,
				Timestamp:     o.CreatedAt,
			})
		}
	}
	return out, nil
}

// CreateOrder uses the synchronous endpoint so fills are known on return.
// Remaining is left to the normalizer; KuCoin splits it into remain and
// canceled sizes.
// Stop orders live on a separate KuCoin API and are not routed here.
func (c *Connector) CreateOrder(ctx context.Context, p connector.OrderParams) (connector.Order, error) {
	native, err := c.native(p.Symbol)
	if err != nil {
		return connector.Order{}, err
	}
	b := order.NewAddOrderSyncReqBuilder().
		SetSymbol(native).
		SetSide(strings.ToLower(p.Side)).
		SetSize(p.Amount)
	switch strings.ToUpper(p.Type) {
	case "MARKET":
		b = b.SetType("market")
	case "LIMIT":
		b = b.SetType("limit").SetPrice(p.Price).SetTimeInForce("GTC")
	default:
		return connector.Order{}, connector.Classify(fmt.Errorf("kucoin spot does not support %s orders", p.Type), connector.ErrNotSupported)
	}
	if p.ClientOrderID != "" {
		b = b.SetClientOid(p.ClientOrderID)
	}

	res, err := c.orders.AddOrderSync(b.Build(), ctx)
	if err != nil {
		return connector.Order{}, classify(err)
	}
	return connector.Order{
		ID:            res.OrderId,
		ClientOrderID: res.ClientOid,
		Symbol:        p.Symbol,
		Side:          strings.ToLower(p.Side),
		Type:          strings.ToLower(p.Type),
		Status:        res.Status,
		Amount:        res.OriginSize,
		Filled:        res.DealSize,
		Price:         p.Price,
		Timestamp:     res.OrderTime,
	}, nil
}

func (c *Connector) CancelOrder(ctx context.Context, orderID, symbol string) error {
	native, err := c.native(symbol)
	if err != nil {
		return err
	}
	req := order.NewCancelOrderByOrderIdSyncReqBuilder().SetOrderId(orderID).SetSymbol(native).Build()
	if _, err := c.orders.CancelOrderByOrderIdSync(req, ctx); err != nil {
		return classify(err)
	}
	return nil
}
