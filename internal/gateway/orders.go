package gateway

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"exgateway/internal/connector"
	"exgateway/internal/gwerror"
	"exgateway/internal/model"
	"exgateway/internal/normalizer"
	"exgateway/internal/precision"
	"exgateway/logger"
)

// PlaceOrder validates req locally, trims quantity and prices to the market's
// precision and submits it. Validation failures never reach the exchange.
func (g *Gateway) PlaceOrder(ctx context.Context, req model.OrderRequest, exchange string) (model.OrderResponse, error) {
	c, err := g.resolve(exchange)
	if err != nil {
		return model.OrderResponse{}, err
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := req.Validate(); err != nil {
		return model.OrderResponse{}, gwerror.New(gwerror.KindInvalidOrderParameters, c.name, opCreateOrder, "%v", err)
	}

	if err := g.ensureMarkets(ctx, c); err != nil {
		return model.OrderResponse{}, err
	}
	md, ok := c.market(req.Symbol)
	if !ok || !md.Active {
		return model.OrderResponse{}, gwerror.New(gwerror.KindSymbolNotSupported, c.name, opCreateOrder, "symbol %s is not an active market", req.Symbol)
	}

	params, err := g.orderParams(c.name, req, &md)
	if err != nil {
		return model.OrderResponse{}, err
	}

	var raw connector.Order
	err = g.call(ctx, c, opCreateOrder, req.Symbol, func(ctx context.Context) error {
		var err error
		raw, err = c.conn.CreateOrder(ctx, params)
		return err
	})
	if err != nil {
		return model.OrderResponse{}, err
	}

	if raw.Symbol == "" {
		raw.Symbol = req.Symbol
	}
	if raw.ClientOrderID == "" {
		raw.ClientOrderID = params.ClientOrderID
	}
	resp, err := normalizer.ToOrderResponse(c.name, raw, g.settings.FillTolerance, g.now())
	if err != nil {
		return model.OrderResponse{}, malformed(c.name, opCreateOrder, err)
	}

	g.log.WithComponent("gateway").WithFields(logger.Fields{
		"exchange":        c.name,
		"symbol":          resp.Symbol,
		"order_id":        resp.OrderID,
		"client_order_id": resp.ClientOrderID,
		"side":            resp.Side,
		"type":            resp.Type,
		"quantity":        params.Amount,
		"status":          resp.Status,
	}).Info("order placed")
	return resp, nil
}

// orderParams applies precision adjustment and rejects quantities that
// vanish or fall under the market minimum once trimmed.
func (g *Gateway) orderParams(exchange string, req model.OrderRequest, md *model.MarketMetadata) (connector.OrderParams, error) {
	qty := precision.AdjustAmount(req.Quantity, md)
	if !qty.IsPositive() {
		return connector.OrderParams{}, gwerror.New(gwerror.KindInvalidOrderParameters, exchange, opCreateOrder,
			"quantity %s is below the market precision of %s", req.Quantity, req.Symbol)
	}
	if md.MinAmount.Valid && qty.LessThan(md.MinAmount.Decimal) {
		return connector.OrderParams{}, gwerror.New(gwerror.KindInvalidOrderParameters, exchange, opCreateOrder,
			"quantity %s is below the minimum %s for %s", qty, md.MinAmount.Decimal, req.Symbol)
	}

	params := connector.OrderParams{
		Symbol:        req.Symbol,
		Side:          string(req.Side),
		Type:          string(req.Type),
		Amount:        qty.String(),
		ClientOrderID: g.newID(),
	}
	if req.Type.NeedsPrice() {
		price, err := adjustedPrice(exchange, "price", req.Price.Decimal, md)
		if err != nil {
			return connector.OrderParams{}, err
		}
		params.Price = price
	}
	if req.Type.NeedsStopPrice() {
		stop, err := adjustedPrice(exchange, "stop price", req.StopPrice.Decimal, md)
		if err != nil {
			return connector.OrderParams{}, err
		}
		params.StopPrice = stop
	}
	return params, nil
}

func adjustedPrice(exchange, field string, value decimal.Decimal, md *model.MarketMetadata) (string, error) {
	adjusted := precision.AdjustPrice(value, md)
	if !adjusted.IsPositive() {
		return "", gwerror.New(gwerror.KindInvalidOrderParameters, exchange, opCreateOrder,
			"%s %s is below the price precision of %s", field, value, md.Symbol)
	}
	return adjusted.String(), nil
}

// MarketBuy places a market buy order.
func (g *Gateway) MarketBuy(ctx context.Context, symbol string, quantity decimal.Decimal, exchange string) (model.OrderResponse, error) {
	return g.PlaceOrder(ctx, model.OrderRequest{Symbol: symbol, Side: model.SideBuy, Type: model.OrderTypeMarket, Quantity: quantity}, exchange)
}

// MarketSell places a market sell order.
func (g *Gateway) MarketSell(ctx context.Context, symbol string, quantity decimal.Decimal, exchange string) (model.OrderResponse, error) {
	return g.PlaceOrder(ctx, model.OrderRequest{Symbol: symbol, Side: model.SideSell, Type: model.OrderTypeMarket, Quantity: quantity}, exchange)
}

// LimitBuy places a limit buy order.
func (g *Gateway) LimitBuy(ctx context.Context, symbol string, quantity, price decimal.Decimal, exchange string) (model.OrderResponse, error) {
	return g.PlaceOrder(ctx, model.OrderRequest{
		Symbol:   symbol,
		Side:     model.SideBuy,
		Type:     model.OrderTypeLimit,
		Quantity: quantity,
		Price:    decimal.NewNullDecimal(price),
	}, exchange)
}

// LimitSell places a limit sell order.
func (g *Gateway) LimitSell(ctx context.Context, symbol string, quantity, price decimal.Decimal, exchange string) (model.OrderResponse, error) {
	return g.PlaceOrder(ctx, model.OrderRequest{
		Symbol:   symbol,
		Side:     model.SideSell,
		Type:     model.OrderTypeLimit,
		Quantity: quantity,
		Price:    decimal.NewNullDecimal(price),
	}, exchange)
}

// CancelOrder cancels an order. An order the exchange no longer knows is
// reported as CancelOutcomeAlreadyGone instead of an error, since the caller's
// goal is already met. Every other failure is returned.
func (g *Gateway) CancelOrder(ctx context.Context, orderID, symbol, exchange string) (model.CancelResult, error) {
	c, err := g.resolve(exchange)
	if err != nil {
		return model.CancelResult{}, err
	}
	if strings.TrimSpace(orderID) == "" {
		return model.CancelResult{}, gwerror.New(gwerror.KindInvalidOrderParameters, c.name, opCancelOrder, "order id is required")
	}

	result := model.CancelResult{Exchange: c.name, OrderID: orderID, Symbol: symbol}
	err = g.call(ctx, c, opCancelOrder, symbol, func(ctx context.Context) error {
		return c.conn.CancelOrder(ctx, orderID, symbol)
	})
	switch {
	case err == nil:
		result.Outcome = model.CancelOutcomeCanceled
	case gwerror.IsOrderNotFound(err):
		result.Outcome = model.CancelOutcomeAlreadyGone
		result.Note = "order not found on exchange; it is already closed or canceled"
		g.log.WithComponent("gateway").WithFields(logger.Fields{
			"exchange": c.name,
			"symbol":   symbol,
			"order_id": orderID,
		}).Warn("cancel requested for unknown order; treating as canceled")
	default:
		return model.CancelResult{}, err
	}
	return result, nil
}

// GetOrder looks an order up. It returns nil and no error when the exchange
// does not know the order.
func (g *Gateway) GetOrder(ctx context.Context, orderID, symbol, exchange string) (*model.OrderResponse, error) {
	c, err := g.resolve(exchange)
	if err != nil {
		return nil, err
	}

	var raw connector.Order
	err = g.call(ctx, c, opFetchOrder, symbol, func(ctx context.Context) error {
		var err error
		raw, err = c.conn.FetchOrder(ctx, orderID, symbol)
		return err
	})
	if err != nil {
		if gwerror.IsOrderNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if raw.Symbol == "" {
		raw.Symbol = symbol
	}
	resp, err := normalizer.ToOrderResponse(c.name, raw, g.settings.FillTolerance, g.now())
	if err != nil {
		return nil, malformed(c.name, opFetchOrder, err)
	}
	return &resp, nil
}

// GetOpenOrders lists open orders for symbol, or for every symbol when it is empty.
func (g *Gateway) GetOpenOrders(ctx context.Context, symbol, exchange string) ([]model.OrderResponse, error) {
	c, err := g.resolve(exchange)
	if err != nil {
		return nil, err
	}

	var raw []connector.Order
	err = g.call(ctx, c, opFetchOpenOrders, symbol, func(ctx context.Context) error {
		var err error
		raw, err = c.conn.FetchOpenOrders(ctx, symbol)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.OrderResponse, 0, len(raw))
	for _, o := range raw {
		if o.Symbol == "" {
			o.Symbol = symbol
		}
		resp, err := normalizer.ToOrderResponse(c.name, o, g.settings.FillTolerance, g.now())
		if err != nil {
			return nil, malformed(c.name, opFetchOpenOrders, err)
		}
		out = append(out, resp)
	}
	return out, nil
}
