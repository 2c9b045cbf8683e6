package bybit

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"exgateway/internal/connector"
	"exgateway/internal/symbols"
)

func (c *Connector) FetchBalance(ctx context.Context) ([]connector.BalanceEntry, error) {
	var res struct {
		List []struct {
			Coin []struct {
				Coin          string `json:"coin"`
				WalletBalance string `json:"walletBalance"`
				Locked        string `json:"locked"`
			} `json:"coin"`
		} `json:"list"`
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{"accountType": "UNIFIED"}).GetAccountWallet(ctx)
	if err := decode(resp, err, &res); err != nil {
		return nil, err
	}
	var out []connector.BalanceEntry
	for _, acct := range res.List {
		for _, coin := range acct.Coin {
			out = append(out, connector.BalanceEntry{
				Asset:  symbols.NormalizeAsset(coin.Coin),
				Locked: coin.Locked,
				Total:  coin.WalletBalance,
			})
		}
	}
	return out, nil
}

type order struct {
	OrderID      string `json:"orderId"`
	OrderLinkID  string `json:"orderLinkId"`
	Symbol       string `json:"symbol"`
	Side         string `json:"side"`
	OrderType    string `json:"orderType"`
	OrderStatus  string `json:"orderStatus"`
	Qty          string `json:"qty"`
	Price        string `json:"price"`
	AvgPrice     string `json:"avgPrice"`
	CumExecQty   string `json:"cumExecQty"`
	CumExecValue string `json:"cumExecValue"`
	LeavesQty    string `json:"leavesQty"`
	TriggerPrice string `json:"triggerPrice"`
	CreatedTime  string `json:"createdTime"`
}

type orderList struct {
	List []order `json:"list"`
}

func (c *Connector) FetchOrder(ctx context.Context, orderID, symbol string) (connector.Order, error) {
	native, err := c.native(symbol)
	if err != nil {
		return connector.Order{}, err
	}
	params := map[string]interface{}{"category": category, "symbol": native, "orderId": orderID}

	var open orderList
	resp, err := c.client.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
	if err := decode(resp, err, &open); err != nil {
		return connector.Order{}, err
	}
	if o, ok := findOrder(open.List, orderID); ok {
		return c.fromOrder(o, symbol), nil
	}

	// closed orders only show up in history
	var hist orderList
	resp, err = c.client.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
	if err := decode(resp, err, &hist); err != nil {
		return connector.Order{}, err
	}
	if o, ok := findOrder(hist.List, orderID); ok {
		return c.fromOrder(o, symbol), nil
	}
	return connector.Order{}, connector.Classify(fmt.Errorf("bybit order %s not found", orderID), connector.ErrOrderNotFound)
}

func findOrder(list []order, id string) (order, bool) {
	for _, o := range list {
		if o.OrderID == id {
			return o, true
		}
	}
	return order{}, false
}

func (c *Connector) FetchOpenOrders(ctx context.Context, symbol string) ([]connector.Order, error) {
	params := map[string]interface{}{"category": category}
	if symbol != "" {
		native, err := c.native(symbol)
		if err != nil {
			return nil, err
		}
		params["symbol"] = native
	}
	var res orderList
	resp, err := c.client.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
	if err := decode(resp, err, &res); err != nil {
		return nil, err
	}
	out := make([]connector.Order, 0, len(res.List))
	for _, o := range res.List {
		out = append(out, c.fromOrder(o, symbol))
	}
	return out, nil
}

// orderParams builds the v5 create payload. Stop variants are conditional
// orders filtered as StopOrder.
func orderParams(native string, p connector.OrderParams) (map[string]interface{}, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   native,
		"side":     sideName(p.Side),
		"qty":      p.Amount,
	}
	switch strings.ToUpper(p.Type) {
	case "MARKET":
		params["orderType"] = "Market"
		// spot market buys are sized in quote coin unless told otherwise
		params["marketUnit"] = "baseCoin"
	case "LIMIT":
		params["orderType"] = "Limit"
		params["price"] = p.Price
		params["timeInForce"] = "GTC"
	case "STOP":
		params["orderType"] = "Market"
		params["marketUnit"] = "baseCoin"
		params["triggerPrice"] = p.StopPrice
		params["orderFilter"] = "StopOrder"
	case "STOP_LIMIT":
		params["orderType"] = "Limit"
		params["price"] = p.Price
		params["timeInForce"] = "GTC"
		params["triggerPrice"] = p.StopPrice
		params["orderFilter"] = "StopOrder"
	default:
		return nil, connector.Classify(fmt.Errorf("bybit spot does not support %s orders", p.Type), connector.ErrInvalidOrder)
	}
	if p.ClientOrderID != "" {
		params["orderLinkId"] = p.ClientOrderID
	}
	return params, nil
}

func sideName(side string) string {
	if strings.EqualFold(side, "sell") {
		return "Sell"
	}
	return "Buy"
}

// CreateOrder places the order. The create endpoint acknowledges with ids
// only, so the returned order is rebuilt from the submitted values.
func (c *Connector) CreateOrder(ctx context.Context, p connector.OrderParams) (connector.Order, error) {
	native, err := c.native(p.Symbol)
	if err != nil {
		return connector.Order{}, err
	}
	params, err := orderParams(native, p)
	if err != nil {
		return connector.Order{}, err
	}
	var ack struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err := decode(resp, err, &ack); err != nil {
		return connector.Order{}, err
	}
	if ack.OrderID == "" {
		return connector.Order{}, fmt.Errorf("bybit: order acknowledged without an id")
	}
	return connector.Order{
		ID:            ack.OrderID,
		ClientOrderID: ack.OrderLinkID,
		Symbol:        p.Symbol,
		Side:          p.Side,
		Type:          p.Type,
		Status:        "New",
		Amount:        p.Amount,
		Filled:        "0",
		Remaining:     p.Amount,
		Price:         p.Price,
	}, nil
}

func (c *Connector) CancelOrder(ctx context.Context, orderID, symbol string) error {
	native, err := c.native(symbol)
	if err != nil {
		return err
	}
	params := map[string]interface{}{"category": category, "symbol": native, "orderId": orderID}
	resp, err := c.client.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
	return decode(resp, err, nil)
}

func (c *Connector) fromOrder(o order, fallback string) connector.Order {
	ts, _ := strconv.ParseInt(o.CreatedTime, 10, 64)
	out := connector.Order{
		ID:            o.OrderID,
		ClientOrderID: o.OrderLinkID,
		Symbol:        c.symbols.Unified(o.Symbol, fallback),
		Side:          o.Side,
		Type:          o.OrderType,
		Status:        o.OrderStatus,
		Amount:        o.Qty,
		Filled:        o.CumExecQty,
		Remaining:     o.LeavesQty,
		Price:         o.Price,
		Cost:          o.CumExecValue,
		Timestamp:     ts,
	}
	// avgPrice is "0" or empty until something fills
	if o.AvgPrice != "" && o.AvgPrice != "0" {
		out.Average = o.AvgPrice
	}
	return out
}
