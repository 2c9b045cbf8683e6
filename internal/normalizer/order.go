package normalizer

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exgateway/internal/connector"
	"exgateway/internal/model"
)

// statusAliases maps native status vocabularies, compared case-insensitively
// with separators removed. "open", "closed" and unknown values are resolved
// from the fill quantities.
var statusAliases = map[string]model.OrderStatus{
	"new":                     model.StatusNew,
	"created":                 model.StatusNew,
	"untriggered":             model.StatusNew,
	"triggered":               model.StatusNew,
	"partiallyfilled":         model.StatusPartiallyFilled,
	"filled":                  model.StatusFilled,
	"canceled":                model.StatusCanceled,
	"cancelled":               model.StatusCanceled,
	"pendingcancel":           model.StatusCanceled,
	"expired":                 model.StatusCanceled,
	"expiredinmatch":          model.StatusCanceled,
	"partiallyfilledcanceled": model.StatusCanceled,
	"deactivated":             model.StatusCanceled,
	"rejected":                model.StatusRejected,
}

func statusKey(raw string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(raw)))
}

// ToOrderResponse converts an order. Remaining is derived as quantity minus
// filled when the exchange omits it; a reported remaining that does not tie
// out within tolerance is rejected unless the order was rejected.
func ToOrderResponse(exchange string, o connector.Order, tolerance decimal.Decimal, now time.Time) (model.OrderResponse, error) {
	if o.ID == "" {
		return model.OrderResponse{}, malformed("order id is missing")
	}
	qty, err := required("order amount", o.Amount)
	if err != nil {
		return model.OrderResponse{}, err
	}
	filledRaw, err := optional("order filled", o.Filled)
	if err != nil {
		return model.OrderResponse{}, err
	}
	filled := filledRaw.Decimal
	if filled.IsNegative() || qty.IsNegative() {
		return model.OrderResponse{}, malformed("negative quantities on order %s", o.ID)
	}

	status := resolveStatus(o.Status, qty, filled)

	remainingRaw, err := optional("order remaining", o.Remaining)
	if err != nil {
		return model.OrderResponse{}, err
	}
	remaining := qty.Sub(filled)
	if remainingRaw.Valid {
		remaining = remainingRaw.Decimal
	}
	if status != model.StatusRejected {
		drift := filled.Add(remaining).Sub(qty).Abs()
		if drift.GreaterThan(tolerance) {
			return model.OrderResponse{}, malformed("order %s: filled %s + remaining %s != quantity %s", o.ID, filled, remaining, qty)
		}
	}
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	side, ok := model.ParseSide(o.Side)
	if !ok {
		return model.OrderResponse{}, malformed("order %s side %q", o.ID, o.Side)
	}
	typ, ok := model.ParseOrderType(o.Type)
	if !ok {
		typ = model.OrderType(strings.ToUpper(o.Type))
	}

	price, err := optional("order price", o.Price)
	if err != nil {
		return model.OrderResponse{}, err
	}
	if price.Valid && price.Decimal.IsZero() && typ == model.OrderTypeMarket {
		price = decimal.NullDecimal{}
	}

	avg, err := averagePrice(o, filled)
	if err != nil {
		return model.OrderResponse{}, err
	}

	return model.OrderResponse{
		OrderID:           o.ID,
		ClientOrderID:     o.ClientOrderID,
		Exchange:          exchange,
		Symbol:            o.Symbol,
		Side:              side,
		Type:              typ,
		Quantity:          qty,
		FilledQuantity:    filled,
		RemainingQuantity: remaining,
		Price:             price,
		AveragePrice:      avg,
		Status:            status,
		CreatedAt:         timestamp(o.Timestamp, now),
	}, nil
}

// averagePrice is the reported average, or cost / filled. An average of zero
// with nothing filled is the exchange's placeholder for "no fills" and stays unset.
func averagePrice(o connector.Order, filled decimal.Decimal) (decimal.NullDecimal, error) {
	avg, err := optional("order average", o.Average)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if avg.Valid && (avg.Decimal.IsPositive() || filled.IsPositive()) {
		return avg, nil
	}
	if !filled.IsPositive() {
		return decimal.NullDecimal{}, nil
	}
	cost, err := optional("order cost", o.Cost)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if !cost.Valid || !cost.Decimal.IsPositive() {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(cost.Decimal.Div(filled)), nil
}

func resolveStatus(raw string, qty, filled decimal.Decimal) model.OrderStatus {
	key := statusKey(raw)
	if s, ok := statusAliases[key]; ok {
		return s
	}
	switch key {
	case "closed", "done":
		if filled.IsPositive() && filled.GreaterThanOrEqual(qty) {
			return model.StatusFilled
		}
		return model.StatusCanceled
	}
	// "open", "active" and anything unrecognised.
	switch {
	case !filled.IsPositive():
		return model.StatusNew
	case filled.LessThan(qty):
		return model.StatusPartiallyFilled
	default:
		return model.StatusFilled
	}
}
