// internal/model/common.go
// @tag models, data_structure, core
package model

import "strings"

// ───────────────────────────────────────────────────────────────
// 🚀 Core Enumerations
// ───────────────────────────────────────────────────────────────

// Side is the direction of an order or trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts the upper or lower case spelling used by exchanges.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	}
	return "", false
}

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// ParseOrderType maps exchange spellings (stop_loss, stop-limit, ...) onto OrderType.
func ParseOrderType(s string) (OrderType, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch norm {
	case "MARKET":
		return OrderTypeMarket, true
	case "LIMIT", "LIMIT_MAKER":
		return OrderTypeLimit, true
	case "STOP", "STOP_LOSS", "STOP_MARKET":
		return OrderTypeStop, true
	case "STOP_LIMIT", "STOP_LOSS_LIMIT":
		return OrderTypeStopLimit, true
	}
	return "", false
}

// NeedsPrice reports whether a limit price is mandatory for the type.
func (t OrderType) NeedsPrice() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLimit
}

// NeedsStopPrice reports whether a trigger price is mandatory for the type.
func (t OrderType) NeedsStopPrice() bool {
	return t == OrderTypeStop || t == OrderTypeStopLimit
}

// OrderStatus is the unified lifecycle state of an order.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
)

// Open reports whether the order can still trade.
func (s OrderStatus) Open() bool {
	return s == StatusNew || s == StatusPartiallyFilled
}
