package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is what a caller asks the gateway to submit.
type OrderRequest struct {
	Symbol    string
	Side      Side
	Type      OrderType
	Quantity  decimal.Decimal
	Price     decimal.NullDecimal
	StopPrice decimal.NullDecimal
}

// Validate checks the request shape without contacting any exchange.
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return errors.New("symbol is required")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("invalid side %q", r.Side)
	}
	switch r.Type {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit:
	default:
		return fmt.Errorf("invalid order type %q", r.Type)
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be greater than 0, got %s", r.Quantity)
	}
	if r.Type.NeedsPrice() {
		if !r.Price.Valid {
			return fmt.Errorf("price is required for %s orders", r.Type)
		}
		if !r.Price.Decimal.IsPositive() {
			return fmt.Errorf("price must be greater than 0, got %s", r.Price.Decimal)
		}
	}
	if r.Type.NeedsStopPrice() {
		if !r.StopPrice.Valid {
			return fmt.Errorf("stop price is required for %s orders", r.Type)
		}
		if !r.StopPrice.Decimal.IsPositive() {
			return fmt.Errorf("stop price must be greater than 0, got %s", r.StopPrice.Decimal)
		}
	}
	return nil
}

// OrderResponse is the unified view of an order held by an exchange.
// OrderID is the exchange-assigned identifier accepted by cancel and lookup;
// ClientOrderID is the identifier the gateway attached on submission.
type OrderResponse struct {
	OrderID           string
	ClientOrderID     string
	Exchange          string
	Symbol            string
	Side              Side
	Type              OrderType
	Quantity          decimal.Decimal
	FilledQuantity    decimal.Decimal
	RemainingQuantity decimal.Decimal
	Price             decimal.NullDecimal
	AveragePrice      decimal.NullDecimal
	Status            OrderStatus
	CreatedAt         time.Time
}

// CancelOutcome distinguishes a real cancellation from an order that was already gone.
type CancelOutcome string

const (
	CancelOutcomeCanceled    CancelOutcome = "canceled"
	CancelOutcomeAlreadyGone CancelOutcome = "already_gone"
)

// CancelResult is returned by a cancel request that did not fail.
type CancelResult struct {
	Exchange string
	OrderID  string
	Symbol   string
	Outcome  CancelOutcome
	Note     string
}

// Success is true for both outcomes: either way the order is no longer active.
func (r CancelResult) Success() bool {
	return r.Outcome == CancelOutcomeCanceled || r.Outcome == CancelOutcomeAlreadyGone
}
