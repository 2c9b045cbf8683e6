package gwerror

import (
	"context"
	"errors"
	"net"
	"strings"

	"exgateway/internal/connector"
)

var classes = []struct {
	err  error
	kind Kind
}{
	{connector.ErrInsufficientFunds, KindInsufficientFunds},
	{connector.ErrOrderNotFound, KindOrderNotFound},
	{connector.ErrBadSymbol, KindSymbolNotSupported},
	{connector.ErrInvalidOrder, KindInvalidOrderParameters},
	{connector.ErrRateLimited, KindRateLimited},
	{connector.ErrAuthentication, KindExchangeUnavailable},
	{connector.ErrNetwork, KindExchangeUnavailable},
	{connector.ErrExchangeNotAvailable, KindExchangeUnavailable},
	{connector.ErrNotSupported, KindExchangeUnavailable},
}

// Translate classifies a connector failure. The original error stays
// reachable through Unwrap and its message is preserved.
func Translate(exchange, op string, err error) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		out := *existing
		if out.Exchange == "" {
			out.Exchange = exchange
		}
		if out.Op == "" {
			out.Op = op
		}
		return &out
	}

	return &Error{Kind: classify(exchange, err), Exchange: exchange, Op: op, Message: err.Error(), Err: err}
}

func classify(exchange string, err error) Kind {
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.kind
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindExchangeUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindExchangeUnavailable
	}

	return classifyMessage(exchange, err.Error())
}

// classifyMessage falls back to the exchange's wording when the adapter did
// not attach a class.
func classifyMessage(exchange, msg string) Kind {
	if rateLimit, ipBan := detectLimit(exchange, msg); rateLimit || ipBan {
		return KindRateLimited
	}
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "insufficient", "balance not enough", "not enough balance", "account has insufficient"):
		return KindInsufficientFunds
	case containsAny(lower, "order does not exist", "order not exist", "unknown order", "order not found", "order_not_exist"):
		return KindOrderNotFound
	case containsAny(lower, "invalid symbol", "symbol not support", "unsupported symbol", "symbol is invalid", "not_supported_symbol"):
		return KindSymbolNotSupported
	case containsAny(lower, "invalid quantity", "invalid price", "min notional", "filter failure", "too many decimal", "precision is over", "order quantity"):
		return KindInvalidOrderParameters
	case containsAny(lower, "service unavailable", "system busy", "maintenance", "connection refused", "timeout"):
		return KindExchangeUnavailable
	}
	return KindUnknown
}

// detectLimit recognises rate limit and IP ban wording, which differs per
// exchange. Ban wording is matched as whole phrases.
func detectLimit(exchange, msg string) (rateLimit bool, ipBan bool) {
	lowerMsg := strings.ToLower(msg)
	banned := containsAny(lowerMsg, "ip ban", "ip has been banned", "ip rate limit")
	switch strings.ToLower(exchange) {
	case "kucoin":
		rateLimit = containsAny(lowerMsg, "too many requests", "rate limit")
		ipBan = banned || strings.Contains(lowerMsg, "ip limit triggered")
	case "bybit":
		ipBan = banned
		rateLimit = !ipBan && containsAny(lowerMsg, "rate limit", "too many requests", "too many visits")
	default:
		rateLimit = containsAny(lowerMsg, "too many requests", "rate limit")
		ipBan = banned
	}
	return
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
