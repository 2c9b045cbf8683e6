// Package gwerror is the closed error taxonomy returned by the gateway.
package gwerror

import (
	"errors"
	"fmt"
)

// Kind is one class of gateway failure.
type Kind string

const (
	KindInsufficientFunds      Kind = "insufficient_funds"
	KindInvalidOrderParameters Kind = "invalid_order_parameters"
	KindOrderNotFound          Kind = "order_not_found"
	KindSymbolNotSupported     Kind = "symbol_not_supported"
	KindExchangeUnavailable    Kind = "exchange_unavailable"
	KindRateLimited            Kind = "rate_limited"
	KindUnknown                Kind = "unknown"
)

// Sentinels for errors.Is. They compare by Kind only.
var (
	ErrInsufficientFunds      = &Error{Kind: KindInsufficientFunds}
	ErrInvalidOrderParameters = &Error{Kind: KindInvalidOrderParameters}
	ErrOrderNotFound          = &Error{Kind: KindOrderNotFound}
	ErrSymbolNotSupported     = &Error{Kind: KindSymbolNotSupported}
	ErrExchangeUnavailable    = &Error{Kind: KindExchangeUnavailable}
	ErrRateLimited            = &Error{Kind: KindRateLimited}
	ErrUnknown                = &Error{Kind: KindUnknown}
)

// Error is a classified failure from one exchange operation.
type Error struct {
	Kind     Kind
	Exchange string
	Op       string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	switch {
	case e.Exchange != "" && e.Op != "":
		return fmt.Sprintf("%s %s: %s: %s", e.Exchange, e.Op, e.Kind, msg)
	case e.Exchange != "":
		return fmt.Sprintf("%s: %s: %s", e.Exchange, e.Kind, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, exchange, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Exchange: exchange, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsOrderNotFound reports whether err means the order no longer exists.
func IsOrderNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}
