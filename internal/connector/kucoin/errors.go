package kucoin

import (
	"errors"
	"net"
	"regexp"
	"strings"

	"exgateway/internal/connector"
)

// The SDK folds the server code into its error text.
var serverCode = regexp.MustCompile(`\b([1-9]\d{5})\b`)

var codeKinds = map[string]error{
	"400001": connector.ErrAuthentication,
	"400002": connector.ErrAuthentication,
	"400003": connector.ErrAuthentication,
	"400004": connector.ErrAuthentication,
	"400005": connector.ErrAuthentication,
	"400006": connector.ErrAuthentication,
	"400007": connector.ErrAuthentication,
	"411100": connector.ErrAuthentication,
	"429000": connector.ErrRateLimited,
	"200004": connector.ErrInsufficientFunds,
	"900001": connector.ErrBadSymbol,
	"500000": connector.ErrExchangeNotAvailable,
	"400100": connector.ErrInvalidOrder,
	"400200": connector.ErrInvalidOrder,
	"400760": connector.ErrInvalidOrder,
}

func errorKind(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "not exist") && strings.Contains(lower, "order"):
		return connector.ErrOrderNotFound
	case strings.Contains(lower, "balance insufficient"), strings.Contains(lower, "insufficient balance"):
		return connector.ErrInsufficientFunds
	}
	if m := serverCode.FindStringSubmatch(msg); m != nil {
		if kind, ok := codeKinds[m[1]]; ok {
			return kind
		}
	}
	return nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return connector.Classify(err, connector.ErrNetwork)
	}
	return connector.Classify(err, errorKind(err.Error()))
}
