package binance

import (
	"errors"
	"net"
	"strings"

	"github.com/adshao/go-binance/v2/common"

	"exgateway/internal/connector"
)

const (
	apiCodeUnknown          = -1000
	apiCodeDisconnected     = -1001
	apiCodeUnauthorized     = -1002
	apiCodeTooManyRequests  = -1003
	apiCodeTimeout          = -1007
	apiCodeTooManyOrders    = -1015
	apiCodeInvalidTimestamp = -1021
	apiCodeInvalidSignature = -1022
	apiCodeBadSymbol        = -1121
	apiCodeNewOrderRejected = -2010
	apiCodeCancelRejected   = -2011
	apiCodeOrderNotFound    = -2013
	apiCodeBadAPIKeyFormat  = -2014
	apiCodeRejectedAPIKey   = -2015
)

var apiErrorCodeKinds = map[int64]error{
	apiCodeUnknown:          connector.ErrExchangeNotAvailable,
	apiCodeDisconnected:     connector.ErrExchangeNotAvailable,
	apiCodeUnauthorized:     connector.ErrAuthentication,
	apiCodeTooManyRequests:  connector.ErrRateLimited,
	apiCodeTimeout:          connector.ErrExchangeNotAvailable,
	apiCodeTooManyOrders:    connector.ErrRateLimited,
	apiCodeInvalidTimestamp: connector.ErrAuthentication,
	apiCodeInvalidSignature: connector.ErrAuthentication,
	apiCodeBadSymbol:        connector.ErrBadSymbol,
	apiCodeOrderNotFound:    connector.ErrOrderNotFound,
	apiCodeCancelRejected:   connector.ErrInvalidOrder,
	apiCodeBadAPIKeyFormat:  connector.ErrAuthentication,
	apiCodeRejectedAPIKey:   connector.ErrAuthentication,
}

var apiErrorMessageKinds = map[string]error{
	"account has insufficient balance for requested action.": connector.ErrInsufficientFunds,
	"balance is insufficient.":                               connector.ErrInsufficientFunds,
	"unknown order sent.":                                    connector.ErrOrderNotFound,
	"order does not exist.":                                  connector.ErrOrderNotFound,
	"invalid symbol.":                                        connector.ErrBadSymbol,
}

// classify joins an SDK error with the connector class it belongs to.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return connector.Classify(err, apiErrorKind(apiErr))
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return connector.Classify(err, connector.ErrNetwork)
	}
	return err
}

func apiErrorKind(apiErr *common.APIError) error {
	msg := strings.ToLower(strings.TrimSpace(apiErr.Message))
	if kind, ok := apiErrorMessageKinds[msg]; ok {
		return kind
	}
	if kind, ok := apiErrorCodeKinds[apiErr.Code]; ok {
		return kind
	}
	switch {
	case apiErr.Code == apiCodeNewOrderRejected:
		return connector.ErrInvalidOrder
	case apiErr.Code <= -1100 && apiErr.Code > -1200:
		// -11xx are request parameter errors
		return connector.ErrInvalidOrder
	}
	return nil
}
