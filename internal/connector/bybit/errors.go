package bybit

import (
	"errors"
	"fmt"
	"net"

	"exgateway/internal/connector"
)

// APIError is a non-zero retCode answer from the v5 API.
type APIError struct {
	Code int
	Msg  string
}

func (e APIError) Error() string {
	return fmt.Sprintf("bybit: retCode=%d, retMsg=%s", e.Code, e.Msg)
}

var retCodeKinds = map[int]error{
	10002:  connector.ErrAuthentication, // request outside recv window
	10003:  connector.ErrAuthentication,
	10004:  connector.ErrAuthentication,
	10005:  connector.ErrAuthentication,
	10006:  connector.ErrRateLimited,
	10007:  connector.ErrAuthentication,
	10010:  connector.ErrAuthentication,
	10016:  connector.ErrExchangeNotAvailable,
	10018:  connector.ErrRateLimited,
	33004:  connector.ErrAuthentication,
	110001: connector.ErrOrderNotFound,
	110004: connector.ErrInsufficientFunds,
	110007: connector.ErrInsufficientFunds,
	110012: connector.ErrInsufficientFunds,
	170121: connector.ErrBadSymbol,
	170131: connector.ErrInsufficientFunds,
	170213: connector.ErrOrderNotFound,
}

func apiErrorKind(code int) error {
	if kind, ok := retCodeKinds[code]; ok {
		return kind
	}
	switch {
	case code == 10001:
		return connector.ErrInvalidOrder
	case code >= 110000 && code < 180000:
		// 110xxx and 170xxx are order rejections
		return connector.ErrInvalidOrder
	}
	return nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return connector.Classify(err, apiErrorKind(apiErr.Code))
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return connector.Classify(err, connector.ErrNetwork)
	}
	return err
}
