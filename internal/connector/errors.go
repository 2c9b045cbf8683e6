package connector

import "errors"

// Adapters join the SDK error with one of these classes so the gateway can
// classify failures with errors.Is without knowing any exchange vocabulary.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrOrderNotFound        = errors.New("order not found")
	ErrBadSymbol            = errors.New("bad symbol")
	ErrRateLimited          = errors.New("rate limited")
	ErrAuthentication       = errors.New("authentication failed")
	ErrNetwork              = errors.New("network error")
	ErrExchangeNotAvailable = errors.New("exchange not available")
	ErrNotSupported         = errors.New("operation not supported")
)

// Classify attaches class to err. A nil class returns err unchanged.
func Classify(err, class error) error {
	if err == nil || class == nil || errors.Is(err, class) {
		return err
	}
	return errors.Join(class, err)
}
