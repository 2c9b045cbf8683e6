package symbols

import (
	"fmt"
	"strings"
	"sync"
)

// assetAliases maps exchange-specific asset codes to the common code.
var assetAliases = map[string]string{
	"XBT": "BTC",
}

// NormalizeAsset upper-cases an asset code and resolves aliases (XBT -> BTC).
func NormalizeAsset(asset string) string {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if alias, ok := assetAliases[asset]; ok {
		return alias
	}
	return asset
}

// Unified builds the exchange-neutral BASE/QUOTE form.
func Unified(base, quote string) string {
	return NormalizeAsset(base) + "/" + NormalizeAsset(quote)
}

// Split breaks a unified symbol into base and quote.
func Split(unified string) (base, quote string, err error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(unified)), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("symbol %q is not in BASE/QUOTE form", unified)
	}
	return parts[0], parts[1], nil
}

// ToNative converts a unified symbol to the exchange's REST form:
//
//	binance, bybit: BTC/USDT -> BTCUSDT
//	kucoin:         BTC/USDT -> BTC-USDT
//
// Other exchanges use the unified form unchanged.
func ToNative(exchange, unified string) (string, error) {
	base, quote, err := Split(unified)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(exchange) {
	case "binance", "bybit":
		return base + quote, nil
	case "kucoin":
		return base + "-" + quote, nil
	default:
		return base + "/" + quote, nil
	}
}

// Registry remembers native <-> unified pairs learned from market listings,
// since concatenated forms like BTCUSDT cannot be split reliably.
type Registry struct {
	mu       sync.RWMutex
	exchange string
	native   map[string]string
	unified  map[string]string
	aliased  map[string]bool
}

func NewRegistry(exchange string) *Registry {
	return &Registry{
		exchange: exchange,
		native:   make(map[string]string),
		unified:  make(map[string]string),
		aliased:  make(map[string]bool),
	}
}

// Add records one market. When a listing under an alias code (XBT-USDT) and
// a plain one (BTC-USDT) unify to the same symbol, the plain one keeps the
// route whatever the listing order.
func (r *Registry) Add(native, base, quote string) string {
	u := Unified(base, quote)
	alias := !plainAsset(base) || !plainAsset(quote)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unified[native] = u
	if _, taken := r.native[u]; taken && alias && !r.aliased[u] {
		return u
	}
	r.native[u] = native
	r.aliased[u] = alias
	return u
}

func plainAsset(asset string) bool {
	a := strings.ToUpper(strings.TrimSpace(asset))
	return NormalizeAsset(a) == a
}

// Routes reports whether native is the listing its unified symbol resolves to.
func (r *Registry) Routes(native string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.unified[native]
	return ok && r.native[u] == native
}

// Native returns the exchange symbol for a unified one.
func (r *Registry) Native(unified string) (string, error) {
	r.mu.RLock()
	n, ok := r.native[strings.ToUpper(unified)]
	r.mu.RUnlock()
	if ok {
		return n, nil
	}
	return ToNative(r.exchange, unified)
}

// Unified returns the unified symbol for an exchange one, falling back to
// fallback when the market is unknown.
func (r *Registry) Unified(native, fallback string) string {
	r.mu.RLock()
	u, ok := r.unified[native]
	r.mu.RUnlock()
	if ok {
		return u
	}
	if fallback != "" {
		return fallback
	}
	if strings.Contains(native, "-") {
		parts := strings.SplitN(native, "-", 2)
		return Unified(parts[0], parts[1])
	}
	return native
}
