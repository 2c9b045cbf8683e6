package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AssetBalance is the holding of one asset. Total always equals Free + Locked.
type AssetBalance struct {
	Free   decimal.Decimal
	Locked decimal.Decimal
	Total  decimal.Decimal
}

// Balance maps asset codes (BTC, USDT) to holdings.
type Balance map[string]AssetBalance

// Assets returns the asset codes in lexical order.
func (b Balance) Assets() []string {
	out := make([]string, 0, len(b))
	for asset := range b {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

// HealthState is the liveness verdict of one exchange probe.
type HealthState string

const (
	HealthConnected    HealthState = "connected"
	HealthDisconnected HealthState = "disconnected"
)

// HealthStatus is the result of probing one exchange.
type HealthStatus struct {
	Exchange       string
	Status         HealthState
	HasCredentials bool
	Detail         string
	TestedAt       time.Time
}
