package gateway

import (
	"time"

	"github.com/shopspring/decimal"

	"exgateway/config"
	"exgateway/internal/normalizer"
	"exgateway/internal/ratelimit"
)

// MaxActiveSymbols caps GetActiveSymbols unless configured otherwise.
const MaxActiveSymbols = 20

const maxFallbackSymbols = 10

var defaultFallbackSymbols = []string{"BTC/USDT", "ETH/USDT", "BNB/USDT", "SOL/USDT", "XRP/USDT"}

// Settings tunes gateway behaviour.
type Settings struct {
	DefaultExchange    string
	MinRequestInterval time.Duration
	// Intervals overrides MinRequestInterval per exchange.
	Intervals        map[string]time.Duration
	FillTolerance    decimal.Decimal
	MaxActiveSymbols int
	// SupportedSymbols orders and filters GetActiveSymbols.
	SupportedSymbols []string
	// FallbackSymbols is returned when market metadata is unavailable.
	FallbackSymbols []string
}

func (s Settings) withDefaults() Settings {
	if s.MinRequestInterval <= 0 {
		s.MinRequestInterval = ratelimit.DefaultInterval
	}
	if s.FillTolerance.IsZero() || s.FillTolerance.IsNegative() {
		s.FillTolerance = normalizer.DefaultTolerance
	}
	if s.MaxActiveSymbols <= 0 {
		s.MaxActiveSymbols = MaxActiveSymbols
	}
	return s
}

// SettingsFromConfig maps the loaded configuration onto gateway settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := Settings{
		DefaultExchange:    cfg.Gateway.DefaultExchange,
		MinRequestInterval: cfg.Gateway.MinRequestInterval,
		Intervals:          make(map[string]time.Duration),
		FillTolerance:      cfg.Gateway.FillTolerance.Decimal,
		MaxActiveSymbols:   cfg.Gateway.MaxActiveSymbols,
		SupportedSymbols:   cfg.Gateway.SupportedSymbols,
		FallbackSymbols:    cfg.Gateway.FallbackSymbols,
	}
	for _, name := range cfg.EnabledExchanges() {
		if iv := cfg.Exchanges[name].MinRequestInterval; iv > 0 {
			s.Intervals[name] = iv
		}
	}
	return s
}

// Recorder receives per-call measurements. errorKind is empty on success.
type Recorder interface {
	RecordCall(exchange, operation string, latency time.Duration, errorKind string)
	RecordRateLimitWait(exchange, operation string, wait time.Duration)
	RecordHealth(exchange string, connected bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordCall(string, string, time.Duration, string)  {}
func (nopRecorder) RecordRateLimitWait(string, string, time.Duration) {}
func (nopRecorder) RecordHealth(string, bool)                         {}
