package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const baseConfig = `gateway:
  name: "TestGateway"
  version: "1.0"
  default_exchange: binance
  supported_symbols: ["BTC/USDT", "ETH/USDT"]
exchanges:
  binance:
    enabled: true
    testnet: true
    timeout: 5s
  sim:
    kind: paper
    enabled: true
    paper:
      balances:
        USDT: "1000.50"
      markets:
        - symbol: BTC/USDT
          price: "30000"
          amount_precision: "3"
`

// writeTempConfig writes content to a temporary file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("APP_ENV", "")
	path := writeTempConfig(t, baseConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Gateway.Name != "TestGateway" {
		t.Errorf("unexpected name: %s", cfg.Gateway.Name)
	}
	if cfg.Gateway.MinRequestInterval != 100*time.Millisecond {
		t.Errorf("default interval not applied: %s", cfg.Gateway.MinRequestInterval)
	}
	if cfg.Gateway.MaxActiveSymbols != 20 {
		t.Errorf("default max active symbols not applied: %d", cfg.Gateway.MaxActiveSymbols)
	}
	if cfg.Gateway.FillTolerance.String() != "0.00000001" {
		t.Errorf("default tolerance = %s", cfg.Gateway.FillTolerance)
	}
	if cfg.Exchanges["binance"].Kind != KindBinance {
		t.Errorf("kind should default to the exchange name: %q", cfg.Exchanges["binance"].Kind)
	}
	sim := cfg.Exchanges["sim"]
	if got := sim.Paper.Balances["USDT"].String(); got != "1000.5" {
		t.Errorf("paper balance = %s", got)
	}
	if got := sim.Paper.Markets[0].Price.String(); got != "30000" {
		t.Errorf("paper price = %s", got)
	}
	if names := cfg.EnabledExchanges(); len(names) != 2 || names[0] != "binance" {
		t.Errorf("enabled exchanges = %v", names)
	}
}

func TestLoadConfigCredentialsFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("BINANCE_API_KEY", " key ")
	t.Setenv("BINANCE_API_SECRET", "secret")
	path := writeTempConfig(t, baseConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	ex := cfg.Exchanges["binance"]
	if ex.APIKey != "key" || ex.APISecret != "secret" || !ex.HasCredentials() {
		t.Fatalf("credentials not applied: %+v", ex)
	}
}

func TestLoadConfigNoDefaultCredentials(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_API_SECRET", "")
	path := writeTempConfig(t, baseConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Exchanges["binance"].HasCredentials() {
		t.Fatalf("credentials must not be invented")
	}
}

func TestLoadConfigProductionRequiresCredentials(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_API_SECRET", "")
	path := writeTempConfig(t, baseConfig)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "api_key and api_secret are required") || !strings.Contains(err.Error(), "testnet must be disabled") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing name", func(c *Config) { c.Gateway.Name = "" }, "gateway.name"},
		{"unknown kind", func(c *Config) { c.Exchanges["x"] = ExchangeConfig{Kind: "ftx", Enabled: true} }, "not supported"},
		{"disabled default", func(c *Config) { c.Gateway.DefaultExchange = "off" }, "default_exchange"},
		{"negative interval", func(c *Config) { c.Gateway.MinRequestInterval = -time.Second }, "min_request_interval"},
		{"kucoin passphrase", func(c *Config) {
			c.Exchanges["kucoin"] = ExchangeConfig{Kind: KindKucoin, Enabled: true, APIKey: "k", APISecret: "s"}
		}, "passphrase"},
		{"nothing enabled", func(c *Config) { c.Exchanges = map[string]ExchangeConfig{} }, "at least one"},
	}
	for _, c := range cases {
		cfg := defaultConfig()
		cfg.Gateway.Name = "gw"
		cfg.Gateway.Version = "1"
		cfg.Exchanges = map[string]ExchangeConfig{
			"binance": {Kind: KindBinance, Enabled: true},
			"off":     {Kind: KindBybit},
		}
		c.mutate(&cfg)
		err := validateConfig(&cfg, environmentDevelopment)
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: err = %v, want substring %q", c.name, err, c.want)
		}
	}
}

func TestValidateConfigDefaultsExchange(t *testing.T) {
	cfg := defaultConfig()
	cfg.Gateway.Name = "gw"
	cfg.Gateway.Version = "1"
	cfg.Exchanges = map[string]ExchangeConfig{"bybit": {Kind: KindBybit, Enabled: true}}
	if err := validateConfig(&cfg, environmentDevelopment); err != nil {
		t.Fatalf("validateConfig failed: %v", err)
	}
	if cfg.Gateway.DefaultExchange != "bybit" {
		t.Fatalf("default exchange = %q", cfg.Gateway.DefaultExchange)
	}
}

func TestResolveEnvSpecificPath(t *testing.T) {
	t.Setenv("APP_ENV", "stg")
	got := resolveEnvSpecificPath("", DefaultConfigPath, envConfigPaths)
	if got != "config/config.staging.yml" {
		t.Fatalf("resolveEnvSpecificPath = %s", got)
	}
	custom := filepath.Join("x", "custom.yml")
	if got := resolveEnvSpecificPath(custom, DefaultConfigPath, envConfigPaths); got != custom {
		t.Fatalf("explicit path overridden: %s", got)
	}
	if !IsProductionLike(AppEnvironment()) {
		t.Fatalf("staging should be production-like")
	}
}

func TestAppEnvironmentAliases(t *testing.T) {
	cases := map[string]string{
		"":           "development",
		"dev":        "development",
		" PROD ":     "production",
		"live":       "production",
		"stage":      "staging",
		"qa":         "qa",
		"production": "production",
	}
	for in, want := range cases {
		t.Setenv("APP_ENV", in)
		if got := AppEnvironment(); got != want {
			t.Errorf("APP_ENV=%q: AppEnvironment() = %q, want %q", in, got, want)
		}
	}
	if IsProductionLike("qa") || IsProductionLike("development") {
		t.Errorf("only staging and production are production-like")
	}
}
