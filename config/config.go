package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no -config flag is given.
const DefaultConfigPath = "config/config.yml"

var envConfigPaths = map[string]string{
	environmentProduction: "config/config.production.yml",
	environmentStaging:    "config/config.staging.yml",
}

// Exchange kinds understood by the connector registry.
const (
	KindBinance = "binance"
	KindBybit   = "bybit"
	KindKucoin  = "kucoin"
	KindPaper   = "paper"
)

var knownKinds = map[string]bool{
	KindBinance: true,
	KindBybit:   true,
	KindKucoin:  true,
	KindPaper:   true,
}

type Config struct {
	Gateway   GatewayConfig             `yaml:"gateway"`
	Exchanges map[string]ExchangeConfig `yaml:"exchanges"`
	Logging   LoggingConfig             `yaml:"logging"`
	Metrics   MetricsConfig             `yaml:"metrics"`
	Health    HealthConfig              `yaml:"health"`
}

type GatewayConfig struct {
	Name               string        `yaml:"name"`
	Version            string        `yaml:"version"`
	DefaultExchange    string        `yaml:"default_exchange"`
	MinRequestInterval time.Duration `yaml:"min_request_interval"`
	FillTolerance      Decimal       `yaml:"fill_tolerance"`
	MaxActiveSymbols   int           `yaml:"max_active_symbols"`
	SupportedSymbols   []string      `yaml:"supported_symbols"`
	FallbackSymbols    []string      `yaml:"fallback_symbols"`
}

type ExchangeConfig struct {
	Kind               string               `yaml:"kind"`
	Enabled            bool                 `yaml:"enabled"`
	Testnet            bool                 `yaml:"testnet"`
	APIKey             string               `yaml:"api_key"`
	APISecret          string               `yaml:"api_secret"`
	Passphrase         string               `yaml:"passphrase"`
	BaseURL            string               `yaml:"base_url"`
	Timeout            time.Duration        `yaml:"timeout"`
	MinRequestInterval time.Duration        `yaml:"min_request_interval"`
	ConnectionPool     ConnectionPoolConfig `yaml:"connection_pool"`
	Paper              PaperConfig          `yaml:"paper"`
}

// HasCredentials reports whether both key and secret are set.
func (e ExchangeConfig) HasCredentials() bool {
	return e.APIKey != "" && e.APISecret != ""
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
	LocalIP         string        `yaml:"local_ip"`
}

// PaperConfig seeds the simulated exchange.
type PaperConfig struct {
	Balances map[string]Decimal  `yaml:"balances"`
	Markets  []PaperMarketConfig `yaml:"markets"`
}

type PaperMarketConfig struct {
	Symbol          string  `yaml:"symbol"`
	Price           Decimal `yaml:"price"`
	AmountPrecision string  `yaml:"amount_precision"`
	PricePrecision  string  `yaml:"price_precision"`
	MinAmount       Decimal `yaml:"min_amount"`
	Inactive        bool    `yaml:"inactive"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

type CloudWatchConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Region          string        `yaml:"region"`
	Namespace       string        `yaml:"namespace"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	Buffer          int           `yaml:"buffer"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
}

type HealthConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func defaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			MinRequestInterval: 100 * time.Millisecond,
			FillTolerance:      Decimal{decimal.New(1, -8)},
			MaxActiveSymbols:   20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			CloudWatch: CloudWatchConfig{
				Namespace:     "ExchangeGateway",
				FlushInterval: time.Minute,
				Buffer:        1024,
			},
			Prometheus: PrometheusConfig{
				Addr: "0.0.0.0:2112",
				Path: "/metrics",
			},
		},
		Health: HealthConfig{Interval: time.Minute},
	}
}

// LoadConfig reads the YAML file at path (or the environment specific file
// selected through APP_ENV), applies environment overrides and validates it.
func LoadConfig(path string) (*Config, error) {
	resolved := resolveEnvSpecificPath(path, DefaultConfigPath, envConfigPaths)
	if resolved != path && path != "" {
		if _, err := os.Stat(resolved); err != nil {
			resolved = path
		}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config, getAppEnvironment()); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides reads <NAME>_API_KEY, <NAME>_API_SECRET and
// <NAME>_API_PASSPHRASE for every configured exchange, plus the AWS settings
// used by CloudWatch. There are no built-in credential defaults.
func applyEnvOverrides(cfg *Config) {
	for name, ex := range cfg.Exchanges {
		prefix := envPrefix(name)
		if v := strings.TrimSpace(os.Getenv(prefix + "_API_KEY")); v != "" {
			ex.APIKey = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_API_SECRET")); v != "" {
			ex.APISecret = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_API_PASSPHRASE")); v != "" {
			ex.Passphrase = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_TESTNET")); v != "" {
			ex.Testnet = v == "1" || strings.EqualFold(v, "true")
		}
		ex.Kind = strings.ToLower(strings.TrimSpace(ex.Kind))
		if ex.Kind == "" {
			ex.Kind = strings.ToLower(name)
		}
		cfg.Exchanges[name] = ex
	}

	if v := strings.TrimSpace(os.Getenv("DEFAULT_EXCHANGE")); v != "" {
		cfg.Gateway.DefaultExchange = v
	}

	cw := &cfg.Metrics.CloudWatch
	if v := strings.TrimSpace(os.Getenv("AWS_REGION")); v != "" && cw.Region == "" {
		cw.Region = v
	}
	if v := strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID")); v != "" {
		cw.AccessKeyID = v
	}
	if v := strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY")); v != "" {
		cw.SecretAccessKey = v
	}
}

func envPrefix(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name))
}

func validateConfig(cfg *Config, env string) error {
	if cfg.Gateway.Name == "" {
		return fmt.Errorf("gateway.name is required")
	}
	if cfg.Gateway.Version == "" {
		return fmt.Errorf("gateway.version is required")
	}
	if cfg.Gateway.MinRequestInterval < 0 {
		return fmt.Errorf("gateway.min_request_interval must not be negative")
	}
	if cfg.Gateway.FillTolerance.IsNegative() {
		return fmt.Errorf("gateway.fill_tolerance must not be negative")
	}
	if cfg.Gateway.MaxActiveSymbols <= 0 {
		return fmt.Errorf("gateway.max_active_symbols must be greater than 0")
	}

	enabled := cfg.EnabledExchanges()
	if len(enabled) == 0 {
		return fmt.Errorf("at least one exchange must be enabled")
	}

	var errs []error
	for _, name := range enabled {
		ex := cfg.Exchanges[name]
		if !knownKinds[ex.Kind] {
			errs = append(errs, fmt.Errorf("exchanges.%s.kind %q is not supported", name, ex.Kind))
			continue
		}
		if ex.MinRequestInterval < 0 {
			errs = append(errs, fmt.Errorf("exchanges.%s.min_request_interval must not be negative", name))
		}
		if ex.Timeout < 0 {
			errs = append(errs, fmt.Errorf("exchanges.%s.timeout must not be negative", name))
		}
		if ex.Kind == KindKucoin && ex.HasCredentials() && ex.Passphrase == "" {
			errs = append(errs, fmt.Errorf("exchanges.%s.passphrase is required with kucoin credentials", name))
		}
		if ex.Kind == KindPaper {
			for asset, amt := range ex.Paper.Balances {
				if amt.IsNegative() {
					errs = append(errs, fmt.Errorf("exchanges.%s.paper.balances.%s must not be negative", name, asset))
				}
			}
			for i, m := range ex.Paper.Markets {
				if m.Symbol == "" || !m.Price.IsPositive() {
					errs = append(errs, fmt.Errorf("exchanges.%s.paper.markets[%d] needs a symbol and a positive price", name, i))
				}
			}
			continue
		}
		if IsProductionLike(env) {
			if !ex.HasCredentials() {
				errs = append(errs, fmt.Errorf("exchanges.%s: api_key and api_secret are required in %s", name, env))
			}
			if ex.Testnet {
				errs = append(errs, fmt.Errorf("exchanges.%s: testnet must be disabled in %s", name, env))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if cfg.Gateway.DefaultExchange == "" {
		cfg.Gateway.DefaultExchange = enabled[0]
	}
	if ex, ok := cfg.Exchanges[cfg.Gateway.DefaultExchange]; !ok || !ex.Enabled {
		return fmt.Errorf("gateway.default_exchange %q is not an enabled exchange", cfg.Gateway.DefaultExchange)
	}

	if cw := cfg.Metrics.CloudWatch; cw.Enabled {
		if cw.Namespace == "" {
			return fmt.Errorf("metrics.cloudwatch.namespace is required when CloudWatch is enabled")
		}
		if cw.FlushInterval <= 0 {
			return fmt.Errorf("metrics.cloudwatch.flush_interval must be greater than 0")
		}
	}
	if p := cfg.Metrics.Prometheus; p.Enabled && (p.Addr == "" || !strings.HasPrefix(p.Path, "/")) {
		return fmt.Errorf("metrics.prometheus needs an addr and a path starting with /")
	}
	if cfg.Health.Interval < 0 {
		return fmt.Errorf("health.interval must not be negative")
	}

	return nil
}

// EnabledExchanges returns the names of enabled exchanges in lexical order.
func (c *Config) EnabledExchanges() []string {
	names := make([]string, 0, len(c.Exchanges))
	for name, ex := range c.Exchanges {
		if ex.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
