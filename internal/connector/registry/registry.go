// Package registry builds exchange connectors from configuration.
package registry

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"exgateway/config"
	"exgateway/internal/connector"
	"exgateway/internal/connector/binance"
	"exgateway/internal/connector/bybit"
	"exgateway/internal/connector/kucoin"
	"exgateway/internal/connector/paper"
	"exgateway/logger"
)

// Build returns one connector per enabled exchange, ordered by name.
func Build(cfg *config.Config, log *logger.Log) ([]connector.Connector, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	entry := log.WithComponent("connector_registry")

	var out []connector.Connector
	for _, name := range cfg.EnabledExchanges() {
		ex := cfg.Exchanges[name]
		c, err := build(name, ex)
		if err != nil {
			return nil, err
		}
		entry.WithFields(logger.Fields{
			"exchange":    name,
			"kind":        ex.Kind,
			"testnet":     ex.Testnet,
			"credentials": c.HasCredentials(),
		}).Info("connector registered")
		out = append(out, c)
	}
	return out, nil
}

func build(name string, ex config.ExchangeConfig) (connector.Connector, error) {
	pool := poolSettings(ex)
	switch strings.ToLower(ex.Kind) {
	case config.KindBinance:
		return binance.New(binance.Config{
			Name:      name,
			APIKey:    ex.APIKey,
			APISecret: ex.APISecret,
			Testnet:   ex.Testnet,
			BaseURL:   ex.BaseURL,
			Pool:      pool,
		}), nil
	case config.KindBybit:
		return bybit.New(bybit.Config{
			Name:      name,
			APIKey:    ex.APIKey,
			APISecret: ex.APISecret,
			Testnet:   ex.Testnet,
			BaseURL:   ex.BaseURL,
			Pool:      pool,
		}), nil
	case config.KindKucoin:
		return kucoin.New(kucoin.Config{
			Name:       name,
			APIKey:     ex.APIKey,
			APISecret:  ex.APISecret,
			Passphrase: ex.Passphrase,
			Testnet:    ex.Testnet,
			BaseURL:    ex.BaseURL,
			Pool:       pool,
		}), nil
	case config.KindPaper:
		return paperExchange(name, ex.Paper), nil
	}
	return nil, fmt.Errorf("exchange %s: unsupported kind %q", name, ex.Kind)
}

func poolSettings(ex config.ExchangeConfig) connector.PoolSettings {
	return connector.PoolSettings{
		MaxIdleConns:    ex.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost: ex.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout: ex.ConnectionPool.IdleConnTimeout,
		Timeout:         ex.Timeout,
		LocalIP:         ex.ConnectionPool.LocalIP,
	}
}

func paperExchange(name string, pc config.PaperConfig) *paper.Exchange {
	balances := make(map[string]decimal.Decimal, len(pc.Balances))
	for asset, amount := range pc.Balances {
		balances[asset] = amount.Decimal
	}

	markets := make([]paper.Market, 0, len(pc.Markets))
	for _, m := range pc.Markets {
		markets = append(markets, paper.Market{
			Symbol:          m.Symbol,
			Price:           m.Price.Decimal,
			AmountPrecision: m.AmountPrecision,
			PricePrecision:  m.PricePrecision,
			MinAmount:       m.MinAmount.Decimal,
			Inactive:        m.Inactive,
		})
	}
	return paper.New(name, balances, markets)
}
