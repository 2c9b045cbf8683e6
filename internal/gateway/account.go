package gateway

import (
	"context"
	"fmt"
	"sync"

	"exgateway/internal/connector"
	"exgateway/internal/model"
	"exgateway/internal/normalizer"
	"exgateway/internal/symbols"
	"exgateway/logger"
)

// GetBalance returns the account balance, keeping only assets with a
// strictly positive free amount.
func (g *Gateway) GetBalance(ctx context.Context, exchange string) (model.Balance, error) {
	full, err := g.fetchBalance(ctx, exchange)
	if err != nil {
		return nil, err
	}
	out := make(model.Balance, len(full))
	for asset, b := range full {
		if b.Free.IsPositive() {
			out[asset] = b
		}
	}
	return out, nil
}

// GetAssetBalance returns the holding of one asset; assets the account does
// not hold come back as zero.
func (g *Gateway) GetAssetBalance(ctx context.Context, asset, exchange string) (model.AssetBalance, error) {
	full, err := g.fetchBalance(ctx, exchange)
	if err != nil {
		return model.AssetBalance{}, err
	}
	return full[symbols.NormalizeAsset(asset)], nil
}

func (g *Gateway) fetchBalance(ctx context.Context, exchange string) (model.Balance, error) {
	c, err := g.resolve(exchange)
	if err != nil {
		return nil, err
	}

	var raw []connector.BalanceEntry
	err = g.call(ctx, c, opFetchBalance, "", func(ctx context.Context) error {
		var err error
		raw, err = c.conn.FetchBalance(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	bal, err := normalizer.ToBalance(raw)
	if err != nil {
		return nil, malformed(c.name, opFetchBalance, err)
	}
	return bal, nil
}

// HealthCheck probes every exchange concurrently with a balance fetch. It
// never fails: a probe error, missing credentials or a panicking connector
// all produce a disconnected status for that exchange only.
func (g *Gateway) HealthCheck(ctx context.Context) map[string]model.HealthStatus {
	names := g.Exchanges()
	results := make(map[string]model.HealthStatus, len(names))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			status := g.probe(ctx, name)
			g.recorder.RecordHealth(name, status.Status == model.HealthConnected)
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	g.log.WithComponent("gateway").WithFields(logger.Fields{
		"exchanges": len(results),
		"healthy":   countConnected(results),
	}).Debug("health check completed")
	return results
}

func (g *Gateway) probe(ctx context.Context, name string) (status model.HealthStatus) {
	status = model.HealthStatus{Exchange: name, Status: model.HealthDisconnected}
	defer func() {
		if r := recover(); r != nil {
			status.Status = model.HealthDisconnected
			status.Detail = fmt.Sprintf("probe panicked: %v", r)
			g.log.WithComponent("gateway").WithFields(logger.Fields{"exchange": name}).Error("health probe panicked")
		}
		status.TestedAt = g.now().UTC()
	}()

	c, err := g.resolve(name)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.HasCredentials = c.conn.HasCredentials()
	if !status.HasCredentials {
		status.Detail = "api credentials are not configured"
		return status
	}

	err = g.call(ctx, c, opFetchBalance, "", func(ctx context.Context) error {
		_, err := c.conn.FetchBalance(ctx)
		return err
	})
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Status = model.HealthConnected
	status.Detail = "ok"
	return status
}

func countConnected(results map[string]model.HealthStatus) int {
	n := 0
	for _, s := range results {
		if s.Status == model.HealthConnected {
			n++
		}
	}
	return n
}
