package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"exgateway/config"
)

type capture struct {
	mu         sync.Mutex
	namespaces []string
	batches    [][]cwtypes.MetricDatum
	err        error
}

func (c *capture) publish(_ context.Context, namespace string, data []cwtypes.MetricDatum) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespaces = append(c.namespaces, namespace)
	c.batches = append(c.batches, append([]cwtypes.MetricDatum(nil), data...))
	return c.err
}

func (c *capture) datums() []cwtypes.MetricDatum {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []cwtypes.MetricDatum
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func dimension(d cwtypes.MetricDatum, name string) string {
	for _, dim := range d.Dimensions {
		if aws.ToString(dim.Name) == name {
			return aws.ToString(dim.Value)
		}
	}
	return ""
}

func TestCloudWatchFlushesOnStop(t *testing.T) {
	c := &capture{}
	p := newCloudWatch(config.CloudWatchConfig{Namespace: "GatewayTest", FlushInterval: time.Hour, Buffer: 16}, c.publish)
	p.Start(context.Background())

	p.RecordCall("binance", "fetch_ticker", 25*time.Millisecond, "")
	p.RecordCall("bybit", "create_order", 5*time.Millisecond, "insufficient_funds")
	p.RecordRateLimitWait("binance", "fetch_ticker", 40*time.Millisecond)
	p.RecordHealth("kucoin", false)
	p.Stop()

	data := c.datums()
	if len(data) != 5 {
		t.Fatalf("expected 5 datums, got %d", len(data))
	}
	if c.namespaces[0] != "GatewayTest" {
		t.Fatalf("namespace = %q", c.namespaces[0])
	}

	byName := map[string][]cwtypes.MetricDatum{}
	for _, d := range data {
		byName[aws.ToString(d.MetricName)] = append(byName[aws.ToString(d.MetricName)], d)
	}
	if got := byName[MetricCallLatency]; len(got) != 2 || aws.ToFloat64(got[0].Value) != 25 || got[0].Unit != cwtypes.StandardUnitMilliseconds {
		t.Fatalf("latency datums = %+v", got)
	}
	errs := byName[MetricCallErrors]
	if len(errs) != 1 || dimension(errs[0], "error_kind") != "insufficient_funds" || dimension(errs[0], "exchange") != "bybit" {
		t.Fatalf("error datums = %+v", errs)
	}
	if got := byName[MetricRateLimitWait]; len(got) != 1 || aws.ToFloat64(got[0].Value) != 40 {
		t.Fatalf("wait datums = %+v", got)
	}
	if got := byName[MetricHealth]; len(got) != 1 || aws.ToFloat64(got[0].Value) != 0 {
		t.Fatalf("health datums = %+v", got)
	}
}

func TestCloudWatchFlushesOnInterval(t *testing.T) {
	c := &capture{}
	p := newCloudWatch(config.CloudWatchConfig{Namespace: "GatewayTest", FlushInterval: 10 * time.Millisecond}, c.publish)
	p.Start(context.Background())
	defer p.Stop()

	p.RecordHealth("binance", true)

	deadline := time.Now().Add(time.Second)
	for len(c.datums()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("datum was not flushed on the interval")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCloudWatchPublishFailureDoesNotBlock(t *testing.T) {
	c := &capture{err: errors.New("throttled")}
	p := newCloudWatch(config.CloudWatchConfig{Namespace: "GatewayTest", FlushInterval: time.Hour}, c.publish)
	p.Start(context.Background())

	p.RecordHealth("binance", true)
	p.Stop()
	if len(c.datums()) != 1 {
		t.Fatalf("expected one attempted datum, got %d", len(c.datums()))
	}
}

func TestCloudWatchDropsWhenBufferFull(t *testing.T) {
	c := &capture{}
	p := newCloudWatch(config.CloudWatchConfig{Namespace: "GatewayTest", Buffer: 2}, c.publish)

	for i := 0; i < 5; i++ {
		p.RecordHealth("binance", true)
	}
	if p.Dropped() != 3 {
		t.Fatalf("dropped = %d, want 3", p.Dropped())
	}
}

func TestCloudWatchDisabledIsLogOnly(t *testing.T) {
	p := NewCloudWatch(context.Background(), config.CloudWatchConfig{Enabled: false})
	if p.Enabled() {
		t.Fatal("disabled publisher reports enabled")
	}
	p.Start(context.Background())
	p.RecordCall("binance", "fetch_ticker", time.Millisecond, "unknown")
	p.Stop()
	if p.Dropped() != 0 || len(p.data) != 0 {
		t.Fatal("log-only publisher buffered datums")
	}
}

func TestDimensionsSkipEmptyValues(t *testing.T) {
	dims := dimensions("exchange", "binance", "operation", "")
	if len(dims) != 1 || aws.ToString(dims[0].Name) != "exchange" {
		t.Fatalf("dims = %+v", dims)
	}
}
