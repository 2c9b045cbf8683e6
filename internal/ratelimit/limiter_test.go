package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

const testInterval = 40 * time.Millisecond

func TestFirstCallDoesNotWait(t *testing.T) {
	l := New(testInterval)
	waited, err := l.Acquire(context.Background(), "binance", "fetch_ticker")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if waited != 0 {
		t.Fatalf("first call waited %s", waited)
	}
	if _, ok := l.LastRequest("binance", "fetch_ticker"); !ok {
		t.Fatalf("last request not recorded")
	}
}

func TestSequentialCallsAreSpaced(t *testing.T) {
	l := New(testInterval)
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "binance", "fetch_ticker"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	first, _ := l.LastRequest("binance", "fetch_ticker")
	if _, err := l.Acquire(ctx, "binance", "fetch_ticker"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	second, _ := l.LastRequest("binance", "fetch_ticker")

	if gap := second.Sub(first); gap < testInterval-2*time.Millisecond {
		t.Fatalf("calls spaced %s, want at least %s", gap, testInterval)
	}
}

func TestIndependentKeysDoNotBlock(t *testing.T) {
	l := New(time.Second)
	ctx := context.Background()
	start := time.Now()
	for _, endpoint := range []string{"fetch_ticker", "fetch_balance", "create_order"} {
		if _, err := l.Acquire(ctx, "binance", endpoint); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
	}
	if _, err := l.Acquire(ctx, "bybit", "fetch_ticker"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("distinct keys were throttled: %s", elapsed)
	}
}

func TestConcurrentCallsWaitCumulatively(t *testing.T) {
	l := New(testInterval)
	ctx := context.Background()

	const callers = 4
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		times []time.Time
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(ctx, "kucoin", "fetch_order_book"); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < testInterval/2 {
			t.Fatalf("calls %d and %d spaced %s", i-1, i, gap)
		}
	}
}

func TestAcquireHonoursContext(t *testing.T) {
	l := New(time.Hour)
	if _, err := l.Acquire(context.Background(), "binance", "create_order"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "binance", "create_order"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestSetIntervalOverride(t *testing.T) {
	l := New(time.Hour)
	l.SetInterval("paper", 0)
	if got := l.Interval("paper"); got != 0 {
		t.Fatalf("Interval = %s", got)
	}
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		if _, err := l.Acquire(ctx, "paper", "fetch_ticker"); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("override not applied: %s", elapsed)
	}
	if got := l.Interval("binance"); got != time.Hour {
		t.Fatalf("default interval changed: %s", got)
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	if got := New(0).Interval("any"); got != DefaultInterval {
		t.Fatalf("Interval = %s want %s", got, DefaultInterval)
	}
}
