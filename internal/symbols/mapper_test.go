package symbols

import "testing"

func TestToNative(t *testing.T) {
	tests := []struct {
		exchange string
		in       string
		want     string
	}{
		{"binance", "BTC/USDT", "BTCUSDT"},
		{"Bybit", "eth/usdt", "ETHUSDT"},
		{"kucoin", "BTC/USDT", "BTC-USDT"},
		{"paper", "BTC/USDT", "BTC/USDT"},
	}
	for _, tt := range tests {
		got, err := ToNative(tt.exchange, tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ToNative(%s,%s)=%s,%v want %s", tt.exchange, tt.in, got, err, tt.want)
		}
	}
	if _, err := ToNative("binance", "BTCUSDT"); err == nil {
		t.Errorf("expected error for non-unified symbol")
	}
}

func TestUnifiedAliases(t *testing.T) {
	if got := Unified("xbt", "usdt"); got != "BTC/USDT" {
		t.Fatalf("Unified = %s", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry("binance")
	if u := r.Add("1000PEPEUSDT", "1000PEPE", "USDT"); u != "1000PEPE/USDT" {
		t.Fatalf("Add = %s", u)
	}
	if n, err := r.Native("1000PEPE/USDT"); err != nil || n != "1000PEPEUSDT" {
		t.Fatalf("Native = %s, %v", n, err)
	}
	if n, _ := r.Native("ETH/USDT"); n != "ETHUSDT" {
		t.Fatalf("fallback Native = %s", n)
	}
	if u := r.Unified("1000PEPEUSDT", ""); u != "1000PEPE/USDT" {
		t.Fatalf("Unified = %s", u)
	}
	if u := r.Unified("ETHUSDT", "ETH/USDT"); u != "ETH/USDT" {
		t.Fatalf("fallback Unified = %s", u)
	}

	k := NewRegistry("kucoin")
	if u := k.Unified("SOL-USDT", ""); u != "SOL/USDT" {
		t.Fatalf("dash Unified = %s", u)
	}
}

func TestRegistryAliasListings(t *testing.T) {
	for _, order := range [][]string{{"BTC-USDT", "XBT-USDT"}, {"XBT-USDT", "BTC-USDT"}} {
		r := NewRegistry("kucoin")
		for _, native := range order {
			base := native[:3]
			if u := r.Add(native, base, "USDT"); u != "BTC/USDT" {
				t.Fatalf("Add(%s) = %s", native, u)
			}
		}
		if n, _ := r.Native("BTC/USDT"); n != "BTC-USDT" {
			t.Fatalf("listing order %v: Native = %s, want BTC-USDT", order, n)
		}
		if !r.Routes("BTC-USDT") || r.Routes("XBT-USDT") {
			t.Fatalf("listing order %v: wrong route owner", order)
		}
		if u := r.Unified("XBT-USDT", ""); u != "BTC/USDT" {
			t.Fatalf("alias Unified = %s", u)
		}
	}
}
