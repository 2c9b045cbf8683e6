package normalizer

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exgateway/internal/connector"
	"exgateway/internal/model"
	"exgateway/internal/precision"
)

// ToMarketSnapshot converts a ticker. Percent change is derived from the open
// price (or last minus change) when the exchange does not report it; spread is
// (ask - bid) / bid * 100.
func ToMarketSnapshot(exchange string, t connector.Ticker, now time.Time) (model.MarketSnapshot, error) {
	last, err := required("last", t.Last)
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	snap := model.MarketSnapshot{
		Exchange:  exchange,
		Symbol:    t.Symbol,
		Last:      last,
		Timestamp: timestamp(t.Timestamp, now),
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.NullDecimal
	}{
		{"high", t.High, &snap.High},
		{"low", t.Low, &snap.Low},
		{"bid", t.Bid, &snap.Bid},
		{"ask", t.Ask, &snap.Ask},
		{"base volume", t.BaseVolume, &snap.BaseVolume},
		{"quote volume", t.QuoteVolume, &snap.QuoteVolume},
		{"change percent", t.ChangePercent, &snap.ChangePercent},
	}
	for _, f := range fields {
		if *f.dst, err = optional(f.name, f.raw); err != nil {
			return model.MarketSnapshot{}, err
		}
	}

	if !snap.ChangePercent.Valid {
		open, err := optional("open", t.Open)
		if err != nil {
			return model.MarketSnapshot{}, err
		}
		if !open.Valid {
			change, err := optional("change", t.Change)
			if err != nil {
				return model.MarketSnapshot{}, err
			}
			if change.Valid {
				open = decimal.NewNullDecimal(last.Sub(change.Decimal))
			}
		}
		if open.Valid {
			snap.ChangePercent = percentOf(last.Sub(open.Decimal), open.Decimal)
		}
	}

	if snap.Bid.Valid && snap.Ask.Valid {
		snap.SpreadPercent = percentOf(snap.Ask.Decimal.Sub(snap.Bid.Decimal), snap.Bid.Decimal)
	}
	return snap, nil
}

// ToCandles converts OHLCV rows, oldest first.
func ToCandles(rows []connector.OHLCV) ([]model.Candle, error) {
	out := make([]model.Candle, 0, len(rows))
	for _, r := range rows {
		var (
			c   = model.Candle{OpenTime: time.UnixMilli(r.Timestamp).UTC()}
			err error
		)
		if c.Open, err = required("open", r.Open); err != nil {
			return nil, err
		}
		if c.High, err = required("high", r.High); err != nil {
			return nil, err
		}
		if c.Low, err = required("low", r.Low); err != nil {
			return nil, err
		}
		if c.Close, err = required("close", r.Close); err != nil {
			return nil, err
		}
		vol, err := optional("volume", r.Volume)
		if err != nil {
			return nil, err
		}
		c.Volume = vol.Decimal
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out, nil
}

// ToOrderBookSnapshot sorts bids descending and asks ascending, drops empty
// levels and keeps at most depth levels per side (all when depth <= 0).
func ToOrderBookSnapshot(exchange string, ob connector.OrderBook, depth int, now time.Time) (model.OrderBookSnapshot, error) {
	bids, err := levels("bid", ob.Bids)
	if err != nil {
		return model.OrderBookSnapshot{}, err
	}
	asks, err := levels("ask", ob.Asks)
	if err != nil {
		return model.OrderBookSnapshot{}, err
	}
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })
	if depth > 0 {
		if len(bids) > depth {
			bids = bids[:depth]
		}
		if len(asks) > depth {
			asks = asks[:depth]
		}
	}
	return model.OrderBookSnapshot{
		Exchange:  exchange,
		Symbol:    ob.Symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: timestamp(ob.Timestamp, now),
	}, nil
}

func levels(side string, raw [][2]string) ([]model.PriceLevel, error) {
	out := make([]model.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := required(side+" price", lvl[0])
		if err != nil {
			return nil, err
		}
		size, err := required(side+" size", lvl[1])
		if err != nil {
			return nil, err
		}
		if size.IsNegative() || price.IsNegative() {
			return nil, malformed("negative %s level %s@%s", side, size, price)
		}
		if size.IsZero() {
			continue
		}
		out = append(out, model.PriceLevel{Price: price, Size: size})
	}
	return out, nil
}

// ToTradeList converts public trades. Cost is price * amount when not reported.
func ToTradeList(symbol string, trades []connector.Trade, now time.Time) ([]model.Trade, error) {
	out := make([]model.Trade, 0, len(trades))
	for _, t := range trades {
		price, err := required("trade price", t.Price)
		if err != nil {
			return nil, err
		}
		amount, err := required("trade amount", t.Amount)
		if err != nil {
			return nil, err
		}
		cost, err := optional("trade cost", t.Cost)
		if err != nil {
			return nil, err
		}
		if !cost.Valid {
			cost = decimal.NewNullDecimal(price.Mul(amount))
		}
		side, _ := model.ParseSide(t.Side)
		sym := t.Symbol
		if sym == "" {
			sym = symbol
		}
		out = append(out, model.Trade{
			ID:           t.ID,
			Symbol:       sym,
			Side:         side,
			Price:        price,
			Amount:       amount,
			Cost:         cost.Decimal,
			TakerOrMaker: strings.ToLower(t.TakerOrMaker),
			Timestamp:    timestamp(t.Timestamp, now),
		})
	}
	return out, nil
}

// ToMarketMetadata converts a market description. The boolean is false when
// the market has no symbol.
func ToMarketMetadata(exchange string, m connector.Market) (model.MarketMetadata, bool) {
	if m.Symbol == "" {
		return model.MarketMetadata{}, false
	}
	md := model.MarketMetadata{
		Exchange:        exchange,
		Symbol:          m.Symbol,
		Base:            m.Base,
		Quote:           m.Quote,
		Active:          m.Active,
		AmountPrecision: parsePrecision(m.PrecisionMode, m.AmountPrecision),
		PricePrecision:  parsePrecision(m.PrecisionMode, m.PricePrecision),
	}
	if minAmt, err := optional("min amount", m.MinAmount); err == nil && minAmt.Valid && minAmt.Decimal.IsPositive() {
		md.MinAmount = minAmt
	}
	return md, true
}

func parsePrecision(mode connector.PrecisionMode, raw string) model.Precision {
	switch mode {
	case connector.PrecisionDecimalPlaces:
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || !d.IsInteger() || d.IsNegative() {
			return model.Precision{}
		}
		return model.Places(int32(d.IntPart()))
	case connector.PrecisionTickSize:
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return model.Precision{}
		}
		p, _ := precision.FromStep(d)
		return p
	default:
		p, _ := precision.FromString(strings.TrimSpace(raw))
		return p
	}
}
