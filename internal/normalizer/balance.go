package normalizer

import (
	"strings"

	"github.com/shopspring/decimal"

	"exgateway/internal/connector"
	"exgateway/internal/model"
)

// ToBalance converts account entries. Free is derived as total - locked when
// the exchange only reports those two; total is always free + locked. Entries
// for the same asset (several sub-accounts) are summed.
func ToBalance(entries []connector.BalanceEntry) (model.Balance, error) {
	out := make(model.Balance, len(entries))
	for _, e := range entries {
		asset := strings.ToUpper(strings.TrimSpace(e.Asset))
		if asset == "" {
			continue
		}
		free, err := optional(asset+" free", e.Free)
		if err != nil {
			return nil, err
		}
		locked, err := optional(asset+" locked", e.Locked)
		if err != nil {
			return nil, err
		}
		total, err := optional(asset+" total", e.Total)
		if err != nil {
			return nil, err
		}

		if !free.Valid {
			switch {
			case total.Valid:
				free = decimal.NewNullDecimal(total.Decimal.Sub(locked.Decimal))
			default:
				free = decimal.NewNullDecimal(decimal.Zero)
			}
		}
		if free.Decimal.IsNegative() || locked.Decimal.IsNegative() {
			return nil, malformed("negative balance for %s: free %s locked %s", asset, free.Decimal, locked.Decimal)
		}

		cur := out[asset]
		cur.Free = cur.Free.Add(free.Decimal)
		cur.Locked = cur.Locked.Add(locked.Decimal)
		cur.Total = cur.Free.Add(cur.Locked)
		out[asset] = cur
	}
	return out, nil
}
