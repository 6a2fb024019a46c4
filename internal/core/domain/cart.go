package domain

import "github.com/shopspring/decimal"

type (
	// A Cart is a set of quoted repairs keyed by record and service.
	Cart struct {
		ID    string
		Items []CartItem
	}

	CartItem struct {
		RecordID  string
		Brand     string
		Model     string
		Service   PriceKey
		UnitPrice decimal.Decimal
		Quantity  int
	}
)

func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// CartItemKey identifies an item inside a cart.
type CartItemKey struct {
	RecordID string
	Service  PriceKey
}
