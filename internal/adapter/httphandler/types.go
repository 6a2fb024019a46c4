package httphandler

import (
	"log/slog"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/quote"
	"github.com/niksmo/repair-shop/internal/core/variant"
)

type (
	// Record keys attributes and prices by their names,
	// e.g. "color" and "moduleRepair".
	Record struct {
		ID         string                     `json:"id"`
		Brand      string                     `json:"brand"`
		Model      string                     `json:"model"`
		Attributes map[string]string          `json:"attributes"`
		Prices     map[string]decimal.Decimal `json:"prices"`
	}

	RecordBlock struct {
		RecordID string `json:"record_id"`
		Blocked  bool   `json:"blocked"`
	}

	VariantOptions struct {
		Values   map[string][]string `json:"values"`
		Required []string            `json:"required"`
	}

	Resolution struct {
		Status  string      `json:"status"`
		Matches int         `json:"matches"`
		Record  *Record     `json:"record,omitempty"`
		Quotes  []QuoteLine `json:"quotes"`
	}

	QuoteLine struct {
		Service     string           `json:"service"`
		Title       string           `json:"title"`
		Price       *decimal.Decimal `json:"price"`
		PriceText   string           `json:"price_text"`
		PriceClass  string           `json:"price_class"`
		ContactLink string           `json:"contact_link,omitempty"`
	}

	Cart struct {
		ID    string          `json:"cart_id"`
		Items []CartItem      `json:"items"`
		Total decimal.Decimal `json:"total"`
	}

	CartItem struct {
		RecordID  string          `json:"record_id"`
		Brand     string          `json:"brand"`
		Model     string          `json:"model"`
		Service   string          `json:"service"`
		UnitPrice decimal.Decimal `json:"unit_price"`
		Quantity  int             `json:"quantity"`
		Subtotal  decimal.Decimal `json:"subtotal"`
	}

	PutCartItem struct {
		RecordID string `json:"record_id"`
		Service  string `json:"service"`
		Quantity int    `json:"quantity"`
	}
)

func recordFromDomain(v domain.Record) Record {
	return Record{
		ID:    v.ID,
		Brand: v.Brand,
		Model: v.Model,
		Attributes: lo.MapKeys(v.Attributes, func(_ string, k domain.AttributeKey) string {
			return k.String()
		}),
		Prices: lo.MapKeys(v.Prices, func(_ decimal.Decimal, k domain.PriceKey) string {
			return k.String()
		}),
	}
}

func recordsFromDomain(vs []domain.Record) []Record {
	return lo.Map(vs, func(v domain.Record, _ int) Record {
		return recordFromDomain(v)
	})
}

// toDomain drops unknown attribute and price names with a warning.
func (r Record) toDomain(log *slog.Logger) domain.Record {
	v := domain.Record{
		ID:         r.ID,
		Brand:      r.Brand,
		Model:      r.Model,
		Attributes: make(domain.Attributes, len(r.Attributes)),
		Prices:     make(domain.Prices, len(r.Prices)),
	}
	for name, value := range r.Attributes {
		k, ok := domain.ParseAttributeKey(name)
		if !ok {
			log.Warn("unknown attribute key is ignored", "key", name, "recordID", r.ID)
			continue
		}
		v.Attributes[k] = value
	}
	for name, price := range r.Prices {
		k, ok := domain.ParsePriceKey(name)
		if !ok {
			log.Warn("unknown price key is ignored", "key", name, "recordID", r.ID)
			continue
		}
		v.Prices[k] = price
	}
	return v
}

func variantOptionsFromDomain(v domain.VariantOptions) VariantOptions {
	return VariantOptions{
		Values: lo.MapKeys(v.Values, func(_ []string, k domain.AttributeKey) string {
			return k.String()
		}),
		Required: lo.Map(v.Required, func(k domain.AttributeKey, _ int) string {
			return k.String()
		}),
	}
}

func resolutionFromQuote(res quote.Result) Resolution {
	out := Resolution{
		Status:  res.Status.String(),
		Matches: res.Matches,
		Quotes:  make([]QuoteLine, 0, len(res.Quote.Lines)),
	}
	if res.Status != variant.StatusResolved {
		return out
	}

	record := recordFromDomain(res.Quote.Record)
	out.Record = &record
	for _, line := range res.Quote.Lines {
		ql := QuoteLine{
			Service:     line.Service.String(),
			Title:       line.Service.Title(),
			PriceText:   line.PriceText,
			PriceClass:  line.PriceClass,
			ContactLink: line.ContactLink,
		}
		if line.Price.Valid {
			ql.Price = &line.Price.Decimal
		}
		out.Quotes = append(out.Quotes, ql)
	}
	return out
}

func cartFromDomain(v domain.Cart) Cart {
	return Cart{
		ID: v.ID,
		Items: lo.Map(v.Items, func(item domain.CartItem, _ int) CartItem {
			return CartItem{
				RecordID:  item.RecordID,
				Brand:     item.Brand,
				Model:     item.Model,
				Service:   item.Service.String(),
				UnitPrice: item.UnitPrice,
				Quantity:  item.Quantity,
				Subtotal:  item.Subtotal(),
			}
		}),
		Total: v.Total(),
	}
}
