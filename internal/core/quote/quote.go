// Package quote renders resolved repair records for customers: price text
// and pre-filled chat links.
package quote

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/variant"
)

const (
	NoPriceText  = "Sin presupuesto"
	NoPriceClass = "price-missing"
	PriceClass   = "price"
)

// FormatPrice returns the display text and style class of an optional price.
func FormatPrice(p decimal.NullDecimal) (text, class string) {
	if !p.Valid {
		return NoPriceText, NoPriceClass
	}
	amount := p.Decimal
	if amount.Equal(amount.Truncate(0)) {
		return "$" + amount.StringFixed(0), PriceClass
	}
	return "$" + amount.StringFixed(2), PriceClass
}

// DefaultMessageTemplate is used when no template is configured.
const DefaultMessageTemplate = "Hola! Quiero consultar por la reparación de " +
	"{{.Service}} para {{.Brand}} {{.Model}}" +
	"{{if .Attributes}} ({{.Attributes}}){{end}}. Presupuesto: {{.Price}}"

// A MessageData feeds the contact message template.
type MessageData struct {
	Brand      string
	Model      string
	Service    string
	Attributes string
	Price      string
}

// A Messenger builds chat links with a templated message for a phone number.
type Messenger struct {
	phone string
	tmpl  *template.Template
}

func NewMessenger(phone, messageTemplate string) (Messenger, error) {
	const op = "quote.NewMessenger"

	phone = digitsOnly(phone)
	if phone == "" {
		return Messenger{}, fmt.Errorf("%s: phone has no digits", op)
	}
	if strings.TrimSpace(messageTemplate) == "" {
		messageTemplate = DefaultMessageTemplate
	}
	tmpl, err := template.New("message").Parse(messageTemplate)
	if err != nil {
		return Messenger{}, fmt.Errorf("%s: %w", op, err)
	}
	return Messenger{phone: phone, tmpl: tmpl}, nil
}

// Link returns a wa.me link that opens a chat with the message pre-filled.
func (m Messenger) Link(data MessageData) (string, error) {
	const op = "Messenger.Link"

	var buf bytes.Buffer
	if err := m.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	q := url.Values{"text": {buf.String()}}
	return "https://wa.me/" + m.phone + "?" + q.Encode(), nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type (
	// A Quote is a resolved record with one line per repair service.
	Quote struct {
		Record domain.Record
		Lines  []Line
	}

	Line struct {
		Service     domain.PriceKey
		Price       decimal.NullDecimal
		PriceText   string
		PriceClass  string
		ContactLink string
	}
)

// Build quotes every service of r. Services without price get no link.
func (m Messenger) Build(r domain.Record) (Quote, error) {
	const op = "Messenger.Build"

	q := Quote{Record: r, Lines: make([]Line, 0, len(domain.PriceKeys))}
	for _, k := range domain.PriceKeys {
		price := r.Prices.Get(k)
		text, class := FormatPrice(price)
		line := Line{
			Service:    k,
			Price:      price,
			PriceText:  text,
			PriceClass: class,
		}
		if price.Valid {
			link, err := m.Link(MessageData{
				Brand:      r.Brand,
				Model:      r.Model,
				Service:    k.Title(),
				Attributes: DescribeAttributes(r.Attributes),
				Price:      text,
			})
			if err != nil {
				return Quote{}, fmt.Errorf("%s: %w", op, err)
			}
			line.ContactLink = link
		}
		q.Lines = append(q.Lines, line)
	}
	return q, nil
}

// DescribeAttributes joins present attribute values in key order.
func DescribeAttributes(a domain.Attributes) string {
	var parts []string
	for _, k := range domain.AttributeKeys {
		if v, ok := a.Get(k); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// A Result is the quote of a selection. Quote is set only when Status is
// [variant.StatusResolved].
type Result struct {
	Status  variant.Status
	Matches int
	Quote   Quote
}

// Resolve quotes res if it resolved a record.
func (m Messenger) Resolve(res variant.Resolution) (Result, error) {
	const op = "Messenger.Resolve"

	out := Result{Status: res.Status, Matches: res.Matches}
	if !res.Resolved() {
		return out, nil
	}
	q, err := m.Build(res.Record)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	out.Quote = q
	return out, nil
}
