package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// An AttributeKey names a distinguishing characteristic of a repair variant.
type AttributeKey int

const (
	AttrColor AttributeKey = iota
	AttrFrame
	AttrVersion
	AttrType
)

// AttributeKeys lists every attribute key in resolution order.
var AttributeKeys = [...]AttributeKey{AttrColor, AttrFrame, AttrVersion, AttrType}

var attributeKeyNames = [...]string{"color", "frame", "version", "type"}

func (k AttributeKey) Valid() bool {
	return k >= AttrColor && k <= AttrType
}

func (k AttributeKey) String() string {
	if !k.Valid() {
		return fmt.Sprintf("AttributeKey(%d)", int(k))
	}
	return attributeKeyNames[k]
}

// ParseAttributeKey returns the key named s. The bool is false for unknown names.
func ParseAttributeKey(s string) (AttributeKey, bool) {
	for i, name := range attributeKeyNames {
		if name == s {
			return AttributeKey(i), true
		}
	}
	return 0, false
}

// Frame is stored as a boolean but exposed as a two valued attribute.
const (
	FrameWith    = "Con marco"
	FrameWithout = "Sin marco"
)

func FrameValue(hasFrame bool) string {
	if hasFrame {
		return FrameWith
	}
	return FrameWithout
}

// ParseFrame reports whether v means "with frame". The second value is false
// when v is neither [FrameWith] nor [FrameWithout].
func ParseFrame(v string) (hasFrame bool, ok bool) {
	switch v {
	case FrameWith:
		return true, true
	case FrameWithout:
		return false, true
	}
	return false, false
}

// A PriceKey names a quotable repair service.
type PriceKey int

const (
	PriceModuleRepair PriceKey = iota
	PriceBatteryRepair
	PricePinRepair
)

var PriceKeys = [...]PriceKey{PriceModuleRepair, PriceBatteryRepair, PricePinRepair}

var priceKeyNames = [...]string{"moduleRepair", "batteryRepair", "pinRepair"}

var priceKeyTitles = [...]string{"Módulo", "Batería", "Pin de carga"}

func (k PriceKey) Valid() bool {
	return k >= PriceModuleRepair && k <= PricePinRepair
}

func (k PriceKey) String() string {
	if !k.Valid() {
		return fmt.Sprintf("PriceKey(%d)", int(k))
	}
	return priceKeyNames[k]
}

// Title is the customer facing service name.
func (k PriceKey) Title() string {
	if !k.Valid() {
		return k.String()
	}
	return priceKeyTitles[k]
}

func ParsePriceKey(s string) (PriceKey, bool) {
	for i, name := range priceKeyNames {
		if name == s {
			return PriceKey(i), true
		}
	}
	return 0, false
}

// Attributes holds the applicable attributes of a record.
//
// A missing key means the attribute does not apply. Values are never empty.
type Attributes map[AttributeKey]string

func (a Attributes) Get(k AttributeKey) (string, bool) {
	v, ok := a[k]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Prices holds the quotable services of a record.
//
// A missing key means the service is not quotable, not that it is free.
type Prices map[PriceKey]decimal.Decimal

func (p Prices) Get(k PriceKey) decimal.NullDecimal {
	v, ok := p[k]
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: v, Valid: true}
}

// A Record is one priced repair configuration of a brand and model.
//
// Records are shared between readers and must not be mutated.
type Record struct {
	ID         string
	Brand      string
	Model      string
	Attributes Attributes
	Prices     Prices
}

// RecordBlock hides a record from the catalog or shows it again.
type RecordBlock struct {
	RecordID string
	Blocked  bool
}
