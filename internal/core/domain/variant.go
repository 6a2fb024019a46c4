package domain

// VariantOptions lists the selectable values of every attribute key
// and the keys that still gate resolution.
type VariantOptions struct {
	Values   map[AttributeKey][]string
	Required []AttributeKey
}
