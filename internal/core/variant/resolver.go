// Package variant narrows the records of one brand and model down to a
// single configuration as attribute values get selected.
//
// All functions are pure: records and selections are only read, and equal
// inputs give equal outputs.
package variant

import (
	"fmt"

	"github.com/niksmo/repair-shop/internal/core/domain"
)

// Status describes the outcome of [ResolveSelectedRecord].
type Status int

const (
	// StatusIncomplete means a required attribute is still unselected.
	StatusIncomplete Status = iota
	// StatusResolved means exactly one record matches.
	StatusResolved
	// StatusNotFound means no record has the selected combination.
	StatusNotFound
	// StatusAmbiguous means several records match. The catalog holds
	// duplicates for the combination and none of them is picked.
	StatusAmbiguous
)

var statusNames = [...]string{"incomplete", "resolved", "not_found", "ambiguous"}

func (s Status) String() string {
	if s < StatusIncomplete || s > StatusAmbiguous {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// A Resolution is the result of [ResolveSelectedRecord].
//
// Record is set only when Status is [StatusResolved]. Matches counts the
// records that satisfied the selection once it was complete.
type Resolution struct {
	Status  Status
	Record  domain.Record
	Matches int
}

func (r Resolution) Resolved() bool {
	return r.Status == StatusResolved
}

// AvailableValues returns the distinct values of target among the records
// consistent with every selected attribute except target itself.
//
// Values keep the order in which they first appear in records.
// It panics if target is not a known attribute key.
func AvailableValues(
	records []domain.Record, selection domain.Selection, target domain.AttributeKey,
) []string {
	mustValidKey("variant.AvailableValues", target)
	mustValidSelection("variant.AvailableValues", selection)

	values := make([]string, 0)
	seen := make(map[string]struct{})
	for _, r := range records {
		if !consistent(r, selection, target) {
			continue
		}
		v, ok := r.Attributes.Get(target)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values
}

// RequiredKeys returns the attribute keys that still have at least one
// available value under selection, in [domain.AttributeKeys] order.
//
// A key without values for this record set does not gate resolution.
func RequiredKeys(
	records []domain.Record, selection domain.Selection,
) []domain.AttributeKey {
	var keys []domain.AttributeKey
	for _, k := range domain.AttributeKeys {
		if len(AvailableValues(records, selection, k)) != 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

// Options returns the available values of every attribute key.
// Keys without values are present with an empty slice.
func Options(
	records []domain.Record, selection domain.Selection,
) map[domain.AttributeKey][]string {
	out := make(map[domain.AttributeKey][]string, len(domain.AttributeKeys))
	for _, k := range domain.AttributeKeys {
		out[k] = AvailableValues(records, selection, k)
	}
	return out
}

// ResolveSelectedRecord returns the single record matching selection on
// every required key that has available values. Selected keys left out of
// requiredKeys still constrain the match while they have available values.
//
// The resolution is incomplete while such a key is unselected. Zero or
// several matches never resolve; several matches are reported as
// [StatusAmbiguous] so callers can flag the catalog data.
// It panics if requiredKeys holds an unknown attribute key.
func ResolveSelectedRecord(
	records []domain.Record,
	selection domain.Selection,
	requiredKeys []domain.AttributeKey,
) Resolution {
	const op = "variant.ResolveSelectedRecord"
	mustValidSelection(op, selection)

	criteria := make(domain.Selection, len(requiredKeys))
	for _, k := range requiredKeys {
		mustValidKey(op, k)
		if len(AvailableValues(records, selection, k)) == 0 {
			continue
		}
		v, ok := selection.Get(k)
		if !ok {
			return Resolution{Status: StatusIncomplete}
		}
		criteria[k] = v
	}
	for _, k := range domain.AttributeKeys {
		v, ok := selection.Get(k)
		if _, seen := criteria[k]; !ok || seen {
			continue
		}
		if len(AvailableValues(records, selection, k)) != 0 {
			criteria[k] = v
		}
	}

	var (
		match   domain.Record
		matches int
	)
	for _, r := range records {
		if !consistent(r, criteria, -1) {
			continue
		}
		if matches == 0 {
			match = r
		}
		matches++
	}

	switch matches {
	case 0:
		return Resolution{Status: StatusNotFound}
	case 1:
		return Resolution{Status: StatusResolved, Record: match, Matches: 1}
	default:
		return Resolution{Status: StatusAmbiguous, Matches: matches}
	}
}

// consistent reports whether r carries every selected value, skipping ignore.
func consistent(
	r domain.Record, selection domain.Selection, ignore domain.AttributeKey,
) bool {
	for k, want := range selection {
		if k == ignore {
			continue
		}
		got, ok := r.Attributes.Get(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func mustValidKey(op string, k domain.AttributeKey) {
	if !k.Valid() {
		panic(fmt.Errorf("%s: unknown attribute key %d", op, int(k))) // develop mistake
	}
}

func mustValidSelection(op string, s domain.Selection) {
	for k := range s {
		mustValidKey(op, k)
	}
}
