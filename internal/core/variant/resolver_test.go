package variant

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niksmo/repair-shop/internal/core/domain"
)

func newRecord(id string, attrs domain.Attributes, module int64) domain.Record {
	return domain.Record{
		ID:         id,
		Brand:      "Samsung",
		Model:      "A52",
		Attributes: attrs,
		Prices: domain.Prices{
			domain.PriceModuleRepair: decimal.NewFromInt(module),
		},
	}
}

func oledRecords() []domain.Record {
	return []domain.Record{
		newRecord("r1", domain.Attributes{
			domain.AttrColor: "Negro",
			domain.AttrFrame: domain.FrameWith,
			domain.AttrType:  "OLED",
		}, 5000),
		newRecord("r2", domain.Attributes{
			domain.AttrColor: "Blanco",
			domain.AttrFrame: domain.FrameWithout,
			domain.AttrType:  "OLED",
		}, 4500),
	}
}

// wideCatalog has overlapping attribute values and a sparse version key.
func wideCatalog() []domain.Record {
	return []domain.Record{
		newRecord("w1", domain.Attributes{
			domain.AttrColor: "Negro", domain.AttrFrame: domain.FrameWith, domain.AttrType: "OLED",
		}, 100),
		newRecord("w2", domain.Attributes{
			domain.AttrColor: "Negro", domain.AttrFrame: domain.FrameWithout, domain.AttrType: "Incell",
		}, 90),
		newRecord("w3", domain.Attributes{
			domain.AttrColor: "Azul", domain.AttrFrame: domain.FrameWith, domain.AttrType: "Incell",
			domain.AttrVersion: "5G",
		}, 80),
		newRecord("w4", domain.Attributes{
			domain.AttrColor: "Azul", domain.AttrFrame: domain.FrameWithout, domain.AttrType: "OLED",
			domain.AttrVersion: "4G",
		}, 70),
		newRecord("w5", domain.Attributes{
			domain.AttrColor: "Blanco", domain.AttrType: "OLED",
		}, 60),
	}
}

func TestAvailableValues(t *testing.T) {
	t.Run("EmptySelection", func(t *testing.T) {
		got := AvailableValues(oledRecords(), domain.Selection{}, domain.AttrColor)
		assert.Equal(t, []string{"Negro", "Blanco"}, got)
	})

	t.Run("NarrowedBySelection", func(t *testing.T) {
		sel := domain.Selection{domain.AttrColor: "Negro"}
		got := AvailableValues(oledRecords(), sel, domain.AttrFrame)
		assert.Equal(t, []string{domain.FrameWith}, got)
	})

	t.Run("AbsentValuesAreSkipped", func(t *testing.T) {
		got := AvailableValues(oledRecords(), domain.Selection{}, domain.AttrVersion)
		assert.Empty(t, got)
		assert.NotNil(t, got)
	})

	t.Run("DistinctFirstSeenOrder", func(t *testing.T) {
		got := AvailableValues(wideCatalog(), domain.Selection{}, domain.AttrType)
		assert.Equal(t, []string{"OLED", "Incell"}, got)
	})

	t.Run("NoRecordsLeft", func(t *testing.T) {
		sel := domain.Selection{domain.AttrColor: "Rojo"}
		got := AvailableValues(wideCatalog(), sel, domain.AttrType)
		assert.Empty(t, got)
	})

	t.Run("UnknownTargetPanics", func(t *testing.T) {
		assert.Panics(t, func() {
			AvailableValues(oledRecords(), domain.Selection{}, domain.AttributeKey(42))
		})
	})

	t.Run("UnknownSelectionKeyPanics", func(t *testing.T) {
		sel := domain.Selection{domain.AttributeKey(-3): "x"}
		assert.Panics(t, func() {
			AvailableValues(oledRecords(), sel, domain.AttrColor)
		})
	})
}

func TestAvailableValuesIgnoresOwnKey(t *testing.T) {
	records := wideCatalog()
	base := domain.Selection{domain.AttrFrame: domain.FrameWith}

	for _, k := range domain.AttributeKeys {
		want := AvailableValues(records, base.Without(k), k)
		for _, v := range []string{"Negro", "Azul", "missing", domain.FrameWithout} {
			got := AvailableValues(records, base.With(k, v), k)
			assert.Equal(t, want, got, "key %s value %q", k, v)
		}
	}
}

func TestAvailableValuesDeterministic(t *testing.T) {
	records := wideCatalog()
	sel := domain.Selection{domain.AttrType: "OLED"}

	first := Options(records, sel)
	for range 20 {
		assert.Equal(t, first, Options(records, sel))
	}
}

func TestAvailableValuesMonotonicNarrowing(t *testing.T) {
	records := wideCatalog()
	selections := []domain.Selection{
		{},
		{domain.AttrColor: "Negro"},
		{domain.AttrType: "OLED"},
		{domain.AttrColor: "Azul", domain.AttrFrame: domain.FrameWith},
	}

	for _, sel := range selections {
		before := Options(records, sel)
		for _, added := range domain.AttributeKeys {
			if _, ok := sel[added]; ok {
				continue
			}
			for _, v := range before[added] {
				after := Options(records, sel.With(added, v))
				for _, other := range domain.AttributeKeys {
					if other == added {
						continue
					}
					assert.Subset(t, before[other], after[other],
						"selection %v + %s=%q widened %s", sel, added, v, other)
				}
			}
		}
	}
}

func TestRequiredKeys(t *testing.T) {
	t.Run("SkipsKeysWithoutValues", func(t *testing.T) {
		got := RequiredKeys(oledRecords(), domain.Selection{})
		assert.Equal(t,
			[]domain.AttributeKey{domain.AttrColor, domain.AttrFrame, domain.AttrType},
			got,
		)
	})

	t.Run("EmptyRecords", func(t *testing.T) {
		assert.Empty(t, RequiredKeys(nil, domain.Selection{domain.AttrColor: "Negro"}))
	})

	t.Run("DependsOnOtherSelections", func(t *testing.T) {
		sel := domain.Selection{domain.AttrColor: "Negro"}
		got := RequiredKeys(wideCatalog(), sel)
		assert.NotContains(t, got, domain.AttrVersion)

		sel = domain.Selection{domain.AttrColor: "Azul"}
		got = RequiredKeys(wideCatalog(), sel)
		assert.Contains(t, got, domain.AttrVersion)
	})
}

func TestResolveSelectedRecord(t *testing.T) {
	type testCase struct {
		name      string
		records   []domain.Record
		selection domain.Selection
		status    Status
		recordID  string
		matches   int
	}

	duplicated := []domain.Record{
		newRecord("d1", domain.Attributes{
			domain.AttrColor: "Negro", domain.AttrFrame: domain.FrameWith,
		}, 100),
		newRecord("d2", domain.Attributes{
			domain.AttrColor: "Negro", domain.AttrFrame: domain.FrameWith,
		}, 100),
	}

	tests := []testCase{
		{
			name:    "empty selection is incomplete",
			records: oledRecords(),
			status:  StatusIncomplete,
		},
		{
			name:      "partial selection is incomplete",
			records:   oledRecords(),
			selection: domain.Selection{domain.AttrColor: "Negro"},
			status:    StatusIncomplete,
		},
		{
			name:    "keys without values do not block a match",
			records: oledRecords(),
			selection: domain.Selection{
				domain.AttrColor: "Negro",
				domain.AttrFrame: domain.FrameWith,
				domain.AttrType:  "OLED",
			},
			status:   StatusResolved,
			recordID: "r1",
			matches:  1,
		},
		{
			name:    "impossible combination",
			records: oledRecords(),
			selection: domain.Selection{
				domain.AttrColor: "Negro",
				domain.AttrFrame: domain.FrameWithout,
			},
			status: StatusNotFound,
		},
		{
			name:    "duplicates are ambiguous",
			records: duplicated,
			selection: domain.Selection{
				domain.AttrColor: "Negro",
				domain.AttrFrame: domain.FrameWith,
			},
			status:  StatusAmbiguous,
			matches: 2,
		},
		{
			name:      "no records",
			records:   nil,
			selection: domain.Selection{domain.AttrColor: "Negro"},
			status:    StatusNotFound,
		},
		{
			name: "single record without attributes",
			records: []domain.Record{
				newRecord("only", domain.Attributes{}, 10),
			},
			status:   StatusResolved,
			recordID: "only",
			matches:  1,
		},
		{
			name:    "sparse version only required where present",
			records: wideCatalog(),
			selection: domain.Selection{
				domain.AttrColor: "Negro",
				domain.AttrFrame: domain.FrameWithout,
				domain.AttrType:  "Incell",
			},
			status:   StatusResolved,
			recordID: "w2",
			matches:  1,
		},
		{
			name:    "sparse version required for its records",
			records: wideCatalog(),
			selection: domain.Selection{
				domain.AttrColor: "Azul",
				domain.AttrFrame: domain.FrameWith,
				domain.AttrType:  "Incell",
			},
			status: StatusIncomplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := tt.selection
			if sel == nil {
				sel = domain.Selection{}
			}
			required := RequiredKeys(tt.records, sel)

			res := ResolveSelectedRecord(tt.records, sel, required)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.matches, res.Matches)
			if tt.recordID != "" {
				require.True(t, res.Resolved())
				assert.Equal(t, tt.recordID, res.Record.ID)
			} else {
				assert.False(t, res.Resolved())
				assert.Empty(t, res.Record.ID)
			}
		})
	}
}

func TestResolveSelectedRecordHonorsSelectionOutsideRequired(t *testing.T) {
	sel := domain.Selection{
		domain.AttrColor: "Negro",
		domain.AttrFrame: domain.FrameWithout,
		domain.AttrType:  "OLED",
	}
	required := []domain.AttributeKey{domain.AttrColor, domain.AttrType}

	res := ResolveSelectedRecord(oledRecords(), sel, required)
	assert.Equal(t, StatusNotFound, res.Status)
	assert.Empty(t, res.Record.ID)

	sel = sel.With(domain.AttrFrame, domain.FrameWith)
	res = ResolveSelectedRecord(oledRecords(), sel, required)
	require.True(t, res.Resolved())
	assert.Equal(t, "r1", res.Record.ID)
}

func TestResolveSelectedRecordEmptyRecords(t *testing.T) {
	for _, k := range domain.AttributeKeys {
		assert.Empty(t, AvailableValues(nil, domain.Selection{domain.AttrColor: "x"}, k))
	}
	res := ResolveSelectedRecord(nil, domain.Selection{}, domain.AttributeKeys[:])
	assert.False(t, res.Resolved())
}

func TestResolveSelectedRecordCompleteNeverMany(t *testing.T) {
	records := append(wideCatalog(), wideCatalog()[0])

	for _, c := range AvailableValues(records, domain.Selection{}, domain.AttrColor) {
		for _, f := range []string{domain.FrameWith, domain.FrameWithout} {
			for _, ty := range []string{"OLED", "Incell"} {
				sel := domain.Selection{
					domain.AttrColor: c, domain.AttrFrame: f, domain.AttrType: ty,
				}
				res := ResolveSelectedRecord(records, sel, RequiredKeys(records, sel))
				if res.Resolved() {
					assert.Equal(t, 1, res.Matches)
					assert.Equal(t, c, res.Record.Attributes[domain.AttrColor])
				}
			}
		}
	}
}

func TestResolveSelectedRecordUnknownRequiredKeyPanics(t *testing.T) {
	assert.Panics(t, func() {
		ResolveSelectedRecord(
			oledRecords(),
			domain.Selection{},
			[]domain.AttributeKey{domain.AttrColor, domain.AttributeKey(9)},
		)
	})
}

func TestResolveSelectedRecordDoesNotMutate(t *testing.T) {
	records := oledRecords()
	sel := domain.Selection{domain.AttrColor: "Negro", domain.AttrFrame: domain.FrameWith, domain.AttrType: "OLED"}

	_ = ResolveSelectedRecord(records, sel, RequiredKeys(records, sel))

	assert.Equal(t, oledRecords(), records)
	assert.Len(t, sel, 3)
}
