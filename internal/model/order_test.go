package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestNormalizeItems(t *testing.T) {
	items := NormalizeItems([]LineItem{
		{Seq: 9, Description: "Oil filter", Quantity: d("2"), UnitPrice: d("15000")},
		{Description: "Coolant", Quantity: d("1.5"), UnitPrice: d("20000"), LineTotal: d("1")},
	})

	assert.Equal(t, 1, items[0].Seq)
	assert.Equal(t, 2, items[1].Seq)
	assert.True(t, items[0].LineTotal.Equal(d("30000")), "got %s", items[0].LineTotal)
	assert.True(t, items[1].LineTotal.Equal(d("30000")), "stale line total must be recomputed")
}

func TestComputeTotals(t *testing.T) {
	items := NormalizeItems([]LineItem{
		{Description: "Brake pads", Quantity: d("4"), UnitPrice: d("20000")},
		{Description: "Labor", Quantity: d("1"), UnitPrice: d("20000")},
	})

	totals := ComputeTotals(items, d("19"), d("2500"), d("1000"))

	assert.True(t, totals.Subtotal.Equal(d("100000")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.TaxValue.Equal(d("19000")), "tax %s", totals.TaxValue)
	assert.True(t, totals.GrandTotal.Equal(d("115500")), "grand total %s", totals.GrandTotal)
}

func TestComputeTotalsNoItems(t *testing.T) {
	totals := ComputeTotals(nil, d("19"), decimal.Zero, decimal.Zero)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.GrandTotal.IsZero())
}

func TestUserProfileDefaults(t *testing.T) {
	active := false

	assert.True(t, UserProfile{}.IsActive(), "absent active flag means active")
	assert.False(t, UserProfile{Active: &active}.IsActive())

	assert.Equal(t, RoleUser, UserProfile{}.EffectiveRole())
	assert.Equal(t, RoleUser, UserProfile{Role: "superuser"}.EffectiveRole())
	assert.Equal(t, RoleAdmin, UserProfile{Role: RoleAdmin}.EffectiveRole())
}
