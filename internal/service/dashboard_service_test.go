package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal/model"
)

func orderAt(date time.Time, grandTotal string, expenseType string) model.Order {
	return model.Order{
		Date:        date,
		ExpenseType: expenseType,
		Totals:      model.Totals{GrandTotal: decimal.RequireFromString(grandTotal)},
	}
}

func TestAggregateEmptySnapshot(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	stats := NewDashboardService().Aggregate(nil, now)

	assert.Equal(t, 0, stats.TotalOrders)
	assert.True(t, stats.TotalAmount.IsZero())
	assert.True(t, stats.AvgAmount.IsZero())
	assert.Empty(t, stats.ByType)
	assert.Empty(t, stats.Recent)

	require.Len(t, stats.MonthlySeries, 6)
	assert.Equal(t, "Mar 2026", stats.MonthlySeries[0].Label)
	assert.Equal(t, "Aug 2026", stats.MonthlySeries[5].Label)
	for _, bucket := range stats.MonthlySeries {
		assert.True(t, bucket.Total.IsZero())
	}
}

func TestAggregateTotalsAndAverage(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	orders := []model.Order{
		orderAt(now, "100000", model.ExpenseTypePurchase),
		orderAt(now.AddDate(0, 0, -1), "50000", model.ExpenseTypePurchase),
		orderAt(now.AddDate(0, 0, -2), "30000", "SERVICIOS"),
	}

	stats := NewDashboardService().Aggregate(orders, now)

	assert.Equal(t, 3, stats.TotalOrders)
	assert.True(t, stats.TotalAmount.Equal(decimal.RequireFromString("180000")))
	assert.True(t, stats.AvgAmount.Equal(decimal.RequireFromString("60000")))
	assert.Equal(t, 2, stats.ByType[model.ExpenseTypePurchase])
	assert.Equal(t, 1, stats.ByType["SERVICIOS"])
}

func TestAggregateMissingTypeFallsBackToOther(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	orders := []model.Order{orderAt(now, "1000", "")}

	stats := NewDashboardService().Aggregate(orders, now)

	assert.Equal(t, 1, stats.ByType[model.ExpenseTypeOther])
}

func TestAggregateMonthlyBuckets(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	orders := []model.Order{
		orderAt(now, "100", model.ExpenseTypePurchase),                  // Aug bucket
		orderAt(now.AddDate(0, -5, 0), "200", model.ExpenseTypePurchase), // Mar bucket, oldest in window
		orderAt(now.AddDate(0, -7, 0), "400", model.ExpenseTypePurchase), // outside the window
		orderAt(time.Time{}, "800", model.ExpenseTypePurchase),           // dateless
	}

	stats := NewDashboardService().Aggregate(orders, now)

	require.Len(t, stats.MonthlySeries, 6)
	assert.True(t, stats.MonthlySeries[5].Total.Equal(decimal.RequireFromString("100")))
	assert.True(t, stats.MonthlySeries[0].Total.Equal(decimal.RequireFromString("200")))
	for _, bucket := range stats.MonthlySeries[1:5] {
		assert.True(t, bucket.Total.IsZero(), "bucket %s", bucket.Label)
	}

	// Out-of-window and dateless orders still count toward the totals.
	assert.True(t, stats.TotalAmount.Equal(decimal.RequireFromString("1500")))
}

func TestAggregateRecentIsCappedAndStable(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	sameDay := now.AddDate(0, 0, -3)

	orders := []model.Order{
		orderAt(sameDay, "1", "A"),
		orderAt(sameDay, "2", "B"),
		orderAt(now, "3", "C"),
		orderAt(now.AddDate(0, 0, -1), "4", "D"),
		orderAt(now.AddDate(0, 0, -2), "5", "E"),
		orderAt(now.AddDate(0, 0, -10), "6", "F"),
		orderAt(now.AddDate(0, 0, -20), "7", "G"),
	}

	stats := NewDashboardService().Aggregate(orders, now)

	require.Len(t, stats.Recent, 5)
	assert.Equal(t, "C", stats.Recent[0].ExpenseType)
	assert.Equal(t, "D", stats.Recent[1].ExpenseType)
	assert.Equal(t, "E", stats.Recent[2].ExpenseType)
	// Equal dates keep their input order.
	assert.Equal(t, "A", stats.Recent[3].ExpenseType)
	assert.Equal(t, "B", stats.Recent[4].ExpenseType)
}

func TestAggregateIsInputOrderInvariant(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	orders := []model.Order{
		orderAt(now, "100", "A"),
		orderAt(now.AddDate(0, -1, 0), "200", "B"),
		orderAt(now.AddDate(0, -2, 0), "300", "A"),
	}
	reversed := []model.Order{orders[2], orders[1], orders[0]}

	svc := NewDashboardService()
	a := svc.Aggregate(orders, now)
	b := svc.Aggregate(reversed, now)

	assert.True(t, a.TotalAmount.Equal(b.TotalAmount))
	assert.Equal(t, a.ByType, b.ByType)
	for i := range a.MonthlySeries {
		assert.True(t, a.MonthlySeries[i].Total.Equal(b.MonthlySeries[i].Total))
	}
}
