package service

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"orderdesk/internal/model"
)

// monthlyWindow is how many calendar months the spend series covers, ending at
// the current month inclusive.
const monthlyWindow = 6

// recentLimit caps the "recent orders" list.
const recentLimit = 5

// DashboardService derives statistics from an order snapshot. It is a pure
// function of its input and holds no state of its own.
type DashboardService interface {
	Aggregate(orders []model.Order, now time.Time) model.DashboardStats
}

type dashboardService struct{}

// NewDashboardService returns the stateless aggregator.
func NewDashboardService() DashboardService {
	return dashboardService{}
}

func (dashboardService) Aggregate(orders []model.Order, now time.Time) model.DashboardStats {
	stats := model.DashboardStats{
		TotalOrders:   len(orders),
		TotalAmount:   decimal.Zero,
		AvgAmount:     decimal.Zero,
		ByType:        make(map[string]int),
		MonthlySeries: emptySeries(now),
		Recent:        []model.Order{},
	}

	for _, order := range orders {
		stats.TotalAmount = stats.TotalAmount.Add(order.Totals.GrandTotal)

		typ := order.ExpenseType
		if typ == "" {
			typ = model.ExpenseTypeOther
		}
		stats.ByType[typ]++

		// Dateless orders are excluded from every month bucket.
		if order.Date.IsZero() {
			continue
		}
		for i := range stats.MonthlySeries {
			bucket := &stats.MonthlySeries[i]
			if order.Date.Year() == bucket.Year && order.Date.Month() == bucket.Month {
				bucket.Total = bucket.Total.Add(order.Totals.GrandTotal)
			}
		}
	}

	if stats.TotalOrders > 0 {
		stats.AvgAmount = stats.TotalAmount.Div(decimal.NewFromInt(int64(stats.TotalOrders)))
	}

	// Most recent first; ties keep the input order (stable).
	recent := make([]model.Order, len(orders))
	copy(recent, orders)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Date.After(recent[j].Date)
	})
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	stats.Recent = recent

	return stats
}

// emptySeries builds the zeroed six-month buckets ending at now's month,
// oldest first. Anchoring at the first of the month avoids end-of-month
// normalization surprises in AddDate.
func emptySeries(now time.Time) []model.MonthBucket {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	series := make([]model.MonthBucket, 0, monthlyWindow)
	for i := monthlyWindow - 1; i >= 0; i-- {
		m := firstOfMonth.AddDate(0, -i, 0)
		series = append(series, model.MonthBucket{
			Year:  m.Year(),
			Month: m.Month(),
			Label: m.Format("Jan 2006"),
			Total: decimal.Zero,
		})
	}
	return series
}
