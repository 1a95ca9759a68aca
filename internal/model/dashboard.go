package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthBucket is one point of the six-month spend series.
type MonthBucket struct {
	Year  int             `json:"year"`
	Month time.Month      `json:"month"`
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
}

// DashboardStats is derived entirely from the current order snapshot.
type DashboardStats struct {
	TotalOrders   int             `json:"totalOrders"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	AvgAmount     decimal.Decimal `json:"avgAmount"`
	ByType        map[string]int  `json:"byType"`
	MonthlySeries []MonthBucket   `json:"monthlySeries"`
	Recent        []Order         `json:"recent"`
}
