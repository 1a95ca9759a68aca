package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense type values as stored on orders. The vocabulary is the company's own
// and is treated as opaque outside the aggregator's default bucket.
const (
	ExpenseTypePurchase = "COMPRA"
	ExpenseTypeOther    = "OTROS"
)

// Order status values
const (
	OrderStatusActive    = "ACTIVA"
	OrderStatusCancelled = "ANULADA"
)

// OrgInfo identifies one party of an order (buyer or supplier).
// Supplier fields are not required to be non-empty; only items are validated.
type OrgInfo struct {
	Name    string `json:"name"`
	TaxID   string `json:"taxId"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// LineItem is one row of an order. Seq is 1-based and dense; it is re-derived
// on every save together with LineTotal (quantity × unit price).
type LineItem struct {
	Seq         int             `json:"seq"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Totals carries the money summary of an order. GrandTotal is recomputed from
// current inputs before every save, never trusted from the request.
type Totals struct {
	Subtotal            decimal.Decimal `json:"subtotal"`
	TaxPercent          decimal.Decimal `json:"taxPercent"`
	TaxValue            decimal.Decimal `json:"taxValue"`
	WithholdingIncome   decimal.Decimal `json:"withholdingIncome"`
	WithholdingTurnover decimal.Decimal `json:"withholdingTurnover"`
	GrandTotal          decimal.Decimal `json:"grandTotal"`
}

// Creator records who created an order.
type Creator struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Order is the full purchase-order document stored at orders/{id}. The store
// key (id) is opaque and distinct from the human-facing OrderNumber, which is
// unique, monotonically assigned and never reused.
type Order struct {
	OrderNumber  int64      `json:"orderNumber"`
	Date         time.Time  `json:"date"`
	Buyer        OrgInfo    `json:"buyer"`
	Supplier     OrgInfo    `json:"supplier"`
	ExpenseType  string     `json:"expenseType"`
	Items        []LineItem `json:"items"`
	Notes        string     `json:"notes"`
	Totals       Totals     `json:"totals"`
	Status       string     `json:"status"`
	CreatedBy    Creator    `json:"createdBy"`
	LastModified time.Time  `json:"lastModified"`
}

// OrderWithID pairs an order with its store key for list responses.
type OrderWithID struct {
	ID string `json:"id"`
	Order
}

// NormalizeItems re-derives the dense 1-based sequence index and the cached
// line totals of every item.
func NormalizeItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		item.Seq = i + 1
		item.LineTotal = item.Quantity.Mul(item.UnitPrice)
		out[i] = item
	}
	return out
}

// ComputeTotals recomputes the full money summary from the given inputs:
//
//	subtotal   = Σ lineTotal
//	taxValue   = subtotal × taxPercent/100
//	grandTotal = subtotal + taxValue − withholdingIncome − withholdingTurnover
func ComputeTotals(items []LineItem, taxPercent, withholdingIncome, withholdingTurnover decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	taxValue := subtotal.Mul(taxPercent).Div(decimal.NewFromInt(100))
	return Totals{
		Subtotal:            subtotal,
		TaxPercent:          taxPercent,
		TaxValue:            taxValue,
		WithholdingIncome:   withholdingIncome,
		WithholdingTurnover: withholdingTurnover,
		GrandTotal:          subtotal.Add(taxValue).Sub(withholdingIncome).Sub(withholdingTurnover),
	}
}
