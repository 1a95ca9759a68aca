package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"orderdesk/internal/model"
)

const sheetName = "Ordenes"

var columns = []string{
	"Order #", "Date", "Time", "Supplier", "Tax ID", "Type", "Status",
	"Subtotal", "Tax %", "Tax Value", "Withholding Income", "Withholding Turnover",
	"Total", "Created By", "Notes",
}

// BuildWorkbook renders the full order snapshot as one spreadsheet, one row
// per order. Orders are expected pre-sorted by the caller.
func BuildWorkbook(orders []model.OrderWithID) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for col, title := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return nil, err
		}
	}

	for i, order := range orders {
		date, clock := "", ""
		if !order.Date.IsZero() {
			date = order.Date.Format("2006-01-02")
			clock = order.Date.Format("15:04:05")
		}
		values := []interface{}{
			order.OrderNumber,
			date,
			clock,
			order.Supplier.Name,
			order.Supplier.TaxID,
			order.ExpenseType,
			order.Status,
			order.Totals.Subtotal.InexactFloat64(),
			order.Totals.TaxPercent.InexactFloat64(),
			order.Totals.TaxValue.InexactFloat64(),
			order.Totals.WithholdingIncome.InexactFloat64(),
			order.Totals.WithholdingTurnover.InexactFloat64(),
			order.Totals.GrandTotal.InexactFloat64(),
			order.CreatedBy.Email,
			order.Notes,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("write row %d: %w", i+2, err)
			}
		}
	}

	return f, nil
}
