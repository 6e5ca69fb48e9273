package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/fixpoint-erp/fixpoint-erp/internal/reports"
)

// WriteXLSX serialises the statistics report to a spreadsheet with one
// sheet per section.
func WriteXLSX(w io.Writer, report reports.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const summarySheet = "Summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}

	summary := [][]any{
		{"Metric", "Value"},
		{"From", report.DateRange.From},
		{"To", report.DateRange.To},
		{"Total Revenue", report.Financial.TotalRevenue},
		{"Sales Revenue", report.Financial.SalesRevenue},
		{"Sales Cost", report.Financial.SalesCost},
		{"Repair Revenue", report.Financial.RepairRevenue},
		{"Repairer Cost", report.Financial.RepairerCost},
		{"Repairer Profit", report.Financial.RepairerProfit},
		{"Swap Profit", report.Financial.SwapProfit},
		{"Total Cost", report.Financial.TotalCost},
		{"Total Profit", report.Financial.TotalProfit},
		{"Profit Margin %", report.Financial.ProfitMargin},
	}
	if err := writeSheet(f, summarySheet, summary); err != nil {
		return err
	}

	swapsRows := [][]any{
		{"Metric", "Value"},
		{"Total Swaps", report.Swaps.TotalSwaps},
		{"Pending", report.Swaps.Pending},
		{"Completed", report.Swaps.Completed},
		{"Resold", report.Swaps.Resold},
		{"Total Value", report.Swaps.TotalValue},
		{"Realized Profit", report.Swaps.TotalProfit},
		{"Realized Loss", report.Swaps.TotalLoss},
		{"Estimated Profit", report.Swaps.EstimatedProfit},
		{"In Stock Items", report.Swaps.InStockItems},
		{"In Stock Value", report.Swaps.InStockValue},
	}
	if err := addSheet(f, "Swaps", swapsRows); err != nil {
		return err
	}

	productRows := [][]any{{"Product", "Units Sold", "Revenue"}}
	for _, p := range report.TopProducts {
		productRows = append(productRows, []any{p.Name, p.UnitsSold, p.Revenue})
	}
	if err := addSheet(f, "Top Products", productRows); err != nil {
		return err
	}

	staffRows := [][]any{{"Name", "Sales Count", "Sales Revenue"}}
	for _, s := range report.Staff {
		staffRows = append(staffRows, []any{s.Name, s.SalesCount, s.SalesRevenue})
	}
	if err := addSheet(f, "Staff", staffRows); err != nil {
		return err
	}

	return f.Write(w)
}

func addSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	return writeSheet(f, name, rows)
}

func writeSheet(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("export: write sheet %s: %w", sheet, err)
		}
	}
	return nil
}
