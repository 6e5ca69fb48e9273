// Package export renders the statistics report to downloadable formats.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/fixpoint-erp/fixpoint-erp/internal/reports"
)

// WriteCSV serialises the statistics report to CSV.
func WriteCSV(w io.Writer, report reports.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Section", "Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"Range", "From", report.DateRange.From},
		{"Range", "To", report.DateRange.To},

		{"Financial", "Total Revenue", formatFloat(report.Financial.TotalRevenue)},
		{"Financial", "Sales Revenue", formatFloat(report.Financial.SalesRevenue)},
		{"Financial", "Sales Cost", formatFloat(report.Financial.SalesCost)},
		{"Financial", "Repair Revenue", formatFloat(report.Financial.RepairRevenue)},
		{"Financial", "Repairer Cost", formatFloat(report.Financial.RepairerCost)},
		{"Financial", "Repairer Profit", formatFloat(report.Financial.RepairerProfit)},
		{"Financial", "Swap Profit", formatFloat(report.Financial.SwapProfit)},
		{"Financial", "Total Cost", formatFloat(report.Financial.TotalCost)},
		{"Financial", "Total Profit", formatFloat(report.Financial.TotalProfit)},
		{"Financial", "Profit Margin %", formatFloat(report.Financial.ProfitMargin)},

		{"Swaps", "Total Swaps", strconv.Itoa(report.Swaps.TotalSwaps)},
		{"Swaps", "Pending", strconv.Itoa(report.Swaps.Pending)},
		{"Swaps", "Completed", strconv.Itoa(report.Swaps.Completed)},
		{"Swaps", "Resold", strconv.Itoa(report.Swaps.Resold)},
		{"Swaps", "Total Value", formatFloat(report.Swaps.TotalValue)},
		{"Swaps", "Realized Profit", formatFloat(report.Swaps.TotalProfit)},
		{"Swaps", "Realized Loss", formatFloat(report.Swaps.TotalLoss)},
		{"Swaps", "Estimated Profit", formatFloat(report.Swaps.EstimatedProfit)},
		{"Swaps", "In Stock Items", strconv.Itoa(report.Swaps.InStockItems)},
		{"Swaps", "In Stock Value", formatFloat(report.Swaps.InStockValue)},

		{"Overview", "Sales", strconv.Itoa(report.Overview.TotalSales)},
		{"Overview", "Repairs", strconv.Itoa(report.Overview.TotalRepairs)},
		{"Overview", "Swaps", strconv.Itoa(report.Overview.TotalSwaps)},
		{"Overview", "Products", strconv.Itoa(report.Overview.TotalProducts)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	for _, product := range report.TopProducts {
		if err := writer.Write([]string{"Top Products", product.Name, formatFloat(product.Revenue)}); err != nil {
			return err
		}
	}
	for _, member := range report.Staff {
		if err := writer.Write([]string{"Staff", member.Name, formatFloat(member.SalesRevenue)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
