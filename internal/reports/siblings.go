package reports

import (
	"context"
	"fmt"

	"github.com/fixpoint-erp/fixpoint-erp/internal/platform/db"
	"github.com/fixpoint-erp/fixpoint-erp/internal/shared"
)

// topProductsLimit bounds the top-products block.
const topProductsLimit = 10

// PgSiblings serves the simple sibling aggregates straight from the store.
type PgSiblings struct {
	store db.Store
}

// NewSiblings constructs the sibling aggregate repository.
func NewSiblings(store db.Store) *PgSiblings {
	return &PgSiblings{store: store}
}

// Overview counts the headline entities for the period.
func (s *PgSiblings) Overview(ctx context.Context, p shared.Period) (OverviewSection, error) {
	start, end := p.Bounds()
	var out OverviewSection

	sales, err := s.store.FetchScalar(ctx,
		`SELECT COUNT(*) FROM sales WHERE company_id = $1 AND created_at BETWEEN $2 AND $3`,
		p.CompanyID, start, end)
	if err != nil {
		return out, err
	}
	out.TotalSales = int(sales)

	repairs, err := s.repairsTable(ctx)
	if err == nil {
		count, err := s.store.FetchScalar(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE company_id = $1 AND created_at BETWEEN $2 AND $3`, repairs),
			p.CompanyID, start, end)
		if err != nil {
			return out, err
		}
		out.TotalRepairs = int(count)
	}

	swapCount, err := s.store.FetchScalar(ctx,
		`SELECT COUNT(*) FROM swaps WHERE company_id = $1 AND created_at BETWEEN $2 AND $3`,
		p.CompanyID, start, end)
	if err != nil {
		return out, err
	}
	out.TotalSwaps = int(swapCount)

	products, err := s.productsTable(ctx)
	if err != nil {
		return out, err
	}
	productCount, err := s.store.FetchScalar(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE company_id = $1`, products),
		p.CompanyID)
	if err != nil {
		return out, err
	}
	out.TotalProducts = int(productCount)
	return out, nil
}

// RepairStats groups repair orders by workflow status.
func (s *PgSiblings) RepairStats(ctx context.Context, p shared.Period) (RepairsSection, error) {
	table, err := s.repairsTable(ctx)
	if err != nil {
		return RepairsSection{ByStatus: map[string]int{}}, err
	}
	start, end := p.Bounds()
	rows, err := s.store.FetchRows(ctx,
		fmt.Sprintf(`SELECT status, COUNT(*) AS total FROM %s WHERE company_id = $1 AND created_at BETWEEN $2 AND $3 GROUP BY status`, table),
		p.CompanyID, start, end)
	if err != nil {
		return RepairsSection{ByStatus: map[string]int{}}, err
	}
	section := RepairsSection{ByStatus: make(map[string]int, len(rows))}
	for _, row := range rows {
		status := row.String("status")
		if status == "" {
			status = "unknown"
		}
		count := int(row.Int64("total"))
		section.ByStatus[status] = count
		section.Total += count
	}
	return section, nil
}

// TopProducts lists the highest-revenue products sold in the period.
func (s *PgSiblings) TopProducts(ctx context.Context, p shared.Period) ([]ProductStat, error) {
	hasItems, err := s.store.TableExists(ctx, "sale_items")
	if err != nil || !hasItems {
		return nil, err
	}
	products, err := s.productsTable(ctx)
	if err != nil {
		return nil, err
	}
	start, end := p.Bounds()
	query := fmt.Sprintf(
		`SELECT pr.name, SUM(si.quantity) AS units, COALESCE(SUM(si.quantity * si.price), 0) AS revenue
		 FROM sale_items si
		 JOIN sales sa ON sa.id = si.sale_id
		 JOIN %s pr ON pr.id = si.item_id
		 WHERE sa.company_id = $1 AND sa.created_at BETWEEN $2 AND $3
		 GROUP BY pr.name
		 ORDER BY revenue DESC
		 LIMIT %d`, products, topProductsLimit)
	rows, err := s.store.FetchRows(ctx, query, p.CompanyID, start, end)
	if err != nil {
		return nil, err
	}
	stats := make([]ProductStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, ProductStat{
			Name:      row.String("name"),
			UnitsSold: row.Float("units"),
			Revenue:   row.Float("revenue"),
		})
	}
	return stats, nil
}

// StaffPerformance aggregates sales per staff member. Deployments without
// sale attribution simply return no rows.
func (s *PgSiblings) StaffPerformance(ctx context.Context, p shared.Period) ([]StaffStat, error) {
	hasCreatedBy, err := s.store.ColumnExists(ctx, "sales", "created_by")
	if err != nil || !hasCreatedBy {
		return nil, err
	}
	start, end := p.Bounds()
	rows, err := s.store.FetchRows(ctx,
		`SELECT u.id, u.name, COUNT(sa.id) AS sales_count, COALESCE(SUM(sa.amount), 0) AS revenue
		 FROM sales sa
		 JOIN users u ON u.id = sa.created_by
		 WHERE sa.company_id = $1 AND sa.created_at BETWEEN $2 AND $3
		 GROUP BY u.id, u.name
		 ORDER BY revenue DESC`,
		p.CompanyID, start, end)
	if err != nil {
		return nil, err
	}
	stats := make([]StaffStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, StaffStat{
			UserID:       row.Int64("id"),
			Name:         row.String("name"),
			SalesCount:   int(row.Int64("sales_count")),
			SalesRevenue: row.Float("revenue"),
		})
	}
	return stats, nil
}

func (s *PgSiblings) repairsTable(ctx context.Context) (string, error) {
	ok, err := s.store.TableExists(ctx, "repairs_new")
	if err != nil {
		return "", err
	}
	if ok {
		return "repairs_new", nil
	}
	ok, err = s.store.TableExists(ctx, "repairs")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("reports: repairs table unavailable")
	}
	return "repairs", nil
}

func (s *PgSiblings) productsTable(ctx context.Context) (string, error) {
	ok, err := s.store.TableExists(ctx, "products_new")
	if err != nil {
		return "", err
	}
	if ok {
		return "products_new", nil
	}
	return "products", nil
}
