package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/fixpoint-erp/fixpoint-erp/internal/platform/db"
	"github.com/fixpoint-erp/fixpoint-erp/internal/shared"
)

// ErrSchemaUnavailable marks a term whose backing table or column is absent
// in this deployment. The aggregator degrades the term to zero.
var ErrSchemaUnavailable = errors.New("finance: schema unavailable")

// PgRepository reads the financial source rows through the transaction
// store, probing optional tables and columns instead of assuming a fixed
// schema.
type PgRepository struct {
	store db.Store
}

// NewRepository constructs a repository over the store.
func NewRepository(store db.Store) *PgRepository {
	return &PgRepository{store: store}
}

// SalesRevenue sums direct sale amounts in range. Swap-originated sales are
// excluded to avoid double counting against swap profit; deployments without
// the swap_id column have no swap-originated sales to exclude.
func (r *PgRepository) SalesRevenue(ctx context.Context, p shared.Period) (float64, error) {
	start, end := p.Bounds()
	hasSwapID, err := r.store.ColumnExists(ctx, "sales", "swap_id")
	if err != nil {
		return 0, err
	}
	query := `SELECT COALESCE(SUM(amount), 0) FROM sales WHERE company_id = $1 AND created_at BETWEEN $2 AND $3`
	if hasSwapID {
		query += ` AND swap_id IS NULL`
	}
	return r.store.FetchScalar(ctx, query, p.CompanyID, start, end)
}

// SalesCost sums quantity * unit cost over sale line items, joining each
// item to a product by item id with a name fallback for migrated rows.
// resolved is false when no cost data could be attributed at all; the
// aggregator then falls back to its documented margin estimate.
func (r *PgRepository) SalesCost(ctx context.Context, p shared.Period) (cost float64, resolved bool, err error) {
	hasItems, err := r.store.TableExists(ctx, "sale_items")
	if err != nil {
		return 0, false, err
	}
	if !hasItems {
		return 0, false, nil
	}
	products, err := productsTable(ctx, r.store)
	if err != nil {
		return 0, false, err
	}
	hasSwapID, err := r.store.ColumnExists(ctx, "sales", "swap_id")
	if err != nil {
		return 0, false, err
	}

	start, end := p.Bounds()
	query := fmt.Sprintf(
		`SELECT COUNT(pr.id) AS matched,
		        COALESCE(SUM(si.quantity * COALESCE(pr.cost, 0)), 0) AS cost
		 FROM sale_items si
		 JOIN sales s ON s.id = si.sale_id
		 LEFT JOIN %s pr ON pr.id = si.item_id
		    OR (si.item_id IS NULL AND LOWER(pr.name) = LOWER(si.description))
		 WHERE s.company_id = $1 AND s.created_at BETWEEN $2 AND $3`, products)
	if hasSwapID {
		query += ` AND s.swap_id IS NULL`
	}
	rows, err := r.store.FetchRows(ctx, query, p.CompanyID, start, end)
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 || rows[0].Int64("matched") == 0 {
		return 0, false, nil
	}
	return rows[0].Float("cost"), true, nil
}

// RepairRevenue sums repair totals for repairs created in range, preferring
// the newer repairs table when the deployment has it.
func (r *PgRepository) RepairRevenue(ctx context.Context, p shared.Period) (float64, error) {
	table, err := repairsTable(ctx, r.store)
	if err != nil {
		return 0, err
	}
	start, end := p.Bounds()
	query := fmt.Sprintf(
		`SELECT COALESCE(SUM(repair_cost + COALESCE(parts_cost, 0)), 0) FROM %s WHERE company_id = $1 AND created_at BETWEEN $2 AND $3`,
		table)
	return r.store.FetchScalar(ctx, query, p.CompanyID, start, end)
}

// RepairEconomics splits repair money into cost and profit components:
// workmanship (repair cost minus labour, labour defaulting to half when
// unset) and parts attached through repair accessories.
func (r *PgRepository) RepairEconomics(ctx context.Context, p shared.Period) (cost, profit float64, err error) {
	table, err := repairsTable(ctx, r.store)
	if err != nil {
		return 0, 0, err
	}
	hasLabour, err := r.store.ColumnExists(ctx, table, "labour_cost")
	if err != nil {
		return 0, 0, err
	}

	start, end := p.Bounds()
	labourCol := "NULL AS labour_cost"
	if hasLabour {
		labourCol = "labour_cost"
	}
	query := fmt.Sprintf(
		`SELECT id, COALESCE(repair_cost, 0) AS repair_cost, %s FROM %s WHERE company_id = $1 AND created_at BETWEEN $2 AND $3`,
		labourCol, table)
	repairRows, err := r.store.FetchRows(ctx, query, p.CompanyID, start, end)
	if err != nil {
		return 0, 0, err
	}
	for _, row := range repairRows {
		repairCost := row.Float("repair_cost")
		labour := repairCost / 2
		if l := row.FloatPtr("labour_cost"); l != nil {
			labour = *l
		}
		cost += repairCost - labour
		profit += labour
	}

	hasParts, err := r.store.TableExists(ctx, "repair_accessories")
	if err != nil {
		return 0, 0, err
	}
	if !hasParts {
		return cost, profit, nil
	}
	products, err := productsTable(ctx, r.store)
	if err != nil {
		return 0, 0, err
	}
	partsQuery := fmt.Sprintf(
		`SELECT ra.quantity, ra.sale_price, COALESCE(pr.cost, 0) AS product_cost
		 FROM repair_accessories ra
		 JOIN %s rp ON rp.id = ra.repair_id
		 LEFT JOIN %s pr ON pr.id = ra.product_id
		 WHERE rp.company_id = $1 AND rp.created_at BETWEEN $2 AND $3`, table, products)
	partRows, err := r.store.FetchRows(ctx, partsQuery, p.CompanyID, start, end)
	if err != nil {
		return 0, 0, err
	}
	for _, row := range partRows {
		qty := row.Float("quantity")
		if qty == 0 {
			qty = 1
		}
		cost += row.Float("product_cost") * qty
		profit += (row.Float("sale_price") - row.Float("product_cost")) * qty
	}
	return cost, profit, nil
}

// SwapProfitFromLinks is the fallback swap profit path when no ledger
// summary is supplied: positive finalized link profits for swaps created in
// range, matching the ledger's realized-profit convention.
func (r *PgRepository) SwapProfitFromLinks(ctx context.Context, p shared.Period) (float64, error) {
	hasLinks, err := r.store.TableExists(ctx, "swap_profit_links")
	if err != nil {
		return 0, err
	}
	if !hasLinks {
		return 0, fmt.Errorf("swap_profit_links: %w", ErrSchemaUnavailable)
	}
	start, end := p.Bounds()
	return r.store.FetchScalar(ctx,
		`SELECT COALESCE(SUM(CASE WHEN l.profit > 0 THEN l.profit ELSE 0 END), 0)
		 FROM swap_profit_links l
		 JOIN swaps s ON s.id = l.swap_id
		 WHERE s.company_id = $1 AND l.status = 'finalized' AND s.created_at BETWEEN $2 AND $3`,
		p.CompanyID, start, end)
}

func productsTable(ctx context.Context, store db.Store) (string, error) {
	ok, err := store.TableExists(ctx, "products_new")
	if err != nil {
		return "", err
	}
	if ok {
		return "products_new", nil
	}
	return "products", nil
}

func repairsTable(ctx context.Context, store db.Store) (string, error) {
	ok, err := store.TableExists(ctx, "repairs_new")
	if err != nil {
		return "", err
	}
	if ok {
		return "repairs_new", nil
	}
	ok, err = store.TableExists(ctx, "repairs")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("repairs: %w", ErrSchemaUnavailable)
	}
	return "repairs", nil
}
