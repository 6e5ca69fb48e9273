package swaps

import (
	"context"
	"fmt"
	"strings"

	"github.com/fixpoint-erp/fixpoint-erp/internal/platform/db"
)

// PgRepository reads swap data through the transaction store. Schema varies
// by deployment: swap_items, swap_profit_links, and the swaps.profit_status
// column are all optional and probed at call time.
type PgRepository struct {
	store db.Store
}

// NewRepository constructs a repository over the store.
func NewRepository(store db.Store) *PgRepository {
	return &PgRepository{store: store}
}

// SwapRows fetches raw swap rows for a company. When swap_items exists the
// join fans out one row per item, which is where duplicate swap ids come
// from; the ledger collapses them.
func (r *PgRepository) SwapRows(ctx context.Context, companyID int64) ([]Record, error) {
	hasItems, err := r.store.TableExists(ctx, "swap_items")
	if err != nil {
		return nil, err
	}
	hasProfitStatus, err := r.store.ColumnExists(ctx, "swaps", "profit_status")
	if err != nil {
		return nil, err
	}

	cols := []string{
		"s.id", "s.company_id", "s.total_value", "s.status",
		"s.company_item_sale_id", "s.customer_item_sale_id",
		"s.profit_estimate", "s.final_profit", "s.created_at",
	}
	if hasProfitStatus {
		cols = append(cols, "s.profit_status")
	}

	var query string
	if hasItems {
		cols = append(cols, "si.resale_status")
		query = fmt.Sprintf(
			`SELECT %s FROM swaps s LEFT JOIN swap_items si ON si.swap_id = s.id WHERE s.company_id = $1 ORDER BY s.id`,
			strings.Join(cols, ", "))
	} else {
		query = fmt.Sprintf(
			`SELECT %s FROM swaps s WHERE s.company_id = $1 ORDER BY s.id`,
			strings.Join(cols, ", "))
	}

	rows, err := r.store.FetchRows(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, recordFromRow(row))
	}
	return records, nil
}

func recordFromRow(row db.Row) Record {
	rec := Record{
		ID:                 row.Int64("id"),
		CompanyID:          row.Int64("company_id"),
		TotalValue:         row.Float("total_value"),
		Status:             LegacyStatus(strings.ToLower(row.String("status"))),
		ResaleStatus:       ResaleStatus(strings.ToLower(row.String("resale_status"))),
		CompanyItemSaleID:  row.Int64Ptr("company_item_sale_id"),
		CustomerItemSaleID: row.Int64Ptr("customer_item_sale_id"),
		ProfitEstimate:     row.FloatPtr("profit_estimate"),
		FinalProfit:        row.FloatPtr("final_profit"),
		CreatedAt:          row.Time("created_at"),
	}
	if ps := strings.ToLower(row.String("profit_status")); ps != "" {
		rec.ProfitStatus = ProfitStatus(ps)
	} else {
		rec.ProfitStatus = ProfitEstimated
	}
	return rec
}

// ProfitLink fetches the cached link for a swap, nil when absent or when the
// deployment lacks the cache table.
func (r *PgRepository) ProfitLink(ctx context.Context, swapID int64) (*ProfitLink, error) {
	ok, err := r.store.TableExists(ctx, "swap_profit_links")
	if err != nil || !ok {
		return nil, err
	}
	rows, err := r.store.FetchRows(ctx,
		`SELECT swap_id, profit, status, updated_at FROM swap_profit_links WHERE swap_id = $1`, swapID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	return &ProfitLink{
		SwapID:    row.Int64("swap_id"),
		Profit:    row.Float("profit"),
		Status:    ProfitStatus(strings.ToLower(row.String("status"))),
		UpdatedAt: row.Time("updated_at"),
	}, nil
}

// SaveProfitLink upserts the link cache. Finalized values are deterministic
// given fixed inputs, so concurrent last-writer-wins is acceptable.
func (r *PgRepository) SaveProfitLink(ctx context.Context, link ProfitLink) error {
	ok, err := r.store.TableExists(ctx, "swap_profit_links")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("swaps: swap_profit_links table unavailable")
	}
	return r.store.Exec(ctx,
		`INSERT INTO swap_profit_links (swap_id, profit, status, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (swap_id) DO UPDATE SET profit = EXCLUDED.profit, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		link.SwapID, link.Profit, string(link.Status), link.UpdatedAt)
}

// LegEconomics resolves one leg sale's revenue and cost. Cost matching joins
// line items to products primarily by item id, falling back to a name match
// for rows migrated from legacy schemas.
func (r *PgRepository) LegEconomics(ctx context.Context, saleID int64) (float64, float64, error) {
	saleRows, err := r.store.FetchRows(ctx, `SELECT amount FROM sales WHERE id = $1`, saleID)
	if err != nil {
		return 0, 0, err
	}
	if len(saleRows) == 0 {
		return 0, 0, fmt.Errorf("sale %d: %w", saleID, ErrLegUnresolved)
	}
	revenue := saleRows[0].Float("amount")

	hasItems, err := r.store.TableExists(ctx, "sale_items")
	if err != nil {
		return 0, 0, err
	}
	if !hasItems {
		return 0, 0, fmt.Errorf("sale %d items unavailable: %w", saleID, ErrLegUnresolved)
	}
	products, err := productsTable(ctx, r.store)
	if err != nil {
		return 0, 0, err
	}

	query := fmt.Sprintf(
		`SELECT COUNT(*) AS items, COUNT(p.id) AS matched,
		        COALESCE(SUM(si.quantity * COALESCE(p.cost, 0)), 0) AS cost
		 FROM sale_items si
		 LEFT JOIN %s p ON p.id = si.item_id
		    OR (si.item_id IS NULL AND LOWER(p.name) = LOWER(si.description))
		 WHERE si.sale_id = $1`, products)
	rows, err := r.store.FetchRows(ctx, query, saleID)
	if err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 || rows[0].Int64("matched") == 0 {
		return 0, 0, fmt.Errorf("sale %d product match: %w", saleID, ErrLegUnresolved)
	}
	return revenue, rows[0].Float("cost"), nil
}

// PendingFinalization lists swaps with both legs sold but no finalized
// figure yet; the background sweep feeds these through the resolver.
func (r *PgRepository) PendingFinalization(ctx context.Context, companyID int64) ([]Record, error) {
	records, err := r.SwapRows(ctx, companyID)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]int, len(records))
	deduped := records[:0]
	for _, rec := range records {
		at, seen := index[rec.ID]
		if seen {
			mergeRecord(&deduped[at], rec)
			continue
		}
		index[rec.ID] = len(deduped)
		deduped = append(deduped, rec)
	}
	finalized, err := r.finalizedLinkIDs(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Record
	for _, rec := range deduped {
		if !rec.BothLegsSold() || rec.ProfitStatus == ProfitFinalized {
			continue
		}
		if finalized[rec.ID] {
			continue
		}
		pending = append(pending, rec)
	}
	return pending, nil
}

// finalizedLinkIDs lists swaps already finalized in the link table. The swaps
// row can still say estimated when only the link was written, and those must
// not re-enter the sweep.
func (r *PgRepository) finalizedLinkIDs(ctx context.Context) (map[int64]bool, error) {
	ok, err := r.store.TableExists(ctx, "swap_profit_links")
	if err != nil || !ok {
		return nil, err
	}
	rows, err := r.store.FetchRows(ctx,
		`SELECT swap_id FROM swap_profit_links WHERE status = $1`, string(ProfitFinalized))
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(rows))
	for _, row := range rows {
		ids[row.Int64("swap_id")] = true
	}
	return ids, nil
}

// CompanyIDs lists the companies that have swaps on record; the sweep job
// iterates these when not scoped to one company.
func (r *PgRepository) CompanyIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.store.FetchRows(ctx, `SELECT DISTINCT company_id FROM swaps ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Int64("company_id"))
	}
	return ids, nil
}

// productsTable picks the product catalogue table for this deployment,
// preferring the migrated products_new over the legacy products.
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
