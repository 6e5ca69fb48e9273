package finance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fixpoint-erp/fixpoint-erp/internal/platform/db"
	"github.com/fixpoint-erp/fixpoint-erp/internal/shared"
)

// fakeStore answers schema probes from maps and queries from substring
// matched handlers, recording every query it sees.
type fakeStore struct {
	tables  map[string]bool
	columns map[string]bool
	scalars map[string]float64
	rows    map[string][]db.Row
	queries []string
}

func (f *fakeStore) match(kind map[string]float64, query string) (float64, bool) {
	for frag, v := range kind {
		if strings.Contains(query, frag) {
			return v, true
		}
	}
	return 0, false
}

func (f *fakeStore) FetchScalar(_ context.Context, query string, _ ...any) (float64, error) {
	f.queries = append(f.queries, query)
	if v, ok := f.match(f.scalars, query); ok {
		return v, nil
	}
	return 0, nil
}

func (f *fakeStore) FetchRows(_ context.Context, query string, _ ...any) ([]db.Row, error) {
	f.queries = append(f.queries, query)
	for frag, rows := range f.rows {
		if strings.Contains(query, frag) {
			return rows, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Exec(_ context.Context, query string, _ ...any) error {
	f.queries = append(f.queries, query)
	return nil
}

func (f *fakeStore) TableExists(_ context.Context, name string) (bool, error) {
	return f.tables[name], nil
}

func (f *fakeStore) ColumnExists(_ context.Context, table, column string) (bool, error) {
	return f.columns[table+"."+column], nil
}

func (f *fakeStore) sawQueryContaining(frag string) bool {
	for _, q := range f.queries {
		if strings.Contains(q, frag) {
			return true
		}
	}
	return false
}

func repoPeriod() shared.Period {
	return shared.Period{
		CompanyID: 7,
		From:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestSalesRevenueExcludesSwapSalesWhenColumnExists(t *testing.T) {
	store := &fakeStore{
		columns: map[string]bool{"sales.swap_id": true},
		scalars: map[string]float64{"FROM sales": 1500},
	}
	repo := NewRepository(store)

	got, err := repo.SalesRevenue(context.Background(), repoPeriod())
	if err != nil {
		t.Fatalf("sales revenue: %v", err)
	}
	if got != 1500 {
		t.Fatalf("revenue = %v", got)
	}
	if !store.sawQueryContaining("swap_id IS NULL") {
		t.Fatal("swap-originated sales must be excluded when the column exists")
	}
}

func TestSalesRevenueSkipsSwapFilterWithoutColumn(t *testing.T) {
	store := &fakeStore{scalars: map[string]float64{"FROM sales": 900}}
	repo := NewRepository(store)

	if _, err := repo.SalesRevenue(context.Background(), repoPeriod()); err != nil {
		t.Fatalf("sales revenue: %v", err)
	}
	if store.sawQueryContaining("swap_id") {
		t.Fatal("query must not reference a column the deployment lacks")
	}
}

func TestSalesCostUnresolvedWithoutLineItems(t *testing.T) {
	store := &fakeStore{}
	repo := NewRepository(store)

	cost, resolved, err := repo.SalesCost(context.Background(), repoPeriod())
	if err != nil {
		t.Fatalf("sales cost: %v", err)
	}
	if resolved || cost != 0 {
		t.Fatalf("missing sale_items must be unresolved, got %v resolved=%v", cost, resolved)
	}
}

func TestSalesCostUnresolvedWhenNothingMatches(t *testing.T) {
	store := &fakeStore{
		tables: map[string]bool{"sale_items": true},
		rows: map[string][]db.Row{
			"FROM sale_items": {{"matched": int64(0), "cost": float64(0)}},
		},
	}
	repo := NewRepository(store)

	_, resolved, err := repo.SalesCost(context.Background(), repoPeriod())
	if err != nil {
		t.Fatalf("sales cost: %v", err)
	}
	if resolved {
		t.Fatal("zero matched products must report unresolved")
	}
}

func TestSalesCostPrefersProductsNew(t *testing.T) {
	store := &fakeStore{
		tables: map[string]bool{"sale_items": true, "products_new": true},
		rows: map[string][]db.Row{
			"FROM sale_items": {{"matched": int64(3), "cost": float64(420)}},
		},
	}
	repo := NewRepository(store)

	cost, resolved, err := repo.SalesCost(context.Background(), repoPeriod())
	if err != nil {
		t.Fatalf("sales cost: %v", err)
	}
	if !resolved || cost != 420 {
		t.Fatalf("cost = %v resolved=%v", cost, resolved)
	}
	if !store.sawQueryContaining("products_new") {
		t.Fatal("catalogue join must prefer products_new")
	}
}

func TestRepairRevenuePrefersRepairsNew(t *testing.T) {
	store := &fakeStore{
		tables:  map[string]bool{"repairs_new": true, "repairs": true},
		scalars: map[string]float64{"FROM repairs_new": 800},
	}
	repo := NewRepository(store)

	got, err := repo.RepairRevenue(context.Background(), repoPeriod())
	if err != nil {
		t.Fatalf("repair revenue: %v", err)
	}
	if got != 800 {
		t.Fatalf("revenue = %v", got)
	}
}

func TestRepairRevenueSchemaUnavailable(t *testing.T) {
	store := &fakeStore{}
	repo := NewRepository(store)

	if _, err := repo.RepairRevenue(context.Background(), repoPeriod()); !errors.Is(err, ErrSchemaUnavailable) {
		t.Fatalf("expected ErrSchemaUnavailable, got %v", err)
	}
}

func TestRepairEconomicsDefaultsLabourToHalf(t *testing.T) {
	store := &fakeStore{
		tables: map[string]bool{"repairs": true},
		rows: map[string][]db.Row{
			"FROM repairs": {
				{"id": int64(1), "repair_cost": float64(100), "labour_cost": nil},
				{"id": int64(2), "repair_cost": float64(60), "labour_cost": nil},
			},
		},
	}
	repo := NewRepository(store)

	cost, profit, err := repo.RepairEconomics(context.Background(), repoPeriod())
	if err != nil {
		t.Fatalf("repair economics: %v", err)
	}
	if cost != 80 || profit != 80 {
		t.Fatalf("half split expected, got cost=%v profit=%v", cost, profit)
	}
}

func TestRepairEconomicsUsesExplicitLabourAndParts(t *testing.T) {
	store := &fakeStore{
		tables:  map[string]bool{"repairs": true, "repair_accessories": true},
		columns: map[string]bool{"repairs.labour_cost": true},
		rows: map[string][]db.Row{
			"FROM repairs ": {
				{"id": int64(1), "repair_cost": float64(100), "labour_cost": float64(70)},
			},
			"FROM repair_accessories": {
				// qty 0 counts as 1
				{"quantity": float64(0), "sale_price": float64(50), "product_cost": float64(30)},
				{"quantity": float64(2), "sale_price": float64(10), "product_cost": float64(4)},
			},
		},
	}
	repo := NewRepository(store)

	cost, profit, err := repo.RepairEconomics(context.Background(), repoPeriod())
	if err != nil {
		t.Fatalf("repair economics: %v", err)
	}
	// workmanship: cost 100-70=30, profit 70
	// parts: cost 30*1 + 4*2 = 38, profit (50-30)*1 + (10-4)*2 = 32
	if cost != 68 {
		t.Fatalf("cost = %v, want 68", cost)
	}
	if profit != 102 {
		t.Fatalf("profit = %v, want 102", profit)
	}
}

func TestSwapProfitFromLinksRequiresTable(t *testing.T) {
	store := &fakeStore{}
	repo := NewRepository(store)

	if _, err := repo.SwapProfitFromLinks(context.Background(), repoPeriod()); !errors.Is(err, ErrSchemaUnavailable) {
		t.Fatalf("expected ErrSchemaUnavailable, got %v", err)
	}
}

func TestSwapProfitFromLinksSumsPositiveFinalized(t *testing.T) {
	store := &fakeStore{
		tables:  map[string]bool{"swap_profit_links": true},
		scalars: map[string]float64{"FROM swap_profit_links": 230},
	}
	repo := NewRepository(store)

	got, err := repo.SwapProfitFromLinks(context.Background(), repoPeriod())
	if err != nil {
		t.Fatalf("swap profit: %v", err)
	}
	if got != 230 {
		t.Fatalf("profit = %v", got)
	}
	if !store.sawQueryContaining("l.profit > 0") {
		t.Fatal("losses must be excluded from the realized sum")
	}
}
