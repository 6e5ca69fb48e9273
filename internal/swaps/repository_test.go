package swaps

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fixpoint-erp/fixpoint-erp/internal/platform/db"
)

type fakeStore struct {
	tables  map[string]bool
	columns map[string]bool
	rows    map[string][]db.Row
	queries []string
	execs   []string
}

func (f *fakeStore) FetchScalar(_ context.Context, query string, _ ...any) (float64, error) {
	f.queries = append(f.queries, query)
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
	f.execs = append(f.execs, query)
	return nil
}

func (f *fakeStore) TableExists(_ context.Context, name string) (bool, error) {
	return f.tables[name], nil
}

func (f *fakeStore) ColumnExists(_ context.Context, table, column string) (bool, error) {
	return f.columns[table+"."+column], nil
}

func TestSwapRowsJoinsItemsOnlyWhenPresent(t *testing.T) {
	store := &fakeStore{
		tables: map[string]bool{"swap_items": true},
		rows: map[string][]db.Row{
			"FROM swaps": {
				{"id": int64(1), "company_id": int64(7), "total_value": float64(500), "resale_status": "sold"},
				{"id": int64(1), "company_id": int64(7), "total_value": float64(500), "resale_status": "in_stock"},
			},
		},
	}
	repo := NewRepository(store)

	records, err := repo.SwapRows(context.Background(), 7)
	if err != nil {
		t.Fatalf("swap rows: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("raw rows must not be deduplicated here, got %d", len(records))
	}
	if !strings.Contains(store.queries[len(store.queries)-1], "LEFT JOIN swap_items") {
		t.Fatal("expected the swap_items join")
	}
}

func TestSwapRowsWithoutItemsTable(t *testing.T) {
	store := &fakeStore{
		rows: map[string][]db.Row{
			"FROM swaps": {{"id": int64(1), "company_id": int64(7)}},
		},
	}
	repo := NewRepository(store)

	records, err := repo.SwapRows(context.Background(), 7)
	if err != nil {
		t.Fatalf("swap rows: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("rows = %d", len(records))
	}
	last := store.queries[len(store.queries)-1]
	if strings.Contains(last, "swap_items") || strings.Contains(last, "resale_status") {
		t.Fatalf("query must not reference absent schema: %s", last)
	}
	if records[0].ProfitStatus != ProfitEstimated {
		t.Fatalf("profit status must default to estimated, got %q", records[0].ProfitStatus)
	}
}

func TestProfitLinkNilWithoutTable(t *testing.T) {
	repo := NewRepository(&fakeStore{})

	link, err := repo.ProfitLink(context.Background(), 1)
	if err != nil {
		t.Fatalf("profit link: %v", err)
	}
	if link != nil {
		t.Fatalf("expected nil without the cache table, got %+v", link)
	}
}

func TestSaveProfitLinkUpserts(t *testing.T) {
	store := &fakeStore{tables: map[string]bool{"swap_profit_links": true}}
	repo := NewRepository(store)

	if err := repo.SaveProfitLink(context.Background(), ProfitLink{SwapID: 1, Profit: 130, Status: ProfitFinalized}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(store.execs) != 1 || !strings.Contains(store.execs[0], "ON CONFLICT (swap_id)") {
		t.Fatalf("expected an upsert, got %+v", store.execs)
	}
}

func TestSaveProfitLinkFailsWithoutTable(t *testing.T) {
	repo := NewRepository(&fakeStore{})
	if err := repo.SaveProfitLink(context.Background(), ProfitLink{SwapID: 1}); err == nil {
		t.Fatal("expected error without the cache table")
	}
}

func TestLegEconomicsUnresolvedWhenSaleMissing(t *testing.T) {
	repo := NewRepository(&fakeStore{})

	_, _, err := repo.LegEconomics(context.Background(), 42)
	if !errors.Is(err, ErrLegUnresolved) {
		t.Fatalf("expected ErrLegUnresolved, got %v", err)
	}
}

func TestLegEconomicsUnresolvedWhenNoProductMatches(t *testing.T) {
	store := &fakeStore{
		tables: map[string]bool{"sale_items": true},
		rows: map[string][]db.Row{
			"FROM sales":      {{"amount": float64(500)}},
			"FROM sale_items": {{"items": int64(1), "matched": int64(0), "cost": float64(0)}},
		},
	}
	repo := NewRepository(store)

	_, _, err := repo.LegEconomics(context.Background(), 42)
	if !errors.Is(err, ErrLegUnresolved) {
		t.Fatalf("expected ErrLegUnresolved, got %v", err)
	}
}

func TestLegEconomicsReturnsRevenueAndCost(t *testing.T) {
	store := &fakeStore{
		tables: map[string]bool{"sale_items": true, "products_new": true},
		rows: map[string][]db.Row{
			"FROM sales":      {{"amount": float64(500)}},
			"FROM sale_items": {{"items": int64(2), "matched": int64(2), "cost": float64(420)}},
		},
	}
	repo := NewRepository(store)

	revenue, cost, err := repo.LegEconomics(context.Background(), 42)
	if err != nil {
		t.Fatalf("leg economics: %v", err)
	}
	if revenue != 500 || cost != 420 {
		t.Fatalf("got revenue=%v cost=%v", revenue, cost)
	}
}

func TestPendingFinalizationMergesBeforeFiltering(t *testing.T) {
	store := &fakeStore{
		tables: map[string]bool{"swap_items": true},
		rows: map[string][]db.Row{
			"FROM swaps": {
				// First row of swap 1 lacks the customer leg; the duplicate
				// carries it. Only the merged record qualifies.
				{"id": int64(1), "company_id": int64(7), "company_item_sale_id": int64(10)},
				{"id": int64(1), "company_id": int64(7), "customer_item_sale_id": int64(11)},
				{"id": int64(2), "company_id": int64(7), "company_item_sale_id": int64(12)},
			},
		},
	}
	repo := NewRepository(store)

	pending, err := repo.PendingFinalization(context.Background(), 7)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != 1 {
		t.Fatalf("expected only merged swap 1, got %+v", pending)
	}
}

func TestPendingFinalizationSkipsFinalized(t *testing.T) {
	store := &fakeStore{
		rows: map[string][]db.Row{
			"FROM swaps": {
				{"id": int64(1), "company_id": int64(7), "company_item_sale_id": int64(10), "customer_item_sale_id": int64(11), "profit_status": "finalized"},
			},
		},
		columns: map[string]bool{"swaps.profit_status": true},
	}
	repo := NewRepository(store)

	pending, err := repo.PendingFinalization(context.Background(), 7)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("finalized swaps must be skipped, got %+v", pending)
	}
}

func TestPendingFinalizationSkipsFinalizedLinks(t *testing.T) {
	// The swaps row still says estimated, but the link table already holds
	// the finalized figure; nightly sweeps must not pick the swap up again.
	store := &fakeStore{
		tables: map[string]bool{"swap_profit_links": true},
		rows: map[string][]db.Row{
			"FROM swaps": {
				{"id": int64(1), "company_id": int64(7), "company_item_sale_id": int64(10), "customer_item_sale_id": int64(11)},
				{"id": int64(2), "company_id": int64(7), "company_item_sale_id": int64(12), "customer_item_sale_id": int64(13)},
			},
			"FROM swap_profit_links WHERE status": {{"swap_id": int64(1)}},
		},
	}
	repo := NewRepository(store)

	pending, err := repo.PendingFinalization(context.Background(), 7)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != 2 {
		t.Fatalf("expected only swap 2, got %+v", pending)
	}
}

func TestCompanyIDs(t *testing.T) {
	store := &fakeStore{
		rows: map[string][]db.Row{
			"DISTINCT company_id": {
				{"company_id": int64(3)},
				{"company_id": int64(7)},
			},
		},
	}
	repo := NewRepository(store)

	ids, err := repo.CompanyIDs(context.Background())
	if err != nil {
		t.Fatalf("company ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Fatalf("ids = %+v", ids)
	}
}
