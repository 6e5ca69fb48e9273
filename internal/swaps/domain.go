// Package swaps implements the trade-in ledger: deduplication of raw swap
// rows, lifecycle classification, and realized/estimated profit accounting.
package swaps

import (
	"errors"
	"time"
)

// ResaleStatus is the item-level resale state of a swap's stock. It is the
// newer source of truth and always overrides the legacy swap-level status.
type ResaleStatus string

const (
	ResaleNone    ResaleStatus = ""
	ResaleInStock ResaleStatus = "in_stock"
	ResaleSold    ResaleStatus = "sold"
)

// LegacyStatus is the older swap-level lifecycle field kept for data migrated
// from deployments that predate item-level resale tracking.
type LegacyStatus string

const (
	StatusPending   LegacyStatus = "pending"
	StatusCompleted LegacyStatus = "completed"
	StatusResold    LegacyStatus = "resold"
)

// ProfitStatus distinguishes provisional estimates from finalized figures.
type ProfitStatus string

const (
	ProfitEstimated ProfitStatus = "estimated"
	ProfitFinalized ProfitStatus = "finalized"
)

// Lifecycle is the derived classification every swap resolves to.
type Lifecycle string

const (
	LifecyclePending   Lifecycle = "pending"
	LifecycleCompleted Lifecycle = "completed"
	LifecycleResold    Lifecycle = "resold"
)

// Record is one swap after dedup: a customer traded a device plus/minus cash
// for a shop device. The two legs (company item, customer item) each become
// an ordinary sale once resold.
type Record struct {
	ID                 int64
	CompanyID          int64
	TotalValue         float64
	ResaleStatus       ResaleStatus
	Status             LegacyStatus
	CompanyItemSaleID  *int64
	CustomerItemSaleID *int64
	ProfitEstimate     *float64
	FinalProfit        *float64
	ProfitStatus       ProfitStatus
	CreatedAt          time.Time
}

// BothLegsSold reports whether both leg sales exist, the precondition for
// realized profit resolution.
func (r Record) BothLegsSold() bool {
	return r.CompanyItemSaleID != nil && r.CustomerItemSaleID != nil
}

// ProfitLink is the memoized realized-profit record for a swap whose two
// legs have both been resold. It is the only mutable state the reporting
// core owns: append/update only, never deleted.
type ProfitLink struct {
	SwapID    int64
	Profit    float64
	Status    ProfitStatus
	UpdatedAt time.Time
}

// Summary is the one-pass aggregate over a company's swap ledger.
type Summary struct {
	TotalSwaps      int
	Pending         int
	Completed       int
	Resold          int
	TotalValue      float64
	RealizedProfit  float64 // positive realized profits only
	RealizedLoss    float64 // absolute value of negative realized profits
	EstimatedProfit float64 // unrealized estimates, never mixed into realized
	InStockItems    int
	InStockValue    float64
}

// ErrLegUnresolved indicates a leg sale or its matching product is missing.
var ErrLegUnresolved = errors.New("swaps: leg sale unresolved")
