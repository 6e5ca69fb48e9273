package shared

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for report date parameters.
const DateLayout = "2006-01-02"

// defaultRangeDays is the report window applied when no dates are supplied.
const defaultRangeDays = 30

// Period scopes every reporting query: one company, one inclusive date range.
type Period struct {
	CompanyID int64
	From      time.Time // calendar date, UTC midnight
	To        time.Time // calendar date, UTC midnight
}

// Bounds expands the inclusive calendar dates to timestamp bounds for
// comparison against timestamped rows: [from 00:00:00, to 23:59:59].
func (p Period) Bounds() (time.Time, time.Time) {
	start := time.Date(p.From.Year(), p.From.Month(), p.From.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(p.To.Year(), p.To.Month(), p.To.Day(), 23, 59, 59, 0, time.UTC)
	return start, end
}

// FromString returns the lower bound in wire format.
func (p Period) FromString() string { return p.From.Format(DateLayout) }

// ToString returns the upper bound in wire format.
func (p Period) ToString() string { return p.To.Format(DateLayout) }

// ResolvePeriod builds the reporting period from optional wire-format dates.
// Missing dates default to the last 30 days through today. A zero company id
// is the pipeline's only fatal input error.
func ResolvePeriod(companyID int64, fromStr, toStr string, now time.Time) (Period, error) {
	if companyID <= 0 {
		return Period{}, ErrCompanyRequired
	}
	now = now.UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -defaultRangeDays)

	if toStr != "" {
		parsed, err := time.ParseInLocation(DateLayout, toStr, time.UTC)
		if err != nil {
			return Period{}, fmt.Errorf("invalid date_to %q: %w", toStr, err)
		}
		to = parsed
	}
	if fromStr != "" {
		parsed, err := time.ParseInLocation(DateLayout, fromStr, time.UTC)
		if err != nil {
			return Period{}, fmt.Errorf("invalid date_from %q: %w", fromStr, err)
		}
		from = parsed
	}
	if from.After(to) {
		return Period{}, fmt.Errorf("date_from %s after date_to %s", from.Format(DateLayout), to.Format(DateLayout))
	}
	return Period{CompanyID: companyID, From: from, To: to}, nil
}
