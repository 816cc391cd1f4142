package billing

import (
	"time"
)

// QuotaSnapshot is the derived view the quota gate produces: the shop's
// monthly allowance against its conversions so far this calendar month.
// It is computed on demand and never stored.
type QuotaSnapshot struct {
	Tier        PlanTier
	Allowance   int64
	Used        int64
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// WithinLimit reports whether another conversion may be recorded
func (q QuotaSnapshot) WithinLimit() bool {
	if q.Allowance == UnlimitedAllowance {
		return true
	}
	return q.Used < q.Allowance
}

// Remaining returns the conversions left this month,
// UnlimitedAllowance for uncapped tiers
func (q QuotaSnapshot) Remaining() int64 {
	if q.Allowance == UnlimitedAllowance {
		return UnlimitedAllowance
	}
	remaining := q.Allowance - q.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MonthWindow returns the half-open [start, end) interval of the calendar
// month containing now. The boundary is fixed to UTC so usage accounting
// does not wander with shop-local daylight saving changes.
func MonthWindow(now time.Time) (time.Time, time.Time) {
	utc := now.UTC()
	start := time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
