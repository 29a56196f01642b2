package domain

import (
	"sort"
	"time"
)

// UserScore is the full per-user scoring state for the current month plus
// the carried-over activity tracking fields.
type UserScore struct {
	UserID string

	// Points accumulated this month, per category, capped at the
	// category's monthly maximum.
	Points map[Category]float64

	// Timestamps of every awarded interaction this month, per category.
	// Used for daily-limit checks and the daily cohort analysis.
	Timestamps map[Category][]time.Time

	// OneTimePoints totals the one-time bonuses granted this month;
	// OneTimeEvents records which bonus IDs were already granted. Both
	// clear at month reset along with the category totals.
	OneTimePoints float64
	OneTimeEvents []OneTimeEvent

	// LastResetDate is the first day of the month the monthly fields
	// currently describe.
	LastResetDate time.Time

	LastActiveDate            time.Time
	ConsecutiveActivityDays   int
	HistoricalEngagementScore float64
}

// NewUserScore returns an empty score sheet for the given user, reset to
// the month containing now.
func NewUserScore(userID string, now time.Time) *UserScore {
	s := &UserScore{
		UserID:     userID,
		Points:     make(map[Category]float64),
		Timestamps: make(map[Category][]time.Time),
	}
	s.LastResetDate = MonthStart(now)
	return s
}

// MonthStart returns midnight UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NeedsReset reports whether the monthly fields belong to an earlier month
// than now.
func (s *UserScore) NeedsReset(now time.Time) bool {
	return s.LastResetDate.Before(MonthStart(now))
}

// ResetMonth zeroes the category totals and the one-time fields and stamps
// the new month. Timestamp histories and the activity streak survive.
func (s *UserScore) ResetMonth(now time.Time) {
	s.Points = make(map[Category]float64)
	s.OneTimePoints = 0
	s.OneTimeEvents = nil
	s.LastResetDate = MonthStart(now)
}

// CountSince returns how many interactions in the category occurred at or
// after the cutoff.
func (s *UserScore) CountSince(c Category, cutoff time.Time) int {
	n := 0
	for _, ts := range s.Timestamps[c] {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// CountOn returns how many interactions in the category fall on the given
// UTC calendar day.
func (s *UserScore) CountOn(c Category, day time.Time) int {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	n := 0
	for _, ts := range s.Timestamps[c] {
		ts = ts.UTC()
		if !ts.Before(start) && ts.Before(end) {
			n++
		}
	}
	return n
}

// HasOneTimeEvent reports whether the bonus was already granted.
func (s *UserScore) HasOneTimeEvent(e OneTimeEvent) bool {
	for _, got := range s.OneTimeEvents {
		if got == e {
			return true
		}
	}
	return false
}

// TotalMonthlyPoints sums the capped per-category points.
func (s *UserScore) TotalMonthlyPoints() float64 {
	var sum float64
	for _, c := range Categories() {
		sum += s.Points[c]
	}
	return sum
}

// Clone returns a deep copy. The repository layer hands clones to callers
// so concurrent readers never share map storage.
func (s *UserScore) Clone() *UserScore {
	cp := *s
	cp.Points = make(map[Category]float64, len(s.Points))
	for k, v := range s.Points {
		cp.Points[k] = v
	}
	cp.Timestamps = make(map[Category][]time.Time, len(s.Timestamps))
	for k, v := range s.Timestamps {
		cp.Timestamps[k] = append([]time.Time(nil), v...)
	}
	cp.OneTimeEvents = append([]OneTimeEvent(nil), s.OneTimeEvents...)
	return &cp
}

// SortTimestamps orders every category's timestamp list ascending. The
// repository calls this after loading so limit checks can rely on order.
func (s *UserScore) SortTimestamps() {
	for _, v := range s.Timestamps {
		sort.Slice(v, func(i, j int) bool { return v[i].Before(v[j]) })
	}
}
