package schedule

import (
	"sync"
	"time"
)

// HolidaySource decides whether a local calendar date is a holiday.
// No calendar data is bundled; deployments plug their own source in.
type HolidaySource interface {
	IsHoliday(date time.Time) bool
}

// NoHolidays never reports a holiday.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(time.Time) bool { return false }

// StaticHolidays is a fixed set of calendar dates, safe for concurrent use.
type StaticHolidays struct {
	mu    sync.RWMutex
	dates map[string]struct{}
}

// NewStaticHolidays builds a set from dates. Only the Y-M-D part is used.
func NewStaticHolidays(dates ...time.Time) *StaticHolidays {
	h := &StaticHolidays{dates: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		h.dates[d.Format("2006-01-02")] = struct{}{}
	}
	return h
}

// Add inserts a date.
func (h *StaticHolidays) Add(date time.Time) {
	h.mu.Lock()
	h.dates[date.Format("2006-01-02")] = struct{}{}
	h.mu.Unlock()
}

func (h *StaticHolidays) IsHoliday(date time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.dates[date.Format("2006-01-02")]
	return ok
}
