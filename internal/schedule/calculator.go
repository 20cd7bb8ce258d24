package schedule

import (
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
)

const (
	// HorizonYears bounds how far ahead a send instant may be computed.
	HorizonYears = 50

	// maxScan caps candidate iterations when searching for a qualifying
	// instant (skip rules can reject many candidates in a row).
	maxScan = 1000
)

// Calculator computes send instants for schedule rules.
type Calculator struct {
	holidays HolidaySource
}

// NewCalculator returns a calculator using h for holiday skipping.
// A nil source never reports holidays.
func NewCalculator(h HolidaySource) *Calculator {
	if h == nil {
		h = NoHolidays{}
	}
	return &Calculator{holidays: h}
}

// Next returns the candidate instant that follows from. ok is false when
// the result would fall more than HorizonYears past now. The returned
// instant is always strictly later than from.
func (c *Calculator) Next(rule domain.ScheduleRule, from, now time.Time) (time.Time, bool) {
	loc := rule.Location()
	f := from.In(loc)
	hour, minute := sendClock(rule, f)

	var d time.Time
	switch rule.Frequency {
	case domain.FrequencyDaily:
		d = f.AddDate(0, 0, 1)
	case domain.FrequencyWeekly:
		d = nextWeekday(rule, f)
	case domain.FrequencyBiweekly:
		d = f.AddDate(0, 0, 14)
	case domain.FrequencyMonthly:
		d = nextMonthly(rule, f)
	case domain.FrequencyQuarterly:
		d = addMonths(f, 3, f.Day())
	case domain.FrequencyYearly:
		d = addMonths(f, 12, f.Day())
	case domain.FrequencyCustom:
		days := 1
		if rule.CustomIntervalDays != nil && *rule.CustomIntervalDays > 0 {
			days = *rule.CustomIntervalDays
		}
		d = f.AddDate(0, 0, days)
	default:
		return time.Time{}, false
	}

	next := atClock(d, hour, minute, loc)
	if !next.After(from) {
		// A DST transition can fold the wall clock back onto from.
		next = atClock(d.AddDate(0, 0, 1), hour, minute, loc)
	}
	if next.After(now.AddDate(HorizonYears, 0, 0)) {
		return time.Time{}, false
	}
	return next, true
}

// First returns the earliest candidate instant at or after start.
func (c *Calculator) First(rule domain.ScheduleRule, start, now time.Time) (time.Time, bool) {
	loc := rule.Location()
	s := start.In(loc)
	hour, minute := sendClock(rule, s)

	cand := atClock(s, hour, minute, loc)
	if cand.Before(start) {
		cand = atClock(s.AddDate(0, 0, 1), hour, minute, loc)
	}

	switch rule.Frequency {
	case domain.FrequencyWeekly:
		if len(rule.Weekdays) > 0 {
			for i := 0; i < 7 && !inWeekdays(rule, cand.Weekday()); i++ {
				cand = atClock(cand.AddDate(0, 0, 1), hour, minute, loc)
			}
		}
	case domain.FrequencyMonthly:
		if anchor, ok := monthlyAnchor(rule, cand.Year(), cand.Month(), loc); ok {
			a := atClock(anchor, hour, minute, loc)
			if a.Before(cand) {
				nm := time.Date(cand.Year(), cand.Month()+1, 1, 0, 0, 0, 0, loc)
				anchor, _ = monthlyAnchor(rule, nm.Year(), nm.Month(), loc)
				a = atClock(anchor, hour, minute, loc)
			}
			cand = a
		}
	}

	if cand.After(now.AddDate(HorizonYears, 0, 0)) {
		return time.Time{}, false
	}
	return cand, true
}

// Qualifies reports whether a send may happen at t: weekly rules require
// t's weekday to be in the set, skip_weekends rejects Saturday/Sunday and
// skip_holidays consults the holiday source.
func (c *Calculator) Qualifies(rule domain.ScheduleRule, t time.Time) bool {
	local := t.In(rule.Location())
	wd := local.Weekday()

	if rule.Frequency == domain.FrequencyWeekly && len(rule.Weekdays) > 0 && !inWeekdays(rule, wd) {
		return false
	}
	if rule.SkipWeekends && (wd == time.Saturday || wd == time.Sunday) {
		return false
	}
	if rule.SkipHolidays && c.holidays.IsHoliday(local) {
		return false
	}
	return true
}

// NextQualifying returns the first qualifying instant strictly after from.
func (c *Calculator) NextQualifying(rule domain.ScheduleRule, from, now time.Time) (time.Time, bool) {
	cur := from
	for i := 0; i < maxScan; i++ {
		next, ok := c.Next(rule, cur, now)
		if !ok || !next.After(cur) {
			return time.Time{}, false
		}
		if c.Qualifies(rule, next) {
			return next, true
		}
		cur = next
	}
	return time.Time{}, false
}

// FirstQualifying returns the first qualifying instant at or after start.
func (c *Calculator) FirstQualifying(rule domain.ScheduleRule, start, now time.Time) (time.Time, bool) {
	first, ok := c.First(rule, start, now)
	if !ok {
		return time.Time{}, false
	}
	if c.Qualifies(rule, first) {
		return first, true
	}
	return c.NextQualifying(rule, first, now)
}

// NthOccurrence returns the instant of the n-th qualifying send starting
// at start (n is 1-based).
func (c *Calculator) NthOccurrence(rule domain.ScheduleRule, start time.Time, n int, now time.Time) (time.Time, bool) {
	if n < 1 {
		return time.Time{}, false
	}
	cur, ok := c.FirstQualifying(rule, start, now)
	for i := 1; ok && i < n; i++ {
		cur, ok = c.NextQualifying(rule, cur, now)
	}
	return cur, ok
}

func sendClock(rule domain.ScheduleRule, fallback time.Time) (int, int) {
	h, m, err := ParseSendTime(rule.SendTime)
	if err != nil {
		return fallback.Hour(), fallback.Minute()
	}
	return h, m
}

func atClock(d time.Time, hour, minute int, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, hour, minute, 0, 0, loc)
}

func inWeekdays(rule domain.ScheduleRule, wd time.Weekday) bool {
	for _, w := range rule.Weekdays {
		if d, ok := w.Std(); ok && d == wd {
			return true
		}
	}
	return false
}

func nextWeekday(rule domain.ScheduleRule, f time.Time) time.Time {
	if len(rule.Weekdays) == 0 {
		return f.AddDate(0, 0, 7)
	}
	for i := 1; i <= 7; i++ {
		d := f.AddDate(0, 0, i)
		if inWeekdays(rule, d.Weekday()) {
			return d
		}
	}
	return f.AddDate(0, 0, 7)
}

func nextMonthly(rule domain.ScheduleRule, f time.Time) time.Time {
	nm := time.Date(f.Year(), f.Month()+1, 1, 0, 0, 0, 0, f.Location())
	if anchor, ok := monthlyAnchor(rule, nm.Year(), nm.Month(), f.Location()); ok {
		return anchor
	}
	return addMonths(f, 1, f.Day())
}

// monthlyAnchor resolves the rule's day within the given month.
func monthlyAnchor(rule domain.ScheduleRule, year int, month time.Month, loc *time.Location) (time.Time, bool) {
	if rule.MonthlyDay != nil {
		day := *rule.MonthlyDay
		if last := daysIn(year, month); day > last {
			day = last
		}
		return time.Date(year, month, day, 0, 0, 0, 0, loc), true
	}
	if rule.MonthlyWeek != nil && rule.MonthlyWeekday != nil {
		wd, ok := rule.MonthlyWeekday.Std()
		if !ok {
			return time.Time{}, false
		}
		return nthWeekday(year, month, *rule.MonthlyWeek, wd, loc), true
	}
	return time.Time{}, false
}

// addMonths moves t forward by n calendar months, placing it on anchorDay
// clamped to the target month's last day. Jan 31 + 1 month is Feb 28/29.
func addMonths(t time.Time, n, anchorDay int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	day := anchorDay
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), 0, 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// nthWeekday returns the week-th wd of the month; week 5 means the last one.
func nthWeekday(year int, month time.Month, week int, wd time.Weekday, loc *time.Location) time.Time {
	last := daysIn(year, month)
	if week < domain.LastWeekOfMonth {
		first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
		day := 1 + (int(wd)-int(first.Weekday())+7)%7 + (week-1)*7
		if day <= last {
			return time.Date(year, month, day, 0, 0, 0, 0, loc)
		}
	}
	end := time.Date(year, month, last, 0, 0, 0, 0, loc)
	return end.AddDate(0, 0, -((int(end.Weekday()) - int(wd) + 7) % 7))
}
