package schedule

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
)

var sendTimePattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9])?$`)

// Custom interval bounds in days.
const (
	MinCustomIntervalDays = 1
	MaxCustomIntervalDays = 365
)

// Validate checks a rule without modifying it.
func Validate(rule domain.ScheduleRule) error {
	_, err := Normalize(rule)
	return err
}

// Normalize validates rule and returns its canonical form: send_time as
// HH:MM, weekdays lowercased, deduplicated and Monday-first, empty
// timezone defaulted to UTC. On failure every violation is reported.
func Normalize(rule domain.ScheduleRule) (domain.ScheduleRule, error) {
	verr := &ValidationError{}
	out := rule

	switch {
	case rule.Frequency == "":
		verr.Add("frequency", CodeRequired, "frequency is required")
	case !rule.Frequency.Valid():
		verr.Add("frequency", CodeInvalid, fmt.Sprintf("unsupported frequency %q", rule.Frequency))
	}

	// custom interval
	if rule.Frequency == domain.FrequencyCustom {
		if rule.CustomIntervalDays == nil {
			verr.Add("custom_interval_days", CodeRequired, "custom_interval_days is required for custom frequency")
		} else if d := *rule.CustomIntervalDays; d < MinCustomIntervalDays || d > MaxCustomIntervalDays {
			verr.Add("custom_interval_days", CodeOutOfRange,
				fmt.Sprintf("custom_interval_days must be between %d and %d", MinCustomIntervalDays, MaxCustomIntervalDays))
		}
	} else if rule.CustomIntervalDays != nil {
		verr.Add("custom_interval_days", CodeForbidden, "custom_interval_days is only allowed with custom frequency")
	}

	// weekdays
	if rule.Frequency == domain.FrequencyWeekly {
		if len(rule.Weekdays) == 0 {
			verr.Add("weekdays", CodeRequired, "at least one weekday is required for weekly frequency")
		} else if days, bad := normalizeWeekdays(rule.Weekdays); len(bad) > 0 {
			verr.Add("weekdays", CodeInvalid, "unknown weekday(s): "+strings.Join(bad, ", "))
		} else {
			out.Weekdays = days
		}
	} else if len(rule.Weekdays) > 0 {
		verr.Add("weekdays", CodeForbidden, "weekdays are only allowed with weekly frequency")
	}

	validateMonthly(rule, verr)

	// send time
	if rule.SendTime == "" {
		verr.Add("send_time", CodeRequired, "send_time is required")
	} else if h, m, err := ParseSendTime(rule.SendTime); err != nil {
		verr.Add("send_time", CodeInvalid, "send_time must be HH:MM in 24-hour format")
	} else {
		out.SendTime = fmt.Sprintf("%02d:%02d", h, m)
	}

	// timezone
	if rule.Timezone == "" {
		out.Timezone = "UTC"
	} else if _, err := time.LoadLocation(rule.Timezone); err != nil {
		verr.Add("timezone", CodeInvalid, fmt.Sprintf("unknown timezone %q", rule.Timezone))
	}

	if err := verr.OrNil(); err != nil {
		return rule, err
	}
	return out, nil
}

func validateMonthly(rule domain.ScheduleRule, verr *ValidationError) {
	hasDay := rule.MonthlyDay != nil
	hasWeek := rule.MonthlyWeek != nil
	hasWeekday := rule.MonthlyWeekday != nil

	if rule.Frequency != domain.FrequencyMonthly {
		if hasDay {
			verr.Add("monthly_day", CodeForbidden, "monthly_day is only allowed with monthly frequency")
		}
		if hasWeek || hasWeekday {
			verr.Add("monthly_week", CodeForbidden, "monthly_week/monthly_weekday are only allowed with monthly frequency")
		}
		return
	}

	switch {
	case hasDay && (hasWeek || hasWeekday):
		verr.Add("monthly_day", CodeConflict, "use either monthly_day or monthly_week with monthly_weekday, not both")
	case !hasDay && !hasWeek && !hasWeekday:
		verr.Add("monthly_day", CodeRequired, "monthly frequency needs monthly_day or monthly_week with monthly_weekday")
	case hasWeek && !hasWeekday:
		verr.Add("monthly_weekday", CodeRequired, "monthly_weekday is required with monthly_week")
	case hasWeekday && !hasWeek:
		verr.Add("monthly_week", CodeRequired, "monthly_week is required with monthly_weekday")
	}

	if hasDay && (*rule.MonthlyDay < 1 || *rule.MonthlyDay > 31) {
		verr.Add("monthly_day", CodeOutOfRange, "monthly_day must be between 1 and 31")
	}
	if hasWeek && (*rule.MonthlyWeek < 1 || *rule.MonthlyWeek > domain.LastWeekOfMonth) {
		verr.Add("monthly_week", CodeOutOfRange, "monthly_week must be between 1 and 5 (5 = last)")
	}
	if hasWeekday {
		if _, ok := rule.MonthlyWeekday.Std(); !ok {
			verr.Add("monthly_weekday", CodeInvalid, fmt.Sprintf("unknown weekday %q", *rule.MonthlyWeekday))
		}
	}
}

// Warnings returns non-fatal remarks about a valid rule.
func Warnings(rule domain.ScheduleRule) []string {
	var out []string
	if rule.Frequency == domain.FrequencyMonthly && rule.MonthlyDay != nil && *rule.MonthlyDay > 28 {
		out = append(out, fmt.Sprintf("Months with fewer than %d days will send on their last day", *rule.MonthlyDay))
	}
	if rule.Frequency == domain.FrequencyDaily && rule.SkipWeekends {
		out = append(out, "Daily frequency with weekend skipping will only send on weekdays")
	}
	return out
}

// ParseSendTime parses "H:MM", "HH:MM" or "HH:MM:SS". Seconds are dropped.
func ParseSendTime(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if !sendTimePattern.MatchString(s) {
		return 0, 0, fmt.Errorf("invalid send time %q", s)
	}
	parts := strings.Split(s, ":")
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	return hour, minute, nil
}

func normalizeWeekdays(in []domain.Weekday) ([]domain.Weekday, []string) {
	seen := make(map[time.Weekday]bool, len(in))
	var bad []string
	for _, w := range in {
		d, ok := w.Std()
		if !ok {
			bad = append(bad, string(w))
			continue
		}
		seen[d] = true
	}
	out := make([]domain.Weekday, 0, len(seen))
	for d := range seen {
		out = append(out, domain.WeekdayOf(d))
	}
	sort.Slice(out, func(i, j int) bool { return mondayIndex(out[i]) < mondayIndex(out[j]) })
	return out, bad
}

func mondayIndex(w domain.Weekday) int {
	d, _ := w.Std()
	return (int(d) + 6) % 7
}
