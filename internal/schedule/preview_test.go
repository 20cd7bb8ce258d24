package schedule

import (
	"testing"
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview_WeeklyMondayWednesday(t *testing.T) {
	calc := NewCalculator(nil)
	rule := domain.ScheduleRule{
		Frequency: domain.FrequencyWeekly,
		Weekdays:  []domain.Weekday{domain.Monday, domain.Wednesday},
		SendTime:  "09:00",
	}

	res := calc.Preview(rule, utc(2025, time.January, 1, 0, 0), nil, intPtr(5), utc(2024, time.December, 31, 0, 0))

	want := []time.Time{
		utc(2025, time.January, 1, 9, 0),
		utc(2025, time.January, 6, 9, 0),
		utc(2025, time.January, 8, 9, 0),
		utc(2025, time.January, 13, 9, 0),
		utc(2025, time.January, 15, 9, 0),
	}
	assert.Equal(t, want, res.Dates)
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.TotalOccurrences)
	assert.Equal(t, 5, *res.TotalOccurrences)
	require.NotNil(t, res.EstimatedCompletion)
	assert.Equal(t, utc(2025, time.January, 15, 9, 0), *res.EstimatedCompletion)
}

func TestPreview_CapsAtTwenty(t *testing.T) {
	calc := NewCalculator(nil)
	rule := domain.ScheduleRule{Frequency: domain.FrequencyDaily, SendTime: "09:00"}

	res := calc.Preview(rule, utc(2025, time.January, 1, 0, 0), nil, nil, testNow)

	assert.Len(t, res.Dates, MaxPreviewDates)
	assert.Nil(t, res.TotalOccurrences)
	assert.Nil(t, res.EstimatedCompletion)
}

func TestPreview_StopsAtEndDate(t *testing.T) {
	calc := NewCalculator(nil)
	rule := domain.ScheduleRule{Frequency: domain.FrequencyDaily, SendTime: "09:00"}
	end := utc(2025, time.January, 3, 23, 59)

	res := calc.Preview(rule, utc(2025, time.January, 1, 0, 0), &end, nil, testNow)

	assert.Equal(t, []time.Time{
		utc(2025, time.January, 1, 9, 0),
		utc(2025, time.January, 2, 9, 0),
		utc(2025, time.January, 3, 9, 0),
	}, res.Dates)
}

func TestPreview_DailySkipWeekendsWarns(t *testing.T) {
	calc := NewCalculator(nil)
	rule := domain.ScheduleRule{Frequency: domain.FrequencyDaily, SendTime: "09:00", SkipWeekends: true}

	res := calc.Preview(rule, utc(2025, time.January, 3, 0, 0), nil, intPtr(3), testNow)

	// Friday, then Monday and Tuesday.
	assert.Equal(t, []time.Time{
		utc(2025, time.January, 3, 9, 0),
		utc(2025, time.January, 6, 9, 0),
		utc(2025, time.January, 7, 9, 0),
	}, res.Dates)
	assert.Contains(t, res.Warnings, "Daily frequency with weekend skipping will only send on weekdays")
}

func TestPreview_NoDatesWarns(t *testing.T) {
	calc := NewCalculator(nil)
	rule := domain.ScheduleRule{
		Frequency:    domain.FrequencyWeekly,
		Weekdays:     []domain.Weekday{domain.Saturday},
		SendTime:     "09:00",
		SkipWeekends: true,
	}

	res := calc.Preview(rule, utc(2025, time.January, 1, 0, 0), nil, nil, testNow)

	assert.Empty(t, res.Dates)
	assert.Contains(t, res.Warnings, WarnNoDates)
}

func TestPreview_HorizonStops(t *testing.T) {
	calc := NewCalculator(nil)
	rule := domain.ScheduleRule{Frequency: domain.FrequencyYearly, SendTime: "09:00"}

	res := calc.Preview(rule, testNow.AddDate(45, 0, 0), nil, nil, testNow)

	assert.NotEmpty(t, res.Dates)
	assert.Less(t, len(res.Dates), MaxPreviewDates)
	for _, d := range res.Dates {
		assert.False(t, d.After(testNow.AddDate(HorizonYears, 0, 0)))
	}
}

func TestRenderSubject(t *testing.T) {
	at := utc(2025, time.January, 6, 9, 0)
	got := RenderSubject("Issue #{sequence} - {month} {year} ({date}, week {week_number}, {day_name}) {sequence_number}", 3, at)
	assert.Equal(t, "Issue #3 - January 2025 (2025-01-06, week 2, Monday) 3", got)

	assert.Equal(t, "Plain subject", RenderSubject("Plain subject", 1, at))
}
