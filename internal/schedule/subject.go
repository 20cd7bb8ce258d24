package schedule

import (
	"strconv"
	"strings"
	"time"
)

// RenderSubject substitutes occurrence variables into a subject line.
// at should already be in the campaign's timezone.
//
//	{sequence}, {sequence_number}  occurrence number
//	{date}                         YYYY-MM-DD
//	{month}, {year}                "January", "2025"
//	{week_number}, {day_name}      ISO week, "Monday"
func RenderSubject(subject string, sequence int, at time.Time) string {
	if !strings.Contains(subject, "{") {
		return subject
	}
	_, week := at.ISOWeek()
	seq := strconv.Itoa(sequence)
	return strings.NewReplacer(
		"{sequence_number}", seq,
		"{sequence}", seq,
		"{date}", at.Format("2006-01-02"),
		"{month}", at.Month().String(),
		"{year}", strconv.Itoa(at.Year()),
		"{week_number}", strconv.Itoa(week),
		"{day_name}", at.Weekday().String(),
	).Replace(subject)
}
