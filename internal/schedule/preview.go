package schedule

import (
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
)

// MaxPreviewDates caps how many instants a preview returns.
const MaxPreviewDates = 20

// Preview warning texts.
const (
	WarnNoDates = "No send dates found with current configuration"
)

// PreviewResult is the outcome of enumerating a rule's upcoming sends.
type PreviewResult struct {
	Dates               []time.Time `json:"preview_dates"`
	Warnings            []string    `json:"warnings"`
	TotalOccurrences    *int        `json:"total_occurrences,omitempty"`
	EstimatedCompletion *time.Time  `json:"estimated_completion,omitempty"`
}

// Preview enumerates up to MaxPreviewDates qualifying instants from start.
// It stops early at maxOccurrences, after end, when Next reports the
// horizon, or when a candidate fails to advance.
func (c *Calculator) Preview(rule domain.ScheduleRule, start time.Time, end *time.Time, maxOccurrences *int, now time.Time) PreviewResult {
	res := PreviewResult{Dates: []time.Time{}}

	cur, ok := c.First(rule, start, now)
	for scanned := 0; ok && len(res.Dates) < MaxPreviewDates && scanned < maxScan; scanned++ {
		if maxOccurrences != nil && len(res.Dates) >= *maxOccurrences {
			break
		}
		if end != nil && cur.After(*end) {
			break
		}
		if c.Qualifies(rule, cur) {
			res.Dates = append(res.Dates, cur)
		}
		next, nok := c.Next(rule, cur, now)
		if !nok || !next.After(cur) {
			break
		}
		cur = next
	}

	if len(res.Dates) == 0 {
		res.Warnings = append(res.Warnings, WarnNoDates)
	}
	res.Warnings = append(res.Warnings, Warnings(rule)...)

	if maxOccurrences != nil {
		n := *maxOccurrences
		res.TotalOccurrences = &n
		if last, ok := c.NthOccurrence(rule, start, n, now); ok && (end == nil || !last.After(*end)) {
			res.EstimatedCompletion = &last
		}
	}
	return res
}
