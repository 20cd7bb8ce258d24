package recurring

import (
	"context"
	"math"
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/schedule"
)

// trendWindow is how many recent occurrences the analytics trend covers.
const trendWindow = 30

// Preview evaluates a schedule without storing anything.
func (s *Service) Preview(_ context.Context, in PreviewInput) (*schedule.PreviewResult, error) {
	verr := &schedule.ValidationError{}
	checkStruct(verr, in)
	rule, err := schedule.Normalize(in.Schedule)
	verr.Merge(err)
	checkWindow(verr, in.StartDate, in.EndDate)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	res := s.calc.Preview(rule, in.StartDate, in.EndDate, in.MaxOccurrences, s.now())
	return &res, nil
}

// Totals is the lifetime delivery summary of a campaign.
type Totals struct {
	Recipients   int `json:"recipients"`
	Sent         int `json:"sent"`
	Delivered    int `json:"delivered"`
	Bounced      int `json:"bounced"`
	Opened       int `json:"opened"`
	Clicked      int `json:"clicked"`
	Unsubscribed int `json:"unsubscribed"`
}

// Rates are percentages rounded to two decimals.
type Rates struct {
	Delivery float64 `json:"delivery_rate"`
	Open     float64 `json:"open_rate"`
	Click    float64 `json:"click_rate"`
}

// TrendPoint is one occurrence in the analytics trend.
type TrendPoint struct {
	Date       time.Time `json:"date"`
	Sequence   int       `json:"sequence"`
	Recipients int       `json:"recipients"`
	Sent       int       `json:"sent"`
	Delivered  int       `json:"delivered"`
	Opened     int       `json:"opened"`
	Clicked    int       `json:"clicked"`
	OpenRate   float64   `json:"open_rate"`
	ClickRate  float64   `json:"click_rate"`
}

// Analytics aggregates a campaign's occurrences.
type Analytics struct {
	CampaignID       string                 `json:"campaign_id"`
	Status           domain.RecurringStatus `json:"status"`
	NextSendAt       *time.Time             `json:"next_send_at"`
	TotalOccurrences int                    `json:"total_occurrences"`
	Completed        int                    `json:"completed"`
	Failed           int                    `json:"failed"`
	Skipped          int                    `json:"skipped"`
	Pending          int                    `json:"pending"`
	Totals           Totals                 `json:"totals"`
	Rates            Rates                  `json:"rates"`
	Trend            []TrendPoint           `json:"trend"`
}

// Analytics returns delivery totals, rates and a trend over the last
// occurrences, oldest first.
func (s *Service) Analytics(ctx context.Context, userID, id string) (*Analytics, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	tot, err := s.repo.OccurrenceTotals(ctx, id)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentOccurrences(ctx, id, trendWindow)
	if err != nil {
		return nil, err
	}

	k := tot.Counters
	a := &Analytics{
		CampaignID:       c.ID,
		Status:           c.Status,
		NextSendAt:       c.NextSendAt,
		TotalOccurrences: tot.Total,
		Completed:        tot.Sent,
		Failed:           tot.Failed,
		Skipped:          tot.Skipped,
		Pending:          tot.Pending,
		Totals: Totals{
			Recipients:   k.RecipientsCount,
			Sent:         k.EmailsSent,
			Delivered:    k.EmailsDelivered,
			Bounced:      k.EmailsBounced,
			Opened:       k.EmailsOpened,
			Clicked:      k.EmailsClicked,
			Unsubscribed: k.EmailsUnsubscribed,
		},
		Rates: Rates{
			Delivery: percent(k.EmailsDelivered, k.EmailsSent),
			Open:     percent(k.EmailsOpened, max(k.EmailsDelivered, 1)),
			Click:    percent(k.EmailsClicked, max(k.EmailsDelivered, 1)),
		},
		Trend: make([]TrendPoint, 0, len(recent)),
	}

	for _, o := range recent {
		a.Trend = append(a.Trend, TrendPoint{
			Date:       o.ScheduledAt,
			Sequence:   o.SequenceNumber,
			Recipients: o.RecipientsCount,
			Sent:       o.EmailsSent,
			Delivered:  o.EmailsDelivered,
			Opened:     o.EmailsOpened,
			Clicked:    o.EmailsClicked,
			OpenRate:   percent(o.EmailsOpened, max(o.EmailsDelivered, 1)),
			ClickRate:  percent(o.EmailsClicked, max(o.EmailsDelivered, 1)),
		})
	}
	return a, nil
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*10000) / 100
}

// FrequencyOption describes one selectable frequency.
type FrequencyOption struct {
	Value       domain.Frequency `json:"value"`
	Label       string           `json:"label"`
	Description string           `json:"description"`
}

// WeekOption describes one selectable monthly_week value.
type WeekOption struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// FrequencyCatalog lists everything a schedule form needs.
type FrequencyCatalog struct {
	Frequencies  []FrequencyOption `json:"frequencies"`
	Weekdays     []domain.Weekday  `json:"weekdays"`
	MonthlyWeeks []WeekOption      `json:"monthly_weeks"`
	Timezone     string            `json:"default_timezone"`
	SendTime     string            `json:"default_send_time"`
}

var frequencyCatalog = FrequencyCatalog{
	Frequencies: []FrequencyOption{
		{domain.FrequencyDaily, "Daily", "Send every day at the specified time"},
		{domain.FrequencyWeekly, "Weekly", "Send once per week on selected days"},
		{domain.FrequencyBiweekly, "Bi-weekly", "Send every two weeks"},
		{domain.FrequencyMonthly, "Monthly", "Send once per month"},
		{domain.FrequencyQuarterly, "Quarterly", "Send every 3 months"},
		{domain.FrequencyYearly, "Yearly", "Send once per year"},
		{domain.FrequencyCustom, "Custom Interval", "Send at custom day intervals"},
	},
	Weekdays: domain.Weekdays,
	MonthlyWeeks: []WeekOption{
		{1, "First"}, {2, "Second"}, {3, "Third"}, {4, "Fourth"}, {domain.LastWeekOfMonth, "Last"},
	},
	Timezone: "UTC",
	SendTime: "09:00",
}

// FrequencyOptions returns the static schedule catalogue.
func (s *Service) FrequencyOptions() FrequencyCatalog {
	return frequencyCatalog
}
