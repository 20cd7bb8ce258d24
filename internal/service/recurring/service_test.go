package recurring_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/schedule"
	"github.com/ignite/cadence-mailer/internal/service/recurring"
)

// memRepo is an in-memory recurring campaign repository for unit testing.
type memRepo struct {
	mu          sync.Mutex
	campaigns   map[string]*domain.RecurringCampaign
	occurrences map[string][]domain.Occurrence // keyed by campaign id
	contacts    int
	templates   map[string]bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		campaigns:   make(map[string]*domain.RecurringCampaign),
		occurrences: make(map[string][]domain.Occurrence),
		contacts:    10,
		templates:   make(map[string]bool),
	}
}

func (m *memRepo) Get(_ context.Context, userID, id string) (*domain.RecurringCampaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return nil, recurring.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, userID string, f recurring.ListFilter) ([]domain.RecurringCampaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RecurringCampaign
	for _, c := range m.campaigns {
		if c.UserID != userID {
			continue
		}
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, c *domain.RecurringCampaign) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.campaigns[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memRepo) Update(_ context.Context, userID, id string, u recurring.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return recurring.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Subject != nil {
		c.Subject = *u.Subject
	}
	if u.Schedule != nil {
		c.Schedule = *u.Schedule
	}
	if u.StartDate != nil {
		c.StartDate = *u.StartDate
	}
	if u.NextSendAt != nil {
		next := *u.NextSendAt
		c.NextSendAt = &next
	} else if u.ClearNextSendAt {
		c.NextSendAt = nil
	}
	return nil
}

func (m *memRepo) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return recurring.ErrNotFound
	}
	delete(m.campaigns, id)
	delete(m.occurrences, id)
	return nil
}

func (m *memRepo) ChangeStatus(_ context.Context, userID, id string, ch recurring.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return recurring.ErrNotFound
	}
	allowed := false
	for _, s := range ch.From {
		if c.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return recurring.ErrInvalidTransition
	}
	c.Status = ch.To
	if ch.NextSendAt != nil {
		c.NextSendAt = ch.NextSendAt
	}
	if ch.ClearNextSend {
		c.NextSendAt = nil
	}
	if ch.PausedAt != nil {
		c.PausedAt = ch.PausedAt
	}
	if ch.ClearPausedAt {
		c.PausedAt = nil
	}
	if ch.CancelledAt != nil {
		c.CancelledAt = ch.CancelledAt
	}
	if ch.SkipPending {
		occ := m.occurrences[id]
		for i := range occ {
			if occ[i].Status == domain.OccurrencePending && occ[i].ScheduledAt.After(*ch.CancelledAt) {
				occ[i].Status = domain.OccurrenceSkipped
			}
		}
	}
	return nil
}

func (m *memRepo) ListOccurrences(_ context.Context, campaignID string, limit, offset int) ([]domain.Occurrence, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	occ := append([]domain.Occurrence(nil), m.occurrences[campaignID]...)
	sort.Slice(occ, func(i, j int) bool { return occ[i].SequenceNumber > occ[j].SequenceNumber })
	total := len(occ)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return occ[offset:end], total, nil
}

func (m *memRepo) OccurrenceTotals(_ context.Context, campaignID string) (recurring.OccurrenceTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t recurring.OccurrenceTotals
	for _, o := range m.occurrences[campaignID] {
		t.Total++
		switch o.Status {
		case domain.OccurrenceSent:
			t.Sent++
		case domain.OccurrenceFailed:
			t.Failed++
		case domain.OccurrenceSkipped:
			t.Skipped++
		case domain.OccurrencePending:
			t.Pending++
		}
		t.Counters.RecipientsCount += o.RecipientsCount
		t.Counters.EmailsSent += o.EmailsSent
		t.Counters.EmailsDelivered += o.EmailsDelivered
		t.Counters.EmailsOpened += o.EmailsOpened
		t.Counters.EmailsClicked += o.EmailsClicked
	}
	return t, nil
}

func (m *memRepo) RecentOccurrences(_ context.Context, campaignID string, n int) ([]domain.Occurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	occ := append([]domain.Occurrence(nil), m.occurrences[campaignID]...)
	sort.Slice(occ, func(i, j int) bool { return occ[i].ScheduledAt.Before(occ[j].ScheduledAt) })
	if len(occ) > n {
		occ = occ[len(occ)-n:]
	}
	return occ, nil
}

func (m *memRepo) RecordDelivery(_ context.Context, occurrenceID string, d recurring.DeliveryReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, occ := range m.occurrences {
		for i := range occ {
			if occ[i].ID == occurrenceID {
				m.occurrences[id][i].Status = d.Status
				m.occurrences[id][i].DeliveryCounters = d.Counters
				return nil
			}
		}
	}
	return recurring.ErrNotFound
}

func (m *memRepo) CountActiveContacts(_ context.Context, _ string) (int, error) {
	return m.contacts, nil
}

func (m *memRepo) TemplateExists(_ context.Context, _ string, templateID string) (bool, error) {
	return m.templates[templateID], nil
}

func (m *memRepo) seed(c domain.RecurringCampaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = &c
}

const testUser = "user-1"

var testNow = time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC)

func newService(repo *memRepo) *recurring.Service {
	return recurring.NewService(repo, schedule.NewCalculator(nil), recurring.WithClock(func() time.Time { return testNow }))
}

func weeklyCampaign(id string, status domain.RecurringStatus) domain.RecurringCampaign {
	return domain.RecurringCampaign{
		ID:      id,
		UserID:  testUser,
		Name:    "Weekly digest",
		Subject: "Digest #{sequence}",
		Schedule: domain.ScheduleRule{
			Frequency: domain.FrequencyWeekly,
			Weekdays:  []domain.Weekday{domain.Monday, domain.Wednesday},
			SendTime:  "09:00",
			Timezone:  "UTC",
		},
		StartDate:    testNow,
		Status:       status,
		HTMLTemplate: "<p>Hello {{ first_name }}</p>",
	}
}

func validCreateInput() recurring.CreateInput {
	return recurring.CreateInput{
		Name:    "Weekly digest",
		Subject: "Digest #{sequence}",
		Schedule: domain.ScheduleRule{
			Frequency: domain.FrequencyWeekly,
			Weekdays:  []domain.Weekday{"Wednesday", "monday"},
			SendTime:  "9:00",
		},
		StartDate:    testNow,
		HTMLTemplate: "<p>Hi</p>",
	}
}

func validationFields(t *testing.T, err error) *schedule.ValidationError {
	t.Helper()
	var verr *schedule.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *schedule.ValidationError, got %v", err)
	}
	return verr
}

func TestCreate(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)

	c, err := svc.Create(context.Background(), testUser, validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != domain.RecurringDraft {
		t.Fatalf("expected draft, got %s", c.Status)
	}
	if c.ID == "" {
		t.Fatal("expected generated id")
	}
	if c.SendRateLimit != domain.DefaultSendRateLimit {
		t.Fatalf("expected default send rate limit, got %d", c.SendRateLimit)
	}
	if c.Schedule.SendTime != "09:00" {
		t.Fatalf("expected normalized send time, got %q", c.Schedule.SendTime)
	}
	if got := c.Schedule.Weekdays; len(got) != 2 || got[0] != domain.Monday || got[1] != domain.Wednesday {
		t.Fatalf("expected normalized weekdays, got %v", got)
	}
	if c.NextSendAt != nil {
		t.Fatal("draft must not have next_send_at")
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newService(newMemRepo())

	in := validCreateInput()
	in.Name = ""
	in.Schedule.Weekdays = nil
	in.Schedule.SendTime = "25:00"
	in.SendRateLimit = 50

	_, err := svc.Create(context.Background(), testUser, in)
	verr := validationFields(t, err)
	for _, f := range []string{"name", "weekdays", "send_time", "send_rate_limit"} {
		if !verr.Has(f) {
			t.Errorf("expected violation for %s, got %v", f, verr.Errors)
		}
	}
}

func TestCreateRejectsEndBeforeStart(t *testing.T) {
	svc := newService(newMemRepo())
	in := validCreateInput()
	end := testNow.Add(-24 * time.Hour)
	in.EndDate = &end

	_, err := svc.Create(context.Background(), testUser, in)
	if verr := validationFields(t, err); !verr.Has("end_date") {
		t.Fatalf("expected end_date violation, got %v", verr.Errors)
	}
}

func TestGetNotFound(t *testing.T) {
	svc := newService(newMemRepo())
	_, err := svc.Get(context.Background(), testUser, "nonexistent")
	if !errors.Is(err, recurring.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActivate(t *testing.T) {
	repo := newMemRepo()
	repo.seed(weeklyCampaign("c1", domain.RecurringDraft))
	svc := newService(repo)

	c, err := svc.Activate(context.Background(), testUser, "c1")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if c.Status != domain.RecurringActive {
		t.Fatalf("expected active, got %s", c.Status)
	}
	// 2025-01-01 is a Wednesday.
	want := time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)
	if c.NextSendAt == nil || !c.NextSendAt.Equal(want) {
		t.Fatalf("expected next_send_at %v, got %v", want, c.NextSendAt)
	}
}

func TestActivateWeeklyWithoutWeekdays(t *testing.T) {
	repo := newMemRepo()
	c := weeklyCampaign("c1", domain.RecurringDraft)
	c.Schedule.Weekdays = nil
	repo.seed(c)
	svc := newService(repo)

	_, err := svc.Activate(context.Background(), testUser, "c1")
	if verr := validationFields(t, err); !verr.Has("weekdays") {
		t.Fatalf("expected weekdays violation, got %v", verr.Errors)
	}

	got, _ := repo.Get(context.Background(), testUser, "c1")
	if got.Status != domain.RecurringDraft {
		t.Fatalf("status must stay draft, got %s", got.Status)
	}
}

func TestActivateCollectsAllErrors(t *testing.T) {
	repo := newMemRepo()
	repo.contacts = 0
	c := weeklyCampaign("c1", domain.RecurringDraft)
	c.HTMLTemplate = ""
	c.StartDate = testNow.Add(-48 * time.Hour)
	repo.seed(c)
	svc := newService(repo)

	_, err := svc.Activate(context.Background(), testUser, "c1")
	verr := validationFields(t, err)
	for _, f := range []string{"content", "recipients", "start_date"} {
		if !verr.Has(f) {
			t.Errorf("expected violation for %s, got %v", f, verr.Errors)
		}
	}
}

func TestActivateMissingTemplate(t *testing.T) {
	repo := newMemRepo()
	c := weeklyCampaign("c1", domain.RecurringDraft)
	c.HTMLTemplate = ""
	tid := "tpl-404"
	c.TemplateID = &tid
	repo.seed(c)
	svc := newService(repo)

	_, err := svc.Activate(context.Background(), testUser, "c1")
	if verr := validationFields(t, err); !verr.Has("template_id") {
		t.Fatalf("expected template_id violation, got %v", verr.Errors)
	}

	repo.templates[tid] = true
	if _, err := svc.Activate(context.Background(), testUser, "c1"); err != nil {
		t.Fatalf("activate with existing template: %v", err)
	}
}

func TestActivateMaxOccurrencesPastEndDate(t *testing.T) {
	repo := newMemRepo()
	c := weeklyCampaign("c1", domain.RecurringDraft)
	end := testNow.AddDate(0, 0, 7)
	maxOcc := 10
	c.EndDate = &end
	c.MaxOccurrences = &maxOcc
	repo.seed(c)
	svc := newService(repo)

	_, err := svc.Activate(context.Background(), testUser, "c1")
	if verr := validationFields(t, err); !verr.Has("max_occurrences") {
		t.Fatalf("expected max_occurrences violation, got %v", verr.Errors)
	}
}

func TestActivateBeyondHorizon(t *testing.T) {
	repo := newMemRepo()
	c := weeklyCampaign("c1", domain.RecurringDraft)
	c.StartDate = testNow.AddDate(schedule.HorizonYears+1, 0, 0)
	repo.seed(c)
	svc := newService(repo)

	_, err := svc.Activate(context.Background(), testUser, "c1")
	if verr := validationFields(t, err); !verr.Has("schedule") {
		t.Fatalf("expected schedule violation, got %v", verr.Errors)
	}
	if !errors.Is(err, schedule.ErrSchedulingOverflow) {
		t.Fatalf("expected ErrSchedulingOverflow, got %v", err)
	}
}

func TestPauseResumeKeepsNextSend(t *testing.T) {
	repo := newMemRepo()
	repo.seed(weeklyCampaign("c1", domain.RecurringDraft))
	svc := newService(repo)
	ctx := context.Background()

	active, err := svc.Activate(ctx, testUser, "c1")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	paused, err := svc.Pause(ctx, testUser, "c1")
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != domain.RecurringPaused || paused.PausedAt == nil {
		t.Fatalf("expected paused with paused_at, got %s %v", paused.Status, paused.PausedAt)
	}
	resumed, err := svc.Resume(ctx, testUser, "c1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != domain.RecurringActive {
		t.Fatalf("expected active, got %s", resumed.Status)
	}
	if !resumed.NextSendAt.Equal(*active.NextSendAt) {
		t.Fatalf("next_send_at changed across pause/resume: %v -> %v", active.NextSendAt, resumed.NextSendAt)
	}
	if resumed.PausedAt != nil {
		t.Fatal("paused_at should be cleared")
	}
}

func TestUpdateRestrictedWhileActive(t *testing.T) {
	repo := newMemRepo()
	next := time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)
	c := weeklyCampaign("c1", domain.RecurringActive)
	c.NextSendAt = &next
	repo.seed(c)
	svc := newService(repo)
	ctx := context.Background()

	rule := c.Schedule
	rule.SendTime = "10:30"
	_, err := svc.Update(ctx, testUser, "c1", recurring.UpdateInput{Schedule: &rule})

	var ste *recurring.StateTransitionError
	if !errors.As(err, &ste) {
		t.Fatalf("expected StateTransitionError, got %v", err)
	}
	if ste.Field != "send_time" || !errors.Is(err, recurring.ErrRestrictedField) {
		t.Fatalf("expected restricted send_time, got %+v", ste)
	}

	// Non-cadence fields stay editable.
	name := "Renamed"
	if _, err := svc.Update(ctx, testUser, "c1", recurring.UpdateInput{Name: &name}); err != nil {
		t.Fatalf("rename while active: %v", err)
	}

	if _, err := svc.Pause(ctx, testUser, "c1"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	updated, err := svc.Update(ctx, testUser, "c1", recurring.UpdateInput{Schedule: &rule})
	if err != nil {
		t.Fatalf("update while paused: %v", err)
	}
	if updated.Schedule.SendTime != "10:30" {
		t.Fatalf("expected 10:30, got %s", updated.Schedule.SendTime)
	}
	if updated.NextSendAt != nil {
		t.Fatal("schedule edit while paused should clear next_send_at")
	}

	resumed, err := svc.Resume(ctx, testUser, "c1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	want := time.Date(2025, time.January, 1, 10, 30, 0, 0, time.UTC)
	if !resumed.NextSendAt.Equal(want) {
		t.Fatalf("expected recomputed next_send_at %v, got %v", want, resumed.NextSendAt)
	}
}

func TestUpdateUnchangedScheduleWhileActive(t *testing.T) {
	repo := newMemRepo()
	c := weeklyCampaign("c1", domain.RecurringActive)
	repo.seed(c)
	svc := newService(repo)

	rule := c.Schedule
	rule.SendTime = "9:00"
	if _, err := svc.Update(context.Background(), testUser, "c1", recurring.UpdateInput{Schedule: &rule}); err != nil {
		t.Fatalf("equivalent schedule should be accepted: %v", err)
	}
}

func TestUpdateTimezoneWhileActiveMovesNextSend(t *testing.T) {
	repo := newMemRepo()
	next := time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)
	c := weeklyCampaign("c1", domain.RecurringActive)
	c.NextSendAt = &next
	repo.seed(c)
	svc := newService(repo)

	rule := c.Schedule
	rule.Timezone = "America/New_York"
	updated, err := svc.Update(context.Background(), testUser, "c1", recurring.UpdateInput{Schedule: &rule})
	if err != nil {
		t.Fatalf("timezone change while active: %v", err)
	}
	// Wednesday 09:00 in New York.
	want := time.Date(2025, time.January, 1, 14, 0, 0, 0, time.UTC)
	if updated.NextSendAt == nil || !updated.NextSendAt.Equal(want) {
		t.Fatalf("expected next_send_at %v, got %v", want, updated.NextSendAt)
	}
	if updated.Status != domain.RecurringActive {
		t.Fatalf("status changed to %s", updated.Status)
	}
}

func TestCancel(t *testing.T) {
	repo := newMemRepo()
	c := weeklyCampaign("c1", domain.RecurringActive)
	next := testNow.Add(time.Hour)
	c.NextSendAt = &next
	repo.seed(c)
	repo.occurrences["c1"] = []domain.Occurrence{
		{ID: "o1", RecurringCampaignID: "c1", SequenceNumber: 1, ScheduledAt: testNow.Add(-time.Hour), Status: domain.OccurrenceSent},
		{ID: "o2", RecurringCampaignID: "c1", SequenceNumber: 2, ScheduledAt: testNow.Add(time.Hour), Status: domain.OccurrencePending},
	}
	svc := newService(repo)

	got, err := svc.Cancel(context.Background(), testUser, "c1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.RecurringCancelled || got.NextSendAt != nil || got.CancelledAt == nil {
		t.Fatalf("unexpected cancelled state: %+v", got)
	}
	if repo.occurrences["c1"][0].Status != domain.OccurrenceSent {
		t.Fatal("sent occurrence must be untouched")
	}
	if repo.occurrences["c1"][1].Status != domain.OccurrenceSkipped {
		t.Fatalf("pending occurrence should be skipped, got %s", repo.occurrences["c1"][1].Status)
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name   string
		status domain.RecurringStatus
		op     func(*recurring.Service) error
	}{
		{"pause draft", domain.RecurringDraft, func(s *recurring.Service) error {
			_, err := s.Pause(context.Background(), testUser, "c1")
			return err
		}},
		{"resume active", domain.RecurringActive, func(s *recurring.Service) error {
			_, err := s.Resume(context.Background(), testUser, "c1")
			return err
		}},
		{"activate completed", domain.RecurringCompleted, func(s *recurring.Service) error {
			_, err := s.Activate(context.Background(), testUser, "c1")
			return err
		}},
		{"cancel cancelled", domain.RecurringCancelled, func(s *recurring.Service) error {
			_, err := s.Cancel(context.Background(), testUser, "c1")
			return err
		}},
		{"delete active", domain.RecurringActive, func(s *recurring.Service) error {
			return s.Delete(context.Background(), testUser, "c1")
		}},
		{"update completed", domain.RecurringCompleted, func(s *recurring.Service) error {
			name := "x"
			_, err := s.Update(context.Background(), testUser, "c1", recurring.UpdateInput{Name: &name})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			repo.seed(weeklyCampaign("c1", tt.status))
			err := tt.op(newService(repo))
			if !errors.Is(err, recurring.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestDeleteDraft(t *testing.T) {
	repo := newMemRepo()
	repo.seed(weeklyCampaign("c1", domain.RecurringDraft))
	svc := newService(repo)

	if err := svc.Delete(context.Background(), testUser, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), testUser, "c1"); !errors.Is(err, recurring.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAnalytics(t *testing.T) {
	repo := newMemRepo()
	repo.seed(weeklyCampaign("c1", domain.RecurringActive))
	base := time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)
	repo.occurrences["c1"] = []domain.Occurrence{
		{ID: "o2", SequenceNumber: 2, ScheduledAt: base.AddDate(0, 0, 2), Status: domain.OccurrenceSent,
			DeliveryCounters: domain.DeliveryCounters{RecipientsCount: 100, EmailsSent: 100, EmailsDelivered: 90, EmailsOpened: 30, EmailsClicked: 9}},
		{ID: "o1", SequenceNumber: 1, ScheduledAt: base, Status: domain.OccurrenceSent,
			DeliveryCounters: domain.DeliveryCounters{RecipientsCount: 100, EmailsSent: 100, EmailsDelivered: 100, EmailsOpened: 50, EmailsClicked: 10}},
		{ID: "o3", SequenceNumber: 3, ScheduledAt: base.AddDate(0, 0, 7), Status: domain.OccurrenceFailed},
	}
	svc := newService(repo)

	a, err := svc.Analytics(context.Background(), testUser, "c1")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if a.TotalOccurrences != 3 || a.Completed != 2 || a.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", a)
	}
	if a.Rates.Delivery != 95 {
		t.Fatalf("expected delivery rate 95, got %v", a.Rates.Delivery)
	}
	if a.Rates.Open != 42.11 {
		t.Fatalf("expected open rate 42.11, got %v", a.Rates.Open)
	}
	if a.Rates.Click != 10 {
		t.Fatalf("expected click rate 10, got %v", a.Rates.Click)
	}
	if len(a.Trend) != 3 || a.Trend[0].Sequence != 1 || a.Trend[2].Sequence != 3 {
		t.Fatalf("trend should be chronological, got %+v", a.Trend)
	}
	if a.Trend[0].OpenRate != 50 {
		t.Fatalf("expected first open rate 50, got %v", a.Trend[0].OpenRate)
	}
}

func TestPreview(t *testing.T) {
	svc := newService(newMemRepo())
	maxOcc := 3
	res, err := svc.Preview(context.Background(), recurring.PreviewInput{
		Schedule:       domain.ScheduleRule{Frequency: domain.FrequencyDaily, SendTime: "09:00"},
		StartDate:      testNow,
		MaxOccurrences: &maxOcc,
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(res.Dates) != 3 {
		t.Fatalf("expected 3 dates, got %d", len(res.Dates))
	}

	_, err = svc.Preview(context.Background(), recurring.PreviewInput{StartDate: testNow})
	if verr := validationFields(t, err); !verr.Has("frequency") {
		t.Fatalf("expected frequency violation, got %v", verr.Errors)
	}
}

func TestFrequencyOptions(t *testing.T) {
	opts := newService(newMemRepo()).FrequencyOptions()
	if len(opts.Frequencies) != len(domain.Frequencies) {
		t.Fatalf("expected %d frequencies, got %d", len(domain.Frequencies), len(opts.Frequencies))
	}
	if opts.Frequencies[6].Label != "Custom Interval" {
		t.Fatalf("unexpected custom label %q", opts.Frequencies[6].Label)
	}
	if len(opts.Weekdays) != 7 {
		t.Fatalf("expected 7 weekdays, got %d", len(opts.Weekdays))
	}
}

func TestRecordDeliveryRejectsUnknownStatus(t *testing.T) {
	svc := newService(newMemRepo())
	err := svc.RecordDelivery(context.Background(), "o1", recurring.DeliveryReport{Status: "bogus"})
	validationFields(t, err)
}
