package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/cadence-mailer/internal/domain"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, msg Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[msg.To] {
		return "", errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return "msg-" + msg.To, nil
}

func (m *fakeMailer) byRecipient(to string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.sent {
		if msg.To == to {
			return msg, true
		}
	}
	return Message{}, false
}

type fakeTemplates struct{ t *domain.Template }

func (f fakeTemplates) Resolve(_ context.Context, _, id string) (*domain.Template, error) {
	if f.t == nil || f.t.ID != id {
		return nil, errors.New("template not found")
	}
	return f.t, nil
}

func dispatchFixture() (*fakeStore, *domain.Occurrence) {
	c := dailyCampaign("rc-1", at(6, 9, 0))
	c.HTMLTemplate = "<p>Hi {{ first_name }}, welcome to {{ brand }}</p>"
	c.AutoGenerateText = true
	c.SendRateLimit = 3600
	c.PersonalizationFields = map[string]string{"brand": "Acme"}

	store := newFakeStore(c)
	store.recipients = []domain.Recipient{
		{ContactID: "c1", Email: "ann@example.com", FirstName: "Ann"},
		{ContactID: "c2", Email: "bad@example.com", FirstName: "Bob"},
		{ContactID: "c3", Email: "cy@example.com", FirstName: "Cy"},
	}
	occ := &domain.Occurrence{
		ID:                  "occ-1",
		RecurringCampaignID: "rc-1",
		SequenceNumber:      1,
		Subject:             "Hello {{ first_name }}",
		ScheduledAt:         at(6, 9, 0),
		Status:              domain.OccurrencePending,
	}
	return store, occ
}

func TestDispatch_SendsAndReports(t *testing.T) {
	store, occ := dispatchFixture()
	mailer := &fakeMailer{fail: map[string]bool{"bad@example.com": true}}
	d := NewMailDispatcher(store, nil, nil, mailer, nil)

	require.NoError(t, d.Dispatch(context.Background(), occ))

	msg, ok := mailer.byRecipient("ann@example.com")
	require.True(t, ok)
	assert.Equal(t, "Hello Ann", msg.Subject)
	assert.Equal(t, "<p>Hi Ann, welcome to Acme</p>", msg.HTML)
	assert.Equal(t, "Hi Ann, welcome to Acme", msg.Text)
	assert.Equal(t, "occ-1", msg.Tags["occurrence_id"])

	report := store.reports["occ-1"]
	assert.Equal(t, domain.OccurrenceSent, report.Status)
	assert.Equal(t, 3, report.Counters.RecipientsCount)
	assert.Equal(t, 2, report.Counters.EmailsSent)
	assert.NotNil(t, report.SentAt)
}

func TestDispatch_AllFailedMarksOccurrenceFailed(t *testing.T) {
	store, occ := dispatchFixture()
	store.recipients = store.recipients[1:2]
	mailer := &fakeMailer{fail: map[string]bool{"bad@example.com": true}}
	d := NewMailDispatcher(store, nil, nil, mailer, nil)

	require.NoError(t, d.Dispatch(context.Background(), occ))

	report := store.reports["occ-1"]
	assert.Equal(t, domain.OccurrenceFailed, report.Status)
	assert.Contains(t, report.ErrorMessage, "mailbox unavailable")
	assert.Nil(t, report.SentAt)
}

func TestDispatch_UsesStoredTemplate(t *testing.T) {
	store, occ := dispatchFixture()
	c := store.campaigns["rc-1"]
	c.HTMLTemplate = ""
	tplID := "tpl-1"
	c.TemplateID = &tplID
	store.recipients = store.recipients[:1]
	templates := fakeTemplates{t: &domain.Template{
		ID: "tpl-1", Version: 2,
		HTMLContent: "<h1>{{ campaign_name }}</h1>",
		TextContent: "{{ campaign_name }} for {{ first_name }}",
	}}
	mailer := &fakeMailer{}
	d := NewMailDispatcher(store, templates, nil, mailer, nil)

	require.NoError(t, d.Dispatch(context.Background(), occ))

	msg, ok := mailer.byRecipient("ann@example.com")
	require.True(t, ok)
	assert.Equal(t, "<h1>Daily digest</h1>", msg.HTML)
	assert.Equal(t, "Daily digest for Ann", msg.Text)
}

func TestDispatch_NoContent(t *testing.T) {
	store, occ := dispatchFixture()
	store.campaigns["rc-1"].HTMLTemplate = ""
	d := NewMailDispatcher(store, nil, nil, &fakeMailer{}, nil)

	err := d.Dispatch(context.Background(), occ)
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Equal(t, domain.OccurrenceFailed, store.reports["occ-1"].Status)
}

func TestLimiterBurst(t *testing.T) {
	assert.Equal(t, 16, limiter(1000).Burst())
	assert.Equal(t, 1, limiter(30).Burst())
	assert.Equal(t, domain.DefaultSendRateLimit/60, limiter(0).Burst())
}

type fakeSES struct{ in *sesv2.SendEmailInput }

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESMailer_Send(t *testing.T) {
	api := &fakeSES{}
	m := newSESMailerWithClient(api, SESConfig{FromEmail: "news@acme.test", FromName: "Acme", ReplyTo: "help@acme.test"})

	id, err := m.Send(context.Background(), Message{
		To:      "ann@example.com",
		Subject: "Hello",
		HTML:    "<p>Hi</p>",
		Text:    "Hi",
		Tags:    map[string]string{"occurrence_id": "occ-1", "campaign_id": "rc-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ses-1", id)

	in := api.in
	assert.Equal(t, "Acme <news@acme.test>", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"ann@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, []string{"help@acme.test"}, in.ReplyToAddresses)
	assert.Equal(t, "Hi", aws.ToString(in.Content.Simple.Body.Text.Data))
	require.Len(t, in.EmailTags, 2)
	assert.Equal(t, "campaign_id", aws.ToString(in.EmailTags[0].Name))
}
