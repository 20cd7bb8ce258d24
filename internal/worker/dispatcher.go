package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/pkg/logger"
	"github.com/ignite/cadence-mailer/internal/render"
	"github.com/ignite/cadence-mailer/internal/service/recurring"
)

// DefaultSendConcurrency is how many messages of one occurrence are in
// flight at once.
const DefaultSendConcurrency = 8

// TemplateSource resolves a stored template for sending.
type TemplateSource interface {
	Resolve(ctx context.Context, userID, id string) (*domain.Template, error)
}

// ErrNoContent means a campaign has neither inline HTML nor a template.
var ErrNoContent = errors.New("campaign has no content to send")

// MailDispatcher renders an occurrence for each recipient and sends it
// through a Mailer at the campaign's send rate.
type MailDispatcher struct {
	store       recurring.OccurrenceStore
	templates   TemplateSource
	engine      *render.Engine
	mailer      Mailer
	metrics     *Metrics
	concurrency int
	now         func() time.Time
}

// NewMailDispatcher creates a dispatcher. templates may be nil when no
// campaign references a stored template.
func NewMailDispatcher(store recurring.OccurrenceStore, templates TemplateSource, engine *render.Engine, mailer Mailer, metrics *Metrics) *MailDispatcher {
	if engine == nil {
		engine = render.NewEngine()
	}
	return &MailDispatcher{
		store:       store,
		templates:   templates,
		engine:      engine,
		mailer:      mailer,
		metrics:     metrics,
		concurrency: DefaultSendConcurrency,
		now:         time.Now,
	}
}

// SetConcurrency bounds the sends in flight per occurrence.
func (d *MailDispatcher) SetConcurrency(n int) {
	if n > 0 {
		d.concurrency = n
	}
}

type content struct {
	htmlKey, html string
	textKey, text string
}

func (d *MailDispatcher) content(ctx context.Context, c *domain.RecurringCampaign) (content, error) {
	if c.HTMLTemplate != "" {
		stamp := c.UpdatedAt.UnixNano()
		return content{
			htmlKey: fmt.Sprintf("recurring:%s:%d:html", c.ID, stamp),
			html:    c.HTMLTemplate,
			textKey: fmt.Sprintf("recurring:%s:%d:text", c.ID, stamp),
			text:    c.TextTemplate,
		}, nil
	}
	if c.TemplateID == nil || *c.TemplateID == "" || d.templates == nil {
		return content{}, ErrNoContent
	}
	t, err := d.templates.Resolve(ctx, c.UserID, *c.TemplateID)
	if err != nil {
		return content{}, fmt.Errorf("resolve template: %w", err)
	}
	return content{
		htmlKey: fmt.Sprintf("template:%s:v%d", t.ID, t.Version),
		html:    t.HTMLContent,
		textKey: fmt.Sprintf("template:%s:v%d:text", t.ID, t.Version),
		text:    t.TextContent,
	}, nil
}

func (d *MailDispatcher) message(c *domain.RecurringCampaign, occ *domain.Occurrence, r domain.Recipient, body content) (Message, error) {
	vars := render.Vars(c, occ, r)
	subject, err := d.engine.Render("", occ.Subject, vars)
	if err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	html, err := d.engine.Render(body.htmlKey, body.html, vars)
	if err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	var text string
	switch {
	case body.text != "":
		if text, err = d.engine.Render(body.textKey, body.text, vars); err != nil {
			return Message{}, fmt.Errorf("render text: %w", err)
		}
	case c.AutoGenerateText:
		text = render.PlainText(html)
	}
	return Message{
		To:      r.Email,
		Subject: subject,
		HTML:    html,
		Text:    text,
		Tags: map[string]string{
			"campaign_id":   c.ID,
			"occurrence_id": occ.ID,
		},
	}, nil
}

// limiter converts an hourly send rate into a token bucket holding one
// minute of sends.
func limiter(perHour int) *rate.Limiter {
	if perHour <= 0 {
		perHour = domain.DefaultSendRateLimit
	}
	burst := max(1, perHour/60)
	return rate.NewLimiter(rate.Limit(float64(perHour)/3600), burst)
}

// Dispatch sends occ to its recipients and records the outcome. Per
// recipient failures are counted, not returned; the occurrence fails only
// when nothing could be sent.
func (d *MailDispatcher) Dispatch(ctx context.Context, occ *domain.Occurrence) error {
	c, err := d.store.GetCampaign(ctx, occ.RecurringCampaignID)
	if err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}

	body, err := d.content(ctx, c)
	if err != nil {
		return d.fail(ctx, occ, err)
	}
	recipients, err := d.store.Recipients(ctx, c, occ.ID)
	if err != nil {
		return d.fail(ctx, occ, err)
	}

	var (
		mu       sync.Mutex
		sent     int
		failed   int
		firstErr error
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			sent++
			return
		}
		failed++
		if firstErr == nil {
			firstErr = err
		}
	}

	lim := limiter(c.SendRateLimit)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, r := range recipients {
		if err := lim.Wait(gctx); err != nil {
			break
		}
		r := r
		g.Go(func() error {
			msg, err := d.message(c, occ, r, body)
			if err == nil {
				_, err = d.mailer.Send(gctx, msg)
			}
			d.count(err)
			record(err)
			if err != nil {
				logger.Warn("recipient send failed",
					"occurrence_id", occ.ID, "recipient", r.Email, "first_name", r.FirstName, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()

	sentAt := d.now().UTC()
	report := recurring.DeliveryReport{
		Status: domain.OccurrenceSent,
		SentAt: &sentAt,
		Counters: domain.DeliveryCounters{
			RecipientsCount: len(recipients),
			EmailsSent:      sent,
			EmailsDelivered: sent,
		},
	}
	if sent == 0 && (failed > 0 || ctx.Err() != nil) {
		report.Status = domain.OccurrenceFailed
		report.SentAt = nil
		switch {
		case firstErr != nil:
			report.ErrorMessage = firstErr.Error()
		default:
			report.ErrorMessage = ctx.Err().Error()
		}
	}
	if err := d.store.RecordDelivery(context.WithoutCancel(ctx), occ.ID, report); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}

	logger.Info("occurrence dispatched",
		"campaign_id", c.ID, "occurrence_id", occ.ID,
		"recipients", len(recipients), "sent", sent, "failed", failed)
	return nil
}

func (d *MailDispatcher) fail(ctx context.Context, occ *domain.Occurrence, cause error) error {
	report := recurring.DeliveryReport{Status: domain.OccurrenceFailed, ErrorMessage: cause.Error()}
	if err := d.store.RecordDelivery(context.WithoutCancel(ctx), occ.ID, report); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return cause
}

func (d *MailDispatcher) count(err error) {
	if d.metrics == nil {
		return
	}
	if err != nil {
		d.metrics.EmailsSent.WithLabelValues("failed").Inc()
		return
	}
	d.metrics.EmailsSent.WithLabelValues("sent").Inc()
}
