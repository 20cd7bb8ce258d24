package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/pkg/distlock"
	"github.com/ignite/cadence-mailer/internal/pkg/logger"
	"github.com/ignite/cadence-mailer/internal/schedule"
	"github.com/ignite/cadence-mailer/internal/service/recurring"
)

const (
	// DefaultTickSpec runs the scheduler every minute.
	DefaultTickSpec = "@every 1m"

	// DefaultBatchSize caps how many due campaigns one tick handles.
	DefaultBatchSize = 10
)

// Dispatcher delivers a fired occurrence to its recipients and reports the
// outcome through RecordDelivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, occ *domain.Occurrence) error
}

// OccurrenceScheduler turns due recurring campaigns into occurrences. Each
// campaign is fired under a distributed lock and a row lock, so concurrent
// workers produce at most one occurrence per due instant.
type OccurrenceScheduler struct {
	store      recurring.OccurrenceStore
	locker     *distlock.Locker
	calc       *schedule.Calculator
	dispatcher Dispatcher
	metrics    *Metrics
	batchSize  int
	tickSpec   string
	now        func() time.Time

	// Stats
	ticks   int64
	fired   int64
	skipped int64
	errors  int64

	// Control
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	sends   sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// SchedulerOption customizes an OccurrenceScheduler.
type SchedulerOption func(*OccurrenceScheduler)

// WithBatchSize sets the per-tick campaign limit.
func WithBatchSize(n int) SchedulerOption {
	return func(s *OccurrenceScheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithTickSpec sets the cron spec that drives Tick.
func WithTickSpec(spec string) SchedulerOption {
	return func(s *OccurrenceScheduler) {
		if spec != "" {
			s.tickSpec = spec
		}
	}
}

// WithDispatcher hands fired occurrences to d. Without one, occurrences
// stay pending for an external sender.
func WithDispatcher(d Dispatcher) SchedulerOption {
	return func(s *OccurrenceScheduler) { s.dispatcher = d }
}

// WithMetrics records scheduler activity in m.
func WithMetrics(m *Metrics) SchedulerOption {
	return func(s *OccurrenceScheduler) { s.metrics = m }
}

// WithSchedulerClock overrides the time source used by cron-driven ticks.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *OccurrenceScheduler) { s.now = now }
}

// NewOccurrenceScheduler creates a scheduler over store. A nil calc uses a
// calculator without holidays.
func NewOccurrenceScheduler(store recurring.OccurrenceStore, locker *distlock.Locker, calc *schedule.Calculator, opts ...SchedulerOption) *OccurrenceScheduler {
	if calc == nil {
		calc = schedule.NewCalculator(nil)
	}
	s := &OccurrenceScheduler{
		store:     store,
		locker:    locker,
		calc:      calc,
		batchSize: DefaultBatchSize,
		tickSpec:  DefaultTickSpec,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Tick fires every campaign due at now, up to the batch size. A failure on
// one campaign is logged and counted; the rest of the batch still runs.
// It returns the number of occurrences recorded.
func (s *OccurrenceScheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	atomic.AddInt64(&s.ticks, 1)
	if s.metrics != nil {
		s.metrics.Ticks.Inc()
		defer func() { s.metrics.TickDuration.Observe(time.Since(start).Seconds()) }()
	}

	ids, err := s.store.DueCampaigns(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("select due campaigns: %w", err)
	}

	fired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		occ, err := s.fireOne(ctx, id, now)
		if err != nil {
			atomic.AddInt64(&s.errors, 1)
			if s.metrics != nil {
				s.metrics.CampaignErrors.Inc()
			}
			logger.Error("recurring campaign fire failed", "campaign_id", id, "error", err.Error())
			continue
		}
		if occ == nil {
			continue
		}
		fired++
		if occ.Status == domain.OccurrenceSkipped {
			atomic.AddInt64(&s.skipped, 1)
			continue
		}
		atomic.AddInt64(&s.fired, 1)
		s.dispatch(occ)
	}
	return fired, nil
}

func (s *OccurrenceScheduler) fireOne(ctx context.Context, id string, now time.Time) (*domain.Occurrence, error) {
	var (
		occ      *domain.Occurrence
		decision recurring.FirePlan
	)
	plan := s.Plan(now)
	acquired, err := distlock.WithLock(ctx, s.locker.For("recurring:"+id), func(ctx context.Context) error {
		var ferr error
		occ, ferr = s.store.FireOccurrence(ctx, id, now, func(c *domain.RecurringCampaign, seq int) (recurring.FirePlan, error) {
			p, err := plan(c, seq)
			decision = p
			return p, err
		})
		return ferr
	})
	if errors.Is(err, recurring.ErrNotDue) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !acquired {
		if s.metrics != nil {
			s.metrics.LockContended.Inc()
		}
		return nil, nil
	}

	if s.metrics != nil {
		if occ != nil {
			s.metrics.OccurrencesFired.WithLabelValues(string(occ.Status)).Inc()
		}
		if decision.Complete {
			s.metrics.CampaignsComplete.Inc()
		}
	}
	if decision.Complete {
		logger.Info("recurring campaign completed", "campaign_id", id)
	}
	return occ, nil
}

// Plan returns the firing decision used by Tick. The due instant becomes a
// pending occurrence, or a skipped one when it no longer qualifies under
// the rule's skip settings. The next pointer advances to the first
// qualifying instant after now, so missed ticks are not backfilled.
func (s *OccurrenceScheduler) Plan(now time.Time) recurring.PlanFunc {
	return func(c *domain.RecurringCampaign, seq int) (recurring.FirePlan, error) {
		if c.NextSendAt == nil {
			return recurring.FirePlan{}, recurring.ErrNotDue
		}
		due := *c.NextSendAt
		rule := c.Schedule

		if c.EndDate != nil && due.After(*c.EndDate) {
			return recurring.FirePlan{Complete: true}, nil
		}
		if c.MaxOccurrences != nil && c.TotalScheduled >= *c.MaxOccurrences {
			return recurring.FirePlan{Complete: true}, nil
		}

		occ := &domain.Occurrence{
			Subject:     schedule.RenderSubject(c.Subject, seq, due.In(rule.Location())),
			ScheduledAt: due,
			Status:      domain.OccurrencePending,
		}
		scheduled := c.TotalScheduled
		if s.calc.Qualifies(rule, due) {
			scheduled++
		} else {
			occ.Status = domain.OccurrenceSkipped
		}

		next, ok := s.calc.NextQualifying(rule, due, now)
		for ok && !next.After(now) {
			next, ok = s.calc.NextQualifying(rule, next, now)
		}

		p := recurring.FirePlan{Occurrence: occ}
		switch {
		case !ok:
			logger.Info("recurring campaign reached scheduling horizon",
				"campaign_id", c.ID, "error", schedule.ErrSchedulingOverflow.Error())
			p.Complete = true
		case c.MaxOccurrences != nil && scheduled >= *c.MaxOccurrences:
			p.Complete = true
		case c.EndDate != nil && next.After(*c.EndDate):
			p.Complete = true
		default:
			p.NextSendAt = &next
		}
		return p, nil
	}
}

func (s *OccurrenceScheduler) dispatch(occ *domain.Occurrence) {
	if s.dispatcher == nil {
		return
	}
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	s.sends.Add(1)
	go func() {
		defer s.sends.Done()
		if err := s.dispatcher.Dispatch(ctx, occ); err != nil {
			logger.Error("occurrence dispatch failed",
				"campaign_id", occ.RecurringCampaignID, "occurrence_id", occ.ID, "error", err.Error())
		}
	}()
}

// Wait blocks until in-flight dispatches finish.
func (s *OccurrenceScheduler) Wait() { s.sends.Wait() }

// Start schedules Tick on the configured cron spec. Overlapping ticks are
// skipped rather than queued.
func (s *OccurrenceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("occurrence scheduler already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(s.tickSpec, s.runTick); err != nil {
		s.cancel()
		return fmt.Errorf("invalid tick spec %q: %w", s.tickSpec, err)
	}
	s.cron = c
	s.running = true
	c.Start()

	log.Printf("[OccurrenceScheduler] Starting with tick spec %q, batch size %d", s.tickSpec, s.batchSize)
	return nil
}

func (s *OccurrenceScheduler) runTick() {
	n, err := s.Tick(s.ctx, s.now().UTC())
	if err != nil {
		log.Printf("[OccurrenceScheduler] Tick failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[OccurrenceScheduler] Fired %d occurrences", n)
	}
}

// Stop halts the cron driver, cancels in-flight dispatches and waits for
// them to record what they sent.
func (s *OccurrenceScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Printf("[OccurrenceScheduler] Stopping...")
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
	s.sends.Wait()
	log.Printf("[OccurrenceScheduler] Stopped. Ticks: %d, fired: %d, skipped: %d, errors: %d",
		atomic.LoadInt64(&s.ticks), atomic.LoadInt64(&s.fired),
		atomic.LoadInt64(&s.skipped), atomic.LoadInt64(&s.errors))
}

// SchedulerStats is a point-in-time snapshot of scheduler counters.
type SchedulerStats struct {
	Ticks   int64 `json:"ticks"`
	Fired   int64 `json:"fired"`
	Skipped int64 `json:"skipped"`
	Errors  int64 `json:"errors"`
}

// Stats returns the scheduler counters.
func (s *OccurrenceScheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Ticks:   atomic.LoadInt64(&s.ticks),
		Fired:   atomic.LoadInt64(&s.fired),
		Skipped: atomic.LoadInt64(&s.skipped),
		Errors:  atomic.LoadInt64(&s.errors),
	}
}
