package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/cadence-mailer/internal/config"
	"github.com/ignite/cadence-mailer/internal/pkg/distlock"
	"github.com/ignite/cadence-mailer/internal/pkg/logger"
	"github.com/ignite/cadence-mailer/internal/platform"
	"github.com/ignite/cadence-mailer/internal/render"
	"github.com/ignite/cadence-mailer/internal/repository/postgres"
	"github.com/ignite/cadence-mailer/internal/schedule"
	"github.com/ignite/cadence-mailer/internal/service/template"
	"github.com/ignite/cadence-mailer/internal/worker"
)

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func main() {
	log.Println("Starting cadence occurrence worker...")

	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if lvl, ok := logger.ParseLevel(cfg.Log.Level); ok {
		logger.SetLevel(lvl)
	}
	logger.SetRedactPII(cfg.Log.Redact())

	holidays, err := cfg.Scheduler.HolidayDates()
	if err != nil {
		log.Fatalf("Invalid scheduler config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := platform.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Database unavailable: %v", err)
	}
	defer db.Close()

	redisClient := platform.OpenRedis(ctx, cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewDBStatsCollector(db, "cadence"))
	metrics := worker.NewMetrics(reg)

	store := postgres.NewRecurringRepo(db)
	locker := distlock.NewLocker(redisClient, db, cfg.Scheduler.LockTTL())
	calc := schedule.NewCalculator(schedule.NewStaticHolidays(holidays...))

	opts := []worker.SchedulerOption{
		worker.WithTickSpec(cfg.Scheduler.TickSpec),
		worker.WithBatchSize(cfg.Scheduler.BatchSize),
		worker.WithMetrics(metrics),
	}

	if cfg.Scheduler.DispatchEnabled && cfg.SES.Enabled {
		mailer, err := worker.NewSESMailer(ctx, worker.SESConfig{
			Region:    cfg.SES.Region,
			AccessKey: cfg.SES.AccessKey,
			SecretKey: cfg.SES.SecretKey,
			FromEmail: cfg.SES.FromEmail,
			FromName:  cfg.SES.FromName,
			ReplyTo:   cfg.SES.ReplyTo,
		})
		if err != nil {
			log.Fatalf("Failed to initialize SES: %v", err)
		}
		engine := render.NewEngine()
		templates := template.NewService(postgres.NewTemplateRepo(db), engine)
		dispatcher := worker.NewMailDispatcher(store, templates, engine, mailer, metrics)
		dispatcher.SetConcurrency(cfg.Scheduler.SendConcurrency)
		opts = append(opts, worker.WithDispatcher(dispatcher))
		log.Printf("SES dispatch enabled (region=%s, concurrency=%d)", cfg.SES.Region, cfg.Scheduler.SendConcurrency)
	} else {
		log.Println("Dispatch disabled: occurrences are recorded but not sent")
	}

	scheduler := worker.NewOccurrenceScheduler(store, locker, calc, opts...)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{
		Addr:              cfg.Scheduler.MetricsListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("Metrics listening on %s", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done
	log.Println("Shutting down worker...")

	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}
	log.Println("Worker stopped")
}
