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

	"github.com/ignite/cadence-mailer/internal/api"
	"github.com/ignite/cadence-mailer/internal/config"
	"github.com/ignite/cadence-mailer/internal/pkg/logger"
	"github.com/ignite/cadence-mailer/internal/platform"
	"github.com/ignite/cadence-mailer/internal/render"
	"github.com/ignite/cadence-mailer/internal/repository/postgres"
	"github.com/ignite/cadence-mailer/internal/schedule"
	"github.com/ignite/cadence-mailer/internal/service/apikey"
	"github.com/ignite/cadence-mailer/internal/service/recurring"
	"github.com/ignite/cadence-mailer/internal/service/template"
	"github.com/ignite/cadence-mailer/internal/settings"
)

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func main() {
	log.Println("Starting cadence API server...")

	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if lvl, ok := logger.ParseLevel(cfg.Log.Level); ok {
		logger.SetLevel(lvl)
	} else {
		log.Printf("Warning: unknown log level %q, using info", cfg.Log.Level)
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
	var settingsStore *settings.Store
	if redisClient != nil {
		defer redisClient.Close()
		settingsStore = settings.NewStore(redisClient)
	} else {
		log.Println("Settings routes disabled: Redis is required for the settings store")
	}

	engine := render.NewEngine()
	calc := schedule.NewCalculator(schedule.NewStaticHolidays(holidays...))
	handlers := api.NewHandlers(
		recurring.NewService(postgres.NewRecurringRepo(db), calc),
		template.NewService(postgres.NewTemplateRepo(db), engine),
		settingsStore,
		apikey.NewService(postgres.NewAPIKeyRepo(db)),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewDBStatsCollector(db, "cadence"))

	router := api.SetupRoutes(handlers, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Health:         api.NewHealthChecker(db, redisClient),
		Metrics:        api.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
