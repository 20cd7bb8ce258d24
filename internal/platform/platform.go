// Package platform opens the shared PostgreSQL and Redis connections used
// by the binaries.
package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/cadence-mailer/internal/config"
)

// ErrNoDatabase is returned when no database URL is configured.
var ErrNoDatabase = errors.New("database url not configured")

// OpenPostgres opens a pool with cfg's limits and pings it.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, ErrNoDatabase
	}
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Printf("Connected to database: ...@%s/...", hostOf(cfg.URL))
	return db, nil
}

// OpenRedis returns nil when Redis is disabled or unreachable; callers
// then fall back to PostgreSQL advisory locks.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		log.Println("Redis not configured, using PG advisory locks for distributed locking")
		return nil
	}

	var client *redis.Client
	target := cfg.Addr
	if cfg.URL != "" {
		target = cfg.URL
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			log.Printf("Warning: invalid REDIS_URL (%v), treating it as an address", err)
			opts = &redis.Options{Addr: cfg.URL}
		}
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed (%s): %v, falling back to PG advisory locks", target, err)
		client.Close()
		return nil
	}
	log.Printf("Redis connected: %s", target)
	return client
}

// hostOf returns the host portion of a DSN without credentials.
func hostOf(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}
