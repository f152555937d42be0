package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/sessions"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type settings struct {
	databaseURL    string
	redisURL       string
	kafkaBrokers   string
	demoSalonID    string
	seedDemo       bool
	sessionTTL     time.Duration
	rateLimit      int
	rateWindow     time.Duration
	bodyLimit      int64
	requestTimeout time.Duration
	corsOrigins    []string
	location       *time.Location
}

func loadSettings() (settings, error) {
	s := settings{
		databaseURL:  config.String("DATABASE_URL", ""),
		redisURL:     config.String("REDIS_URL", ""),
		kafkaBrokers: config.String("KAFKA_BROKERS", ""),
		demoSalonID:  config.String("DEMO_SALON_ID", "demo-salon"),
		corsOrigins:  httpx.SplitOrigins(config.String("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}
	var err error
	if s.seedDemo, err = config.Bool("SEED_DEMO_SALON", true); err != nil {
		return s, err
	}
	if s.sessionTTL, err = config.Duration("WIZARD_SESSION_TTL", sessions.DefaultTTL); err != nil {
		return s, err
	}
	if s.rateLimit, err = config.Int("RATE_LIMIT_PER_WINDOW", 120); err != nil {
		return s, err
	}
	if s.rateWindow, err = config.Duration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return s, err
	}
	limitKB, err := config.Int("BODY_LIMIT_KB", 64)
	if err != nil {
		return s, err
	}
	s.bodyLimit = int64(limitKB) << 10
	if s.requestTimeout, err = config.Duration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return s, err
	}
	tz := config.String("SALON_TIMEZONE", "UTC")
	if s.location, err = time.LoadLocation(tz); err != nil {
		return s, fmt.Errorf("SALON_TIMEZONE %q: %w", tz, err)
	}
	return s, nil
}

// dependencies are the backing services. Each one falls back to an in-process
// implementation when its connection setting is empty.
type dependencies struct {
	repo       booking.Repository
	catalog    catalog.Provider
	sessions   sessions.Store
	dispatcher notify.Dispatcher
	limiter    *httpx.RedisRateLimiter
	checks     []runtime.ReadyCheck
	storeName  string
	closers    []func()
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func wire(ctx context.Context, logger *slog.Logger, s settings) (*dependencies, error) {
	d := &dependencies{}
	if err := wireStorage(ctx, logger, s, d); err != nil {
		d.close()
		return nil, err
	}
	if err := wireRedis(ctx, logger, s, d); err != nil {
		d.close()
		return nil, err
	}
	wireKafka(logger, s, d)
	return d, nil
}

func wireStorage(ctx context.Context, logger *slog.Logger, s settings, d *dependencies) error {
	demo := catalog.NewStatic()
	catalog.DemoSalon(demo, s.demoSalonID)

	if s.databaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory appointments", "demo_salon", s.demoSalonID)
		d.repo = storage.NewMemoryRepository()
		d.catalog = demo
		d.storeName = "memory"
		return nil
	}

	pool, err := db.Open(ctx, s.databaseURL, db.PoolConfig{})
	if err != nil {
		return fmt.Errorf("db connection failed: %w", err)
	}
	d.closers = append(d.closers, pool.Close)
	if err := storage.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	catalogRepo := storage.NewCatalogRepository(pool)
	if s.seedDemo {
		if err := seedDemoSalon(ctx, catalogRepo, demo, s.demoSalonID); err != nil {
			return err
		}
	}
	d.repo = storage.NewAppointmentRepository(pool)
	d.catalog = catalogRepo
	d.storeName = "postgres"
	d.checks = append(d.checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	return nil
}

func seedDemoSalon(ctx context.Context, repo *storage.CatalogRepository, demo *catalog.Static, salonID string) error {
	services, err := demo.ListServices(ctx, salonID)
	if err != nil {
		return err
	}
	staff, err := demo.ListStaff(ctx, salonID)
	if err != nil {
		return err
	}
	if err := repo.UpsertSalon(ctx, salonID, "Demo Salon", services, staff); err != nil {
		return fmt.Errorf("seed demo salon: %w", err)
	}
	return nil
}

func wireRedis(ctx context.Context, logger *slog.Logger, s settings, d *dependencies) error {
	if s.redisURL == "" {
		logger.Warn("REDIS_URL not set; wizard sessions kept in memory and rate limiting disabled")
		d.sessions = sessions.NewMemoryStore(s.sessionTTL)
		return nil
	}
	opts, err := redis.ParseURL(s.redisURL)
	if err != nil {
		return fmt.Errorf("REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	d.closers = append(d.closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed at startup", "err", err)
	}
	d.sessions = sessions.NewRedisStore(rdb, s.sessionTTL, "booking:wizard")
	if s.rateLimit > 0 {
		d.limiter = httpx.NewRedisRateLimiter(rdb, s.rateLimit, s.rateWindow, "booking:ratelimit")
	}
	d.checks = append(d.checks, runtime.ReadyCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	return nil
}

func wireKafka(logger *slog.Logger, s settings, d *dependencies) {
	brokers := kafkax.SplitBrokers(s.kafkaBrokers)
	if len(brokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set; notification intents are logged only")
		d.dispatcher = notify.LogDispatcher{Logger: logger}
		return
	}
	writer := notify.NewKafkaWriter(brokers, logger)
	d.closers = append(d.closers, func() {
		if err := writer.Close(); err != nil {
			logger.Warn("kafka writer close failed", "err", err)
		}
	})
	d.dispatcher = notify.NewKafkaDispatcher(writer, logger)
	d.checks = append(d.checks, runtime.ReadyCheck{
		Name:     "kafka",
		Check:    kafkax.BrokerCheck(brokers, 2*time.Second),
		Optional: true,
	})
}
