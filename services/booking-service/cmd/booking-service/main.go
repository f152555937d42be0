package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
)

func main() {
	envErr := config.LoadDotEnv()
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))
	if envErr != nil {
		logger.Warn("dotenv not loaded", "err", envErr)
	}
	if err := run(logger, service); err != nil {
		logger.Error("booking-service exited", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, service string) error {
	port, err := config.Port("PORT", "8083")
	if err != nil {
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext(context.Background(), logger)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	deps, err := wire(ctx, logger, settings)
	if err != nil {
		return err
	}
	defer deps.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	resolver := availability.NewResolver(deps.catalog, deps.repo, availability.DefaultGrid(), availability.WithClock(settings.location, nil))
	manager := booking.NewManager(booking.Config{
		Repo:       deps.repo,
		Catalog:    deps.catalog,
		Resolver:   resolver,
		Dispatcher: deps.dispatcher,
		Metrics:    metrics.NewBookingMetrics(reg),
		Logger:     logger,
	})

	mux := runtime.NewBaseMux(deps.checks...)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handlers.Register(mux,
		handlers.NewBookingHandler(manager, deps.catalog, logger),
		handlers.NewWizardHandler(deps.sessions, deps.catalog, manager, logger),
	)

	middleware := []httpx.Middleware{
		httpx.WithCORS(httpx.BookingCORSPolicy(settings.corsOrigins)),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	}
	if deps.limiter != nil {
		middleware = append(middleware, deps.limiter.Middleware(logger, true))
	}
	middleware = append(middleware,
		httpx.WithBodyLimit(settings.bodyLimit),
		httpx.WithTimeout(settings.requestTimeout),
	)
	httpHandler := otelhttp.NewHandler(httpx.Chain(mux, middleware...), "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "store", deps.storeName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}
