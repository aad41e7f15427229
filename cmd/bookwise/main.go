package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rkarimov/bookwise/internal/availability"
	"github.com/rkarimov/bookwise/internal/booking"
	"github.com/rkarimov/bookwise/internal/cache"
	"github.com/rkarimov/bookwise/internal/handlers"
	"github.com/rkarimov/bookwise/internal/outbox"
	"github.com/rkarimov/bookwise/internal/storage"
	"github.com/rkarimov/bookwise/internal/team"
	"github.com/rkarimov/bookwise/libs/config"
	"github.com/rkarimov/bookwise/libs/db"
	"github.com/rkarimov/bookwise/libs/httpx"
	"github.com/rkarimov/bookwise/libs/kafkax"
	otelx "github.com/rkarimov/bookwise/libs/otel"
	"github.com/rkarimov/bookwise/libs/runtime"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "bookwise")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if err := storage.Migrate(ctx, pool.Pool); err != nil {
		logger.Error("migrations failed", "err", err)
		panic(err)
	}

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
	}

	scheduleRepo := storage.NewScheduleRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool, outboxRepo)
	teamRepo := storage.NewTeamRepository(pool)

	var windowCache availability.WindowCache
	if rdb != nil {
		windowCache = cache.NewWindowCache(rdb, logger)
	}

	resolver := availability.NewResolver(scheduleRepo)
	availabilitySvc := availability.NewService(scheduleRepo, resolver, bookingRepo, windowCache, logger)
	bookingSvc := booking.NewService(bookingRepo, scheduleRepo, logger)
	teamSvc := team.NewService(teamRepo, availabilitySvc, bookingSvc, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	slotHandler := handlers.NewSlotHandler(availabilitySvc, teamSvc, logger)
	bookingHandler := handlers.NewBookingHandler(bookingSvc, teamSvc, logger)
	scheduleHandler := handlers.NewScheduleHandler(scheduleRepo, windowCache, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers := strings.TrimSpace(config.String("KAFKA_BROKERS", "")); brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/slots", slotHandler.Subject)
	mux.HandleFunc("/api/v1/teams/slots", slotHandler.Team)
	mux.HandleFunc("/api/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			bookingHandler.Create(w, r)
			return
		}
		bookingHandler.List(w, r)
	})
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/schedule/weekly", scheduleHandler.Weekly)
	mux.HandleFunc("/api/v1/schedule/overrides", scheduleHandler.Overrides)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if rdb != nil {
		rateLimitMW = httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, service).Middleware(logger, true)
	} else {
		rateLimitMW = httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
	}

	corsMW := httpx.WithCORS(httpx.CORSPolicy{
		AllowedOrigins: strings.Split(config.String("ALLOWED_ORIGINS", ""), ","),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader},
		MaxAge:         time.Hour,
	})

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		corsMW,
		rateLimitMW,
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
