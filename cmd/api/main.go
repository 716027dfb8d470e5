package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v72"

	"github.com/kindbridge/backend-giving/internal/config"
	"github.com/kindbridge/backend-giving/internal/health"
	"github.com/kindbridge/backend-giving/internal/notify"
	"github.com/kindbridge/backend-giving/internal/obs"
	"github.com/kindbridge/backend-giving/internal/payment"
	"github.com/kindbridge/backend-giving/internal/provider"
	"github.com/kindbridge/backend-giving/internal/reconcile"
	"github.com/kindbridge/backend-giving/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "giving")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "giving-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "giving-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	pg := &store.Postgres{Pool: pool}

	var mailer notify.EmailSender = notify.NopEmailSender{}
	if cfg.MailAPIURL != "" {
		mailer = &notify.APIEmailSender{
			Endpoint: cfg.MailAPIURL,
			APIKey:   cfg.MailAPIKey,
			From:     cfg.MailFrom,
		}
	} else {
		logger.Warn().Msg("MAIL_API_URL not set, confirmation emails disabled")
	}

	var announcer notify.Announcer = notify.LogAnnouncer{Log: logger}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaAnnouncer, err := notify.NewKafkaAnnouncer(cfg.KafkaBrokers, cfg.KafkaAnnounceTopic, cfg.KafkaSCRAMUsername, cfg.KafkaSCRAMPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise kafka announcer")
		}
		defer func() {
			if err := kafkaAnnouncer.Close(); err != nil {
				logger.Error().Err(err).Msg("close kafka announcer")
			}
		}()
		announcer = kafkaAnnouncer
	}

	fanout := &notify.Fanout{Mail: mailer, Announce: announcer, Log: logger}

	orchestrator := &reconcile.Orchestrator{
		Items:     pg,
		Users:     pg,
		Agencies:  pg,
		Donations: pg,
		Gate:      reconcile.RedisGate{R: redisClient, TTL: cfg.DedupTTL},
		Fanout:    fanout,
		Log:       logger,
	}

	stripe.Key = cfg.StripeSecretKey
	cardProvider := provider.Stripe{SigningSecret: cfg.WebhookSigningSecret(), Log: logger}
	walletProvider := provider.NewPayPal(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalWebhookID, logger)

	paymentSvc := &payment.Service{
		Items:    pg,
		Users:    pg,
		Agencies: pg,
		Intents:  cardProvider,
		Currency: cfg.CurrencyCode,
		Log:      logger,
	}
	paymentHandler := &payment.Handler{
		Svc:            paymentSvc,
		PublishableKey: cfg.StripePublishableKey,
		Validate:       validator.New(),
		Log:            logger,
	}
	webhookHandler := payment.Webhook{
		Providers:    []provider.WebhookProvider{cardProvider, walletProvider},
		Orchestrator: orchestrator,
		Log:          logger,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      health.Probes{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/payment", func(p chi.Router) {
		p.Post("/create-intent", paymentHandler.CreateIntent)
		p.Get("/config", paymentHandler.Config)
		p.Post("/webhook", webhookHandler.Handle)
		p.Get("/success/{id}/{totalAmount}", paymentHandler.Success)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	health.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDurationMillis(key string, fallbackMS int) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Duration(fallbackMS) * time.Millisecond
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return time.Duration(fallbackMS) * time.Millisecond
	}
	return time.Duration(parsed) * time.Millisecond
}
