package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/windfall/uwu_classroom/internal/apiclient"
	"github.com/windfall/uwu_classroom/internal/blob"
	"github.com/windfall/uwu_classroom/internal/client"
	"github.com/windfall/uwu_classroom/internal/config"
	"github.com/windfall/uwu_classroom/internal/logger"
	"github.com/windfall/uwu_classroom/internal/metrics"
	"github.com/windfall/uwu_classroom/internal/middleware"
	"github.com/windfall/uwu_classroom/internal/notify"
	"github.com/windfall/uwu_classroom/internal/retry"
	"github.com/windfall/uwu_classroom/internal/service"
	"github.com/windfall/uwu_classroom/internal/session"
)

type rootFlags struct {
	baseURL  string
	logLevel string
}

// app holds everything a command needs. Close must be called when the command ends.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	metrics  *metrics.ClientMetrics
	api      *apiclient.Client
	analysis *service.AnalysisService

	closers []func()
}

func loadApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.baseURL != "" {
		cfg.APIBaseURL = flags.baseURL
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	log := logger.NewWithFields(cfg.LogLevel, cfg.LogFormat, map[string]interface{}{"app": "classroom"})
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewClientMetrics(),
	}

	// Session store
	var store session.Store
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		redisClient, err := client.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		store = session.NewRedisStore(redisClient, cfg.SessionKeyPrefix)
	case config.SessionStoreMemory:
		store = session.NewMemoryStore()
	default:
		store = session.NewFileStore(cfg.SessionFilePath())
	}
	sess, err := session.Load(ctx, store)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Backend API client
	var limiter middleware.Middleware
	if cfg.APIRateLimit > 0 {
		limiter = middleware.RateLimit(cfg.APIRateLimit, cfg.APIRateBurst)
	}
	transport := middleware.Chain(http.DefaultTransport,
		middleware.RequestID(),
		limiter,
		middleware.Logger(log),
		middleware.Metrics(a.metrics),
	)
	a.api = apiclient.New(cfg.APIBaseURL, sess,
		apiclient.WithTransport(transport),
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithLogger(log),
	)

	// Recording sources
	routerOpts := []blob.Option{blob.WithHTTPClient(&http.Client{Timeout: cfg.APITimeout})}
	if cfg.HasR2() {
		r2, err := client.NewR2Client(ctx, cfg.CloudflareAccessKeyID, cfg.CloudflareSecretKey, cfg.CloudflareR2Endpoint, cfg.CloudflareBucketName)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Cloudflare R2 client")
		} else {
			routerOpts = append(routerOpts, blob.WithR2(r2))
		}
	}
	if cfg.GCSEnabled {
		gcs, err := client.NewGCSClient(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize GCS client")
		} else {
			a.closers = append(a.closers, gcs.Close)
			routerOpts = append(routerOpts, blob.WithGCS(gcs))
		}
	}

	// Toasts
	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	if cfg.HasPubSub() {
		ps, err := client.NewPubSubClient(ctx, cfg.PubSubProjectID, cfg.PubSubToastTopic)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Pub/Sub client")
		} else {
			a.closers = append(a.closers, ps.Close)
			notifiers = append(notifiers, notify.NewPubSubNotifier(ps, "classroom-cli"))
		}
	}

	// Pronunciation analysis
	var scorer service.Scorer
	if cfg.HasAzureSpeech() {
		scorer = client.NewAzureSpeechClient(cfg.AzureAISpeechKey, cfg.AzureServiceRegion, cfg.AzureSpeechLanguage)
	} else {
		log.Debug().Msg("Azure Speech not configured, analyze is unavailable")
	}
	executor := retry.NewExecutor(cfg.RetryConfig(),
		retry.WithLogger(log),
		retry.WithOnRetry(func(operation string, _ int, _ error) {
			a.metrics.RecordRetry(operation)
		}),
	)
	a.analysis = service.NewAnalysisService(scorer, a.api, blob.NewRouter(routerOpts...), notifiers, executor, a.metrics, log)

	return a, nil
}

// Close writes the metrics file, if configured, and releases clients.
func (a *app) Close() {
	if a.cfg.MetricsFile != "" {
		if err := a.metrics.WriteToFile(a.cfg.MetricsFile); err != nil {
			a.log.Warn().Err(err).Str("path", a.cfg.MetricsFile).Msg("Failed to write metrics")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func requireAuth(a *app) error {
	if !a.api.IsAuthenticated() {
		return fmt.Errorf("not signed in: run `classroom login teacher` or `classroom login student` first")
	}
	return nil
}
