package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cafe-pricing/internal/config"
	"github.com/noah-isme/cafe-pricing/internal/health"
	"github.com/noah-isme/cafe-pricing/internal/obs"
	"github.com/noah-isme/cafe-pricing/internal/quote"
	"github.com/noah-isme/cafe-pricing/internal/ratelimit"
	"github.com/noah-isme/cafe-pricing/internal/resilience"
	"github.com/noah-isme/cafe-pricing/internal/security"
)

// Options carries everything needed to assemble the HTTP surface.
type Options struct {
	Config *config.Config
	Menu   *config.Menu
	// Redis is optional. Without it quotes are not cached and rate limits are per process.
	Redis  *redis.Client
	Logger zerolog.Logger
	// Registry receives the Prometheus collectors. Nil uses the default registry.
	Registry *prometheus.Registry
	Now      func() time.Time
}

// App is the assembled API.
type App struct {
	Router  chi.Router
	Service *quote.Service
}

// New wires services, middleware and routes.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if opts.Menu == nil {
		return nil, errors.New("app: menu is required")
	}
	logger := opts.Logger

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if opts.Registry != nil {
		registerer, gatherer = opts.Registry, opts.Registry
	}

	var (
		httpMetrics    *obs.HTTPMetrics
		quoteMetrics   *obs.QuoteMetrics
		breakerMetrics *resilience.Metrics
	)
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), registerer)
		quoteMetrics = obs.NewQuoteMetrics(cfg.MetricsNamespace, registerer)
		breakerMetrics = resilience.NewMetrics(cfg.MetricsNamespace, registerer)
	}

	cache := quote.NewCache(opts.Redis, cfg.QuoteCacheTTL)
	if opts.Redis != nil {
		cache.WithBreaker(resilience.NewBreaker(resilience.Options{
			Target:  "quote_cache",
			Metrics: breakerMetrics,
			Logger:  &logger,
		}))
	}

	svc, err := quote.NewService(quote.ServiceConfig{
		Catalog:    opts.Menu.Catalog,
		Slots:      opts.Menu.Slots,
		Vouchers:   opts.Menu.Vouchers,
		Promotions: opts.Menu.Promotions,
		Currency:   opts.Menu.Currency,
		Cache:      cache,
		Metrics:    quoteMetrics,
		Logger:     &logger,
		Now:        opts.Now,
	})
	if err != nil {
		return nil, err
	}
	quoteHandler := quote.NewHandler(quote.HandlerConfig{Service: svc})

	lim, err := ratelimit.New(cfg.RateLimit, opts.Redis)
	if err != nil {
		return nil, err
	}
	limit := ratelimit.Handler{
		Limiter: lim,
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limit store")
		},
	}

	healthHandler := health.Handler{
		RedisTimeout: cfg.RedisPingTimeout,
		MenuItems:    opts.Menu.Catalog.Len(),
	}
	if opts.Redis != nil {
		healthHandler.Checker = health.RedisChecker{Client: opts.Redis}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(limit.Middleware)
		v.Get("/menu", quoteHandler.Menu)
		v.Get("/slots", quoteHandler.Slots)
		v.Post("/quotes", quoteHandler.Create)
	})

	return &App{Router: r, Service: svc}, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
