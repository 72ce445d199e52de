package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/cafe-pricing/internal/app"
	"github.com/noah-isme/cafe-pricing/internal/config"
	"github.com/noah-isme/cafe-pricing/internal/health"
	"github.com/noah-isme/cafe-pricing/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "cafe-pricing",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      "otlp",
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	menu, err := config.LoadMenu(cfg.MenuFile, cfg.SlotTable)
	if err != nil {
		logger.Fatal().Err(err).Msg("load menu")
	}
	logger.Info().
		Str("menu_file", cfg.MenuFile).
		Int("items", menu.Catalog.Len()).
		Strs("slots", menu.Slots.Labels()).
		Strs("vouchers", menu.Vouchers.Codes()).
		Int("promotions", menu.Promotions.Len()).
		Msg("menu loaded")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if cfg.MetricsEnabled {
			if err := redisotel.InstrumentMetrics(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
	} else {
		logger.Warn().Msg("REDIS_URL not set; quote cache disabled and rate limits are per process")
	}

	api, err := app.New(app.Options{
		Config: cfg,
		Menu:   menu,
		Redis:  redisClient,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise api")
	}

	var handler http.Handler = api.Router
	if cfg.TracingEnabled {
		handler = obs.InstrumentHandler(handler, "cafe-pricing")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}
