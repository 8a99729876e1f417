package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/infoboard/internal/board"
	"github.com/kjstillabower/infoboard/internal/cache"
	"github.com/kjstillabower/infoboard/internal/client"
	"github.com/kjstillabower/infoboard/internal/clock"
	"github.com/kjstillabower/infoboard/internal/config"
	httphandler "github.com/kjstillabower/infoboard/internal/http"
	"github.com/kjstillabower/infoboard/internal/lifecycle"
	"github.com/kjstillabower/infoboard/internal/models"
	"github.com/kjstillabower/infoboard/internal/observability"
	"github.com/kjstillabower/infoboard/internal/tasks"
	"github.com/kjstillabower/infoboard/internal/transit"
	"github.com/kjstillabower/infoboard/internal/weather"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = observability.Flush(logger) }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	lifecycle.MarkStarted(time.Now())
	for source, ok := range cfg.Configured() {
		if !ok {
			logger.Warn("source not configured; its section will report needsConfiguration", zap.String("source", source))
		}
	}

	backend := newBackend(cfg)
	logger.Info("cache backend", zap.String("kind", backend.Kind()))
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("cache backend close", zap.Error(err))
		}
	}()

	fetcher := client.NewFetcher(cfg.UpstreamTimeout, client.BreakerSettings{
		ConsecutiveFailures: uint32(cfg.BreakerFailures),
		OpenTimeout:         cfg.BreakerOpenTimeout,
		HalfOpenRequests:    1,
		Interval:            cfg.BreakerInterval,
	}, logger)

	p, err := newPipeline(cfg, backend, fetcher, clock.RealClock{}, logger)
	if err != nil {
		logger.Fatal("pipeline", zap.Error(err))
	}
	sources := boardSources(cfg)
	composer := board.New(p.transit, p.weather, p.tasks, sources, clock.RealClock{}, logger)

	var warmer *cache.Warmer
	if cfg.WarmInterval > 0 {
		warmer = cache.NewWarmer(composer, logger, cfg.RequestTimeout)
		if err := warmer.Start(cfg.WarmInterval); err != nil {
			logger.Fatal("cache warming", zap.Error(err))
		}
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		Configured:       cfg.Configured(),
		BreakerStates:    fetcher.States,
	}
	if backend.Kind() != cache.BackendInMemory {
		healthConfig.CachePing = backend.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.RateLimitWindow)

	handler := httphandler.NewHandler(httphandler.Sources{
		Transit: p.transit,
		Weather: p.weather,
		Tasks:   p.tasks,
		Board:   composer,
	}, sources, healthConfig, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	if warmer != nil {
		warmer.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}
	logger.Info("shutdown complete")
}

// newBackend connects the configured cache backend. Connections are lazy, so
// an unreachable memcached or redis surfaces in /health and as cache errors.
func newBackend(cfg *config.Config) *cache.Backend {
	switch cfg.CacheBackend {
	case cache.BackendMemcached:
		return cache.NewMemcachedBackend(cache.NewMemcachedClient(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns))
	case cache.BackendRedis:
		return cache.NewRedisBackend(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTimeout))
	default:
		return cache.NewInMemoryBackend(cfg.CacheMemorySize)
	}
}

type pipeline struct {
	transit *transit.Normalizer
	weather *weather.Aggregator
	tasks   *tasks.Normalizer
}

func newTable[V any](backend *cache.Backend, name string, ttl time.Duration, clk clock.Clock, logger *zap.Logger) (*cache.Table[V], error) {
	store, err := cache.NewStore[V](backend, name)
	if err != nil {
		return nil, fmt.Errorf("%s table: %w", name, err)
	}
	return cache.NewTable[V](name, store, ttl, clk, logger), nil
}

// newPipeline builds the normalizers on one table per cached result type.
func newPipeline(cfg *config.Config, backend *cache.Backend, fetcher client.Getter, clk clock.Clock, logger *zap.Logger) (*pipeline, error) {
	transitTable, err := newTable[transit.Snapshot](backend, "transit", cfg.TransitTTL, clk, logger)
	if err != nil {
		return nil, err
	}
	weatherTable, err := newTable[models.WeatherSnapshot](backend, "weather", cfg.WeatherTTL, clk, logger)
	if err != nil {
		return nil, err
	}
	airTable, err := newTable[models.AirQuality](backend, "air", cfg.WeatherTTL, clk, logger)
	if err != nil {
		return nil, err
	}
	geocodeTable, err := newTable[weather.Coordinates](backend, "geocode", cfg.GeocodeTTL, clk, logger)
	if err != nil {
		return nil, err
	}
	tasksTable, err := newTable[[]tasks.Task](backend, "tasks", cfg.TasksTTL, clk, logger)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		transit: transit.NewNormalizer(transit.Options{
			Endpoint: cfg.TransitEndpoint,
			Timeout:  cfg.UpstreamTimeout,
			Fetcher:  fetcher,
			Table:    transitTable,
			Rules: transit.Rules{
				ArrivingNowSeconds: cfg.TransitArrivingNowSeconds,
				ZeroStopsMeansNext: cfg.TransitZeroStopsMeansNext,
				StopSuffix:         cfg.TransitStopSuffix,
				ArrivingNowLabel:   cfg.TransitArrivingNowLabel,
				MinuteLabelSuffix:  cfg.TransitMinuteLabelSuffix,
			},
			Logger: logger,
		}),
		weather: weather.NewAggregator(weather.Options{
			GeocodeURL:      cfg.WeatherGeocodeURL,
			OneCallURL:      cfg.WeatherOneCallURL,
			CurrentURL:      cfg.WeatherCurrentURL,
			ForecastURL:     cfg.WeatherForecastURL,
			AirURL:          cfg.WeatherAirURL,
			IconURLTemplate: cfg.WeatherIconURLTemplate,
			Units:           cfg.WeatherUnits,
			Location:        cfg.Location,
			Timeout:         cfg.UpstreamTimeout,
			Fetcher:         fetcher,
			SnapshotTable:   weatherTable,
			AirTable:        airTable,
			GeocodeTable:    geocodeTable,
			Logger:          logger,
		}),
		tasks: tasks.NewNormalizer(tasks.Options{
			Endpoint: cfg.TasksEndpoint,
			Location: cfg.Location,
			Timeout:  cfg.UpstreamTimeout,
			Fetcher:  fetcher,
			Table:    tasksTable,
			Clock:    clk,
			Logger:   logger,
		}),
	}, nil
}

// boardSources maps configuration onto the per-section queries.
func boardSources(cfg *config.Config) board.Sources {
	dedup := cfg.TransitDedupByRoute
	return board.Sources{
		Transit: transit.Query{
			CityCode:     cfg.TransitCityCode,
			NodeID:       cfg.TransitNodeID,
			APIKey:       cfg.TransitAPIKey,
			DedupByRoute: &dedup,
			Limit:        cfg.TransitLimit,
		},
		WeatherAPIKey:   cfg.WeatherAPIKey,
		WeatherLocation: cfg.WeatherLocation,
		Tasks: tasks.Query{
			Token:     cfg.TasksToken,
			ProjectID: cfg.TasksProjectID,
			Limit:     cfg.TasksLimit,
		},
	}
}
