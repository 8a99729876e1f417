// Package weather geocodes a location and assembles current conditions, a
// five-day outlook and air quality from OpenWeather.
//
// Snapshots come from the combined one-call endpoint when it works. When it
// fails with an upstream error (unavailable, unparseable or a key without
// access to it), the aggregator falls back to the separate current and
// 3-hourly forecast endpoints and buckets the forecast into local days. Any
// other error, such as a cancelled context, is returned without falling back.
package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/infoboard/internal/cache"
	"github.com/kjstillabower/infoboard/internal/client"
	"github.com/kjstillabower/infoboard/internal/models"
	"github.com/kjstillabower/infoboard/internal/observability"
)

// DefaultTTL applies to both the snapshot and air quality tables.
const DefaultTTL = 600 * time.Second

// Options configures an Aggregator. Empty URLs use the public OpenWeather
// endpoints. Any table may be nil. Primary and Fallback default to the
// one-call and split strategies.
type Options struct {
	GeocodeURL      string
	OneCallURL      string
	CurrentURL      string
	ForecastURL     string
	AirURL          string
	IconURLTemplate string
	Units           string
	Location        *time.Location
	Timeout         time.Duration

	Fetcher       client.Getter
	SnapshotTable *cache.Table[models.WeatherSnapshot]
	AirTable      *cache.Table[models.AirQuality]
	GeocodeTable  *cache.Table[Coordinates]

	Primary  Strategy
	Fallback Strategy
	Logger   *zap.Logger
}

// Aggregator serves weather snapshots and air quality. Safe for concurrent use.
type Aggregator struct {
	geocoder  *Geocoder
	primary   Strategy
	fallback  Strategy
	endpoints endpointConfig
	airURL    string
	snapshots *cache.Table[models.WeatherSnapshot]
	air       *cache.Table[models.AirQuality]
	logger    *zap.Logger
}

func NewAggregator(opts Options) *Aggregator {
	endpoints := endpointConfig{
		fetcher:      opts.Fetcher,
		timeout:      opts.Timeout,
		units:        orDefault(opts.Units, DefaultUnits),
		iconTemplate: orDefault(opts.IconURLTemplate, DefaultIconURLTemplate),
		location:     opts.Location,
	}
	if endpoints.location == nil {
		endpoints.location = time.Local
	}

	a := &Aggregator{
		geocoder:  NewGeocoder(opts.GeocodeURL, opts.Timeout, opts.Fetcher, opts.GeocodeTable),
		primary:   opts.Primary,
		fallback:  opts.Fallback,
		endpoints: endpoints,
		airURL:    orDefault(opts.AirURL, DefaultAirURL),
		snapshots: opts.SnapshotTable,
		air:       opts.AirTable,
		logger:    observability.OrNop(opts.Logger),
	}
	if a.primary == nil {
		a.primary = &OneCallStrategy{endpointConfig: endpoints, url: orDefault(opts.OneCallURL, DefaultOneCallURL)}
	}
	if a.fallback == nil {
		a.fallback = &SplitStrategy{
			endpointConfig: endpoints,
			currentURL:     orDefault(opts.CurrentURL, DefaultCurrentURL),
			forecastURL:    orDefault(opts.ForecastURL, DefaultForecastURL),
		}
	}
	return a
}

// Snapshot returns current conditions and up to five daily summaries for
// location. An empty key or location is ErrMissingConfiguration.
func (a *Aggregator) Snapshot(ctx context.Context, apiKey, location string) (models.WeatherSnapshot, error) {
	apiKey, location = strings.TrimSpace(apiKey), strings.TrimSpace(location)
	if apiKey == "" || location == "" {
		return models.WeatherSnapshot{}, fmt.Errorf("weather: %w", client.ErrMissingConfiguration)
	}
	return a.snapshots.GetOrFetch(ctx, cache.Key(apiKey, location), func(ctx context.Context) (models.WeatherSnapshot, error) {
		coords, err := a.geocoder.Lookup(ctx, apiKey, location)
		if err != nil {
			return models.WeatherSnapshot{}, err
		}
		return a.fetchSnapshot(ctx, apiKey, coords)
	})
}

// AirQuality returns the AQI reading for location. An empty key or location is
// ErrMissingConfiguration.
func (a *Aggregator) AirQuality(ctx context.Context, apiKey, location string) (models.AirQuality, error) {
	apiKey, location = strings.TrimSpace(apiKey), strings.TrimSpace(location)
	if apiKey == "" || location == "" {
		return models.AirQuality{}, fmt.Errorf("air: %w", client.ErrMissingConfiguration)
	}
	return a.air.GetOrFetch(ctx, cache.Key(apiKey, location), func(ctx context.Context) (models.AirQuality, error) {
		coords, err := a.geocoder.Lookup(ctx, apiKey, location)
		if err != nil {
			return models.AirQuality{}, err
		}
		return a.fetchAir(ctx, apiKey, coords)
	})
}

func (a *Aggregator) fetchSnapshot(ctx context.Context, apiKey string, c Coordinates) (models.WeatherSnapshot, error) {
	snap, err := a.primary.Fetch(ctx, apiKey, c)
	if err == nil {
		return snap, nil
	}
	if !shouldFallback(err) {
		return models.WeatherSnapshot{}, err
	}

	observability.WeatherFallbackTotal.WithLabelValues(string(client.CategorizeError(err))).Inc()
	a.logger.Info("weather primary strategy failed, falling back",
		zap.String("primary", a.primary.Name()),
		zap.String("fallback", a.fallback.Name()),
		zap.Error(err),
	)

	snap, fallbackErr := a.fallback.Fetch(ctx, apiKey, c)
	if fallbackErr != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%s failed after %s: %v: %w", a.fallback.Name(), a.primary.Name(), err, fallbackErr)
	}
	return snap, nil
}

// shouldFallback reports whether a primary failure is one the split
// endpoints can recover from.
func shouldFallback(err error) bool {
	return errors.Is(err, client.ErrUpstreamUnavailable) ||
		errors.Is(err, client.ErrUpstreamParse) ||
		errors.Is(err, client.ErrInvalidCredential)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
