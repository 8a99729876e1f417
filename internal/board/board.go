// Package board composes the dashboard view from the independent normalizers.
package board

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/infoboard/internal/client"
	"github.com/kjstillabower/infoboard/internal/clock"
	"github.com/kjstillabower/infoboard/internal/models"
	"github.com/kjstillabower/infoboard/internal/observability"
	"github.com/kjstillabower/infoboard/internal/tasks"
	"github.com/kjstillabower/infoboard/internal/transit"
)

// ArrivalSource is implemented by *transit.Normalizer.
type ArrivalSource interface {
	Arrivals(ctx context.Context, q transit.Query) (models.StopResult, error)
}

// WeatherSource is implemented by *weather.Aggregator.
type WeatherSource interface {
	Snapshot(ctx context.Context, apiKey, location string) (models.WeatherSnapshot, error)
	AirQuality(ctx context.Context, apiKey, location string) (models.AirQuality, error)
}

// TaskSource is implemented by *tasks.Normalizer.
type TaskSource interface {
	List(ctx context.Context, q tasks.Query) ([]models.TaskRecord, error)
}

// Sources are the credentials and identifiers each section is queried with.
type Sources struct {
	Transit         transit.Query
	WeatherAPIKey   string
	WeatherLocation string
	Tasks           tasks.Query
}

// Board runs the sections concurrently. A failing section is reported in the
// result and never fails the others.
type Board struct {
	transit ArrivalSource
	weather WeatherSource
	tasks   TaskSource
	sources Sources
	clock   clock.Clock
	logger  *zap.Logger
}

func New(arrivals ArrivalSource, forecast WeatherSource, todo TaskSource, sources Sources, clk clock.Clock, logger *zap.Logger) *Board {
	return &Board{
		transit: arrivals,
		weather: forecast,
		tasks:   todo,
		sources: sources,
		clock:   clock.OrReal(clk),
		logger:  observability.OrNop(logger),
	}
}

// Compose builds the dashboard. Sections write disjoint fields, so no
// locking is needed.
func (b *Board) Compose(ctx context.Context) models.Board {
	view := models.Board{GeneratedAt: b.clock.Now()}
	var g errgroup.Group

	g.Go(func() error {
		res, err := b.transit.Arrivals(ctx, b.sources.Transit)
		if err != nil {
			view.BusError = b.sectionError("bus", err)
			return nil
		}
		view.Bus = &res
		return nil
	})
	g.Go(func() error {
		snap, err := b.weather.Snapshot(ctx, b.sources.WeatherAPIKey, b.sources.WeatherLocation)
		if err != nil {
			view.WeatherError = b.sectionError("weather", err)
			return nil
		}
		view.Weather = &snap
		return nil
	})
	g.Go(func() error {
		aq, err := b.weather.AirQuality(ctx, b.sources.WeatherAPIKey, b.sources.WeatherLocation)
		if err != nil {
			view.AirError = b.sectionError("air", err)
			return nil
		}
		view.Air = &aq
		return nil
	})
	g.Go(func() error {
		list, err := b.tasks.List(ctx, b.sources.Tasks)
		if err != nil {
			view.TasksError = b.sectionError("tasks", err)
			return nil
		}
		view.Tasks = list
		return nil
	})

	_ = g.Wait()
	return view
}

// Refresh composes the board to repopulate the cache tables. Sections that
// only lack configuration are not failures.
func (b *Board) Refresh(ctx context.Context) error {
	view := b.Compose(ctx)
	var errs []error
	for name, se := range map[string]*models.SectionError{
		"bus":     view.BusError,
		"weather": view.WeatherError,
		"air":     view.AirError,
		"tasks":   view.TasksError,
	} {
		if se == nil || se.Category == string(client.ErrorCategoryMissingConfiguration) {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %s", name, se.Message))
	}
	return errors.Join(errs...)
}

func (b *Board) sectionError(section string, err error) *models.SectionError {
	category := client.CategorizeError(err)
	if category != client.ErrorCategoryMissingConfiguration {
		b.logger.Warn("board section failed",
			zap.String("section", section),
			zap.String("category", string(category)),
			zap.Error(err),
		)
	}
	return &models.SectionError{Category: string(category), Message: err.Error()}
}
