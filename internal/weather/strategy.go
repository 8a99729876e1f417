package weather

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kjstillabower/infoboard/internal/client"
	"github.com/kjstillabower/infoboard/internal/models"
)

const (
	DefaultOneCallURL      = "https://api.openweathermap.org/data/3.0/onecall"
	DefaultCurrentURL      = "https://api.openweathermap.org/data/2.5/weather"
	DefaultForecastURL     = "https://api.openweathermap.org/data/2.5/forecast"
	DefaultIconURLTemplate = "https://openweathermap.org/img/wn/{icon}@2x.png"
	DefaultUnits           = "metric"
)

// Strategy fetches a WeatherSnapshot for coordinates.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, apiKey string, c Coordinates) (models.WeatherSnapshot, error)
}

// endpointConfig is shared by both strategies.
type endpointConfig struct {
	fetcher      client.Getter
	timeout      time.Duration
	units        string
	iconTemplate string
	location     *time.Location
}

func (e endpointConfig) get(ctx context.Context, source, url, apiKey string, c Coordinates, extra map[string]string) (gjson.Result, error) {
	query := map[string]string{
		"lat":   formatCoord(c.Lat),
		"lon":   formatCoord(c.Lon),
		"appid": apiKey,
		"units": e.units,
	}
	for k, v := range extra {
		query[k] = v
	}
	body, err := e.fetcher.Get(ctx, client.Request{Source: source, URL: url, Query: query, Timeout: e.timeout})
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, client.ParseError(source, errors.New("invalid JSON"))
	}
	return gjson.ParseBytes(body), nil
}

// iconURL maps an icon code to the fixed template. An unknown icon is an
// empty URL rather than an error.
func (e endpointConfig) iconURL(code string) string {
	if code == "" {
		return ""
	}
	return strings.ReplaceAll(e.iconTemplate, "{icon}", code)
}

func (e endpointConfig) current(r gjson.Result, temp, feelsLike, humidity, dewPoint string) models.CurrentConditions {
	return models.CurrentConditions{
		Temp:      round(number(r.Get(temp))),
		FeelsLike: round(number(r.Get(feelsLike))),
		Humidity:  round(number(r.Get(humidity))),
		DewPoint:  round(number(r.Get(dewPoint))),
		IconURL:   e.iconURL(r.Get("weather.0.icon").String()),
	}
}

// OneCallStrategy reads current conditions and daily summaries from the
// combined endpoint.
type OneCallStrategy struct {
	endpointConfig
	url string
}

func (s *OneCallStrategy) Name() string { return "onecall" }

func (s *OneCallStrategy) Fetch(ctx context.Context, apiKey string, c Coordinates) (models.WeatherSnapshot, error) {
	r, err := s.get(ctx, "onecall", s.url, apiKey, c, map[string]string{"exclude": "minutely,hourly,alerts"})
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	current, daily := r.Get("current"), r.Get("daily")
	if !current.IsObject() || !daily.IsArray() {
		return models.WeatherSnapshot{}, client.ParseError("onecall", errors.New("body lacks current or daily"))
	}

	snap := models.WeatherSnapshot{
		Current: s.current(current, "temp", "feels_like", "humidity", "dew_point"),
		Daily:   make([]models.DailyForecast, 0, MaxDailyEntries),
		Source:  s.Name(),
	}
	last := ""
	for _, day := range daily.Array() {
		if len(snap.Daily) == MaxDailyEntries {
			break
		}
		dt := day.Get("dt")
		if dt.Type != gjson.Number {
			continue
		}
		date := time.Unix(dt.Int(), 0).In(s.location).Format(time.DateOnly)
		// Dates must be strictly ascending, one per local day.
		if date <= last {
			continue
		}
		last = date
		snap.Daily = append(snap.Daily, models.DailyForecast{
			Date:    date,
			Min:     round(number(day.Get("temp.min"))),
			Max:     round(number(day.Get("temp.max"))),
			IconURL: s.iconURL(day.Get("weather.0.icon").String()),
		})
	}
	return snap, nil
}

// SplitStrategy combines the current-conditions endpoint with the 3-hourly
// forecast, bucketed into local calendar days.
type SplitStrategy struct {
	endpointConfig
	currentURL  string
	forecastURL string
}

func (s *SplitStrategy) Name() string { return "split" }

func (s *SplitStrategy) Fetch(ctx context.Context, apiKey string, c Coordinates) (models.WeatherSnapshot, error) {
	cur, err := s.get(ctx, "weather", s.currentURL, apiKey, c, nil)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	if !cur.Get("main").IsObject() {
		return models.WeatherSnapshot{}, client.ParseError("weather", errors.New("current body lacks main"))
	}

	forecast, err := s.get(ctx, "forecast", s.forecastURL, apiKey, c, nil)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	list := forecast.Get("list")
	if !list.IsArray() {
		return models.WeatherSnapshot{}, client.ParseError("forecast", errors.New("body lacks list"))
	}

	samples := make([]sample, 0, len(list.Array()))
	for _, entry := range list.Array() {
		dt := entry.Get("dt")
		if dt.Type != gjson.Number {
			continue
		}
		samples = append(samples, sample{
			at:   time.Unix(dt.Int(), 0),
			min:  number(entry.Get("main.temp_min")),
			max:  number(entry.Get("main.temp_max")),
			icon: entry.Get("weather.0.icon").String(),
		})
	}

	snap := models.WeatherSnapshot{
		Current: s.current(cur, "main.temp", "main.feels_like", "main.humidity", "main.dew_point"),
		Source:  s.Name(),
	}
	buckets := bucketDaily(samples, s.location)
	snap.Daily = make([]models.DailyForecast, 0, len(buckets))
	for _, b := range buckets {
		snap.Daily = append(snap.Daily, models.DailyForecast{
			Date:    b.date,
			Min:     round(b.min),
			Max:     round(b.max),
			IconURL: s.iconURL(b.icon),
		})
	}
	return snap, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
