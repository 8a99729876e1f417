package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kjstillabower/infoboard/internal/cache"
	"github.com/kjstillabower/infoboard/internal/client"
)

const DefaultGeocodeURL = "https://api.openweathermap.org/geo/1.0/direct"

// Coordinates is a geocoded location.
type Coordinates struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name"`
}

// Geocoder resolves a free-text location to coordinates using the first
// result of the direct geocoding endpoint.
type Geocoder struct {
	url     string
	timeout time.Duration
	fetcher client.Getter
	table   *cache.Table[Coordinates]
}

// NewGeocoder creates a Geocoder. table may be nil.
func NewGeocoder(url string, timeout time.Duration, fetcher client.Getter, table *cache.Table[Coordinates]) *Geocoder {
	if url == "" {
		url = DefaultGeocodeURL
	}
	return &Geocoder{url: url, timeout: timeout, fetcher: fetcher, table: table}
}

// Lookup returns the coordinates of location. No results is ErrLocationNotFound.
func (g *Geocoder) Lookup(ctx context.Context, apiKey, location string) (Coordinates, error) {
	return g.table.GetOrFetch(ctx, cache.Key(apiKey, location), func(ctx context.Context) (Coordinates, error) {
		return g.lookup(ctx, apiKey, location)
	})
}

func (g *Geocoder) lookup(ctx context.Context, apiKey, location string) (Coordinates, error) {
	body, err := g.fetcher.Get(ctx, client.Request{
		Source:  "geocode",
		URL:     g.url,
		Query:   map[string]string{"q": location, "limit": "1", "appid": apiKey},
		Timeout: g.timeout,
	})
	if err != nil {
		return Coordinates{}, err
	}
	if !gjson.ValidBytes(body) {
		return Coordinates{}, client.ParseError("geocode", errors.New("invalid JSON"))
	}
	results := gjson.ParseBytes(body)
	if !results.IsArray() {
		return Coordinates{}, client.ParseError("geocode", fmt.Errorf("expected array, got %s", results.Type))
	}
	first := results.Get("0")
	if !first.Exists() {
		return Coordinates{}, fmt.Errorf("geocode %q: %w", location, client.ErrLocationNotFound)
	}
	lat, lon := first.Get("lat"), first.Get("lon")
	if lat.Type != gjson.Number || lon.Type != gjson.Number {
		return Coordinates{}, client.ParseError("geocode", errors.New("first result lacks lat/lon"))
	}
	name := first.Get("local_names.ko").String()
	if name == "" {
		name = first.Get("name").String()
	}
	return Coordinates{Lat: lat.Float(), Lon: lon.Float(), Name: name}, nil
}
