package weather

import (
	"context"
	"errors"

	"github.com/tidwall/gjson"

	"github.com/kjstillabower/infoboard/internal/client"
	"github.com/kjstillabower/infoboard/internal/models"
)

const DefaultAirURL = "https://api.openweathermap.org/data/2.5/air_pollution"

type aqiLevel struct {
	label string
	color string
}

var aqiLevels = map[int]aqiLevel{
	1: {"좋음", "#2e7d32"},
	2: {"보통", "#9e9d24"},
	3: {"나쁨", "#ef6c00"},
	4: {"매우 나쁨", "#c62828"},
	5: {"최악", "#6a1b9a"},
}

var unknownAQI = aqiLevel{"?", "#757575"}

func (a *Aggregator) fetchAir(ctx context.Context, apiKey string, c Coordinates) (models.AirQuality, error) {
	r, err := a.endpoints.get(ctx, "air", a.airURL, apiKey, c, nil)
	if err != nil {
		return models.AirQuality{}, err
	}
	first := r.Get("list.0")
	if !first.IsObject() {
		return models.AirQuality{}, client.ParseError("air", errors.New("body lacks list"))
	}
	return airQualityFrom(first), nil
}

// airQualityFrom maps one air_pollution list entry. Components that are not
// numbers are left out.
func airQualityFrom(r gjson.Result) models.AirQuality {
	aq := models.AirQuality{
		Label:      unknownAQI.label,
		Color:      unknownAQI.color,
		Components: make(map[string]float64),
	}
	if v := r.Get("main.aqi"); v.Type == gjson.Number && v.Float() == float64(v.Int()) {
		aq.AQI = int(v.Int())
		if lvl, ok := aqiLevels[aq.AQI]; ok {
			aq.Label, aq.Color = lvl.label, lvl.color
		}
	}
	r.Get("components").ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Number {
			aq.Components[key.String()] = value.Float()
		}
		return true
	})
	return aq
}
