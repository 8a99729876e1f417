package models

// CurrentConditions holds rounded current readings. Nil means the upstream
// value was missing or not numeric.
type CurrentConditions struct {
	Temp      *int   `json:"temp"`
	FeelsLike *int   `json:"feelsLike"`
	Humidity  *int   `json:"humidity"`
	DewPoint  *int   `json:"dewPoint"`
	IconURL   string `json:"iconUrl"`
}

// DailyForecast is one calendar day in the configured timezone.
type DailyForecast struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Min     *int   `json:"min"`
	Max     *int   `json:"max"`
	IconURL string `json:"iconUrl"`
}

// WeatherSnapshot is current conditions plus at most five ascending daily entries.
type WeatherSnapshot struct {
	Current CurrentConditions `json:"current"`
	Daily   []DailyForecast   `json:"daily"`
	Source  string            `json:"source"`
}

// AirQuality is the AQI reading for a location.
type AirQuality struct {
	AQI        int                `json:"aqi"`
	Label      string             `json:"label"`
	Color      string             `json:"color"`
	Components map[string]float64 `json:"components"`
}
