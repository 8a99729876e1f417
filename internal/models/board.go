package models

import "time"

// SectionError describes why a board section could not be filled.
type SectionError struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Board is the composed dashboard view. Each section is independent; a failed
// section carries an error and leaves its data nil.
type Board struct {
	GeneratedAt time.Time `json:"generatedAt"`

	Bus      *StopResult   `json:"bus,omitempty"`
	BusError *SectionError `json:"busError,omitempty"`

	Weather      *WeatherSnapshot `json:"weather,omitempty"`
	WeatherError *SectionError    `json:"weatherError,omitempty"`

	Air      *AirQuality   `json:"air,omitempty"`
	AirError *SectionError `json:"airError,omitempty"`

	Tasks      []TaskRecord  `json:"tasks"`
	TasksError *SectionError `json:"tasksError,omitempty"`
}
