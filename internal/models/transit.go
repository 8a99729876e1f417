package models

// ArrivalRecord is one upcoming bus arrival at a stop.
type ArrivalRecord struct {
	Route      string `json:"route"`
	ETAMinutes int    `json:"etaMinutes"`
	ETALabel   string `json:"etaLabel"`
	StopsAway  string `json:"stopsAway"`
	RawMessage string `json:"rawMessage"`
}

// StopResult is the normalized arrival board for a single stop.
// NeedsConfiguration is set when credentials or identifiers are missing;
// in that case no upstream call was made and Items is empty.
type StopResult struct {
	StopName           string          `json:"stopName"`
	Items              []ArrivalRecord `json:"items"`
	NeedsConfiguration bool            `json:"needsConfiguration"`
}
