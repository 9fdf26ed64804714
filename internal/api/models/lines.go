package models

// Station is a stop as returned by the line endpoints.
type Station struct {
	Code string  `json:"code"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Line is a line with its ordered stations and an encoded polyline of the
// station sequence for drawing.
type Line struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Color        string    `json:"color,omitempty"`
	Stations     []Station `json:"stations"`
	Polyline     string    `json:"polyline"`
	LengthMeters float64   `json:"lengthMeters"`
	StationCount int       `json:"stationCount"`
}

// LinesResponse is the body of GET /v1/lines.
type LinesResponse struct {
	Lines []Line `json:"lines"`
	Count int    `json:"count"`
}
