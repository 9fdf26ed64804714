package models

// Vehicle is one estimated vehicle position on the map.
type Vehicle struct {
	LineID              string   `json:"lineId"`
	VehicleKey          string   `json:"vehicleKey"`
	Destination         string   `json:"destination"`
	PreviousStationCode *string  `json:"previousStationCode,omitempty"`
	NextStationCode     string   `json:"nextStationCode"`
	ETAMinutes          float64  `json:"etaMinutes"`
	Progress            float64  `json:"progress"`
	Lat                 float64  `json:"lat"`
	Lon                 float64  `json:"lon"`
	Bearing             *float64 `json:"bearing,omitempty"`
	Platform            *string  `json:"platform,omitempty"`
	Wagons              *int     `json:"wagons,omitempty"`
}

// VehiclesResponse is the body of GET /v1/vehicles.
type VehiclesResponse struct {
	Vehicles  []Vehicle `json:"vehicles"`
	Count     int       `json:"count"`
	Timestamp Timestamp `json:"timestamp"`
	Cached    bool      `json:"cached"`
}
