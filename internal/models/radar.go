package models

// RadarPoint is one sampled grid cell. Longitude is normalized to
// [-180, 180) and Value is always above the missing-data threshold.
type RadarPoint struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Value float64 `json:"value"`
}

// Metadata describes the variable the points were sampled from.
type Metadata struct {
	Units    string `json:"units"`
	LongName string `json:"long_name"`
	Source   string `json:"source"`
}

// RadarPayload is the unit of response and of the on-disk JSON cache.
// It is replaced wholesale on each successful pipeline run, never patched.
type RadarPayload struct {
	Timestamp string       `json:"timestamp"`
	Metadata  Metadata     `json:"metadata"`
	Points    []RadarPoint `json:"points"`
}
