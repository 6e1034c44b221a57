package events

// Phase values for proximity events
const (
	PhaseClimbing   = "climbing"
	PhaseDescending = "descending"
)

// MarkerFirst is the snapshot marker recorded with every event. Only the
// first-seen snapshot per callsign per ingestion cycle is considered, so
// the marker is fixed.
const MarkerFirst = "first"

// GroundSentinel is written in place of the numeric altitude when an
// aircraft reports altitude 0 exactly. It disambiguates "on the ground"
// from "altitude unknown".
const GroundSentinel = "GND"

// Snapshot represents a single validated aircraft state snapshot from the
// feed. Optional fields are pointers; nil means the source did not report
// the value. A missing vertical rate defaults to 0.
type Snapshot struct {
	Callsign     string
	Altitude     *float64
	VerticalRate float64
	Lat          *float64
	Lon          *float64
}

// HasPosition reports whether the snapshot carries usable coordinates
func (s *Snapshot) HasPosition() bool {
	return s.Lat != nil && s.Lon != nil
}

// ProximityEvent records one aircraft observed near an airport while
// climbing or descending. Events are append-only and never mutated.
type ProximityEvent struct {
	Callsign     string  `json:"callsign"`
	Marker       string  `json:"marker"`
	Altitude     float64 `json:"altitude"`
	OnGround     bool    `json:"on_ground"`
	VerticalRate float64 `json:"vertical_rate"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Phase        string  `json:"phase"`
	AirportName  string  `json:"airport_name"`
	AirportICAO  string  `json:"airport_icao"`
	DistanceKM   float64 `json:"distance_km"`
}
