package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudvance/flightpredict/internal/events"
)

// Snapshot is the validated aircraft state snapshot the feed produces.
// The type lives in the events package so the detector can consume
// snapshots without importing this one.
type Snapshot = events.Snapshot

// FlexibleField can hold either a string or a number; some feeds report
// altitude as the string "ground" instead of a number.
type FlexibleField struct {
	value any
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleField
func (f *FlexibleField) UnmarshalJSON(data []byte) error {
	// Try to unmarshal as a number first
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value = num
		return nil
	}

	// If that fails, try to unmarshal as a string
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value = str
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleField", data)
}

// Float64 returns the value as a float64. The "ground" string maps to 0.
func (f *FlexibleField) Float64() float64 {
	switch v := f.value.(type) {
	case float64:
		return v
	case string:
		if v == "" || v == "ground" {
			return 0
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// VRSAircraft represents a single aircraft entry in a Virtual Radar Server
// style aircraftlist.json response
type VRSAircraft struct {
	Call string   `json:"Call"`
	Alt  *float64 `json:"Alt"`
	Vsi  *float64 `json:"Vsi"`
	Lat  *float64 `json:"Lat"`
	Long *float64 `json:"Long"`
}

// VRSResponse represents the raw JSON data from a VRS style source
type VRSResponse struct {
	AcList []VRSAircraft `json:"acList"`
}

// Convert converts a VRS aircraft entry to a Snapshot
func (a *VRSAircraft) Convert() Snapshot {
	snap := Snapshot{
		Callsign: a.Call,
		Altitude: a.Alt,
		Lat:      a.Lat,
		Lon:      a.Long,
	}
	if a.Vsi != nil {
		snap.VerticalRate = *a.Vsi
	}
	return snap
}

// ReadsbAircraft represents a single aircraft entry in a readsb/tar1090
// style aircraft.json response
type ReadsbAircraft struct {
	Flight   string         `json:"flight"`
	AltBaro  *FlexibleField `json:"alt_baro"`
	BaroRate *float64       `json:"baro_rate"`
	Lat      *float64       `json:"lat"`
	Lon      *float64       `json:"lon"`
}

// ReadsbResponse represents the raw JSON data from a readsb style source
type ReadsbResponse struct {
	Now      float64          `json:"now"`
	Aircraft []ReadsbAircraft `json:"aircraft"`
}

// Convert converts a readsb aircraft entry to a Snapshot. An alt_baro of
// "ground" becomes altitude 0, which downstream records as the GND sentinel.
func (a *ReadsbAircraft) Convert() Snapshot {
	snap := Snapshot{
		Callsign: trimCallsign(a.Flight),
		Lat:      a.Lat,
		Lon:      a.Lon,
	}
	if a.AltBaro != nil {
		alt := a.AltBaro.Float64()
		snap.Altitude = &alt
	}
	if a.BaroRate != nil {
		snap.VerticalRate = *a.BaroRate
	}
	return snap
}

// trimCallsign strips the whitespace padding readsb leaves on flight IDs
func trimCallsign(s string) string {
	return strings.TrimSpace(s)
}
