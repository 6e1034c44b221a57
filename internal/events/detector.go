package events

import (
	"math"

	"github.com/cloudvance/flightpredict/internal/geo"
	"github.com/cloudvance/flightpredict/pkg/logger"
)

// Detector classifies aircraft snapshots into proximity events. A snapshot
// qualifies only when it carries coordinates, its altitude is below the
// low-altitude threshold, and the nearest airport is within match range.
type Detector struct {
	airports      *geo.AirportIndex
	maxAltitude   float64
	maxDistanceKM float64
	logger        *logger.Logger
}

// NewDetector creates a new proximity event detector
func NewDetector(airports *geo.AirportIndex, maxAltitude, maxDistanceKM float64, log *logger.Logger) *Detector {
	return &Detector{
		airports:      airports,
		maxAltitude:   maxAltitude,
		maxDistanceKM: maxDistanceKM,
		logger:        log.Named("detector"),
	}
}

// Classify decides whether a snapshot produces a proximity event.
// Snapshots without altitude or coordinates, and snapshots at or above the
// altitude threshold, are not eligible and return (nil, false); that is a
// normal outcome, not an error.
//
// Vertical rate > 0 means climbing; 0 or below means descending. A
// stationary aircraft on the ground (rate 0) therefore classifies as
// descending. That matches the historical behavior this pipeline was
// trained on and must not change without retraining.
func (d *Detector) Classify(snap Snapshot) (*ProximityEvent, bool) {
	if snap.Altitude == nil || !snap.HasPosition() {
		return nil, false
	}

	alt := *snap.Altitude
	if alt >= d.maxAltitude {
		// En-route traffic, not taking off or landing
		return nil, false
	}

	airport, distance, ok := d.airports.Nearest(*snap.Lat, *snap.Lon)
	if !ok || distance > d.maxDistanceKM {
		return nil, false
	}

	phase := PhaseDescending
	if snap.VerticalRate > 0 {
		phase = PhaseClimbing
	}

	event := &ProximityEvent{
		Callsign:     snap.Callsign,
		Marker:       MarkerFirst,
		Altitude:     alt,
		OnGround:     alt == 0,
		VerticalRate: snap.VerticalRate,
		Lat:          *snap.Lat,
		Lon:          *snap.Lon,
		Phase:        phase,
		AirportName:  airport.Name,
		AirportICAO:  airport.ICAO,
		DistanceKM:   math.Round(distance*100) / 100,
	}

	d.logger.Debug("Proximity event detected",
		logger.String("callsign", event.Callsign),
		logger.String("phase", event.Phase),
		logger.String("airport", event.AirportICAO),
		logger.Float64("distance_km", event.DistanceKM),
	)

	return event, true
}
