package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudvance/flightpredict/internal/geo"
	"github.com/cloudvance/flightpredict/pkg/logger"
)

var detectorAirports = geo.NewAirportIndex([]geo.Airport{
	{Name: "Chopin Airport", ICAO: "EPWA", Lat: 52.1657, Lon: 20.9671},
	{Name: "Heathrow Airport", ICAO: "EGLL", Lat: 51.4700, Lon: -0.4543},
})

func newTestDetector() *Detector {
	return NewDetector(detectorAirports, 3000, 10.0, logger.NewNop())
}

func snapshot(callsign string, alt, vsi, lat, lon float64) Snapshot {
	return Snapshot{
		Callsign:     callsign,
		Altitude:     &alt,
		VerticalRate: vsi,
		Lat:          &lat,
		Lon:          &lon,
	}
}

func TestClassifyClimbingNearAirport(t *testing.T) {
	d := newTestDetector()

	event, ok := d.Classify(snapshot("ABC123", 500, 5, 52.17, 20.97))
	require.True(t, ok)
	assert.Equal(t, "ABC123", event.Callsign)
	assert.Equal(t, MarkerFirst, event.Marker)
	assert.Equal(t, PhaseClimbing, event.Phase)
	assert.Equal(t, "EPWA", event.AirportICAO)
	assert.Equal(t, "Chopin Airport", event.AirportName)
	assert.False(t, event.OnGround)
	assert.LessOrEqual(t, event.DistanceKM, 10.0)
	assert.Less(t, event.Altitude, 3000.0)
}

func TestClassifyOnGroundSentinel(t *testing.T) {
	d := newTestDetector()

	// Altitude exactly 0 with coordinates matching the airport: descending,
	// on-ground sentinel, distance rounds to 0.00
	event, ok := d.Classify(snapshot("ABC123", 0, -2, 52.1657, 20.9671))
	require.True(t, ok)
	assert.Equal(t, PhaseDescending, event.Phase)
	assert.True(t, event.OnGround)
	assert.Equal(t, 0.0, event.DistanceKM)
}

func TestClassifyZeroVerticalRateIsDescending(t *testing.T) {
	// Open question inherited from the legacy pipeline: a stationary
	// aircraft (rate exactly 0) classifies as descending, not climbing.
	// The trained dataset depends on this; do not "fix" it here.
	d := newTestDetector()

	event, ok := d.Classify(snapshot("ABC123", 100, 0, 52.17, 20.97))
	require.True(t, ok)
	assert.Equal(t, PhaseDescending, event.Phase)
}

func TestClassifyAltitudeThreshold(t *testing.T) {
	d := newTestDetector()

	_, ok := d.Classify(snapshot("ABC123", 3000, 5, 52.17, 20.97))
	assert.False(t, ok, "altitude equal to the threshold must not match")

	_, ok = d.Classify(snapshot("ABC123", 2999, 5, 52.17, 20.97))
	assert.True(t, ok, "altitude just below the threshold must match")
}

func TestClassifyMissingFieldsDisqualify(t *testing.T) {
	d := newTestDetector()
	lat := 52.17
	lon := 20.97
	alt := 500.0

	_, ok := d.Classify(Snapshot{Callsign: "ABC123", Lat: &lat, Lon: &lon})
	assert.False(t, ok, "missing altitude")

	_, ok = d.Classify(Snapshot{Callsign: "ABC123", Altitude: &alt, Lon: &lon})
	assert.False(t, ok, "missing latitude")

	_, ok = d.Classify(Snapshot{Callsign: "ABC123", Altitude: &alt, Lat: &lat})
	assert.False(t, ok, "missing longitude")
}

func TestClassifyTooFarFromAnyAirport(t *testing.T) {
	d := newTestDetector()

	// Over the Baltic, far from both reference airports
	_, ok := d.Classify(snapshot("ABC123", 500, 5, 55.5, 16.0))
	assert.False(t, ok)
}

func TestClassifyDistanceRoundedToTwoDecimals(t *testing.T) {
	d := newTestDetector()

	event, ok := d.Classify(snapshot("ABC123", 500, -3, 52.18, 20.99))
	require.True(t, ok)
	rounded := float64(int(event.DistanceKM*100+0.5)) / 100
	assert.Equal(t, rounded, event.DistanceKM)
}
