package events

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudvance/flightpredict/pkg/logger"
)

func tempLog(t *testing.T) *Log {
	t.Helper()
	return NewLog(filepath.Join(t.TempDir(), "events.csv"), logger.NewNop())
}

func sampleEvent(callsign, phase, icao string) *ProximityEvent {
	return &ProximityEvent{
		Callsign:     callsign,
		Marker:       MarkerFirst,
		Altitude:     500,
		VerticalRate: 5,
		Lat:          52.17,
		Lon:          20.97,
		Phase:        phase,
		AirportName:  "Airport " + icao,
		AirportICAO:  icao,
		DistanceKM:   4.2,
	}
}

func TestLogAppendAndReadRoundTrip(t *testing.T) {
	l := tempLog(t)

	require.NoError(t, l.Append([]*ProximityEvent{
		sampleEvent("ABC123", PhaseClimbing, "EPWA"),
		sampleEvent("DEF456", PhaseDescending, "EGLL"),
	}))

	events, err := l.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ABC123", events[0].Callsign)
	assert.Equal(t, PhaseClimbing, events[0].Phase)
	assert.Equal(t, "EPWA", events[0].AirportICAO)
	assert.Equal(t, 4.2, events[0].DistanceKM)
	assert.Equal(t, "DEF456", events[1].Callsign)
}

func TestLogHeaderWrittenOnce(t *testing.T) {
	l := tempLog(t)

	require.NoError(t, l.Append([]*ProximityEvent{sampleEvent("ABC123", PhaseClimbing, "EPWA")}))
	require.NoError(t, l.Append([]*ProximityEvent{sampleEvent("DEF456", PhaseDescending, "EGLL")}))

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "callsign,marker"))

	events, err := l.ReadAll()
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestLogAppendIsAppendOnly(t *testing.T) {
	l := tempLog(t)

	require.NoError(t, l.Append([]*ProximityEvent{sampleEvent("ABC123", PhaseClimbing, "EPWA")}))
	before, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	require.NoError(t, l.Append([]*ProximityEvent{sampleEvent("DEF456", PhaseDescending, "EGLL")}))
	after, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	// Existing bytes are untouched; new records only extend the file
	assert.True(t, strings.HasPrefix(string(after), string(before)))
}

func TestLogGroundSentinelRoundTrip(t *testing.T) {
	l := tempLog(t)

	ground := sampleEvent("ABC123", PhaseDescending, "EPWA")
	ground.Altitude = 0
	ground.OnGround = true
	ground.DistanceKM = 0

	require.NoError(t, l.Append([]*ProximityEvent{ground}))

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), ",GND,")

	events, err := l.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].OnGround)
	assert.Equal(t, 0.0, events[0].Altitude)
}

func TestLogAppendEmptyBatchIsNoOp(t *testing.T) {
	l := tempLog(t)
	require.NoError(t, l.Append(nil))

	// No file should have been created for an empty batch
	_, err := os.Stat(l.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestLogReadMissingFile(t *testing.T) {
	l := tempLog(t)
	_, err := l.ReadAll()
	assert.Error(t, err)
}
