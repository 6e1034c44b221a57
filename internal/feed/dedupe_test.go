package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(callsign string) Snapshot {
	return Snapshot{Callsign: callsign}
}

func TestDedupeFirstOccurrenceWins(t *testing.T) {
	alt1 := 500.0
	alt2 := 800.0
	batch := []Snapshot{
		{Callsign: "ABC123", Altitude: &alt1},
		{Callsign: "ABC123", Altitude: &alt2},
	}

	out := Dedupe(batch, nil)
	require.Len(t, out, 1)
	assert.Equal(t, 500.0, *out[0].Altitude)
}

func TestDedupePreservesInsertionOrder(t *testing.T) {
	batch := []Snapshot{snap("LOT456"), snap("DLH89"), snap("LOT456"), snap("BAW22"), snap("DLH89")}

	out := Dedupe(batch, nil)
	require.Len(t, out, 3)
	assert.Equal(t, "LOT456", out[0].Callsign)
	assert.Equal(t, "DLH89", out[1].Callsign)
	assert.Equal(t, "BAW22", out[2].Callsign)
}

func TestDedupeDiscardsTelemetryPrefix(t *testing.T) {
	alt := 500.0
	rate := 5.0
	lat := 52.17
	lon := 20.97
	batch := []Snapshot{
		{Callsign: "TXLU1", Altitude: &alt, VerticalRate: rate, Lat: &lat, Lon: &lon},
		snap("ABC123"),
	}

	out := Dedupe(batch, []string{"TXLU"})
	require.Len(t, out, 1)
	assert.Equal(t, "ABC123", out[0].Callsign)
}

func TestDedupeDiscardsEmptyCallsigns(t *testing.T) {
	batch := []Snapshot{snap(""), snap("ABC123"), snap("")}

	out := Dedupe(batch, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "ABC123", out[0].Callsign)
}

func TestDedupeEmptyBatch(t *testing.T) {
	assert.Empty(t, Dedupe(nil, []string{"TXLU"}))
	assert.Empty(t, Dedupe([]Snapshot{}, []string{"TXLU"}))
}
