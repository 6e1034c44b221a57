package events

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/cloudvance/flightpredict/pkg/logger"
)

var logHeader = []string{
	"callsign", "marker", "alt", "vsi", "lat", "lon",
	"direction", "airport_name", "airport_icao", "distance_km",
}

// Log is the durable append-only proximity event store. Records are never
// rewritten, reordered, or deleted; the header row is written exactly once,
// when the file is created. Appends are flushed and synced before Append
// returns so concurrent whole-file readers see only complete records.
type Log struct {
	path   string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewLog creates an event log backed by the CSV file at path
func NewLog(path string, log *logger.Logger) *Log {
	return &Log{
		path:   path,
		logger: log.Named("event-log"),
	}
}

// Path returns the backing file path
func (l *Log) Path() string {
	return l.path
}

// Append durably appends a batch of events. A crash mid-batch may leave a
// prefix of the batch persisted; prior records are never touched.
func (l *Log) Append(batch []*ProximityEvent) error {
	if len(batch) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat event log: %w", err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(logHeader); err != nil {
			return fmt.Errorf("failed to write event log header: %w", err)
		}
	}

	for _, event := range batch {
		if err := writer.Write(eventToRow(event)); err != nil {
			return fmt.Errorf("failed to write event record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush event log: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync event log: %w", err)
	}

	l.logger.Debug("Appended proximity events", logger.Int("count", len(batch)))
	return nil
}

// ReadAll reads every event currently persisted. The correlator calls this
// once per epoch; a missing file is an error the caller logs and retries.
func (l *Log) ReadAll() ([]ProximityEvent, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Skip header
	events := make([]ProximityEvent, 0, len(rows)-1)
	for _, row := range rows[1:] {
		event, err := rowToEvent(row)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func eventToRow(e *ProximityEvent) []string {
	alt := strconv.FormatFloat(e.Altitude, 'f', -1, 64)
	if e.OnGround {
		alt = GroundSentinel
	}
	return []string{
		e.Callsign,
		e.Marker,
		alt,
		strconv.FormatFloat(e.VerticalRate, 'f', -1, 64),
		strconv.FormatFloat(e.Lat, 'f', -1, 64),
		strconv.FormatFloat(e.Lon, 'f', -1, 64),
		e.Phase,
		e.AirportName,
		e.AirportICAO,
		strconv.FormatFloat(e.DistanceKM, 'f', 2, 64),
	}
}

func rowToEvent(row []string) (ProximityEvent, error) {
	if len(row) < 10 {
		return ProximityEvent{}, fmt.Errorf("malformed event record: %d columns", len(row))
	}

	event := ProximityEvent{
		Callsign:    row[0],
		Marker:      row[1],
		Phase:       row[6],
		AirportName: row[7],
		AirportICAO: row[8],
	}

	if row[2] == GroundSentinel {
		event.OnGround = true
	} else if alt, err := strconv.ParseFloat(row[2], 64); err == nil {
		event.Altitude = alt
	}
	if vsi, err := strconv.ParseFloat(row[3], 64); err == nil {
		event.VerticalRate = vsi
	}
	if lat, err := strconv.ParseFloat(row[4], 64); err == nil {
		event.Lat = lat
	}
	if lon, err := strconv.ParseFloat(row[5], 64); err == nil {
		event.Lon = lon
	}
	if dist, err := strconv.ParseFloat(row[9], 64); err == nil {
		event.DistanceKM = dist
	}

	return event, nil
}
