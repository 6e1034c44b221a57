package routes

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/cloudvance/flightpredict/pkg/logger"
)

var datasetHeader = []string{"callsign", "dep_icao", "arr_icao"}

// Record is one inferred directed trip: the callsign departed dep and
// arrived at arr. Origin and destination are never the same airport.
type Record struct {
	Callsign string `json:"callsign"`
	DepICAO  string `json:"dep_icao"`
	ArrICAO  string `json:"arr_icao"`
}

// Dataset is the durable, monotonically growing route record store that
// feeds the online trainer. Same append-only discipline as the event log:
// header written once, guarded by an empty-file check, appends flushed
// and synced before returning.
type Dataset struct {
	path   string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewDataset creates a route dataset backed by the CSV file at path
func NewDataset(path string, log *logger.Logger) *Dataset {
	return &Dataset{
		path:   path,
		logger: log.Named("route-dataset"),
	}
}

// Path returns the backing file path
func (d *Dataset) Path() string {
	return d.path
}

// Append durably appends route records
func (d *Dataset) Append(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	file, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open route dataset: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat route dataset: %w", err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(datasetHeader); err != nil {
			return fmt.Errorf("failed to write route dataset header: %w", err)
		}
	}

	for _, r := range records {
		if err := writer.Write([]string{r.Callsign, r.DepICAO, r.ArrICAO}); err != nil {
			return fmt.Errorf("failed to write route record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush route dataset: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync route dataset: %w", err)
	}

	d.logger.Debug("Appended route records", logger.Int("count", len(records)))
	return nil
}

// ReadAll returns every route record in dataset order. A dataset file that
// does not exist yet reads as empty: the trainer treats that as
// "not ready", not a failure.
func (d *Dataset) ReadAll() ([]Record, error) {
	file, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open route dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read route dataset: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 3 {
			return nil, fmt.Errorf("malformed route record: %d columns", len(row))
		}
		records = append(records, Record{
			Callsign: row[0],
			DepICAO:  row[1],
			ArrICAO:  row[2],
		})
	}
	return records, nil
}
