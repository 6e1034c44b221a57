package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cloudvance/flightpredict/internal/trainer"
	"github.com/cloudvance/flightpredict/pkg/logger"
	_ "modernc.org/sqlite"
)

// TrainingRunRecord is one persisted model update as returned to the API
type TrainingRunRecord struct {
	ID          int     `json:"id"`
	Timestamp   string  `json:"timestamp"`
	Samples     int     `json:"samples"`
	LabelCount  int     `json:"label_count"`
	FirstFit    bool    `json:"first_fit"`
	Accuracy    float64 `json:"accuracy"`
	MacroRecall float64 `json:"macro_recall"`
	MacroF1     float64 `json:"macro_f1"`
}

// PredictionRecord is one served prediction as returned to the API
type PredictionRecord struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	Callsign  string `json:"callsign"`
	DepICAO   string `json:"dep_icao"`
	ArrICAO   string `json:"arr_icao"`
}

// HistoryStorage is a SQLite-based store for training runs and served
// predictions
type HistoryStorage struct {
	db           *sql.DB
	logger       *logger.Logger
	maxRowsInAPI int
}

// NewHistoryStorage creates a new SQLite-based history storage
func NewHistoryStorage(dbPath string, maxRowsInAPI int, log *logger.Logger) (*HistoryStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &HistoryStorage{
		db:           db,
		logger:       storageLogger,
		maxRowsInAPI: maxRowsInAPI,
	}, nil
}

// Close closes the database connection
func (s *HistoryStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS training_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TIMESTAMP NOT NULL,
			samples INTEGER NOT NULL,
			label_count INTEGER NOT NULL,
			first_fit INTEGER NOT NULL DEFAULT 0,
			accuracy REAL NOT NULL,
			macro_recall REAL NOT NULL,
			macro_f1 REAL NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create training_runs table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS predictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TIMESTAMP NOT NULL,
			callsign TEXT NOT NULL,
			dep_icao TEXT NOT NULL,
			arr_icao TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create predictions table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_training_runs_timestamp ON training_runs(timestamp)`)
	if err != nil {
		return fmt.Errorf("failed to create index on training_runs.timestamp: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp)`)
	if err != nil {
		return fmt.Errorf("failed to create index on predictions.timestamp: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_predictions_callsign ON predictions(callsign)`)
	if err != nil {
		return fmt.Errorf("failed to create index on predictions.callsign: %w", err)
	}

	log.Info("Database schema initialized successfully")
	return nil
}

// InsertTrainingRun persists one completed model update
func (s *HistoryStorage) InsertTrainingRun(run trainer.TrainingRun) error {
	_, err := s.db.Exec(`
		INSERT INTO training_runs (timestamp, samples, label_count, first_fit, accuracy, macro_recall, macro_f1)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.Timestamp.UTC().Format(time.RFC3339),
		run.Metrics.Samples,
		run.LabelCount,
		boolToInt(run.FirstFit),
		run.Metrics.Accuracy,
		run.Metrics.MacroRecall,
		run.Metrics.MacroF1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert training run: %w", err)
	}
	return nil
}

// InsertPrediction persists one served prediction
func (s *HistoryStorage) InsertPrediction(p trainer.Prediction) error {
	_, err := s.db.Exec(`
		INSERT INTO predictions (timestamp, callsign, dep_icao, arr_icao)
		VALUES (?, ?, ?, ?)
	`,
		time.Now().UTC().Format(time.RFC3339),
		p.Callsign,
		p.DepICAO,
		p.ArrICAO,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// RecentTrainingRuns returns the most recent training runs, newest first,
// capped at the configured API row limit
func (s *HistoryStorage) RecentTrainingRuns() ([]TrainingRunRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, samples, label_count, first_fit, accuracy, macro_recall, macro_f1
		FROM training_runs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, s.maxRowsInAPI)
	if err != nil {
		return nil, fmt.Errorf("failed to query training runs: %w", err)
	}
	defer rows.Close()

	runs := []TrainingRunRecord{}
	for rows.Next() {
		var r TrainingRunRecord
		var firstFit int
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Samples, &r.LabelCount, &firstFit,
			&r.Accuracy, &r.MacroRecall, &r.MacroF1); err != nil {
			return nil, fmt.Errorf("failed to scan training run row: %w", err)
		}
		r.FirstFit = firstFit != 0
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating training run rows: %w", err)
	}

	return runs, nil
}

// RecentPredictions returns the most recent served predictions, newest
// first, capped at the configured API row limit
func (s *HistoryStorage) RecentPredictions() ([]PredictionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, callsign, dep_icao, arr_icao
		FROM predictions
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, s.maxRowsInAPI)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	preds := []PredictionRecord{}
	for rows.Next() {
		var p PredictionRecord
		if err := rows.Scan(&p.ID, &p.Timestamp, &p.Callsign, &p.DepICAO, &p.ArrICAO); err != nil {
			return nil, fmt.Errorf("failed to scan prediction row: %w", err)
		}
		preds = append(preds, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prediction rows: %w", err)
	}

	return preds, nil
}

// PruneOlderThan deletes training runs and predictions older than the
// given retention window. Returns the total rows removed.
func (s *HistoryStorage) PruneOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)

	res, err := s.db.Exec(`DELETE FROM training_runs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune training runs: %w", err)
	}
	runsPruned, _ := res.RowsAffected()

	res, err = s.db.Exec(`DELETE FROM predictions WHERE timestamp < ?`, cutoff)
	if err != nil {
		return runsPruned, fmt.Errorf("failed to prune predictions: %w", err)
	}
	predsPruned, _ := res.RowsAffected()

	total := runsPruned + predsPruned
	if total > 0 {
		s.logger.Info("Pruned history rows",
			logger.Int64("training_runs", runsPruned),
			logger.Int64("predictions", predsPruned))
	}
	return total, nil
}

// boolToInt converts a boolean to an integer (1 for true, 0 for false)
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
