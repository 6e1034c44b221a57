package trainer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cloudvance/flightpredict/internal/routes"
	"github.com/cloudvance/flightpredict/internal/websocket"
	"github.com/cloudvance/flightpredict/pkg/logger"
)

// ErrModelNotReady is returned before the first successful model fit
var ErrModelNotReady = errors.New("model not ready")

// ErrInsufficientData is returned when a query cannot be answered from the
// accumulated route dataset. It signals missing data, not a system error.
var ErrInsufficientData = errors.New("insufficient data")

// Prediction is a single destination prediction
type Prediction struct {
	Callsign string `json:"callsign"`
	DepICAO  string `json:"dep_icao"`
	ArrICAO  string `json:"arr_icao"`
}

// RoutePair is one (callsign, destination) observation for a departure airport
type RoutePair struct {
	Callsign string `json:"callsign"`
	ArrICAO  string `json:"arr_icao"`
}

// TrainingRun records one completed model update for the history store
type TrainingRun struct {
	Timestamp  time.Time
	Metrics    Metrics
	LabelCount int
	FirstFit   bool
}

// History persists training runs and served predictions
type History interface {
	InsertTrainingRun(run TrainingRun) error
	InsertPrediction(p Prediction) error
}

// Snapshot is the complete, immutable serving state published after each
// successful model update. Readers always hold either the previous
// complete snapshot or the next one, never a partial state.
type Snapshot struct {
	model       *SGDClassifier
	vectorizer  *Vectorizer
	originIndex map[string]string
	routesByDep map[string][]RoutePair
	samples     int
	updatedAt   time.Time
}

// Service owns the model state and runs the online training loop. The
// prediction path reads only published snapshots and never blocks on a
// training cycle.
type Service struct {
	dataset  *routes.Dataset
	history  History
	interval time.Duration
	wsServer *websocket.Server
	logger   *logger.Logger

	// Trainer-owned mutable state, touched only by the update cycle
	model      *SGDClassifier
	vectorizer *Vectorizer
	fitted     bool

	// Published serving state
	mu   sync.RWMutex
	snap *Snapshot

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a new trainer service. history may be nil, in which
// case runs are not persisted.
func NewService(dataset *routes.Dataset, history History, interval time.Duration, log *logger.Logger) *Service {
	return &Service{
		dataset:    dataset,
		history:    history,
		interval:   interval,
		logger:     log.Named("trainer"),
		model:      NewSGDClassifier(),
		vectorizer: NewVectorizer(),
		stopCh:     make(chan struct{}),
	}
}

// SetWebSocketServer attaches a WebSocket server for streaming training
// cycle completions to connected clients
func (s *Service) SetWebSocketServer(ws *websocket.Server) {
	s.wsServer = ws
}

// Start launches the training loop. The first update runs immediately;
// later updates follow the configured interval.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting online trainer", logger.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.updateLoop(ctx)
	return nil
}

// Stop signals the training loop to exit and waits for it. An in-flight
// update is allowed to finish.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("Online trainer stopped")
}

func (s *Service) updateLoop(ctx context.Context) {
	defer s.wg.Done()

	if err := s.UpdateOnce(); err != nil {
		s.logger.Warn("Initial model update failed", logger.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.UpdateOnce(); err != nil {
				s.logger.Warn("Model update failed", logger.Error(err))
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// UpdateOnce reloads the full route dataset, fits or incrementally updates
// the model, reports metrics over the training batch, and publishes a new
// serving snapshot. An empty dataset is not an error; the model simply
// stays unfit until routes accumulate.
func (s *Service) UpdateOnce() error {
	start := time.Now()

	records, err := s.dataset.ReadAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		s.logger.Debug("Route dataset empty, model update skipped")
		return nil
	}

	callsigns := make([]string, len(records))
	origins := make([]string, len(records))
	labels := make([]string, len(records))
	for i, r := range records {
		callsigns[i] = r.Callsign
		origins[i] = r.DepICAO
		labels[i] = r.ArrICAO
	}

	firstFit := !s.fitted
	if firstFit {
		// First fit freezes the feature vocabulary and category universe
		s.vectorizer.Fit(callsigns, origins)
	}

	x := make([]map[int]float64, len(records))
	for i := range records {
		x[i] = s.vectorizer.Transform(callsigns[i], origins[i])
	}

	universe := uniqueLabels(labels)
	if firstFit {
		s.model.Fit(x, labels)
		s.fitted = true
	} else {
		s.model.PartialFit(x, labels, universe)
	}

	preds := make([]string, len(records))
	for i := range x {
		preds[i], _ = s.model.Predict(x[i])
	}
	metrics := Evaluate(labels, preds, universe)

	s.logger.Info("Model updated",
		logger.Bool("first_fit", firstFit),
		logger.Int("samples", metrics.Samples),
		logger.Int("labels", len(universe)),
		logger.Float64("accuracy", metrics.Accuracy),
		logger.Float64("macro_recall", metrics.MacroRecall),
		logger.Float64("macro_f1", metrics.MacroF1),
		logger.Duration("duration", time.Since(start)),
	)

	if s.history != nil {
		run := TrainingRun{
			Timestamp:  time.Now().UTC(),
			Metrics:    metrics,
			LabelCount: len(universe),
			FirstFit:   firstFit,
		}
		if err := s.history.InsertTrainingRun(run); err != nil {
			s.logger.Warn("Failed to persist training run", logger.Error(err))
		}
	}

	s.publish(records)

	if s.wsServer != nil {
		s.wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeModelUpdated,
			Data: map[string]any{
				"first_fit":    firstFit,
				"samples":      metrics.Samples,
				"labels":       len(universe),
				"accuracy":     metrics.Accuracy,
				"macro_recall": metrics.MacroRecall,
				"macro_f1":     metrics.MacroF1,
			},
		})
	}
	return nil
}

// publish rebuilds the origin index and route listing wholesale and swaps
// in a complete new snapshot
func (s *Service) publish(records []routes.Record) {
	originIndex := make(map[string]string, len(records))
	routesByDep := make(map[string][]RoutePair)
	seenPairs := make(map[routes.Record]bool)

	for _, r := range records {
		// Last occurrence wins: the most recently observed origin
		originIndex[r.Callsign] = r.DepICAO

		if !seenPairs[r] {
			seenPairs[r] = true
			routesByDep[r.DepICAO] = append(routesByDep[r.DepICAO], RoutePair{
				Callsign: r.Callsign,
				ArrICAO:  r.ArrICAO,
			})
		}
	}

	snap := &Snapshot{
		model:       s.model.clone(),
		vectorizer:  s.vectorizer.clone(),
		originIndex: originIndex,
		routesByDep: routesByDep,
		samples:     len(records),
		updatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *Service) snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Predict answers a destination query for the given callsign. When origin
// is empty it falls back to the most recently observed origin for that
// callsign; with no recorded origin either, the result is
// ErrInsufficientData. Before the first fit the result is ErrModelNotReady.
func (s *Service) Predict(callsign, origin string) (Prediction, error) {
	snap := s.snapshot()
	if snap == nil {
		return Prediction{}, ErrModelNotReady
	}

	resolved := origin
	if resolved == "" {
		known, ok := snap.originIndex[callsign]
		if !ok {
			return Prediction{}, ErrInsufficientData
		}
		resolved = known
	}

	x := snap.vectorizer.Transform(callsign, resolved)
	label, ok := snap.model.Predict(x)
	if !ok {
		return Prediction{}, ErrModelNotReady
	}

	p := Prediction{Callsign: callsign, DepICAO: resolved, ArrICAO: label}

	if s.history != nil {
		if err := s.history.InsertPrediction(p); err != nil {
			s.logger.Warn("Failed to persist prediction", logger.Error(err))
		}
	}

	s.logger.Info("Prediction served",
		logger.String("callsign", p.Callsign),
		logger.String("dep_icao", p.DepICAO),
		logger.String("arr_icao", p.ArrICAO),
	)
	return p, nil
}

// RoutesFrom returns the deduplicated (callsign, destination) pairs
// observed departing the given airport code
func (s *Service) RoutesFrom(depICAO string) ([]RoutePair, error) {
	snap := s.snapshot()
	if snap == nil {
		return nil, ErrModelNotReady
	}
	pairs := snap.routesByDep[depICAO]
	if len(pairs) == 0 {
		return nil, ErrInsufficientData
	}
	out := make([]RoutePair, len(pairs))
	copy(out, pairs)
	return out, nil
}

// Status reports whether the model has been fit, the size of the last
// training batch, and when the serving snapshot was last published
func (s *Service) Status() (fitted bool, samples int, updatedAt time.Time) {
	snap := s.snapshot()
	if snap == nil {
		return false, 0, time.Time{}
	}
	return true, snap.samples, snap.updatedAt
}

func uniqueLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	var out []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
