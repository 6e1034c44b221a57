package feed

import (
	"context"
	"sync"
	"time"

	"github.com/cloudvance/flightpredict/internal/events"
	"github.com/cloudvance/flightpredict/internal/websocket"
	"github.com/cloudvance/flightpredict/pkg/logger"
)

// Service polls the aircraft feed, filters and deduplicates each batch,
// classifies snapshots into proximity events, and appends them to the
// durable event log
type Service struct {
	client         *Client
	detector       *events.Detector
	eventLog       *events.Log
	wsServer       *websocket.Server
	fetchInterval  time.Duration
	ignorePrefixes []string
	logger         *logger.Logger

	statusMu        sync.RWMutex
	lastFetchOK     bool
	lastFetchTime   time.Time
	eventsThisFetch int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a new feed ingestion service. wsServer may be nil,
// in which case events are not streamed.
func NewService(
	client *Client,
	detector *events.Detector,
	eventLog *events.Log,
	wsServer *websocket.Server,
	fetchInterval time.Duration,
	ignorePrefixes []string,
	log *logger.Logger,
) *Service {
	return &Service{
		client:         client,
		detector:       detector,
		eventLog:       eventLog,
		wsServer:       wsServer,
		fetchInterval:  fetchInterval,
		ignorePrefixes: ignorePrefixes,
		logger:         log.Named("feed"),
		stopCh:         make(chan struct{}),
	}
}

// Start starts the feed ingestion service
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting feed service",
		logger.Duration("fetch_interval", s.fetchInterval),
	)

	// Initial fetch
	if err := s.fetchAndProcess(ctx); err != nil {
		s.logger.Error("Failed to fetch initial snapshot batch", logger.Error(err))
		s.setFetchStatus(false, 0)
	}

	// Start background fetching
	s.wg.Add(1)
	go s.fetchLoop(ctx)

	return nil
}

// Stop stops the feed ingestion service
func (s *Service) Stop() {
	s.logger.Info("Stopping feed service")
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("Feed service stopped")
}

// Status reports whether the last fetch succeeded, when it ran, and how
// many proximity events that fetch produced
func (s *Service) Status() (ok bool, lastFetch time.Time, eventCount int) {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.lastFetchOK, s.lastFetchTime, s.eventsThisFetch
}

// fetchLoop periodically fetches and processes snapshot batches
func (s *Service) fetchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.fetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.fetchAndProcess(ctx); err != nil {
				s.logger.Error("Failed to fetch snapshot batch", logger.Error(err))
				s.setFetchStatus(false, 0)
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// fetchAndProcess fetches one snapshot batch and runs it through the
// detection pipeline. A fetch or parse failure skips the whole cycle; a
// batch that yields no proximity events is a normal outcome.
func (s *Service) fetchAndProcess(ctx context.Context) error {
	batch, err := s.client.FetchBatch(ctx)
	if err != nil {
		return err
	}

	snapshots := Dedupe(batch, s.ignorePrefixes)

	detected := make([]*events.ProximityEvent, 0)
	for _, snap := range snapshots {
		evt, ok := s.detector.Classify(snap)
		if !ok {
			continue
		}
		detected = append(detected, evt)
	}

	if len(detected) > 0 {
		if err := s.eventLog.Append(detected); err != nil {
			return err
		}
		s.broadcastEvents(detected)
	}

	s.logger.Debug("Processed snapshot batch",
		logger.Int("raw", len(batch)),
		logger.Int("deduped", len(snapshots)),
		logger.Int("events", len(detected)),
	)

	s.setFetchStatus(true, len(detected))
	return nil
}

func (s *Service) broadcastEvents(detected []*events.ProximityEvent) {
	if s.wsServer == nil {
		return
	}
	for _, evt := range detected {
		s.wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeProximityEvent,
			Data: map[string]any{
				"callsign":     evt.Callsign,
				"phase":        evt.Phase,
				"airport_name": evt.AirportName,
				"airport_icao": evt.AirportICAO,
				"distance_km":  evt.DistanceKM,
				"altitude":     evt.Altitude,
				"on_ground":    evt.OnGround,
			},
		})
	}
}

func (s *Service) setFetchStatus(ok bool, eventCount int) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.lastFetchOK = ok
	s.lastFetchTime = time.Now().UTC()
	s.eventsThisFetch = eventCount
}
