package routes

import (
	"context"
	"sync"
	"time"

	"github.com/cloudvance/flightpredict/internal/events"
	"github.com/cloudvance/flightpredict/internal/websocket"
	"github.com/cloudvance/flightpredict/pkg/logger"
)

// pairKey identifies an emitted route pair for in-epoch deduplication
type pairKey struct {
	callsign string
	depName  string
	depICAO  string
	arrName  string
	arrICAO  string
}

// Correlator pairs each callsign's climbing events with its descending
// events to infer directed routes. Correlation is batched: the full event
// log is rescanned once per epoch (default 24h) rather than per event,
// trading latency for throughput. Pairs already emitted in the current
// epoch are suppressed; the dedup set is cleared at the epoch boundary so
// repeated real-world trips land as separate dataset rows over time.
type Correlator struct {
	eventLog     *events.Log
	dataset      *Dataset
	pollInterval time.Duration
	epoch        time.Duration
	wsServer     *websocket.Server
	logger       *logger.Logger

	mu       sync.Mutex
	seen     map[pairKey]bool
	lastRun  time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCorrelator creates a new route correlator
func NewCorrelator(eventLog *events.Log, dataset *Dataset, pollInterval, epoch time.Duration, log *logger.Logger) *Correlator {
	return &Correlator{
		eventLog:     eventLog,
		dataset:      dataset,
		pollInterval: pollInterval,
		epoch:        epoch,
		seen:         make(map[pairKey]bool),
		logger:       log.Named("correlator"),
		stopCh:       make(chan struct{}),
	}
}

// SetWebSocketServer attaches a WebSocket server for streaming new route
// records to connected clients
func (c *Correlator) SetWebSocketServer(ws *websocket.Server) {
	c.wsServer = ws
}

// Start launches the correlator poll loop
func (c *Correlator) Start(ctx context.Context) error {
	c.logger.Info("Starting route correlator",
		logger.Duration("poll_interval", c.pollInterval),
		logger.Duration("epoch", c.epoch))

	c.wg.Add(1)
	go c.pollLoop(ctx)
	return nil
}

// Stop signals the poll loop to exit and waits for it
func (c *Correlator) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	c.logger.Info("Route correlator stopped")
}

func (c *Correlator) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.tick()
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one correlation epoch when the epoch timer has elapsed. The
// previous epoch's dedup set is cleared at the boundary, before the new
// epoch's run.
func (c *Correlator) tick() {
	c.mu.Lock()
	due := time.Since(c.lastRun) >= c.epoch
	c.mu.Unlock()
	if !due {
		return
	}

	c.ClearSeen()
	added, err := c.RunOnce()
	if err != nil {
		// Missing or unreadable event source: abort this attempt and let
		// the next poll tick retry. The loop must survive.
		c.logger.Warn("Correlation epoch attempt failed", logger.Error(err))
		return
	}

	c.mu.Lock()
	c.lastRun = time.Now()
	c.mu.Unlock()

	c.logger.Info("Correlation epoch complete", logger.Int("routes_added", added))
}

// RunOnce reads the full event log, correlates it against the current
// epoch's dedup set, and appends any new route records. Running it twice
// over an unchanged log within one epoch appends zero rows the second time.
// It returns the number of records appended.
func (c *Correlator) RunOnce() (int, error) {
	evts, err := c.eventLog.ReadAll()
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	records := Correlate(evts, c.seen)
	c.mu.Unlock()

	if len(records) == 0 {
		return 0, nil
	}
	if err := c.dataset.Append(records); err != nil {
		return 0, err
	}

	if c.wsServer != nil {
		for _, r := range records {
			c.wsServer.Broadcast(&websocket.Message{
				Type: websocket.MessageTypeRouteRecorded,
				Data: map[string]any{
					"callsign": r.Callsign,
					"dep_icao": r.DepICAO,
					"arr_icao": r.ArrICAO,
				},
			})
		}
	}
	return len(records), nil
}

// ClearSeen resets the epoch deduplication set
func (c *Correlator) ClearSeen() {
	c.mu.Lock()
	c.seen = make(map[pairKey]bool)
	c.mu.Unlock()
}

// airportRef is one (name, icao) observation used during pairing
type airportRef struct {
	name string
	icao string
}

// Correlate groups events by callsign into climbing and descending lists,
// forms the cross product of (climb airport, descend airport) pairs for
// callsigns that have both, drops pairs whose origin and destination
// airport names are equal, and suppresses pairs already present in seen
// (which it extends). Output order follows first appearance of each
// callsign in the event sequence.
func Correlate(evts []events.ProximityEvent, seen map[pairKey]bool) []Record {
	type buckets struct {
		climbing   []airportRef
		descending []airportRef
	}

	order := make([]string, 0)
	byCallsign := make(map[string]*buckets)

	for _, e := range evts {
		b, ok := byCallsign[e.Callsign]
		if !ok {
			b = &buckets{}
			byCallsign[e.Callsign] = b
			order = append(order, e.Callsign)
		}
		ref := airportRef{name: e.AirportName, icao: e.AirportICAO}
		switch e.Phase {
		case events.PhaseClimbing:
			b.climbing = append(b.climbing, ref)
		case events.PhaseDescending:
			b.descending = append(b.descending, ref)
		}
	}

	var records []Record
	for _, callsign := range order {
		b := byCallsign[callsign]
		if len(b.climbing) == 0 || len(b.descending) == 0 {
			continue
		}
		for _, dep := range b.climbing {
			for _, arr := range b.descending {
				if dep.name == arr.name {
					continue
				}
				key := pairKey{
					callsign: callsign,
					depName:  dep.name,
					depICAO:  dep.icao,
					arrName:  arr.name,
					arrICAO:  arr.icao,
				}
				if seen[key] {
					continue
				}
				seen[key] = true
				records = append(records, Record{
					Callsign: callsign,
					DepICAO:  dep.icao,
					ArrICAO:  arr.icao,
				})
			}
		}
	}

	return records
}
