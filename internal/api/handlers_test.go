package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudvance/flightpredict/internal/config"
	"github.com/cloudvance/flightpredict/internal/events"
	"github.com/cloudvance/flightpredict/internal/feed"
	"github.com/cloudvance/flightpredict/internal/geo"
	"github.com/cloudvance/flightpredict/internal/routes"
	"github.com/cloudvance/flightpredict/internal/storage/sqlite"
	"github.com/cloudvance/flightpredict/internal/trainer"
	"github.com/cloudvance/flightpredict/internal/websocket"
	"github.com/cloudvance/flightpredict/pkg/logger"
)

type apiFixture struct {
	router  http.Handler
	trainer *trainer.Service
	history *sqlite.HistoryStorage
	dataset *routes.Dataset
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	dir := t.TempDir()
	log := logger.NewNop()

	dataset := routes.NewDataset(filepath.Join(dir, "routes.csv"), log)
	history, err := sqlite.NewHistoryStorage(filepath.Join(dir, "history.db"), 100, log)
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	trainerService := trainer.NewService(dataset, history, time.Minute, log)

	cfg := &config.Config{}
	cfg.Server.CORSAllowedOrigins = []string{"*"}

	router := NewRouter(trainerService, nil, history, cfg, log, websocket.NewServer(log))
	return &apiFixture{
		router:  router.Routes(),
		trainer: trainerService,
		history: history,
		dataset: dataset,
	}
}

func (f *apiFixture) trainWith(t *testing.T, records []routes.Record) {
	t.Helper()
	require.NoError(t, f.dataset.Append(records))
	require.NoError(t, f.trainer.UpdateOnce())
}

func (f *apiFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPredictMissingCallsign(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/predict", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictModelNotReady(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/predict?callsign=LOT123", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "model not ready")
}

func TestPredictKnownRoute(t *testing.T) {
	f := newAPIFixture(t)
	f.trainWith(t, []routes.Record{
		{Callsign: "LOT123", DepICAO: "EPWA", ArrICAO: "EGLL"},
		{Callsign: "BAW456", DepICAO: "EGLL", ArrICAO: "EPWA"},
	})

	rec := f.do(t, http.MethodGet, "/api/v1/predict?callsign=LOT123&dep_icao=EPWA", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "LOT123", body["callsign"])
	assert.Equal(t, "EPWA", body["dep_icao"])
	assert.Equal(t, "EGLL", body["arr_icao"])
}

func TestPredictPostBody(t *testing.T) {
	f := newAPIFixture(t)
	f.trainWith(t, []routes.Record{
		{Callsign: "LOT123", DepICAO: "EPWA", ArrICAO: "EGLL"},
		{Callsign: "BAW456", DepICAO: "EGLL", ArrICAO: "EPWA"},
	})

	rec := f.do(t, http.MethodPost, "/api/v1/predict", `{"callsign": "LOT123", "dep_icao": "EPWA"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "EGLL", body["arr_icao"])

	rec = f.do(t, http.MethodPost, "/api/v1/predict", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictUnknownCallsignWithoutOrigin(t *testing.T) {
	f := newAPIFixture(t)
	f.trainWith(t, []routes.Record{
		{Callsign: "LOT123", DepICAO: "EPWA", ArrICAO: "EGLL"},
	})

	rec := f.do(t, http.MethodGet, "/api/v1/predict?callsign=ZZZ999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "insufficient data")
}

func TestFlightsFromAirport(t *testing.T) {
	f := newAPIFixture(t)
	f.trainWith(t, []routes.Record{
		{Callsign: "LOT123", DepICAO: "EPWA", ArrICAO: "EGLL"},
		{Callsign: "LOT777", DepICAO: "EPWA", ArrICAO: "EHAM"},
		{Callsign: "BAW456", DepICAO: "EGLL", ArrICAO: "EPWA"},
	})

	rec := f.do(t, http.MethodGet, "/api/v1/flights_from_airport?dep_icao=EPWA", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "EPWA", body["dep_icao"])
	flights, ok := body["flights"].([]any)
	require.True(t, ok)
	assert.Len(t, flights, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/flights_from_airport", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/flights_from_airport?dep_icao=LFPG", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.trainWith(t, []routes.Record{
		{Callsign: "LOT123", DepICAO: "EPWA", ArrICAO: "EGLL"},
	})

	rec := f.do(t, http.MethodGet, "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	runs, ok := body["training_runs"].([]any)
	require.True(t, ok)
	require.Len(t, runs, 1)

	run := runs[0].(map[string]any)
	assert.Equal(t, float64(1), run["samples"])
	assert.Equal(t, true, run["first_fit"])
}

func TestRecentPredictionsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.trainWith(t, []routes.Record{
		{Callsign: "LOT123", DepICAO: "EPWA", ArrICAO: "EGLL"},
	})

	// Serving a prediction records it in history
	rec := f.do(t, http.MethodGet, "/api/v1/predict?callsign=LOT123", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/predictions/recent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	preds, ok := body["predictions"].([]any)
	require.True(t, ok)
	require.Len(t, preds, 1)
	assert.Equal(t, "LOT123", preds[0].(map[string]any)["callsign"])
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["model_fitted"])

	f.trainWith(t, []routes.Record{
		{Callsign: "LOT123", DepICAO: "EPWA", ArrICAO: "EGLL"},
	})

	rec = f.do(t, http.MethodGet, "/api/v1/health", "")
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["model_fitted"])
	assert.Equal(t, float64(1), body["model_samples"])
}

func TestHealthEndpointReportsFeedStatus(t *testing.T) {
	dir := t.TempDir()
	log := logger.NewNop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"acList": [
			{"Call": "LOT123", "Alt": 1500, "Vsi": 800, "Lat": 52.1657, "Long": 20.9671}
		]}`))
	}))
	t.Cleanup(srv.Close)

	airports := geo.NewAirportIndex([]geo.Airport{
		{Name: "Warsaw Chopin Airport", ICAO: "EPWA", Lat: 52.1657, Lon: 20.9671},
	})
	detector := events.NewDetector(airports, 3000, 10.0, log)
	eventLog := events.NewLog(filepath.Join(dir, "events.csv"), log)
	client := feed.NewClient("vrs", srv.URL, 5*time.Second, log)
	feedService := feed.NewService(client, detector, eventLog, nil, time.Hour, nil, log)

	require.NoError(t, feedService.Start(context.Background()))
	t.Cleanup(feedService.Stop)

	dataset := routes.NewDataset(filepath.Join(dir, "routes.csv"), log)
	history, err := sqlite.NewHistoryStorage(filepath.Join(dir, "history.db"), 100, log)
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })
	trainerService := trainer.NewService(dataset, history, time.Minute, log)

	cfg := &config.Config{}
	cfg.Server.CORSAllowedOrigins = []string{"*"}
	router := NewRouter(trainerService, feedService, history, cfg, log, websocket.NewServer(log)).Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["feed_ok"])
	assert.Equal(t, float64(1), body["last_fetch_events"])
	assert.NotEmpty(t, body["last_fetch"])
}

func TestCORSHeaders(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
