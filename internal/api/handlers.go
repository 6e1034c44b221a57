package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cloudvance/flightpredict/internal/config"
	"github.com/cloudvance/flightpredict/internal/feed"
	"github.com/cloudvance/flightpredict/internal/storage/sqlite"
	"github.com/cloudvance/flightpredict/internal/trainer"
	"github.com/cloudvance/flightpredict/internal/websocket"
	"github.com/cloudvance/flightpredict/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	trainerService *trainer.Service
	feedService    *feed.Service
	historyStorage *sqlite.HistoryStorage
	config         *config.Config
	logger         *logger.Logger
	wsServer       *websocket.Server
}

// NewHandler creates a new API handler
func NewHandler(trainerService *trainer.Service, feedService *feed.Service, historyStorage *sqlite.HistoryStorage, config *config.Config, logger *logger.Logger, wsServer *websocket.Server) *Handler {
	return &Handler{
		trainerService: trainerService,
		feedService:    feedService,
		historyStorage: historyStorage,
		config:         config,
		logger:         logger.Named("api-handler"),
		wsServer:       wsServer,
	}
}

// predictRequest is the POST body for destination predictions
type predictRequest struct {
	Callsign string `json:"callsign"`
	DepICAO  string `json:"dep_icao"`
}

// errorResponse is the JSON body for all error replies
type errorResponse struct {
	Error string `json:"error"`
}

// GetPrediction answers a destination prediction query from URL parameters
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	callsign := strings.TrimSpace(r.URL.Query().Get("callsign"))
	depICAO := strings.TrimSpace(r.URL.Query().Get("dep_icao"))

	h.servePrediction(w, callsign, depICAO)
}

// PostPrediction answers a destination prediction query from a JSON body
func (h *Handler) PostPrediction(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	h.servePrediction(w, strings.TrimSpace(req.Callsign), strings.TrimSpace(req.DepICAO))
}

func (h *Handler) servePrediction(w http.ResponseWriter, callsign, depICAO string) {
	if callsign == "" {
		WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "callsign is required"})
		return
	}

	prediction, err := h.trainerService.Predict(callsign, depICAO)
	if err != nil {
		switch {
		case errors.Is(err, trainer.ErrModelNotReady):
			WriteJSON(w, http.StatusNotFound, errorResponse{Error: "model not ready, no routes observed yet"})
		case errors.Is(err, trainer.ErrInsufficientData):
			WriteJSON(w, http.StatusNotFound, errorResponse{Error: "insufficient data for callsign"})
		default:
			h.logger.Error("Prediction failed", logger.Error(err), logger.String("callsign", callsign))
			WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	WriteJSON(w, http.StatusOK, prediction)
}

// GetFlightsFromAirport lists observed (callsign, destination) pairs
// departing a given airport
func (h *Handler) GetFlightsFromAirport(w http.ResponseWriter, r *http.Request) {
	depICAO := strings.TrimSpace(r.URL.Query().Get("dep_icao"))
	if depICAO == "" {
		WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "dep_icao is required"})
		return
	}

	pairs, err := h.trainerService.RoutesFrom(depICAO)
	if err != nil {
		switch {
		case errors.Is(err, trainer.ErrModelNotReady):
			WriteJSON(w, http.StatusNotFound, errorResponse{Error: "model not ready, no routes observed yet"})
		case errors.Is(err, trainer.ErrInsufficientData):
			WriteJSON(w, http.StatusNotFound, errorResponse{Error: "no flights observed from airport"})
		default:
			h.logger.Error("Flight listing failed", logger.Error(err), logger.String("dep_icao", depICAO))
			WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"dep_icao": depICAO,
		"flights":  pairs,
	})
}

// GetMetrics returns recent training run metrics, newest first
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	runs, err := h.historyStorage.RecentTrainingRuns()
	if err != nil {
		h.logger.Error("Failed to load training runs", logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"training_runs": runs,
	})
}

// GetRecentPredictions returns recently served predictions, newest first
func (h *Handler) GetRecentPredictions(w http.ResponseWriter, r *http.Request) {
	preds, err := h.historyStorage.RecentPredictions()
	if err != nil {
		h.logger.Error("Failed to load predictions", logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"predictions": preds,
	})
}

// GetHealth reports feed and model status
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	fitted, samples, updatedAt := h.trainerService.Status()

	status := map[string]any{
		"status":        "ok",
		"model_fitted":  fitted,
		"model_samples": samples,
	}
	if fitted {
		status["model_updated_at"] = updatedAt.Format(time.RFC3339)
	}

	if h.feedService != nil {
		feedOK, lastFetch, eventCount := h.feedService.Status()
		status["feed_ok"] = feedOK
		status["last_fetch_events"] = eventCount
		if !lastFetch.IsZero() {
			status["last_fetch"] = lastFetch.Format(time.RFC3339)
		}
	}

	WriteJSON(w, http.StatusOK, status)
}

// HandleWebSocket upgrades the connection and attaches it to the event stream
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
