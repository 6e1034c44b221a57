package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cloudvance/flightpredict/internal/config"
	"github.com/cloudvance/flightpredict/internal/feed"
	"github.com/cloudvance/flightpredict/internal/storage/sqlite"
	"github.com/cloudvance/flightpredict/internal/trainer"
	"github.com/cloudvance/flightpredict/internal/websocket"
	"github.com/cloudvance/flightpredict/pkg/logger"
)

// Router wires the API handlers into a chi router
type Router struct {
	handler *Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(trainerService *trainer.Service, feedService *feed.Service, historyStorage *sqlite.HistoryStorage, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server) *Router {
	return &Router{
		handler: NewHandler(trainerService, feedService, historyStorage, cfg, log, wsServer),
		config:  cfg,
		logger:  log.Named("api-router"),
	}
}

// Routes returns the HTTP handler with all routes registered
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(rt.corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/predict", rt.handler.GetPrediction)
		r.Post("/predict", rt.handler.PostPrediction)
		r.Get("/flights_from_airport", rt.handler.GetFlightsFromAirport)
		r.Get("/metrics", rt.handler.GetMetrics)
		r.Get("/predictions/recent", rt.handler.GetRecentPredictions)
		r.Get("/health", rt.handler.GetHealth)
	})

	r.Get("/ws", rt.handler.HandleWebSocket)

	return r
}

// corsMiddleware applies the configured CORS policy
func (rt *Router) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && rt.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rt *Router) originAllowed(origin string) bool {
	for _, allowed := range rt.config.Server.CORSAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
