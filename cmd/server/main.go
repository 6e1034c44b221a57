package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/cloudvance/flightpredict/internal/api"
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

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting flightpredict server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Load airport reference data
	airports, err := geo.LoadAirports(cfg.Airports.DBPath, log)
	if err != nil {
		log.Error("Failed to load airport database", logger.Error(err))
		os.Exit(1)
	}

	// Ensure the data directories exist before opening any stores
	for _, path := range []string{cfg.Storage.SQLitePath, cfg.Correlator.EventLogPath, cfg.Trainer.DatasetPath} {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error("Failed to create data directory", logger.Error(err), logger.String("path", dir))
			os.Exit(1)
		}
	}

	// Create SQLite history storage
	historyStorage, err := sqlite.NewHistoryStorage(
		cfg.Storage.SQLitePath,
		cfg.Storage.MaxRowsInAPI,
		log,
	)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer historyStorage.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	// Create WebSocket server
	wsServer := websocket.NewServer(log)

	// Start WebSocket server
	go wsServer.Run()

	// Create durable pipeline stores
	eventLog := events.NewLog(cfg.Correlator.EventLogPath, log)
	dataset := routes.NewDataset(cfg.Trainer.DatasetPath, log)

	// Create feed components
	feedClient := feed.NewClient(
		cfg.Feed.SourceType,
		cfg.Feed.SourceURL,
		time.Duration(cfg.Feed.RequestTimeoutSecs)*time.Second,
		log,
	)
	detector := events.NewDetector(airports, cfg.Detection.MaxAltitude, cfg.Detection.MaxDistanceKM, log)
	feedService := feed.NewService(
		feedClient,
		detector,
		eventLog,
		wsServer,
		time.Duration(cfg.Feed.FetchIntervalSecs)*time.Second,
		cfg.Feed.IgnorePrefixes,
		log,
	)

	// Create route correlator
	correlator := routes.NewCorrelator(
		eventLog,
		dataset,
		time.Duration(cfg.Correlator.PollIntervalSecs)*time.Second,
		time.Duration(cfg.Correlator.EpochHours)*time.Hour,
		log,
	)
	correlator.SetWebSocketServer(wsServer)

	// Create online trainer
	trainerService := trainer.NewService(
		dataset,
		historyStorage,
		time.Duration(cfg.Trainer.UpdateIntervalMins)*time.Minute,
		log,
	)
	trainerService.SetWebSocketServer(wsServer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feedService.Start(ctx); err != nil {
		log.Error("Failed to start feed service", logger.Error(err))
		os.Exit(1)
	}
	if err := correlator.Start(ctx); err != nil {
		log.Error("Failed to start route correlator", logger.Error(err))
		os.Exit(1)
	}
	if err := trainerService.Start(ctx); err != nil {
		log.Error("Failed to start online trainer", logger.Error(err))
		os.Exit(1)
	}

	// Optional history pruning
	var pruneStop chan struct{}
	if cfg.Storage.RetainedDays > 0 && cfg.Storage.PruneOnTraining {
		pruneStop = make(chan struct{})
		retention := time.Duration(cfg.Storage.RetainedDays) * 24 * time.Hour
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.Trainer.UpdateIntervalMins) * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if _, err := historyStorage.PruneOlderThan(retention); err != nil {
						log.Error("Failed to prune history", logger.Error(err))
					}
				case <-pruneStop:
					return
				}
			}
		}()
	}

	// Create API router
	router := api.NewRouter(trainerService, feedService, historyStorage, cfg, log, wsServer)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}       // Start with the primary port
	if len(cfg.Server.AdditionalPorts) > 0 { // Only append if there are additional ports
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	// Start a server for each configured port
	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      router.Routes(), // All servers use the same main router
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Stop background services first
	log.Info("Stopping feed service...")
	feedService.Stop()
	log.Info("Feed service stopped.")

	log.Info("Stopping route correlator...")
	correlator.Stop()
	log.Info("Route correlator stopped.")

	log.Info("Stopping online trainer...")
	trainerService.Stop()
	log.Info("Online trainer stopped.")

	if pruneStop != nil {
		close(pruneStop)
	}

	// Cancel the main context
	cancel()

	// Shutdown all HTTP servers
	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			log.Info("Attempting to shutdown HTTP server", logger.String("addr", srv.Addr))
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait() // Wait for all server shutdowns to complete

	log.Info("All HTTP servers shutdown.")

	log.Info("Server fully stopped")
}
