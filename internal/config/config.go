package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Feed       FeedConfig       `toml:"feed"`       // Aircraft snapshot feed settings
	Airports   AirportsConfig   `toml:"airports"`   // Airport reference data settings
	Detection  DetectionConfig  `toml:"detection"`  // Proximity event detection thresholds
	Correlator CorrelatorConfig `toml:"correlator"` // Route correlation settings
	Trainer    TrainerConfig    `toml:"trainer"`    // Online model training settings
	Storage    StorageConfig    `toml:"storage"`    // Data persistence settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
}

// FeedConfig contains aircraft snapshot feed configuration
type FeedConfig struct {
	// Source selection
	// Allowed values:
	// - "vrs": Virtual Radar Server style aircraftlist.json (acList array)
	// - "readsb": dump1090/tar1090/readsb style aircraft.json (aircraft array)
	SourceType string `toml:"source_type"`

	SourceURL          string   `toml:"source_url"`              // URL of the aircraft list JSON endpoint
	FetchIntervalSecs  int      `toml:"fetch_interval_seconds"`  // How often to poll the feed (in seconds)
	RequestTimeoutSecs int      `toml:"request_timeout_seconds"` // HTTP request timeout for feed fetches (in seconds)
	IgnorePrefixes     []string `toml:"ignore_prefixes"`         // Callsign prefixes to discard (non-aircraft telemetry, e.g. "TXLU")
}

// AirportsConfig contains airport reference data configuration
type AirportsConfig struct {
	DBPath string `toml:"db_path"` // Path to airport reference CSV file (name,icao,latitude_deg,longitude_deg)
}

// DetectionConfig contains proximity event detection thresholds
type DetectionConfig struct {
	MaxAltitude   float64 `toml:"max_altitude"`    // Altitude at or above which a snapshot is treated as en-route, not taking off/landing (default: 3000)
	MaxDistanceKM float64 `toml:"max_distance_km"` // Maximum distance to the nearest airport for a proximity match (default: 10.0)
}

// CorrelatorConfig contains route correlation settings
type CorrelatorConfig struct {
	EventLogPath     string `toml:"event_log_path"`        // Path to the proximity event CSV log
	PollIntervalSecs int    `toml:"poll_interval_seconds"` // How often the correlator checks its epoch timer (default: 60)
	EpochHours       int    `toml:"epoch_hours"`           // Correlation epoch length in hours (default: 24)
}

// TrainerConfig contains online model training settings
type TrainerConfig struct {
	DatasetPath        string `toml:"dataset_path"`            // Path to the route dataset CSV (callsign,dep_icao,arr_icao)
	UpdateIntervalMins int    `toml:"update_interval_minutes"` // How often the model is retrained/updated (default: 15)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLitePath      string `toml:"sqlite_path"`        // Path to the SQLite database for metrics and prediction history
	MaxRowsInAPI    int    `toml:"max_rows_in_api"`    // Maximum number of history rows returned by the API (default: 100)
	RetainedDays    int    `toml:"retained_days"`      // Days of metric/prediction history to keep (0 = keep forever)
	PruneOnTraining bool   `toml:"prune_on_training"`  // Prune old history rows after each training cycle
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// Load loads the configuration from the given TOML file
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	portsSeen := make(map[int]bool)
	portsSeen[c.Server.Port] = true
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}

	if err := c.ValidateFeed(); err != nil {
		return err
	}
	if err := c.ValidateDetection(); err != nil {
		return err
	}
	if err := c.ValidatePipeline(); err != nil {
		return err
	}

	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage sqlite_path is required")
	}
	if c.Storage.MaxRowsInAPI <= 0 {
		c.Storage.MaxRowsInAPI = 100
	}
	if c.Storage.RetainedDays < 0 {
		return fmt.Errorf("invalid retained_days: %d (must be >= 0)", c.Storage.RetainedDays)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level)
	}

	return nil
}

// ValidateFeed validates the feed configuration section
func (c *Config) ValidateFeed() error {
	if c.Feed.SourceType == "" {
		c.Feed.SourceType = "vrs"
	}
	if c.Feed.SourceType != "vrs" && c.Feed.SourceType != "readsb" {
		return fmt.Errorf("invalid feed source type: %s (must be 'vrs' or 'readsb')", c.Feed.SourceType)
	}
	if c.Feed.SourceURL == "" {
		return fmt.Errorf("feed source_url is required")
	}
	if c.Feed.FetchIntervalSecs <= 0 {
		c.Feed.FetchIntervalSecs = 10
	}
	if c.Feed.RequestTimeoutSecs <= 0 {
		c.Feed.RequestTimeoutSecs = 15
	}
	if len(c.Feed.IgnorePrefixes) == 0 {
		c.Feed.IgnorePrefixes = []string{"TXLU"}
	}
	return nil
}

// ValidateDetection validates the detection threshold section
func (c *Config) ValidateDetection() error {
	if c.Detection.MaxAltitude == 0 {
		c.Detection.MaxAltitude = 3000
	}
	if c.Detection.MaxAltitude < 0 {
		return fmt.Errorf("invalid max_altitude: %f (must be positive)", c.Detection.MaxAltitude)
	}
	if c.Detection.MaxDistanceKM == 0 {
		c.Detection.MaxDistanceKM = 10.0
	}
	if c.Detection.MaxDistanceKM < 0 {
		return fmt.Errorf("invalid max_distance_km: %f (must be positive)", c.Detection.MaxDistanceKM)
	}
	return nil
}

// ValidatePipeline validates the correlator and trainer sections
func (c *Config) ValidatePipeline() error {
	if c.Airports.DBPath == "" {
		return fmt.Errorf("airports db_path is required")
	}
	if c.Correlator.EventLogPath == "" {
		return fmt.Errorf("correlator event_log_path is required")
	}
	if c.Correlator.PollIntervalSecs <= 0 {
		c.Correlator.PollIntervalSecs = 60
	}
	if c.Correlator.EpochHours <= 0 {
		c.Correlator.EpochHours = 24
	}
	if c.Trainer.DatasetPath == "" {
		return fmt.Errorf("trainer dataset_path is required")
	}
	if c.Trainer.UpdateIntervalMins <= 0 {
		c.Trainer.UpdateIntervalMins = 15
	}
	if c.Correlator.EventLogPath == c.Trainer.DatasetPath {
		return fmt.Errorf("event_log_path and dataset_path must be different files")
	}
	return nil
}
