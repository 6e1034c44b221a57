package geo

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/cloudvance/flightpredict/pkg/logger"
)

const earthRadiusKM = 6371.0

// Airport represents a single airport in the static reference set
type Airport struct {
	Name string  `json:"name"`
	ICAO string  `json:"icao"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// AirportIndex holds the immutable airport reference set, loaded once at startup.
// Ordering follows the reference file so that nearest-airport ties resolve
// deterministically to the first entry.
type AirportIndex struct {
	airports []Airport
	byICAO   map[string]Airport
}

// LoadAirports reads the airport reference set from a CSV file with the
// columns name,icao,latitude_deg,longitude_deg (header row required).
func LoadAirports(path string, log *logger.Logger) (*AirportIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open airports file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read airports header: %w", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read airports file: %w", err)
	}

	idx := &AirportIndex{
		airports: make([]Airport, 0, len(records)),
		byICAO:   make(map[string]Airport, len(records)),
	}

	for _, record := range records {
		if len(record) < 4 {
			continue
		}
		lat, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude for airport %s: %w", record[0], err)
		}
		lon, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude for airport %s: %w", record[0], err)
		}
		airport := Airport{
			Name: record[0],
			ICAO: record[1],
			Lat:  lat,
			Lon:  lon,
		}
		idx.airports = append(idx.airports, airport)
		if _, exists := idx.byICAO[airport.ICAO]; !exists {
			idx.byICAO[airport.ICAO] = airport
		}
	}

	if len(idx.airports) == 0 {
		return nil, fmt.Errorf("no airports loaded from %s", path)
	}

	log.Info("Loaded airport reference data",
		logger.String("path", path),
		logger.Int("airport_count", len(idx.airports)))

	return idx, nil
}

// NewAirportIndex builds an index directly from a slice (used by tests)
func NewAirportIndex(airports []Airport) *AirportIndex {
	idx := &AirportIndex{
		airports: airports,
		byICAO:   make(map[string]Airport, len(airports)),
	}
	for _, a := range airports {
		if _, exists := idx.byICAO[a.ICAO]; !exists {
			idx.byICAO[a.ICAO] = a
		}
	}
	return idx
}

// Count returns the number of airports in the reference set
func (idx *AirportIndex) Count() int {
	return len(idx.airports)
}

// ByICAO looks up an airport by its ICAO code
func (idx *AirportIndex) ByICAO(code string) (Airport, bool) {
	a, ok := idx.byICAO[code]
	return a, ok
}

// Nearest scans the reference set and returns the airport closest to the
// given coordinates along with the great-circle distance in kilometers.
// Equidistant candidates resolve to the first entry in reference order.
func (idx *AirportIndex) Nearest(lat, lon float64) (Airport, float64, bool) {
	if len(idx.airports) == 0 {
		return Airport{}, 0, false
	}

	nearest := idx.airports[0]
	minDistance := Haversine(lat, lon, nearest.Lat, nearest.Lon)
	for _, airport := range idx.airports[1:] {
		if d := Haversine(lat, lon, airport.Lat, airport.Lon); d < minDistance {
			minDistance = d
			nearest = airport
		}
	}
	return nearest, minDistance, true
}

// Haversine computes the great-circle distance between two points in kilometers
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dlat := (lat2 - lat1) * math.Pi / 180.0
	dlon := (lon2 - lon1) * math.Pi / 180.0
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}
