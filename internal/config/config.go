package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the trip audit tools
type Config struct {
	// Database
	DatabasePath  string
	RetentionDays int

	// Reference data
	CatalogDir        string
	CorpusDir         string
	StaticRefreshDays int

	// Feed recording
	GTFSVehiclePositionsURL string
	PollInterval            time.Duration
	FeedDir                 string

	// API
	APIPort     string
	CORSOrigins []string

	// Report cache
	RedisEnabled   bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ReportCacheTTL time.Duration

	// Matching and reporting thresholds
	Tolerances Tolerances
}

// Tolerances are the distance/speed thresholds used by the analysis.
// Distances are in the telemetry's native unit (meters), speeds in km/h.
type Tolerances struct {
	MatchCD           float64
	MatchISD          float64
	AdvanceCD         float64
	AdvanceISD        float64
	DuplicateHalt     float64
	Signal            float64
	NearScheduled     float64
	RoutePreferMin    float64
	RoutePreferMax    float64
	RouteExact        float64
	RouteBufferMin    float64
	RouteBufferMax    float64
	OverspeedMargin   float64
	OverspeedMinCount int
}

// DefaultTolerances returns the thresholds tuned on the suburban corridors
func DefaultTolerances() Tolerances {
	return Tolerances{
		MatchCD:           300,
		MatchISD:          100,
		AdvanceCD:         400,
		AdvanceISD:        150,
		DuplicateHalt:     2,
		Signal:            200,
		NearScheduled:     100,
		RoutePreferMin:    3,
		RoutePreferMax:    5,
		RouteExact:        1,
		RouteBufferMin:    2,
		RouteBufferMax:    8,
		OverspeedMargin:   2,
		OverspeedMinCount: 7,
	}
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	def := DefaultTolerances()
	cfg := &Config{
		// Database
		DatabasePath:  getEnv("SQLITE_DATABASE", "/data/tripaudit.db"),
		RetentionDays: getEnvInt("RETENTION_DAYS", 180),

		// Reference data
		CatalogDir:        getEnv("CATALOG_DIR", "/data/catalog"),
		CorpusDir:         getEnv("CORPUS_DIR", "/data/corpus"),
		StaticRefreshDays: getEnvInt("STATIC_REFRESH_DAYS", 7),

		// Feed recording
		GTFSVehiclePositionsURL: getEnv("GTFS_VEHICLE_POSITIONS_URL", "https://gtfsrt.renfe.com/vehicle_positions.pb"),
		PollInterval:            time.Duration(getEnvInt("POLL_INTERVAL", 30)) * time.Second,
		FeedDir:                 getEnv("FEED_DIR", "/data/feed"),

		// API
		APIPort:     getEnv("API_PORT", "8081"),
		CORSOrigins: getEnvCSV("CORS_ORIGINS", []string{"*"}),

		// Report cache
		RedisEnabled:   getEnvBool("REDIS_ENABLED", false),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		ReportCacheTTL: getEnvDuration("REPORT_CACHE_TTL", 24*time.Hour),

		Tolerances: Tolerances{
			MatchCD:           getEnvFloat("MATCH_CD_TOLERANCE", def.MatchCD),
			MatchISD:          getEnvFloat("MATCH_ISD_TOLERANCE", def.MatchISD),
			AdvanceCD:         getEnvFloat("ADVANCE_CD_TOLERANCE", def.AdvanceCD),
			AdvanceISD:        getEnvFloat("ADVANCE_ISD_TOLERANCE", def.AdvanceISD),
			DuplicateHalt:     getEnvFloat("DUPLICATE_HALT_TOLERANCE", def.DuplicateHalt),
			Signal:            getEnvFloat("SIGNAL_TOLERANCE", def.Signal),
			NearScheduled:     getEnvFloat("NEAR_SCHEDULED_TOLERANCE", def.NearScheduled),
			RoutePreferMin:    getEnvFloat("ROUTE_PREFER_MIN", def.RoutePreferMin),
			RoutePreferMax:    getEnvFloat("ROUTE_PREFER_MAX", def.RoutePreferMax),
			RouteExact:        getEnvFloat("ROUTE_EXACT_TOLERANCE", def.RouteExact),
			RouteBufferMin:    getEnvFloat("ROUTE_BUFFER_MIN", def.RouteBufferMin),
			RouteBufferMax:    getEnvFloat("ROUTE_BUFFER_MAX", def.RouteBufferMax),
			OverspeedMargin:   getEnvFloat("OVERSPEED_MARGIN", def.OverspeedMargin),
			OverspeedMinCount: getEnvInt("OVERSPEED_MIN_SAMPLES", def.OverspeedMinCount),
		},
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvCSV(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
