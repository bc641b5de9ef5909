package config

import (
	"os"
	"strconv"
	"time"
)

// SignalPolicy configures one detection signal of the heuristic
// detector: how often it fires and the confidence range it assigns
// when it does.
type SignalPolicy struct {
	ViolationRate float64
	ConfidenceMin float64
	ConfidenceMax float64
}

// Config holds all configuration for the field agent
type Config struct {
	// Server configuration
	Port string

	// Device identity
	DeviceID string

	// Durable store configuration
	StorePath string

	// Backend configuration
	BackendURL    string
	SubmitTimeout time.Duration

	// Sync engine configuration
	SyncInterval time.Duration
	MaxRetries   int
	BackoffBase  time.Duration
	BackoffMax   time.Duration

	// Detector configuration
	DetectorMode string // "heuristic" or "remote"
	DetectorURL  string
	DetectorSeed int64 // 0 means time-seeded

	// Heuristic detector signal policies
	Oversized        SignalPolicy
	ImproperLocation SignalPolicy
	Damaged          SignalPolicy
	MissingPermit    SignalPolicy
	Unauthorized     SignalPolicy

	// Reporting configuration
	ReportThreshold float64

	// Gamification configuration
	PointsVerified   int64
	PointsResolved   int64
	AccuracyBonusMax int64
	RulesPath        string

	// Capture provider configuration (local providers)
	CaptureDir      string
	DeviceLatitude  float64
	DeviceLongitude float64
	DeviceAddress   string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	config := &Config{
		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Device defaults
		DeviceID: getEnv("DEVICE_ID", "dev-device"),

		// Store defaults
		StorePath: getEnv("STORE_PATH", "data/fieldagent.db"),

		// Backend defaults
		BackendURL:    getEnv("BACKEND_URL", "http://localhost:9080"),
		SubmitTimeout: getDurationEnv("SUBMIT_TIMEOUT", 30*time.Second),

		// Sync defaults
		SyncInterval: getDurationEnv("SYNC_INTERVAL", 1*time.Minute),
		MaxRetries:   getIntEnv("SYNC_MAX_RETRIES", 5),
		BackoffBase:  getDurationEnv("SYNC_BACKOFF_BASE", 30*time.Second),
		BackoffMax:   getDurationEnv("SYNC_BACKOFF_MAX", 30*time.Minute),

		// Detector defaults
		DetectorMode: getEnv("DETECTOR_MODE", "heuristic"),
		DetectorURL:  getEnv("DETECTOR_URL", ""),
		DetectorSeed: int64(getIntEnv("DETECTOR_SEED", 0)),

		// Signal policy defaults mirror the tuned mobile heuristics.
		Oversized:        signalPolicy("OVERSIZED", 0.2, 0.85, 1.0),
		ImproperLocation: signalPolicy("IMPROPER_LOCATION", 0.1, 0.78, 1.0),
		Damaged:          signalPolicy("DAMAGED", 0.3, 0.72, 1.0),
		MissingPermit:    signalPolicy("MISSING_PERMIT", 0.3, 0.90, 1.0),
		Unauthorized:     signalPolicy("UNAUTHORIZED", 0.4, 0.80, 1.0),

		// Reporting defaults
		ReportThreshold: getFloatEnv("REPORT_THRESHOLD", 0.5),

		// Gamification defaults
		PointsVerified:   int64(getIntEnv("POINTS_VERIFIED", 50)),
		PointsResolved:   int64(getIntEnv("POINTS_RESOLVED", 75)),
		AccuracyBonusMax: int64(getIntEnv("ACCURACY_BONUS_MAX", 50)),
		RulesPath:        getEnv("GAMIFICATION_RULES_PATH", ""),

		// Local provider defaults
		CaptureDir:      getEnv("CAPTURE_DIR", "data/captures"),
		DeviceLatitude:  getFloatEnv("DEVICE_LATITUDE", 0),
		DeviceLongitude: getFloatEnv("DEVICE_LONGITUDE", 0),
		DeviceAddress:   getEnv("DEVICE_ADDRESS", ""),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return config
}

func signalPolicy(name string, rate, min, max float64) SignalPolicy {
	return SignalPolicy{
		ViolationRate: getFloatEnv("DETECT_"+name+"_RATE", rate),
		ConfidenceMin: getFloatEnv("DETECT_"+name+"_MIN", min),
		ConfidenceMax: getFloatEnv("DETECT_"+name+"_MAX", max),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
