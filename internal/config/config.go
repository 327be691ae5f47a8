package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// MongoDB Configuration
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration

	// HTTP Server Configuration (coordinator control plane)
	HTTPPort         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	// Coordinator Configuration
	BatchSize         int
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	WorkerTimeout     time.Duration
	SweepInterval     time.Duration

	// Worker Configuration
	ServerURL          string
	WorkerID           string
	ProbeTimeout       time.Duration
	ProbeConcurrency   int
	PollInterval       time.Duration
	WorkerFailureLimit int

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// Maintenance Scheduler Configuration
	SchedulerEnabled       bool
	SchedulerLockTTL       time.Duration
	ValidationInterval     time.Duration
	ValidationLimit        int
	RevalidationInterval   time.Duration
	RevalidationAgeMinutes int
	RevalidationLimit      int
	CleanupInterval        time.Duration
	HistoryRetentionDays   int
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// MongoDB
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/proxyhive?authSource=admin"),
		MongoDatabase: getEnv("MONGO_DATABASE", "proxyhive"),
		MongoTimeout:  getDurationEnv("MONGO_TIMEOUT_SEC", 10) * time.Second,

		// HTTP Server
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		HTTPReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT_SEC", 30) * time.Second,
		HTTPWriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT_SEC", 60) * time.Second,

		// Coordinator
		BatchSize:         getIntEnv("BATCH_SIZE", 50),
		MaxConcurrentJobs: getIntEnv("MAX_CONCURRENT_JOBS", 10),
		JobTimeout:        getDurationEnv("JOB_TIMEOUT_SEC", 300) * time.Second,
		WorkerTimeout:     getDurationEnv("WORKER_TIMEOUT_SEC", 300) * time.Second,
		SweepInterval:     getDurationEnv("SWEEP_INTERVAL_SEC", 30) * time.Second,

		// Worker
		ServerURL:          getEnv("SERVER_URL", "http://localhost:8080"),
		WorkerID:           getEnv("WORKER_ID", ""),
		ProbeTimeout:       getDurationEnv("PROBE_TIMEOUT_SEC", 10) * time.Second,
		ProbeConcurrency:   getIntEnv("PROBE_CONCURRENCY", 20),
		PollInterval:       getDurationEnv("POLL_INTERVAL_SEC", 5) * time.Second,
		WorkerFailureLimit: getIntEnv("WORKER_FAILURE_LIMIT", 5),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Maintenance Scheduler
		SchedulerEnabled:       getBoolEnv("SCHEDULER_ENABLED", true),
		SchedulerLockTTL:       getDurationEnv("SCHEDULER_LOCK_TTL_SEC", 300) * time.Second,
		ValidationInterval:     getDurationEnv("VALIDATION_INTERVAL_MIN", 120) * time.Minute,
		ValidationLimit:        getIntEnv("VALIDATION_LIMIT", 5000),
		RevalidationInterval:   getDurationEnv("REVALIDATION_INTERVAL_MIN", 720) * time.Minute,
		RevalidationAgeMinutes: getIntEnv("REVALIDATION_AGE_MIN", 60),
		RevalidationLimit:      getIntEnv("REVALIDATION_LIMIT", 5000),
		CleanupInterval:        getDurationEnv("CLEANUP_INTERVAL_MIN", 1440) * time.Minute,
		HistoryRetentionDays:   getIntEnv("HISTORY_RETENTION_DAYS", 7),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal)
		}
		log.Printf("Warning: Invalid duration value for %s, using default %d", key, defaultValue)
	}
	return time.Duration(defaultValue)
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}
