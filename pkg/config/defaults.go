// Package config provides centralized default values for the ZineInsight web front
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		log.Println("Loading configuration overrides from .env file...")
		// godotenv.Load never overrides variables that are already set.
		if err := godotenv.Load(); err != nil {
			log.Printf("Failed to parse .env file: %v", err)
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%g (default: %g)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	log.Printf("Config override: %s=%s", key, strings.Join(out, ","))
	return out
}

var (
	// Server Configuration
	Port               string
	PublicURL          string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	AllowedOrigins     []string

	// API Connector
	APICacheTTL        time.Duration
	APICacheCapacity   int
	APIRetryAttempts   int
	HealthProbeTimeout time.Duration
	EnvironmentsFile   string

	// Visitor Store
	TokenStorePath string
	TursoDatabase  string
	TursoToken     string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Token encryption and cleanup
	TokenEncryptionKey string
	VisitorValueTTL    time.Duration
	CleanupInterval    time.Duration
	CleanupVerbose     bool

	// Features
	RealtimeEnabled      bool
	PaywallRatePerSecond float64
	PaywallRateBurst     int
	DashboardFailClosed  bool
	AdminToken           string

	// Logging
	LogLevel     string
	LogJSON      bool
	LogToFile    bool
	LogDirectory string
	LogStream    bool
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	PublicURL = getEnvString("PUBLIC_URL", "http://localhost:8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	AllowedOrigins = getEnvList("ALLOWED_ORIGINS", []string{
		"http://localhost:3000",
		"http://localhost:9000",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:9000",
		"https://zineinsight.com",
		"https://www.zineinsight.com",
	})

	// API Connector
	APICacheTTL = getEnvDuration("API_CACHE_TTL", 5*time.Minute)
	APICacheCapacity = getEnvInt("API_CACHE_CAPACITY", 500)
	APIRetryAttempts = getEnvInt("API_RETRY_ATTEMPTS", 3)
	HealthProbeTimeout = getEnvDuration("HEALTH_PROBE_TIMEOUT", 3*time.Second)
	EnvironmentsFile = getEnvString("ENVIRONMENTS_FILE", "")

	// Visitor Store
	TokenStorePath = getEnvString("TOKEN_STORE_PATH", "data/visitors.db")
	TursoDatabase = getEnvString("TURSO_DATABASE", "")
	TursoToken = os.Getenv("TURSO_TOKEN")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)

	// Token encryption and cleanup
	TokenEncryptionKey = os.Getenv("TOKEN_ENCRYPTION_KEY")
	VisitorValueTTL = getEnvDuration("VISITOR_VALUE_TTL", 30*24*time.Hour)
	CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 5*time.Minute)
	CleanupVerbose = getEnvBool("CLEANUP_VERBOSE", false)

	// Features
	RealtimeEnabled = getEnvBool("REALTIME_ENABLED", false)
	PaywallRatePerSecond = getEnvFloat("PAYWALL_RATE_PER_SECOND", 2)
	PaywallRateBurst = getEnvInt("PAYWALL_RATE_BURST", 5)
	DashboardFailClosed = getEnvBool("DASHBOARD_FAIL_CLOSED", false)
	AdminToken = os.Getenv("ADMIN_TOKEN")

	// Logging
	LogLevel = getEnvString("LOG_LEVEL", "info")
	LogJSON = getEnvBool("LOG_JSON", true)
	LogToFile = getEnvBool("LOG_TO_FILE", false)
	LogDirectory = getEnvString("LOG_DIRECTORY", "logs")
	LogStream = getEnvBool("LOG_STREAM_ENABLED", true)
}
