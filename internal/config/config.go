// Package config loads application configuration from environment
// variables (and a local .env file, via godotenv, exactly as the teacher
// loads credentials), applying the defaults spec.md §6 calls out.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable in spec.md §6's environment contract plus
// the two Tushare admission values of DESIGN.md's second Open Question.
// Those two are loaded here but not passed to internal/quotes, whose
// TushareQuota uses a fixed cap of 2 calls/hour and no minimum interval.
type Config struct {
	TushareEnabled bool
	TushareToken   string

	MongoURI               string
	MongoDB                string
	MongoMinConnections    int
	MongoMaxConnections    int
	MongoConnectTimeoutMS  int
	MongoSocketTimeoutMS   int

	RedisURL            string
	RedisMaxConnections int

	QuotesIngestIntervalSeconds   int
	QuotesRotationEnabled         bool
	QuotesBackfillOnOffhours      bool
	QuotesAutoDetectTushare       bool
	TushareFreeTierHourlyCalls    int
	TusharePremiumMinIntervalSecs int

	Timezone          string
	ResultsDir        string
	USDataCacheHours  int

	Port     int
	LogLevel string
	DevMode  bool

	UserConcurrentLimit    int
	GlobalConcurrentLimit  int
	VisibilityTimeout      time.Duration
	ZombieSweepInterval    time.Duration

	DailyAnalysisQuota int
}

// Load reads configuration from the process environment, applying a
// .env file first if one is present (same order as the teacher: .env,
// then real env vars, with env vars winning on conflict since godotenv
// by default never overwrites an already-set variable).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TushareEnabled: getBool("TUSHARE_ENABLED", true),
		TushareToken:   os.Getenv("TUSHARE_TOKEN"),

		MongoURI:              getString("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:               getString("MONGO_DB", "marketpulse"),
		MongoMinConnections:   getInt("MONGO_MIN_CONNECTIONS", 5),
		MongoMaxConnections:   getInt("MONGO_MAX_CONNECTIONS", 50),
		MongoConnectTimeoutMS: getInt("MONGO_CONNECT_TIMEOUT_MS", 10000),
		MongoSocketTimeoutMS:  getInt("MONGO_SOCKET_TIMEOUT_MS", 60000),

		RedisURL:            getString("REDIS_URL", "redis://localhost:6379/0"),
		RedisMaxConnections: getInt("REDIS_MAX_CONNECTIONS", 20),

		QuotesIngestIntervalSeconds:   getInt("QUOTES_INGEST_INTERVAL_SECONDS", 360),
		QuotesRotationEnabled:         getBool("QUOTES_ROTATION_ENABLED", true),
		QuotesBackfillOnOffhours:      getBool("QUOTES_BACKFILL_ON_OFFHOURS", true),
		QuotesAutoDetectTushare:       getBool("QUOTES_AUTO_DETECT_TUSHARE_PERMISSION", true),
		TushareFreeTierHourlyCalls:    getInt("TUSHARE_FREE_TIER_HOURLY_CALLS", 2),
		TusharePremiumMinIntervalSecs: getInt("TUSHARE_PREMIUM_MIN_INTERVAL_SECONDS", 5),

		Timezone:         getString("TIMEZONE", "Asia/Shanghai"),
		ResultsDir:       getString("TRADINGAGENTS_RESULTS_DIR", "./results"),
		USDataCacheHours: getInt("US_DATA_CACHE_HOURS", 6),

		Port:     getInt("PORT", 8000),
		LogLevel: getString("LOG_LEVEL", "info"),
		DevMode:  getBool("DEV_MODE", false),

		UserConcurrentLimit:   getInt("TASK_USER_CONCURRENT_LIMIT", 3),
		GlobalConcurrentLimit: getInt("TASK_GLOBAL_CONCURRENT_LIMIT", 50),
		VisibilityTimeout:     time.Duration(getInt("TASK_VISIBILITY_TIMEOUT_SECONDS", 1800)) * time.Second,
		ZombieSweepInterval:   time.Duration(getInt("TASK_ZOMBIE_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,

		DailyAnalysisQuota: getInt("DAILY_ANALYSIS_QUOTA", 1000),
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
