// Package config loads the flat environment-variable configuration once at process start.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the single flat mapping every component reads from at startup. It
// is never reloaded mid-task.
type Config struct {
	BrokerURL         string
	InputQueue        string
	StatusQueue       string
	MetricNamespace   string
	MetricName        string
	MetricDimension   string

	MinWorkers            int
	MaxWorkers            int
	TargetPerWorker       int
	AutoscaleIntervalSec  int
	PublishIntervalSec    int

	ActionMaxRetries       int
	ActionRetryBackoffSteps int
	MaxDepth               int
	MaxChildren            int
	DecompositionThreshold float64
	AllowUnscoredSelection bool
	MinScoreThreshold      float64
	EnableRecursiveMerge   bool

	JWTSecret     string
	APIKeys       []string
	RequireEmail  bool

	HTTPAddr            string
	RateLimitPerMinute  int
	RateLimitWindowSec  int

	PostgresDSN string
	RedisAddr   string
	MongoURI    string
	BoltPath    string

	AnthropicAPIKey string
	AnthropicModel  string
	SearchAPIURL    string
}

// Load reads the recognized environment options, applying documented defaults.
// Unknown env vars are ignored. A missing broker URL aborts startup.
func Load() (Config, error) {
	c := Config{
		BrokerURL:       os.Getenv("BROKER_URL"),
		InputQueue:      getEnvDefault("INPUT_QUEUE", "agent.mandates"),
		StatusQueue:     getEnvDefault("STATUS_QUEUE", "agent.status"),
		MetricNamespace: getEnvDefault("METRIC_NAMESPACE", "Euglena/RabbitMQ"),
		MetricName:      getEnvDefault("METRIC_NAME", "QueueDepth"),
		MetricDimension: getEnvDefault("METRIC_DIMENSION", "QueueName"),

		MinWorkers:           getEnvInt("MIN_WORKERS", 0),
		MaxWorkers:           getEnvInt("MAX_WORKERS", 10),
		TargetPerWorker:      getEnvInt("TARGET_MESSAGES_PER_WORKER", 5),
		AutoscaleIntervalSec: getEnvInt("AUTOSCALE_INTERVAL_SECONDS", 60),
		PublishIntervalSec:   getEnvInt("PUBLISH_INTERVAL_SECONDS", 5),

		ActionMaxRetries:        getEnvInt("ACTION_MAX_RETRIES", 3),
		ActionRetryBackoffSteps: getEnvInt("ACTION_RETRY_BACKOFF_STEPS", 5),
		MaxDepth:                getEnvInt("MAX_DEPTH", 6),
		MaxChildren:             getEnvInt("MAX_CHILDREN", 5),
		DecompositionThreshold:  getEnvFloat("DECOMPOSITION_THRESHOLD", 0.6),
		AllowUnscoredSelection:  getEnvBool("ALLOW_UNSCORED_SELECTION", false),
		MinScoreThreshold:       getEnvFloat("MIN_SCORE_THRESHOLD", 0.0),
		EnableRecursiveMerge:    getEnvBool("ENABLE_RECURSIVE_MERGE", true),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		RequireEmail: getEnvBool("REQUIRE_EMAIL_CONFIRMED", true),

		HTTPAddr:           getEnvDefault("HTTP_ADDR", ":8080"),
		RateLimitPerMinute: getEnvInt("GATEWAY_RATE_LIMIT_PER_MINUTE", 300),
		RateLimitWindowSec: getEnvInt("GATEWAY_RATE_LIMIT_WINDOW_SECONDS", 60),

		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   getEnvDefault("REDIS_ADDR", "localhost:6379"),
		MongoURI:    getEnvDefault("MONGO_URI", "mongodb://localhost:27017"),
		BoltPath:    getEnvDefault("BOLT_PATH", "agentmind.bolt"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  os.Getenv("ANTHROPIC_MODEL"),
		SearchAPIURL:    os.Getenv("SEARCH_API_URL"),
	}

	if apiKey := os.Getenv("GATEWAY_API_KEY"); apiKey != "" {
		c.APIKeys = append(c.APIKeys, apiKey)
	}

	if c.BrokerURL == "" {
		return Config{}, fmt.Errorf("config: BROKER_URL is required")
	}

	return c, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
