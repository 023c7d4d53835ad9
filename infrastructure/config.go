package infrastructure

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"hr-evaluator/domain"
)

type Config struct {
	DBDSN             string
	HTTPAddr          string
	RabbitMQURL       string
	NotificationQueue string
	NotifyURLs        []string
	AdminNotifyURLs   []string
	NotifyTimeout     time.Duration
	JWTSecret         string
	LogLevel          logrus.Level
	LogFormat         string
	Aggregator        domain.Aggregator
	SeedDemoData      bool
}

// LoadConfig reads .env (when present) and then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	return ConfigFromEnv(os.Getenv)
}

// ConfigFromEnv builds the configuration from a lookup function.
func ConfigFromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		DBDSN:             get("DB_DSN", ""),
		HTTPAddr:          get("HTTP_ADDR", ":8080"),
		RabbitMQURL:       get("RABBITMQ_URL", ""),
		NotificationQueue: get("NOTIFICATION_QUEUE", "evaluation_notifications"),
		NotifyURLs:        splitList(get("NOTIFY_URLS", "")),
		AdminNotifyURLs:   splitList(get("ADMIN_NOTIFY_URLS", "")),
		JWTSecret:         get("JWT_SECRET", ""),
		LogFormat:         get("LOG_FORMAT", "text"),
	}
	if cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("DB_DSN is not set in environment")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is not set in environment")
	}

	timeout, err := time.ParseDuration(get("NOTIFY_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid NOTIFY_TIMEOUT: %w", err)
	}
	cfg.NotifyTimeout = timeout

	level, err := logrus.ParseLevel(get("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("invalid LOG_FORMAT %q: want text or json", cfg.LogFormat)
	}

	switch get("SCORE_AGGREGATION", "mean") {
	case "mean":
		cfg.Aggregator = domain.MeanAggregator{}
	case "weighted":
		cfg.Aggregator = domain.WeightedAggregator{}
	default:
		return Config{}, fmt.Errorf("invalid SCORE_AGGREGATION %q: want mean or weighted", getenv("SCORE_AGGREGATION"))
	}

	seed, err := strconv.ParseBool(get("SEED_DEMO_DATA", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SEED_DEMO_DATA: %w", err)
	}
	cfg.SeedDemoData = seed
	return cfg, nil
}

// NewLogger builds the process logger from the configuration.
func NewLogger(cfg Config) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
