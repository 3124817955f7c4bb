package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Classifier sidecar configuration.
	ClassifierURL     string
	ClassifierTimeout time.Duration

	// Video decoding configuration.
	FFmpegPath     string
	MaxUploadBytes int64

	// Browser clients allowed to call the analysis endpoint. "*" allows any.
	FrontendOrigins []string

	// Kafka report publishing (feature-flagged via KAFKA_BROKERS / KAFKA_ENABLED).
	KafkaBrokers      []string
	KafkaReportsTopic string
	KafkaEnabled      bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	classifierTimeout, err := parseDuration("CLASSIFIER_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	maxUploadBytes, err := parseMaxUploadBytes()
	if err != nil {
		return nil, err
	}

	brokers := parseList(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ClassifierURL:     envOrDefault("CLASSIFIER_URL", "http://localhost:8501"),
		ClassifierTimeout: classifierTimeout,

		FFmpegPath:     envOrDefault("FFMPEG_PATH", "ffmpeg"),
		MaxUploadBytes: maxUploadBytes,

		FrontendOrigins: parseList(envOrDefault("FRONTEND_ORIGINS", "*")),

		KafkaBrokers:      brokers,
		KafkaReportsTopic: envOrDefault("KAFKA_REPORTS_TOPIC", "flood-analysis-reports"),
		KafkaEnabled:      kafkaEnabled,
	}

	if cfg.ClassifierURL == "" {
		return nil, errors.New("CLASSIFIER_URL is required")
	}
	if cfg.FFmpegPath == "" {
		return nil, errors.New("FFMPEG_PATH is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parseList splits a comma-separated value, trimming whitespace and dropping
// empty entries.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseMaxUploadBytes() (int64, error) {
	s := os.Getenv("MAX_UPLOAD_BYTES")
	if s == "" {
		return 200 << 20, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid MAX_UPLOAD_BYTES")
	}
	return n, nil
}
