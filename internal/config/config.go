package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the auction house.
type Config struct {
	Port             int
	LogLevel         string
	ClearingInterval time.Duration // tick of the timed-clearing scheduler
	FeedBuffer       int           // per-subscriber event buffer
	KafkaBrokers     []string      // empty disables the Kafka sink
	KafkaTopic       string
	KafkaTimeout     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	clearingInterval, err := getDuration("CLEARING_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid CLEARING_INTERVAL: %w", err)
	}

	feedBuffer, err := getInt("FEED_BUFFER", 256)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_BUFFER: %w", err)
	}
	if feedBuffer < 1 {
		return nil, fmt.Errorf("invalid FEED_BUFFER: must be >= 1")
	}

	kafkaTopic := getStr("KAFKA_TOPIC", "auctionhouse.events")
	kafkaTimeout, err := getDuration("KAFKA_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid KAFKA_TIMEOUT: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:             port,
		LogLevel:         logLevel,
		ClearingInterval: clearingInterval,
		FeedBuffer:       feedBuffer,
		KafkaBrokers:     getList("KAFKA_BROKERS"),
		KafkaTopic:       kafkaTopic,
		KafkaTimeout:     kafkaTimeout,
		ReadTimeout:      readTimeout,
		WriteTimeout:     writeTimeout,
		IdleTimeout:      idleTimeout,
		ShutdownTimeout:  shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
