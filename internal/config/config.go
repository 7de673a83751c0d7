// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Persistence modes.
const (
	PersistenceNone     = "none"
	PersistencePostgres = "postgres"
	PersistenceRedis    = "redis"
)

// Config holds process settings read from the environment.
type Config struct {
	Port       string
	LogLevel   string
	ImagesRoot string

	Persistence string
	DatabaseURL string

	RedisAddr       string
	RedisDB         int
	OutboxQueueName string

	WriterQueueSize   int
	WriterMaxAttempts int
	WriterRetryDelay  time.Duration

	PersisterBatchSize     int
	PersisterFlushInterval time.Duration

	UploadMaxBytes int64
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:                   "8080",
		LogLevel:               "info",
		ImagesRoot:             "wwwroot/images",
		Persistence:            PersistenceNone,
		RedisAddr:              "localhost:6379",
		OutboxQueueName:        "sketchlobby_mutations",
		WriterQueueSize:        1024,
		WriterMaxAttempts:      5,
		WriterRetryDelay:       200 * time.Millisecond,
		PersisterBatchSize:     20,
		PersisterFlushInterval: 500 * time.Millisecond,
		UploadMaxBytes:         20 << 20,
	}
}

// Load reads the environment over Default. Malformed numbers keep the default.
func Load() Config {
	cfg := Default()
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.ImagesRoot = getEnv("IMAGES_ROOT", cfg.ImagesRoot)
	cfg.Persistence = strings.ToLower(getEnv("PERSISTENCE", cfg.Persistence))
	cfg.DatabaseURL = getEnv("DATABASE_URL", postgresURLFromParts())

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.OutboxQueueName = getEnv("OUTBOX_QUEUE_NAME", cfg.OutboxQueueName)

	cfg.WriterQueueSize = getEnvPositive("WRITER_QUEUE_SIZE", cfg.WriterQueueSize)
	cfg.WriterMaxAttempts = getEnvPositive("WRITER_MAX_ATTEMPTS", cfg.WriterMaxAttempts)
	cfg.WriterRetryDelay = time.Duration(getEnvPositive("WRITER_RETRY_MS", int(cfg.WriterRetryDelay/time.Millisecond))) * time.Millisecond

	cfg.PersisterBatchSize = getEnvPositive("PERSISTER_BATCH_SIZE", cfg.PersisterBatchSize)
	cfg.PersisterFlushInterval = time.Duration(getEnvPositive("PERSISTER_FLUSH_MS", int(cfg.PersisterFlushInterval/time.Millisecond))) * time.Millisecond

	cfg.UploadMaxBytes = int64(getEnvPositive("UPLOAD_MAX_BYTES", int(cfg.UploadMaxBytes)))
	return cfg
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Persistence {
	case PersistenceNone, PersistenceRedis:
	case PersistencePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("PERSISTENCE=postgres requires DATABASE_URL or PG_HOST")
		}
	default:
		return fmt.Errorf("unknown PERSISTENCE %q", c.Persistence)
	}
	return nil
}

// Level parses LogLevel, falling back to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// postgresURLFromParts builds a connection string from the discrete
// POSTGRES_* and PG_* variables, or returns "" when no host is set.
func postgresURLFromParts() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD")),
		Host:   host + ":" + getEnv("PG_PORT", "5432"),
		Path:   "/" + os.Getenv("PG_DATABASE"),
	}
	return u.String()
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvPositive(key string, def int) int {
	if v := getEnvInt(key, def); v > 0 {
		return v
	}
	return def
}
