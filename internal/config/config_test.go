package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "IMAGES_ROOT", "PERSISTENCE", "DATABASE_URL",
		"POSTGRES_USER", "POSTGRES_PASSWORD", "PG_HOST", "PG_PORT", "PG_DATABASE",
		"REDIS_ADDR", "REDIS_DB", "OUTBOX_QUEUE_NAME",
		"WRITER_QUEUE_SIZE", "WRITER_MAX_ATTEMPTS", "WRITER_RETRY_MS",
		"PERSISTER_BATCH_SIZE", "PERSISTER_FLUSH_MS", "UPLOAD_MAX_BYTES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, PersistenceNone, cfg.Persistence)
	assert.EqualValues(t, 20*1024*1024, cfg.UploadMaxBytes)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("PERSISTENCE", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("WRITER_RETRY_MS", "50")
	t.Setenv("PERSISTER_FLUSH_MS", "1000")
	t.Setenv("WRITER_QUEUE_SIZE", "-4")
	t.Setenv("PERSISTER_BATCH_SIZE", "lots")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, PersistenceRedis, cfg.Persistence)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 50*time.Millisecond, cfg.WriterRetryDelay)
	assert.Equal(t, time.Second, cfg.PersisterFlushInterval)
	assert.Equal(t, 1024, cfg.WriterQueueSize)
	assert.Equal(t, 20, cfg.PersisterBatchSize)
}

func TestDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("PG_HOST", "db")
	t.Setenv("POSTGRES_USER", "game")
	t.Setenv("POSTGRES_PASSWORD", "p@ss")
	t.Setenv("PG_DATABASE", "lobbies")
	assert.Equal(t, "postgres://game:p%40ss@db:5432/lobbies", Load().DatabaseURL)

	t.Setenv("DATABASE_URL", "postgres://other/db")
	assert.Equal(t, "postgres://other/db", Load().DatabaseURL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Persistence = PersistencePostgres
	assert.Error(t, cfg.Validate())
	cfg.DatabaseURL = "postgres://localhost/db"
	assert.NoError(t, cfg.Validate())

	cfg.Persistence = "sqlite"
	assert.Error(t, cfg.Validate())
}

func TestLevel(t *testing.T) {
	cfg := Default()
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
	cfg.LogLevel = "debug"
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	cfg.LogLevel = "loud"
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
}
