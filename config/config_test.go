package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/ronbun.db", cfg.DBPath)
	assert.Equal(t, "fs", cfg.BlobBackend)
	assert.Equal(t, "data/blobs", cfg.BlobDir)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:3b", cfg.ExtractorModel)
	assert.Equal(t, 0, cfg.QueueWorkers)
	assert.Equal(t, "0 6 * * *", cfg.SweepSchedule)
	assert.Empty(t, cfg.Sets())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RONBUN_DB_PATH", "/var/lib/ronbun/db")
	t.Setenv("RONBUN_QUEUE_WORKERS", "8")
	t.Setenv("RONBUN_SWEEP_SETS", "cs, math,  , stat")
	t.Setenv("RONBUN_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/ronbun/db", cfg.DBPath)
	assert.Equal(t, 8, cfg.QueueWorkers)
	assert.Equal(t, []string{"cs", "math", "stat"}, cfg.Sets())

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestValidate(t *testing.T) {
	t.Run("unknown blob backend", func(t *testing.T) {
		cfg := &Config{BlobBackend: "gcs", LogLevel: "info"}
		assert.ErrorContains(t, cfg.Validate(), "blob backend")
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		cfg := &Config{BlobBackend: "s3", LogLevel: "info"}
		assert.ErrorContains(t, cfg.Validate(), "S3_BUCKET")
	})

	t.Run("s3 with bucket", func(t *testing.T) {
		cfg := &Config{BlobBackend: "s3", S3Bucket: "papers", LogLevel: "info"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown log level", func(t *testing.T) {
		cfg := &Config{BlobBackend: "fs", LogLevel: "loud"}
		assert.ErrorContains(t, cfg.Validate(), "log level")
	})
}
