package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration read from environment variables.
type Config struct {
	DBPath string `envconfig:"DB_PATH" default:"data/ronbun.db"`

	BlobBackend string `envconfig:"BLOB_BACKEND" default:"fs"`
	BlobDir     string `envconfig:"BLOB_DIR" default:"data/blobs"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`

	EmbeddingHost  string `envconfig:"AI_EMBEDDING_HOST" default:"http://localhost:11434/v1"`
	ExtractorHost  string `envconfig:"AI_EXTRACTOR_HOST" default:"http://localhost:11434/v1"`
	EmbeddingModel string `envconfig:"AI_EMBEDDING_MODEL" default:"embeddinggemma"`
	ExtractorModel string `envconfig:"AI_EXTRACTOR_MODEL" default:"qwen2.5:3b"`

	QueueWorkers int `envconfig:"QUEUE_WORKERS" default:"0"`

	SweepSchedule string `envconfig:"SWEEP_SCHEDULE" default:"0 6 * * *"`
	SweepSets     string `envconfig:"SWEEP_SETS"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the configuration from the environment, after loading a .env
// file if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("ronbun", &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks cross-field constraints envconfig tags cannot express.
func (c *Config) Validate() error {
	switch c.BlobBackend {
	case "fs", "s3":
	default:
		return fmt.Errorf("unknown blob backend %q (want fs or s3)", c.BlobBackend)
	}
	if c.BlobBackend == "s3" && c.S3Bucket == "" {
		return fmt.Errorf("blob backend s3 requires RONBUN_S3_BUCKET")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Sets returns the OAI-PMH set specs to sweep, split from the
// comma-separated SweepSets value.
func (c *Config) Sets() []string {
	if strings.TrimSpace(c.SweepSets) == "" {
		return nil
	}
	parts := strings.Split(c.SweepSets, ",")
	sets := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sets = append(sets, trimmed)
		}
	}
	return sets
}

// Level parses LogLevel into a slog level.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}
