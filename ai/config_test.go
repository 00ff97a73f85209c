package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractorHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:3b", cfg.ExtractorModel)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		// Should have default values
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractorHost)
	})

	t.Run("with host option", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://example.com/v1"))

		assert.Equal(t, "http://example.com/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://example.com/v1", cfg.ExtractorHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed.example.com/v1"),
			WithExtractorHost("http://extract.example.com/v1"),
		)

		assert.Equal(t, "http://embed.example.com/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://extract.example.com/v1", cfg.ExtractorHost)
	})

	t.Run("with model options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("text-embedding-3-small"),
			WithExtractorModel("gpt-4o-mini"),
		)

		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.ExtractorModel)
	})
}

func TestConfigNormalize(t *testing.T) {
	t.Run("adds v1 suffix", func(t *testing.T) {
		cfg := &Config{
			EmbeddingHost: "http://localhost:11434",
			ExtractorHost: "http://localhost:9100",
		}
		cfg.Normalize()

		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:9100/v1", cfg.ExtractorHost)
	})

	t.Run("strips trailing slash before adding suffix", func(t *testing.T) {
		cfg := &Config{
			EmbeddingHost: "http://localhost:11434/",
			ExtractorHost: "http://localhost:11434/",
		}
		cfg.Normalize()

		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractorHost)
	})

	t.Run("leaves existing suffix alone", func(t *testing.T) {
		cfg := &Config{
			EmbeddingHost: "http://localhost:11434/v1",
			ExtractorHost: "http://localhost:11434/v1",
		}
		cfg.Normalize()

		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractorHost)
	})

	t.Run("leaves empty hosts alone", func(t *testing.T) {
		cfg := &Config{}
		cfg.Normalize()

		assert.Empty(t, cfg.EmbeddingHost)
		assert.Empty(t, cfg.ExtractorHost)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, cfg.Validate())
	})

	t.Run("normalizes before validating", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EmbeddingHost = "http://localhost:11434"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("missing embedding host", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EmbeddingHost = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing extractor host", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ExtractorHost = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EmbeddingModel = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing extractor model", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ExtractorModel = ""
		assert.Error(t, cfg.Validate())
	})
}
