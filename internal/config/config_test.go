package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersift/ledgersift/internal/common"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 200, cfg.Pipeline.ChunkSize)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.EmbeddingHost)
	assert.NotEmpty(t, cfg.DatabasePath)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("server.port", 9999)
	viper.Set("pipeline.threshold", 0.8)
	viper.Set("ai.embedding_host", "http://embed.internal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.InDelta(t, 0.8, cfg.Pipeline.Threshold, 1e-9)
	// Normalize appends the /v1 suffix OpenAI-compatible APIs expect.
	assert.Equal(t, "http://embed.internal/v1", cfg.AI.EmbeddingHost)
}

func TestLoadRejectsThresholdOutOfRange(t *testing.T) {
	for _, threshold := range []float64{1.5, -0.2} {
		viper.Reset()
		viper.Set("pipeline.threshold", threshold)

		_, err := Load()
		assert.ErrorIs(t, err, common.ErrInvalidConfig, "threshold %v", threshold)
	}
	viper.Reset()
}

func TestLoadRejectsIncompleteAIConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("ai.embedding_model", " ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, " ", cfg.AI.EmbeddingModel)

	cfg.AI.EmbeddingModel = ""
	assert.ErrorIs(t, cfg.AI.Validate(), common.ErrMissingConfig)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data.db"), ExpandPath("~/data.db"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/var/lib/app.db", ExpandPath("/var/lib/app.db"))

	t.Setenv("LEDGERSIFT_TEST_DIR", "/srv/ledgersift")
	assert.Equal(t, "/srv/ledgersift/app.db", ExpandPath("$LEDGERSIFT_TEST_DIR/app.db"))
}
