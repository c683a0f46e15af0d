// Package config loads application configuration from Viper and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ledgersift/ledgersift/internal/ai"
	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/pipeline"
	"github.com/ledgersift/ledgersift/internal/server"
)

// Config is the assembled application configuration.
type Config struct {
	AI           *ai.Config
	DatabasePath string
	Server       server.Config
	Pipeline     pipeline.Config
}

// Load assembles configuration with this precedence:
// 1. Viper configuration (from config file or LEDGERSIFT_ env vars)
// 2. Direct environment variables
// 3. Default values
func Load() (*Config, error) {
	cfg := &Config{
		AI:       ai.DefaultConfig(),
		Server:   server.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
	}

	cfg.DatabasePath = viper.GetString("database.path")
	if cfg.DatabasePath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DatabasePath = filepath.Join(home, ".local", "share", "ledgersift", "ledgersift.db")
		} else {
			cfg.DatabasePath = "ledgersift.db"
		}
	}
	cfg.DatabasePath = ExpandPath(cfg.DatabasePath)

	if v := viper.GetString("ai.embedding_host"); v != "" {
		cfg.AI.EmbeddingHost = v
	}
	if v := viper.GetString("ai.extractor_host"); v != "" {
		cfg.AI.ExtractorHost = v
	}
	if v := viper.GetString("ai.embedding_model"); v != "" {
		cfg.AI.EmbeddingModel = v
	}
	if v := viper.GetString("ai.extractor_model"); v != "" {
		cfg.AI.ExtractorModel = v
	}
	if v := viper.GetString("ai.api_token"); v != "" {
		cfg.AI.APIToken = v
	}
	if cfg.AI.APIToken == "" {
		cfg.AI.APIToken = os.Getenv("LEDGERSIFT_API_TOKEN")
	}
	cfg.AI.Normalize()

	if v := viper.GetString("server.host"); v != "" {
		cfg.Server.Host = v
	}
	if v := viper.GetInt("server.port"); v > 0 {
		cfg.Server.Port = v
	}
	if v := viper.GetInt("server.pool_size"); v > 0 {
		cfg.Server.PoolSize = v
	}
	if v := viper.GetInt64("server.max_upload_mb"); v > 0 {
		cfg.Server.MaxUploadMB = v
	}

	if v := viper.GetInt("pipeline.chunk_size"); v > 0 {
		cfg.Pipeline.ChunkSize = v
	}
	if v := viper.GetInt("pipeline.flush_size"); v > 0 {
		cfg.Pipeline.FlushSize = v
	}
	if v := viper.GetInt("pipeline.max_attempts"); v > 0 {
		cfg.Pipeline.MaxAttempts = v
	}
	if v := viper.GetDuration("pipeline.base_delay"); v > 0 {
		cfg.Pipeline.BaseDelay = v
	}
	if v := viper.GetFloat64("pipeline.threshold"); v != 0 {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: pipeline.threshold %v is outside (0, 1]", common.ErrInvalidConfig, v)
		}
		cfg.Pipeline.Threshold = v
	}

	if err := cfg.AI.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
