// Package config holds pipeline configuration loaded from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Defaults for pipeline parameters. Variants of the original demo disagreed on
// several of these, so all of them are overridable.
const (
	DefaultChunkSize           = 1000
	DefaultChunkOverlap        = 100
	DefaultTopK                = 5
	DefaultConfidenceThreshold = 0.0 // disabled
	DefaultEmbeddingModel      = "text-embedding-3-small"
	DefaultChatModel           = "gpt-4o-mini"
	DefaultQdrantHost          = "localhost"
	DefaultQdrantPort          = 6334
	DefaultCollection          = "policy_chunks"
)

// ErrInvalidConfig reports unusable pipeline parameters.
var ErrInvalidConfig = errors.New("invalid configuration")

// QdrantConfig holds connection details for the persisted vector index.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
}

// Config is the full pipeline configuration.
type Config struct {
	ChunkSize           int
	ChunkOverlap        int
	TopK                int
	ConfidenceThreshold float64
	FormulateQuestions  bool
	EmbeddingModel      string
	ChatModel           string
	Qdrant              QdrantConfig
	// Ephemeral selects the in-memory index instead of Qdrant. One index per
	// uploaded document, discarded with the process.
	Ephemeral bool
}

// FromEnv builds a Config from environment variables, applying defaults for
// anything unset and validating the result. A set-but-unparseable value is an
// error, not a silent fallback; a typo'd override reverting unnoticed is
// harder to diagnose than a refusal to start.
func FromEnv() (*Config, error) {
	var errs []error
	cfg := &Config{
		ChunkSize:           envInt("CHUNK_SIZE", DefaultChunkSize, &errs),
		ChunkOverlap:        envInt("CHUNK_OVERLAP", DefaultChunkOverlap, &errs),
		TopK:                envInt("RETRIEVAL_TOP_K", DefaultTopK, &errs),
		ConfidenceThreshold: envFloat("CONFIDENCE_THRESHOLD", DefaultConfidenceThreshold, &errs),
		FormulateQuestions:  envBool("FORMULATE_QUESTIONS", true, &errs),
		EmbeddingModel:      envStr("EMBEDDING_MODEL", DefaultEmbeddingModel),
		ChatModel:           envStr("CHAT_MODEL", DefaultChatModel),
		Qdrant: QdrantConfig{
			Host:       envStr("QDRANT_HOST", DefaultQdrantHost),
			Port:       envInt("QDRANT_PORT", DefaultQdrantPort, &errs),
			Collection: envStr("QDRANT_COLLECTION", DefaultCollection),
		},
		Ephemeral: envBool("EPHEMERAL_INDEX", false, &errs),
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks pipeline parameters for consistency.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be in [0, chunk size %d)", ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top-k must be positive, got %d", ErrInvalidConfig, c.TopK)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold %.2f must be in [0, 1]", ErrInvalidConfig, c.ConfidenceThreshold)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v))
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v))
		return fallback
	}
	return f
}

func envBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v))
		return fallback
	}
	return b
}
