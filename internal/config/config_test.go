package config

import (
	"errors"
	"strings"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.ChunkSize, DefaultChunkSize)
	}
	if cfg.ChunkOverlap != DefaultChunkOverlap {
		t.Errorf("ChunkOverlap = %d, want %d", cfg.ChunkOverlap, DefaultChunkOverlap)
	}
	if cfg.TopK != DefaultTopK {
		t.Errorf("TopK = %d, want %d", cfg.TopK, DefaultTopK)
	}
	if !cfg.FormulateQuestions {
		t.Error("FormulateQuestions should default to true")
	}
	if cfg.Ephemeral {
		t.Error("Ephemeral should default to false")
	}
	if cfg.Qdrant.Collection != DefaultCollection {
		t.Errorf("Qdrant.Collection = %q", cfg.Qdrant.Collection)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("RETRIEVAL_TOP_K", "3")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.7")
	t.Setenv("FORMULATE_QUESTIONS", "false")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-large")
	t.Setenv("QDRANT_PORT", "7443")
	t.Setenv("EPHEMERAL_INDEX", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.ChunkSize != 500 || cfg.ChunkOverlap != 50 || cfg.TopK != 3 {
		t.Errorf("pipeline params not overridden: %+v", cfg)
	}
	if cfg.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %v", cfg.ConfidenceThreshold)
	}
	if cfg.FormulateQuestions {
		t.Error("FORMULATE_QUESTIONS=false not honored")
	}
	if cfg.EmbeddingModel != "text-embedding-3-large" {
		t.Errorf("EmbeddingModel = %q", cfg.EmbeddingModel)
	}
	if cfg.Qdrant.Port != 7443 {
		t.Errorf("Qdrant.Port = %d", cfg.Qdrant.Port)
	}
	if !cfg.Ephemeral {
		t.Error("EPHEMERAL_INDEX=true not honored")
	}
}

// TestFromEnv_UnparseableIsError verifies a set-but-garbled value refuses to
// start rather than silently reverting to the default.
func TestFromEnv_UnparseableIsError(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"CHUNK_SIZE", "not-a-number"},
		{"CONFIDENCE_THRESHOLD", "high"},
		{"FORMULATE_QUESTIONS", "maybe"},
		{"EPHEMERAL_INDEX", "yes please"},
		{"QDRANT_PORT", "6334a"},
	}

	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := FromEnv()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig for %s=%q, got %v", tc.key, tc.value, err)
			}
			if err != nil && !strings.Contains(err.Error(), tc.key) {
				t.Errorf("error should name the offending variable, got %q", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"zero top-k", func(c *Config) { c.TopK = 0 }},
		{"threshold above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.ConfidenceThreshold = -0.1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := FromEnv()
			if err != nil {
				t.Fatalf("FromEnv failed: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
