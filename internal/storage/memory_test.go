package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChunks(t *testing.T, store *MemoryStore, fingerprint string, embeddings [][]float32) {
	t.Helper()
	chunks := make([]*Chunk, len(embeddings))
	for i, emb := range embeddings {
		chunks[i] = &Chunk{
			ID:          fmt.Sprintf("chunk-%d", i),
			Fingerprint: fingerprint,
			ChunkIndex:  i,
			Page:        i + 1,
			Text:        fmt.Sprintf("clause %d", i),
			Embedding:   emb,
		}
	}
	require.NoError(t, store.UpsertChunks(context.Background(), chunks))
}

func TestMemoryStore_DocumentRoundtrip(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	_, err := store.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	ok, err := store.HasDocument(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	info := &DocumentInfo{
		Fingerprint:    "abc123",
		Filename:       "policy.pdf",
		PageCount:      12,
		ChunkCount:     40,
		EmbeddingModel: "text-embedding-3-small",
		IndexedAt:      time.Now(),
	}
	require.NoError(t, store.UpsertDocument(ctx, info))

	got, err := store.GetDocument(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "policy.pdf", got.Filename)
	assert.Equal(t, 40, got.ChunkCount)
	assert.Equal(t, "text-embedding-3-small", got.EmbeddingModel)

	// The stored record is a copy, not an alias.
	info.Filename = "mutated.pdf"
	got, err = store.GetDocument(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "policy.pdf", got.Filename)
}

func TestMemoryStore_SearchOrdering(t *testing.T) {
	store := NewMemoryStore(3)
	seedChunks(t, store, "doc", [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	})

	hits, err := store.Search(context.Background(), "doc", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, 0, hits[0].Chunk.ChunkIndex, "exact match first")
	assert.Equal(t, 2, hits[1].Chunk.ChunkIndex, "near match second")
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestMemoryStore_SearchClampsK(t *testing.T) {
	store := NewMemoryStore(2)
	seedChunks(t, store, "doc", [][]float32{
		{1, 0}, {0, 1}, {1, 1}, {0.5, 0.5}, {0.2, 0.9},
	})

	hits, err := store.Search(context.Background(), "doc", []float32{1, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, hits, 5, "k beyond the chunk count returns everything")

	hits, err = store.Search(context.Background(), "doc", []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryStore_SearchTieBreak(t *testing.T) {
	// Identical embeddings score identically; order must fall back to chunk
	// order and stay stable across calls.
	store := NewMemoryStore(2)
	seedChunks(t, store, "doc", [][]float32{
		{1, 1}, {1, 1}, {1, 1},
	})

	for i := 0; i < 5; i++ {
		hits, err := store.Search(context.Background(), "doc", []float32{1, 1}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		for j, hit := range hits {
			assert.Equal(t, j, hit.Chunk.ChunkIndex)
		}
	}
}

func TestMemoryStore_SearchScopedToDocument(t *testing.T) {
	store := NewMemoryStore(2)
	seedChunks(t, store, "doc-a", [][]float32{{1, 0}})
	seedChunks(t, store, "doc-b", [][]float32{{1, 0}, {0, 1}})

	hits, err := store.Search(context.Background(), "doc-a", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc-a", hits[0].Chunk.Fingerprint)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	store := NewMemoryStore(3)

	err := store.UpsertChunks(context.Background(), []*Chunk{
		{Fingerprint: "doc", Embedding: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.Search(context.Background(), "doc", []float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
