package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a brute-force cosine similarity store. It backs ephemeral
// mode, where an index lives only as long as the process, and the test suite.
// Reads are safe to run concurrently once a document is fully indexed.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	docs      map[string]*DocumentInfo
	chunks    map[string][]*Chunk // fingerprint -> chunks in upsert order
}

// NewMemoryStore creates an empty in-memory store for vectors of the given
// dimension.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		docs:      make(map[string]*DocumentInfo),
		chunks:    make(map[string][]*Chunk),
	}
}

func (s *MemoryStore) UpsertDocument(_ context.Context, info *DocumentInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *info
	s.docs[info.Fingerprint] = &copied
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, fingerprint string) (*DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.docs[fingerprint]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	copied := *info
	return &copied, nil
}

func (s *MemoryStore) HasDocument(_ context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[fingerprint]
	return ok, nil
}

func (s *MemoryStore) UpsertChunks(_ context.Context, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, chunk := range chunks {
		if len(chunk.Embedding) != s.dimension {
			return fmtDimensionError(i, len(chunk.Embedding), s.dimension)
		}
		s.chunks[chunk.Fingerprint] = append(s.chunks[chunk.Fingerprint], chunk)
	}
	return nil
}

// Search scores every chunk of the document and returns the top k, ordered by
// descending similarity. k larger than the chunk count returns everything.
// Ties are broken by chunk order, so repeated calls are deterministic.
func (s *MemoryStore) Search(_ context.Context, fingerprint string, vector []float32, k int) ([]*ScoredChunk, error) {
	if len(vector) != s.dimension {
		return nil, fmtDimensionError(-1, len(vector), s.dimension)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := s.chunks[fingerprint]
	scored := make([]*ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		scored = append(scored, &ScoredChunk{
			Chunk: chunk,
			Score: cosineSimilarity(vector, chunk.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.ChunkIndex < scored[j].Chunk.ChunkIndex
	})

	if k > len(scored) {
		k = len(scored)
	}
	if k < 0 {
		k = 0
	}
	return scored[:k], nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func fmtDimensionError(index, got, want int) error {
	if index < 0 {
		return fmt.Errorf("%w: query has %d dimensions, expected %d", ErrDimensionMismatch, got, want)
	}
	return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d", ErrDimensionMismatch, index, got, want)
}
