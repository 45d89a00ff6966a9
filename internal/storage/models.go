package storage

import (
	"context"
	"time"
)

// DocumentInfo describes an indexed policy document. There is no stored copy
// of the original file; the fingerprint (SHA-256 of the upload) is the
// document's identity and the index cache key.
type DocumentInfo struct {
	Fingerprint    string
	Filename       string
	PageCount      int
	ChunkCount     int
	EmbeddingModel string // model the chunks were embedded with
	IndexedAt      time.Time
}

// Chunk is an embedded policy segment stored in the index.
type Chunk struct {
	ID          string // UUID
	Fingerprint string // owning document
	ChunkIndex  int    // position in document order (0, 1, 2...)
	Page        int    // 1-based source PDF page
	Text        string
	Embedding   []float32
}

// ScoredChunk is a search hit with its similarity score.
type ScoredChunk struct {
	Chunk *Chunk
	Score float64
}

// Store persists embedded chunks and serves similarity search over them.
// Implementations: QdrantStore (durable, shared collection) and MemoryStore
// (process-scoped, used in ephemeral mode and tests).
type Store interface {
	UpsertDocument(ctx context.Context, info *DocumentInfo) error
	GetDocument(ctx context.Context, fingerprint string) (*DocumentInfo, error)
	HasDocument(ctx context.Context, fingerprint string) (bool, error)
	UpsertChunks(ctx context.Context, chunks []*Chunk) error
	// Search returns the k most similar chunks of one document, ordered by
	// descending similarity. k larger than the chunk count is clamped, not an
	// error. Ties are broken by chunk order.
	Search(ctx context.Context, fingerprint string, vector []float32, k int) ([]*ScoredChunk, error)
	Close() error
}
