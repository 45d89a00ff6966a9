// Package pipeline orchestrates the document-to-verdict flow: load, chunk,
// index, formulate, retrieve, generate, parse. Stages run sequentially and
// the first failure stops the run; there is no continuation on partial data.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coverscan/policy-analyst/internal/analyst"
	"github.com/coverscan/policy-analyst/internal/chunker"
	"github.com/coverscan/policy-analyst/internal/document"
	"github.com/coverscan/policy-analyst/internal/storage"
)

// Embedder produces fixed-dimension vectors for chunks and queries. The same
// embedder must be used to build and query an index; Model() is the identity
// stored alongside the index to enforce that.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Formulator rewrites an informal user statement into an explicit question.
type Formulator interface {
	Formulate(ctx context.Context, statement string) (string, error)
}

// Generator produces the raw verdict text and the conversational summary.
type Generator interface {
	GenerateAnswer(ctx context.Context, chunks []*storage.ScoredChunk, question string, schema analyst.PromptSchema) (string, error)
	Summarize(ctx context.Context, record *analyst.AnswerRecord) (string, error)
}

// Options are the per-pipeline tuning parameters.
type Options struct {
	TopK                int
	ConfidenceThreshold float64
	Schema              analyst.PromptSchema
}

// Pipeline wires the components together. Construct once; all state is
// request-scoped, so a Pipeline is safe for concurrent Ask calls against
// already-indexed documents.
type Pipeline struct {
	chunker    *chunker.Chunker
	embedder   Embedder
	formulator Formulator // nil disables the formulation stage
	generator  Generator
	store      storage.Store
	opts       Options
	logger     *slog.Logger
}

// New creates a pipeline. formulator may be nil, in which case the raw user
// input is used both as the retrieval query and in the final prompt.
func New(
	ch *chunker.Chunker,
	embedder Embedder,
	formulator Formulator,
	generator Generator,
	store storage.Store,
	opts Options,
	logger *slog.Logger,
) (*Pipeline, error) {
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("top-k must be positive, got %d", opts.TopK)
	}
	if len(opts.Schema.Fields) == 0 {
		opts.Schema = analyst.DefaultSchema()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:    ch,
		embedder:   embedder,
		formulator: formulator,
		generator:  generator,
		store:      store,
		opts:       opts,
		logger:     logger,
	}, nil
}

// Session identifies an indexed document that queries can run against.
type Session struct {
	Fingerprint string `json:"fingerprint"`
	Filename    string `json:"filename"`
	PageCount   int    `json:"total_pages"`
	ChunkCount  int    `json:"chunk_count"`
	Reused      bool   `json:"index_reused"` // persisted index hit, build skipped
}

// RetrievedChunk is one context excerpt included in a result.
type RetrievedChunk struct {
	Text       string  `json:"text"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// Metadata is observational only; nothing downstream consumes it.
type Metadata struct {
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
	ChunksProcessed       int       `json:"chunks_processed"`
	ChunksRetrieved       int       `json:"chunks_retrieved"`
	Timestamp             time.Time `json:"timestamp"`
}

// Result is the fully-populated answer for one query.
type Result struct {
	analyst.AnswerRecord
	ConversationalSummary string           `json:"conversational_summary,omitempty"`
	Query                 string           `json:"query"`
	FormulatedQuestion    string           `json:"formulated_question,omitempty"`
	RetrievedChunks       []RetrievedChunk `json:"retrieved_chunks"`
	Document              Session          `json:"document_metadata"`
	Statistics            Metadata         `json:"processing_statistics"`
}

// Process runs the full pipeline for one uploaded document and one query.
func (p *Pipeline) Process(ctx context.Context, filename string, upload io.Reader, query string) (*Result, error) {
	start := time.Now()

	doc, err := document.LoadPDF(filename, upload)
	if err != nil {
		return nil, stageFailed(StageLoading, KindLoad, err)
	}

	session, err := p.IndexDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	return p.ask(ctx, session, query, start)
}

// ProcessAll indexes the document once and answers each query against the
// shared index, sequentially. The first failing query aborts the batch.
func (p *Pipeline) ProcessAll(ctx context.Context, filename string, upload io.Reader, queries []string) ([]*Result, error) {
	doc, err := document.LoadPDF(filename, upload)
	if err != nil {
		return nil, stageFailed(StageLoading, KindLoad, err)
	}

	session, err := p.IndexDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(queries))
	for _, query := range queries {
		result, err := p.Ask(ctx, session, query)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// IndexDocument chunks and embeds a loaded document, unless a persisted index
// for the same fingerprint already exists, in which case the build is skipped
// entirely. An embedding failure for any chunk fails the whole build; a
// partial index would retrieve silently incomplete context forever after.
func (p *Pipeline) IndexDocument(ctx context.Context, doc *document.Document) (*Session, error) {
	existing, err := p.store.GetDocument(ctx, doc.Fingerprint)
	if err == nil {
		if existing.EmbeddingModel != p.embedder.Model() {
			return nil, stageFailed(StageIndexing, KindIndex,
				fmt.Errorf("%w: index has %q, pipeline uses %q",
					storage.ErrEmbedderMismatch, existing.EmbeddingModel, p.embedder.Model()))
		}
		p.logger.Info("Reusing persisted index",
			"fingerprint", shortFingerprint(doc.Fingerprint),
			"chunks", existing.ChunkCount,
		)
		return &Session{
			Fingerprint: doc.Fingerprint,
			Filename:    existing.Filename,
			PageCount:   existing.PageCount,
			ChunkCount:  existing.ChunkCount,
			Reused:      true,
		}, nil
	}
	if !errors.Is(err, storage.ErrDocumentNotFound) {
		return nil, stageFailed(StageIndexing, KindIndex, err)
	}

	chunks := p.chunker.Split(doc.Pages)
	if len(chunks) == 0 {
		return nil, stageFailed(StageChunking, KindLoad, fmt.Errorf("document produced no chunks"))
	}
	p.logger.Debug("Chunked document", "filename", doc.Filename, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, stageFailed(StageIndexing, KindProvider, fmt.Errorf("embeddings: %w", err))
	}
	if len(embeddings) != len(chunks) {
		return nil, stageFailed(StageIndexing, KindProvider,
			fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(embeddings)))
	}

	stored := make([]*storage.Chunk, len(chunks))
	for i, c := range chunks {
		stored[i] = &storage.Chunk{
			ID:          uuid.New().String(),
			Fingerprint: doc.Fingerprint,
			ChunkIndex:  c.Index,
			Page:        c.SourcePage,
			Text:        c.Text,
			Embedding:   embeddings[i],
		}
	}
	if err := p.store.UpsertChunks(ctx, stored); err != nil {
		return nil, stageFailed(StageIndexing, KindIndex, fmt.Errorf("store chunks: %w", err))
	}

	info := &storage.DocumentInfo{
		Fingerprint:    doc.Fingerprint,
		Filename:       doc.Filename,
		PageCount:      doc.PageCount(),
		ChunkCount:     len(chunks),
		EmbeddingModel: p.embedder.Model(),
		IndexedAt:      time.Now(),
	}
	if err := p.store.UpsertDocument(ctx, info); err != nil {
		return nil, stageFailed(StageIndexing, KindIndex, fmt.Errorf("store document: %w", err))
	}

	p.logger.Info("Indexed document",
		"filename", doc.Filename,
		"pages", doc.PageCount(),
		"chunks", len(chunks),
	)

	return &Session{
		Fingerprint: doc.Fingerprint,
		Filename:    doc.Filename,
		PageCount:   doc.PageCount(),
		ChunkCount:  len(chunks),
	}, nil
}

// LookupSession resolves an already-indexed document by fingerprint, guarding
// the embedding-model invariant before any query runs against it.
func (p *Pipeline) LookupSession(ctx context.Context, fingerprint string) (*Session, error) {
	info, err := p.store.GetDocument(ctx, fingerprint)
	if err != nil {
		return nil, stageFailed(StageRetrieving, KindIndex, err)
	}
	if info.EmbeddingModel != p.embedder.Model() {
		return nil, stageFailed(StageRetrieving, KindIndex,
			fmt.Errorf("%w: index has %q, pipeline uses %q",
				storage.ErrEmbedderMismatch, info.EmbeddingModel, p.embedder.Model()))
	}
	return &Session{
		Fingerprint: fingerprint,
		Filename:    info.Filename,
		PageCount:   info.PageCount,
		ChunkCount:  info.ChunkCount,
		Reused:      true,
	}, nil
}

// Ask answers one query against an indexed document.
func (p *Pipeline) Ask(ctx context.Context, session *Session, query string) (*Result, error) {
	return p.ask(ctx, session, query, time.Now())
}

func (p *Pipeline) ask(ctx context.Context, session *Session, query string, start time.Time) (*Result, error) {
	question := query
	formulated := ""
	if p.formulator != nil {
		q, err := p.formulator.Formulate(ctx, query)
		if err != nil {
			return nil, stageFailed(StageFormulating, KindProvider, err)
		}
		question = q
		formulated = q
		p.logger.Debug("Formulated question", "input", query, "question", q)
	}

	vector, err := p.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, stageFailed(StageRetrieving, KindProvider, fmt.Errorf("embed query: %w", err))
	}

	k := p.opts.TopK
	if session.ChunkCount > 0 && k > session.ChunkCount {
		k = session.ChunkCount
	}
	hits, err := p.store.Search(ctx, session.Fingerprint, vector, k)
	if err != nil {
		return nil, stageFailed(StageRetrieving, KindIndex, err)
	}
	if len(hits) == 0 {
		return nil, stageFailed(StageRetrieving, KindIndex,
			fmt.Errorf("no chunks retrieved for document %s", shortFingerprint(session.Fingerprint)))
	}

	raw, err := p.generator.GenerateAnswer(ctx, hits, question, p.opts.Schema)
	if err != nil {
		return nil, stageFailed(StageGenerating, KindProvider, err)
	}

	record, err := analyst.ParseAnswer(raw, p.opts.Schema, p.opts.ConfidenceThreshold)
	if err != nil {
		return nil, stageFailed(StageParsing, KindParse, err)
	}

	// The summary is presentation sugar; its failure never fails the answer.
	summary, err := p.generator.Summarize(ctx, record)
	if err != nil {
		p.logger.Warn("Summary generation failed", "error", err)
		summary = ""
	}

	retrieved := make([]RetrievedChunk, len(hits))
	for i, hit := range hits {
		retrieved[i] = RetrievedChunk{
			Text:       hit.Chunk.Text,
			Page:       hit.Chunk.Page,
			ChunkIndex: hit.Chunk.ChunkIndex,
			Score:      hit.Score,
		}
	}

	result := &Result{
		AnswerRecord:          *record,
		ConversationalSummary: summary,
		Query:                 query,
		FormulatedQuestion:    formulated,
		RetrievedChunks:       retrieved,
		Document:              *session,
		Statistics: Metadata{
			ProcessingTimeSeconds: time.Since(start).Seconds(),
			ChunksProcessed:       session.ChunkCount,
			ChunksRetrieved:       len(hits),
			Timestamp:             time.Now(),
		},
	}

	p.logger.Info("Query answered",
		"decision", record.Decision,
		"chunks_retrieved", len(hits),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return result, nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
