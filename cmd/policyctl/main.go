// Package main provides the policyctl CLI for one-shot policy analysis and
// index management.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/coverscan/policy-analyst/internal/analyst"
	"github.com/coverscan/policy-analyst/internal/chunker"
	"github.com/coverscan/policy-analyst/internal/config"
	"github.com/coverscan/policy-analyst/internal/document"
	"github.com/coverscan/policy-analyst/internal/embedding"
	"github.com/coverscan/policy-analyst/internal/pipeline"
	"github.com/coverscan/policy-analyst/internal/storage"
)

var (
	flagFile        string
	flagQueries     []string
	flagFingerprint string
	flagPersist     bool
	flagNoFormulate bool
	flagChunkSize   int
	flagOverlap     int
	flagTopK        int
)

var rootCmd = &cobra.Command{
	Use:   "policyctl",
	Short: "Policy document analysis tool",
	// Runtime failures already render themselves (printFailure); without
	// these, cobra repeats the error and dumps usage on data errors.
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `CLI for analyzing PDF insurance policies with natural-language questions.

Environment variables:
  OPENAI_API_KEY       OpenAI API key (required)
  QDRANT_HOST          Qdrant hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: policy_chunks)
  CHUNK_SIZE           Chunk size in characters (default: 1000)
  CHUNK_OVERLAP        Chunk overlap in characters (default: 100)
  RETRIEVAL_TOP_K      Chunks retrieved per question (default: 5)
  CONFIDENCE_THRESHOLD Low-confidence warning threshold (default: disabled)`,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a policy PDF with one or more questions",
	Long: `Loads a PDF, builds an in-memory index, and answers each question.
With --persist the index is stored in Qdrant and reused on later runs
for the same file content.`,
	RunE: runAnalyze,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a policy PDF into Qdrant without asking anything",
	RunE:  runIndex,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask questions against an already-indexed document",
	RunE:  runAsk,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Qdrant collection status",
	RunE:  runStatus,
}

func init() {
	analyzeCmd.Flags().StringVarP(&flagFile, "file", "f", "", "policy PDF path (required)")
	analyzeCmd.Flags().StringArrayVarP(&flagQueries, "query", "q", nil, "question or statement of facts (repeatable, required)")
	analyzeCmd.Flags().BoolVar(&flagPersist, "persist", false, "store the index in Qdrant instead of memory")
	analyzeCmd.Flags().BoolVar(&flagNoFormulate, "no-formulate", false, "skip question formulation, use input verbatim")
	analyzeCmd.Flags().IntVar(&flagChunkSize, "chunk-size", 0, "override chunk size")
	analyzeCmd.Flags().IntVar(&flagOverlap, "chunk-overlap", 0, "override chunk overlap")
	analyzeCmd.Flags().IntVar(&flagTopK, "top-k", 0, "override retrieval top-k")
	analyzeCmd.MarkFlagRequired("file")
	analyzeCmd.MarkFlagRequired("query")

	indexCmd.Flags().StringVarP(&flagFile, "file", "f", "", "policy PDF path (required)")
	indexCmd.MarkFlagRequired("file")

	askCmd.Flags().StringVar(&flagFingerprint, "fingerprint", "", "document fingerprint from a previous index run (required)")
	askCmd.Flags().StringArrayVarP(&flagQueries, "query", "q", nil, "question (repeatable, required)")
	askCmd.Flags().BoolVar(&flagNoFormulate, "no-formulate", false, "skip question formulation, use input verbatim")
	askCmd.MarkFlagRequired("fingerprint")
	askCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(analyzeCmd, indexCmd, askCmd, statusCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig applies flag overrides on top of the environment config.
func loadConfig(persist bool) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if flagChunkSize > 0 {
		cfg.ChunkSize = flagChunkSize
	}
	if flagOverlap > 0 {
		cfg.ChunkOverlap = flagOverlap
	}
	if flagTopK > 0 {
		cfg.TopK = flagTopK
	}
	if flagNoFormulate {
		cfg.FormulateQuestions = false
	}
	cfg.Ephemeral = !persist
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildPipeline wires the components. The returned close function releases
// the Qdrant connection when one was opened.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	client, err := embedding.NewClient()
	if err != nil {
		return nil, nil, err
	}
	embedder, err := embedding.NewEmbedder(client, cfg.EmbeddingModel, 0)
	if err != nil {
		return nil, nil, err
	}

	var store storage.Store
	closeFn := func() {}
	if cfg.Ephemeral {
		store = storage.NewMemoryStore(embedder.Dimension())
	} else {
		qdrantStore, err := storage.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection, embedder.Dimension())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		if err := qdrantStore.EnsureCollection(ctx); err != nil {
			qdrantStore.Close()
			return nil, nil, fmt.Errorf("failed to ensure collection: %w", err)
		}
		store = qdrantStore
		closeFn = func() { qdrantStore.Close() }
	}

	var formulator pipeline.Formulator
	if cfg.FormulateQuestions {
		formulator = analyst.NewFormulator(client.Client(), cfg.ChatModel)
	}
	generator := analyst.NewGenerator(client.Client(), cfg.ChatModel)

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	pipe, err := pipeline.New(ch, embedder, formulator, generator, store, pipeline.Options{
		TopK:                cfg.TopK,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		Schema:              analyst.DefaultSchema(),
	}, logger)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return pipe, closeFn, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(flagPersist)
	if err != nil {
		return err
	}
	pipe, closeFn, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	f, err := os.Open(flagFile)
	if err != nil {
		return fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()

	results, err := pipe.ProcessAll(ctx, flagFile, f, flagQueries)
	if err != nil {
		return printFailure(err)
	}
	if len(results) == 1 {
		return printJSON(results[0])
	}
	return printJSON(results)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	pipe, closeFn, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	f, err := os.Open(flagFile)
	if err != nil {
		return fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()

	doc, err := document.LoadPDF(flagFile, f)
	if err != nil {
		return fmt.Errorf("load PDF: %w", err)
	}

	session, err := pipe.IndexDocument(ctx, doc)
	if err != nil {
		return printFailure(err)
	}
	return printJSON(session)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	pipe, closeFn, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	session, err := pipe.LookupSession(ctx, flagFingerprint)
	if err != nil {
		return printFailure(err)
	}

	results := make([]*pipeline.Result, 0, len(flagQueries))
	for _, q := range flagQueries {
		result, err := pipe.Ask(ctx, session, q)
		if err != nil {
			return printFailure(err)
		}
		results = append(results, result)
	}
	if len(results) == 1 {
		return printJSON(results[0])
	}
	return printJSON(results)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	// The status probe only needs the store, not the full pipeline. The
	// dimension must still match the configured embedding model.
	client, err := embedding.NewClient()
	if err != nil {
		return err
	}
	embedder, err := embedding.NewEmbedder(client, cfg.EmbeddingModel, 0)
	if err != nil {
		return err
	}

	store, err := storage.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection, embedder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}
	info, err := store.GetCollectionInfo(ctx)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"collection":      cfg.Qdrant.Collection,
		"points":          info.PointsCount,
		"embedding_model": cfg.EmbeddingModel,
	})
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// printFailure renders the tagged failure to stderr and returns a bare error
// so cobra exits non-zero without double-printing.
func printFailure(err error) error {
	failure := pipeline.FailureFrom(err)
	data, merr := json.MarshalIndent(failure, "", "  ")
	if merr == nil {
		fmt.Fprintln(os.Stderr, string(data))
	}
	return fmt.Errorf("%s stage failed: %s", failure.Stage, failure.Message)
}
