package analyst

import (
	"strings"
	"testing"

	"github.com/coverscan/policy-analyst/internal/storage"
)

func TestBuildAnswerPrompt(t *testing.T) {
	chunks := []*storage.ScoredChunk{
		{Chunk: &storage.Chunk{Page: 4, Text: "Knee surgery is covered after 90 days."}, Score: 0.91},
		{Chunk: &storage.Chunk{Page: 7, Text: "A co-payment of 10% applies to all surgical procedures."}, Score: 0.84},
	}
	question := "Is knee surgery covered for a 46-year-old male?"

	prompt := buildAnswerPrompt(chunks, question, DefaultSchema())

	if !strings.Contains(prompt, "--- Excerpt 1 (page 4) ---") {
		t.Error("prompt missing first excerpt header")
	}
	if !strings.Contains(prompt, "--- Excerpt 2 (page 7) ---") {
		t.Error("prompt missing second excerpt header")
	}
	if !strings.Contains(prompt, "Knee surgery is covered after 90 days.") {
		t.Error("prompt missing excerpt text")
	}
	if !strings.Contains(prompt, "QUESTION: "+question) {
		t.Error("prompt missing the question")
	}
	if !strings.Contains(prompt, `"decision"`) || !strings.Contains(prompt, `"source_clause"`) {
		t.Error("prompt missing the answer schema")
	}

	// Excerpts must appear in retrieval order.
	if strings.Index(prompt, "Excerpt 1") > strings.Index(prompt, "Excerpt 2") {
		t.Error("excerpts out of order")
	}
}

func TestBuildAnswerPrompt_NoChunks(t *testing.T) {
	prompt := buildAnswerPrompt(nil, "Is dental covered?", DefaultSchema())
	if !strings.Contains(prompt, "QUESTION: Is dental covered?") {
		t.Error("prompt missing the question")
	}
}
