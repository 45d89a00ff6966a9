package analyst

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/coverscan/policy-analyst/internal/storage"
)

// Generator produces the structured verdict and its conversational summary.
// The model is always invoked at temperature zero: given identical context
// the decision should be reproducible even though the model itself is not
// under our control.
type Generator struct {
	client *openai.Client
	model  string
}

// NewGenerator creates an answer generator using the given chat model.
func NewGenerator(client *openai.Client, model string) *Generator {
	return &Generator{client: client, model: model}
}

// GenerateAnswer builds a single prompt from the retrieved chunks and the
// question and returns the raw model text. Each chunk is delimited and
// annotated with its source page. The response is requested in JSON mode;
// parsing and validation stay with ParseAnswer so that a stricter structured
// output path can replace this without touching callers.
func (g *Generator) GenerateAnswer(ctx context.Context, chunks []*storage.ScoredChunk, question string, schema PromptSchema) (string, error) {
	prompt := buildAnswerPrompt(chunks, question, schema)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       g.model,
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Summarize turns a verdict into a one-sentence conversational answer for
// display above the structured details.
func (g *Generator) Summarize(ctx context.Context, record *AnswerRecord) (string, error) {
	prompt := fmt.Sprintf(`Based on the following analysis, provide a simple, one-sentence conversational answer.
Analysis Decision: %s
Justification: %s
Example: If the decision is 'yes' for knee surgery, respond with 'Yes, knee surgery is covered under the policy.'
Conversational Answer:`, record.Decision, record.Justification)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       g.model,
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildAnswerPrompt assembles the analyst prompt: delimited, page-annotated
// context excerpts, then the question, then the schema contract.
func buildAnswerPrompt(chunks []*storage.ScoredChunk, question string, schema PromptSchema) string {
	var context strings.Builder
	for i, sc := range chunks {
		if i > 0 {
			context.WriteString("\n\n")
		}
		fmt.Fprintf(&context, "--- Excerpt %d (page %d) ---\n%s", i+1, sc.Chunk.Page, sc.Chunk.Text)
	}

	return fmt.Sprintf(`You are an expert insurance policy analyst. Based *only* on the CONTEXT provided, answer the user's QUESTION.
Generate a JSON object with the following schema:
%s

CONTEXT:
%s

QUESTION: %s

ANSWER (in JSON format):`, schema.jsonSpec(), context.String(), question)
}
