package analyst

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

const formulationPrompt = `You are an expert assistant. Convert the user's statement of facts into a clear, answerable question about insurance coverage.

Example 1:
User Statement: "46M, knee surgery, Pune, 3-month policy"
Question: "Is knee surgery covered by the policy?"

Example 2:
User Statement: "Car accident, frontal damage, Mumbai"
Question: "What is the coverage for accidental damage to a car in Mumbai?"

User Statement: %q
Question:`

// Formulator rewrites an informal statement of facts into one explicit
// question, which retrieves noticeably better than the raw shorthand users
// type ("46M, knee surgery, Pune"). Purely a query transformation; callers
// that disable it use the raw input directly.
type Formulator struct {
	client *openai.Client
	model  string
}

// NewFormulator creates a question formulator using the given chat model.
func NewFormulator(client *openai.Client, model string) *Formulator {
	return &Formulator{client: client, model: model}
}

// Formulate converts the user statement into an explicit question.
func (f *Formulator) Formulate(ctx context.Context, statement string) (string, error) {
	resp, err := f.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(fmt.Sprintf(formulationPrompt, statement)),
		},
		Model:       f.model,
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	question := strings.TrimSpace(resp.Choices[0].Message.Content)
	if question == "" {
		return "", fmt.Errorf("chat completion returned empty question")
	}
	return question, nil
}
