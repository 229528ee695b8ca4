package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/tallyhq/tally/internal/model"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CategoryLister loads a workspace's categories.
type CategoryLister interface {
	ListCategories(ctx context.Context, workspaceID string) ([]model.Category, error)
}

// GeminiSuggester asks an LLM to pick one of the workspace's categories for
// each description. Answers naming unknown categories are dropped.
type GeminiSuggester struct {
	gen        Generator
	categories CategoryLister
}

// NewGeminiSuggester creates a suggester backed by any Generator.
func NewGeminiSuggester(gen Generator, categories CategoryLister) *GeminiSuggester {
	return &GeminiSuggester{gen: gen, categories: categories}
}

// NewGeminiGenerator creates a Generator calling the Gemini API.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string) (Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &geminiGenerator{client: client, model: modelName}, nil
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from %s", g.model)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

func (s *GeminiSuggester) Name() string { return "gemini" }

type geminiAnswer struct {
	Index      int    `json:"index"`
	CategoryID string `json:"categoryId"`
}

func (s *GeminiSuggester) Suggest(ctx context.Context, workspaceID string, in []Input) ([]Suggestion, error) {
	out := make([]Suggestion, len(in))
	if len(in) == 0 {
		return out, nil
	}

	cats, err := s.categories.ListCategories(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return out, nil
	}
	kinds := make(map[string]model.CategoryKind, len(cats))
	for _, c := range cats {
		kinds[c.ID] = c.Kind
	}

	raw, err := s.gen.Generate(ctx, buildPrompt(cats, in))
	if err != nil {
		return nil, err
	}

	answers, err := parseAnswers(raw)
	if err != nil {
		return nil, err
	}
	for _, a := range answers {
		if a.Index < 0 || a.Index >= len(in) {
			continue
		}
		kind, ok := kinds[a.CategoryID]
		if !ok || kind != kindFor(in[a.Index].Type) {
			continue
		}
		out[a.Index].CategoryID = a.CategoryID
	}
	return out, nil
}

func buildPrompt(cats []model.Category, in []Input) string {
	var b strings.Builder
	b.WriteString("You categorize household bank statement lines.\n")
	b.WriteString("Return a RAW JSON ARRAY of objects with 'index' and 'categoryId'. Do NOT use markdown.\n")
	b.WriteString("Use only the category ids below, income categories for INCOME lines and expense categories for EXPENSE lines. Omit lines you are unsure about.\n\n")
	b.WriteString("Categories:\n")
	for _, c := range cats {
		line, _ := json.Marshal(map[string]string{"id": c.ID, "name": c.Name, "kind": string(c.Kind)})
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteString("\nLines:\n")
	for i, input := range in {
		line, _ := json.Marshal(map[string]any{
			"index":       i,
			"description": input.Description,
			"type":        input.Type,
			"amount":      input.Amount.StringFixed(2),
		})
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// parseAnswers accepts the JSON array with or without a markdown fence.
func parseAnswers(raw string) ([]geminiAnswer, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var answers []geminiAnswer
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil, fmt.Errorf("parsing gemini answer: %w", err)
	}
	return answers, nil
}

func kindFor(t model.TransactionType) model.CategoryKind {
	if t == model.TypeIncome {
		return model.CategoryKindIncome
	}
	return model.CategoryKindExpense
}
