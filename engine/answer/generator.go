package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/hackrx-qa/docqa/pkg/logger"
)

// Provider enumerates supported answer-generation backends.
type Provider string

const (
	ProviderGroq   Provider = "groq"
	ProviderOpenAI Provider = "openai"
)

const (
	groqDefaultBaseURL = "https://api.groq.com/openai/v1"

	// NoContextAnswer is returned when retrieval produced no context.
	NoContextAnswer = "No relevant information found in the document."
	// FailedAnswer is returned when generation fails for a question.
	FailedAnswer = "Error generating answer. Please try again."
)

const promptTemplate = `You are a helpful assistant that answers questions based on the provided document context.
Answer the question using only the information from the context below. If the information is not available in the context, say "Information not available in the provided document."

Context:
%s

Question: %s

Answer:`

// Config describes the answer-generation model.
type Config struct {
	Provider    Provider
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	MaxContexts int
}

// Generator produces grounded answers from retrieved document context.
type Generator struct {
	model       llms.Model
	temperature float64
	maxTokens   int
	maxContexts int
}

// New constructs a provider-backed generator.
func New(cfg *Config) (*Generator, error) {
	if cfg == nil {
		return nil, errors.New("answer: config is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("answer: model is required")
	}
	model, err := buildModel(cfg)
	if err != nil {
		return nil, err
	}
	return newGenerator(cfg, model), nil
}

// Wrap constructs a generator around an existing model. Intended for tests
// that substitute a fake implementation.
func Wrap(cfg *Config, model llms.Model) (*Generator, error) {
	if cfg == nil {
		return nil, errors.New("answer: config is required")
	}
	if model == nil {
		return nil, errors.New("answer: model is required")
	}
	return newGenerator(cfg, model), nil
}

func newGenerator(cfg *Config, model llms.Model) *Generator {
	maxContexts := cfg.MaxContexts
	if maxContexts <= 0 {
		maxContexts = 5
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &Generator{
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		maxContexts: maxContexts,
	}
}

func buildModel(cfg *Config) (llms.Model, error) {
	switch cfg.Provider {
	case ProviderGroq:
		return buildGroqModel(cfg)
	case ProviderOpenAI:
		return buildOpenAIModel(cfg)
	default:
		return nil, fmt.Errorf("answer: provider %q is not supported", cfg.Provider)
	}
}

func buildGroqModel(cfg *Config) (llms.Model, error) {
	baseURL := groqDefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(baseURL),
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	return openai.New(opts...)
}

func buildOpenAIModel(cfg *Config) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	return openai.New(opts...)
}

// Answer generates one answer per question, in question order, grounded
// on the shared context list. An empty context list yields the no-context
// placeholder for every question; a failed generation yields a failure
// placeholder for that question only.
func (g *Generator) Answer(ctx context.Context, questions []string, contexts []string) ([]string, error) {
	answers := make([]string, len(questions))
	if len(contexts) == 0 {
		for i := range answers {
			answers[i] = NoContextAnswer
		}
		return answers, nil
	}
	if len(contexts) > g.maxContexts {
		contexts = contexts[:g.maxContexts]
	}
	combined := strings.Join(contexts, "\n\n")
	log := logger.FromContext(ctx)
	for i, question := range questions {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		text, err := g.answerOne(ctx, question, combined)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("answer generation failed", "question_index", i, "error", err)
			answers[i] = FailedAnswer
			continue
		}
		answers[i] = text
	}
	return answers, nil
}

func (g *Generator) answerOne(ctx context.Context, question string, combined string) (string, error) {
	prompt := fmt.Sprintf(promptTemplate, combined, question)
	completion, err := llms.GenerateFromSinglePrompt(
		ctx,
		g.model,
		prompt,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(completion), nil
}
