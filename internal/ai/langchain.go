package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"designlens/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var defaultModels = map[Provider]string{
	ProviderOpenAI:    "gpt-4o",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
	ProviderOllama:    "llava",
	ProviderGemini:    "gemini-2.5-flash",
}

// LangChainAnalyzer sends multimodal prompts through a langchaingo model.
type LangChainAnalyzer struct {
	llm         llms.Model
	provider    Provider
	model       string
	temperature float64
	maxTokens   int
}

func NewLangChainAnalyzer(ctx context.Context, cfg config.AIConfig) (*LangChainAnalyzer, error) {
	provider := Provider(strings.ToLower(cfg.Provider))
	model := cfg.Model
	if model == "" {
		model = defaultModels[provider]
	}

	var (
		llm llms.Model
		err error
	)
	switch provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(model), openai.WithToken(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case ProviderAnthropic:
		llm, err = anthropic.New(anthropic.WithToken(cfg.APIKey), anthropic.WithModel(model))
	case ProviderOllama:
		serverURL := cfg.BaseURL
		if serverURL == "" {
			serverURL = "http://localhost:11434"
		}
		llm, err = ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	case ProviderGemini:
		llm, err = googleai.New(ctx, googleai.WithAPIKey(cfg.APIKey), googleai.WithDefaultModel(model))
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", provider, err)
	}
	return NewLangChainAnalyzerFromModel(llm, provider, model, cfg.Temperature, cfg.MaxTokens), nil
}

// NewLangChainAnalyzerFromModel wraps an existing model, which is how tests inject a fake.
func NewLangChainAnalyzerFromModel(llm llms.Model, provider Provider, model string, temperature float64, maxTokens int) *LangChainAnalyzer {
	return &LangChainAnalyzer{llm: llm, provider: provider, model: model, temperature: temperature, maxTokens: maxTokens}
}

func (a *LangChainAnalyzer) Analyze(ctx context.Context, req Request) (Result, error) {
	system, user := BuildPrompt(req)

	human := []llms.ContentPart{llms.TextPart(user)}
	for _, u := range imageURLs(req) {
		human = append(human, llms.ImageURLPart(u))
	}
	msgs := make([]llms.MessageContent, 0, 2)
	if system != "" {
		msgs = append(msgs, llms.MessageContent{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(system)}})
	}
	msgs = append(msgs, llms.MessageContent{Role: llms.ChatMessageTypeHuman, Parts: human})

	model := a.model
	if req.Template.Model != "" {
		model = req.Template.Model
	}
	opts := []llms.CallOption{llms.WithTemperature(a.temperature)}
	if a.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(a.maxTokens))
	}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	resp, err := a.llm.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", a.provider, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Result{}, errors.New("model returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return Result{}, errors.New("model returned an empty answer")
	}
	return Result{Text: text, Model: model}, nil
}
