package ai

import (
	"context"
	"fmt"
	"strings"

	"designlens/internal/config"
	"designlens/internal/domain/template"
)

// Screenshot is one captured viewport of a URL that the model can look at.
type Screenshot struct {
	Viewport string `json:"viewport"`
	URL      string `json:"url"`
}

// ResolvedAttachment is an attachment reduced to what the analysis backend needs:
// a name and fetchable references.
type ResolvedAttachment struct {
	ID          string       `json:"id"`
	Kind        string       `json:"kind"`
	Name        string       `json:"name"`
	URL         string       `json:"url"`
	ContentType string       `json:"content_type,omitempty"`
	Screenshots []Screenshot `json:"screenshots,omitempty"`
}

// IsImage reports whether the reference itself can be shown to a vision model.
func (r ResolvedAttachment) IsImage() bool {
	return r.Kind == "image" || strings.HasPrefix(r.ContentType, "image/")
}

type Request struct {
	Text        string
	Attachments []ResolvedAttachment
	Template    template.Template
}

type Result struct {
	Text  string
	Model string
}

// Analyzer runs one analysis turn. Implementations must be safe for concurrent use.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Result, error)
}

type Provider string

const (
	ProviderMock      Provider = "mock"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
	ProviderGemini    Provider = "gemini"
)

// NewAnalyzer builds the configured backend. An empty provider is the mock.
func NewAnalyzer(ctx context.Context, cfg config.AIConfig) (Analyzer, error) {
	switch Provider(strings.ToLower(cfg.Provider)) {
	case "", ProviderMock:
		return NewMockAnalyzer(), nil
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderGemini:
		return NewLangChainAnalyzer(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}
