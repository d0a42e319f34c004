package llm

import (
	"context"

	"github.com/dmarchuk/newsloom/internal/model"
)

// Provider is the contract for language-model collaborators: sentence
// analysis during extraction and prose composition during generation.
type Provider interface {
	// Name returns the provider name
	Name() string

	// AnalyzeSentence scores one sentence and yields zero or more claim
	// candidates
	AnalyzeSentence(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)

	// ComposeSection writes article prose for one group of claims
	ComposeSection(ctx context.Context, req ComposeRequest) (*ComposeResponse, error)
}

// AnalyzeRequest carries one sentence plus its topic hint
type AnalyzeRequest struct {
	Sentence string
	Topic    string
}

// CandidateResult is one claim candidate returned by the model
type CandidateResult struct {
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Confidence float64  `json:"confidence"`
	Relevance  float64  `json:"relevance"`
	Keywords   []string `json:"keywords,omitempty"`
}

// AnalyzeResponse is the model's reading of one sentence
type AnalyzeResponse struct {
	Candidates []CandidateResult `json:"candidates"`
	Model      string            `json:"-"`
	TokensUsed int               `json:"-"`
}

// ComposeRequest asks for prose covering a group of claims. Citations
// maps claim id to the [n] markers the prose should carry.
type ComposeRequest struct {
	Topic     string
	Claims    []model.KnowledgeClaim
	Citations map[string][]int
	MaxTokens int
}

// ComposeResponse is one generated article section
type ComposeResponse struct {
	Heading    string
	Content    string
	Model      string
	TokensUsed int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai" or "" (disabled)
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for the API
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout for API requests, in seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:  modelConfig.Provider,
		Model:     modelConfig.Model,
		APIKey:    modelConfig.APIKey,
		BaseURL:   modelConfig.BaseURL,
		Timeout:   modelConfig.Timeout,
		MaxTokens: modelConfig.MaxTokens,
	}
}
