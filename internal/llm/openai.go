package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI models
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// AnalyzeSentence asks the model for claim candidates in a sentence.
// The response must be JSON; anything unparsable is an error the caller
// treats as "no candidates for this sentence".
func (p *OpenAIProvider) AnalyzeSentence(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	prompt := buildAnalyzePrompt(req)

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model(),
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You extract verifiable knowledge claims from single sentences. Respond with JSON only, no prose.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   p.maxTokens(),
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = stripCodeFence(content)

	var parsed AnalyzeResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}

	parsed.Model = p.model()
	parsed.TokensUsed = resp.Usage.TotalTokens
	return &parsed, nil
}

// ComposeSection generates prose for one topic's claim group
func (p *OpenAIProvider) ComposeSection(ctx context.Context, req ComposeRequest) (*ComposeResponse, error) {
	prompt := buildComposePrompt(req)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens()
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model(),
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You write concise, neutral news prose. Every statement must come from the supplied claims and keep its [n] citation markers. Never add facts of your own.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	heading, body := splitHeading(content, req.Topic)

	return &ComposeResponse{
		Heading:    heading,
		Content:    body,
		Model:      p.model(),
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func (p *OpenAIProvider) model() string {
	if p.config.Model != "" {
		return p.config.Model
	}
	return openai.GPT4oMini
}

func (p *OpenAIProvider) maxTokens() int {
	if p.config.MaxTokens > 0 {
		return p.config.MaxTokens
	}
	return 1000
}

func (p *OpenAIProvider) timeout() time.Duration {
	if p.config.Timeout > 0 {
		return time.Duration(p.config.Timeout) * time.Second
	}
	return 30 * time.Second
}

func buildAnalyzePrompt(req AnalyzeRequest) string {
	var sb strings.Builder
	sb.WriteString("Sentence:\n")
	sb.WriteString(req.Sentence)
	if req.Topic != "" {
		sb.WriteString("\n\nTopic context: ")
		sb.WriteString(req.Topic)
	}
	sb.WriteString(`

Return JSON of the form:
{"candidates":[{"text":"...","type":"fact|opinion|definition|statistic|quote|prediction|research_finding|trend|comparison|explanation","confidence":0.0,"relevance":0.0,"keywords":["..."]}]}

Rules:
- A candidate must be a single verifiable statement taken from the sentence.
- confidence and relevance are in [0,1].
- Return {"candidates":[]} when the sentence carries no claim.`)
	return sb.String()
}

func buildComposePrompt(req ComposeRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write one short article section about %q from these claims.\n\nClaims:\n", req.Topic)
	for _, claim := range req.Claims {
		markers := ""
		for _, n := range req.Citations[claim.ID] {
			markers += fmt.Sprintf(" [%d]", n)
		}
		fmt.Fprintf(&sb, "- %s%s\n", claim.Text, markers)
	}
	sb.WriteString("\nStart with a heading on its own line, then 1-2 paragraphs. Keep every [n] marker attached to its statement.")
	return sb.String()
}

// stripCodeFence removes a surrounding ```json fence if the model added one
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func splitHeading(content, fallback string) (string, string) {
	lines := strings.SplitN(content, "\n", 2)
	if len(lines) == 2 {
		heading := strings.TrimSpace(strings.TrimLeft(lines[0], "# "))
		if heading != "" && len(heading) <= 120 {
			return heading, strings.TrimSpace(lines[1])
		}
	}
	return fallback, content
}
