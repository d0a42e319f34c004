package llm

import (
	"context"

	"github.com/dmarchuk/newsloom/internal/extract"
	"github.com/dmarchuk/newsloom/internal/model"
)

// Analyzer adapts a Provider to the extraction stage's analyzer
// contract
type Analyzer struct {
	provider Provider
}

// NewAnalyzer wraps a provider. The provider must be non-nil; callers
// use the heuristic analyzer when no provider is configured.
func NewAnalyzer(provider Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

// Analyze sends one sentence to the provider and converts its answer
// into claim candidates
func (a *Analyzer) Analyze(ctx context.Context, sentence model.Sentence, defaultTopic string) ([]extract.Candidate, error) {
	resp, err := a.provider.AnalyzeSentence(ctx, AnalyzeRequest{
		Sentence: sentence.Text,
		Topic:    defaultTopic,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]extract.Candidate, 0, len(resp.Candidates))
	for _, c := range resp.Candidates {
		if c.Text == "" {
			continue
		}
		candidates = append(candidates, extract.Candidate{
			Text:       c.Text,
			Type:       model.ClaimType(c.Type),
			Topic:      defaultTopic,
			Keywords:   c.Keywords,
			Confidence: clamp01(c.Confidence),
			Relevance:  clamp01(c.Relevance),
		})
	}
	return candidates, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
