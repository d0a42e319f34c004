package extract

import (
	"context"

	"github.com/dmarchuk/newsloom/internal/model"
)

// SentenceScore carries the analysis scores for a single sentence.
// Each dimension is in [0,1].
type SentenceScore struct {
	Importance      float64 `json:"importance"`
	Informativeness float64 `json:"informativeness"`
	Novelty         float64 `json:"novelty"`
}

// Combined folds the three dimensions into one confidence value
func (s SentenceScore) Combined() float64 {
	return 0.4*s.Importance + 0.4*s.Informativeness + 0.2*s.Novelty
}

// Candidate is a potential claim drawn from one sentence, before
// attribution and merging. Topic may be empty; the attributor fills it
// from the source's default topic.
type Candidate struct {
	Text       string
	Type       model.ClaimType
	Topic      string
	Keywords   []string
	Confidence float64
	Relevance  float64
}

// Analyzer turns a sentence into zero or more claim candidates. The
// heuristic analyzer is the offline default; an LLM-backed analyzer
// satisfies the same contract.
type Analyzer interface {
	Analyze(ctx context.Context, sentence model.Sentence, defaultTopic string) ([]Candidate, error)
}
