package extract

import (
	"context"
	"strings"
	"unicode"

	"github.com/dmarchuk/newsloom/internal/model"
)

// typeKeywords maps claim types to the cue phrases that indicate them.
// Order matters: the first matching type wins for a sentence.
var typeKeywords = []struct {
	claimType model.ClaimType
	phrases   []string
}{
	{model.ClaimTypeStatistic, []string{"percent", "%", "billion", "million", "grew by", "fell by", "increase of", "decrease of"}},
	{model.ClaimTypeQuote, []string{"said", "stated", "told", "according to", "announced"}},
	{model.ClaimTypeResearchFinding, []string{"study", "research", "survey", "found that", "researchers", "scientists"}},
	{model.ClaimTypeDefinition, []string{"is defined as", "refers to", "is a type of", "means that", "is known as"}},
	{model.ClaimTypePrediction, []string{"will", "expected to", "forecast", "predicts", "by 2030", "in the coming"}},
	{model.ClaimTypeTrend, []string{"increasingly", "growing", "declining", "trend", "shift toward", "adoption of"}},
	{model.ClaimTypeComparison, []string{"compared to", "versus", "more than", "less than", "outperform"}},
	{model.ClaimTypeOpinion, []string{"believes", "argues", "suggests", "claims that", "in my view"}},
	{model.ClaimTypeExplanation, []string{"because", "due to", "as a result", "caused by", "which explains"}},
	{model.ClaimTypeFact, []string{"introduced", "launched", "released", "established", "founded", "created", "discovered", "developed", "originated", "first", "invented"}},
}

var stopwords = map[string]bool{
	"about": true, "after": true, "their": true, "there": true, "these": true,
	"those": true, "which": true, "while": true, "would": true, "could": true,
	"should": true, "other": true, "being": true, "between": true, "during": true,
	"through": true, "where": true, "under": true, "because": true, "against": true,
}

// HeuristicAnalyzer produces claim candidates without any external
// language model. It scores sentences on importance, informativeness
// and novelty using surface cues, and keeps the pipeline fully
// deterministic and offline.
type HeuristicAnalyzer struct {
	minConfidence float64
}

// NewHeuristicAnalyzer creates the offline analyzer. minConfidence
// suppresses candidates whose combined score falls below it.
func NewHeuristicAnalyzer(minConfidence float64) *HeuristicAnalyzer {
	return &HeuristicAnalyzer{minConfidence: minConfidence}
}

// Analyze yields at most one candidate per sentence
func (h *HeuristicAnalyzer) Analyze(_ context.Context, sentence model.Sentence, defaultTopic string) ([]Candidate, error) {
	lower := strings.ToLower(sentence.Text)

	claimType, matched := matchType(lower)
	if !matched {
		return nil, nil
	}

	score := h.scoreSentence(sentence.Text, lower)
	confidence := score.Combined()
	if confidence < h.minConfidence {
		return nil, nil
	}

	return []Candidate{{
		Text:       strings.TrimSpace(sentence.Text),
		Type:       claimType,
		Topic:      defaultTopic,
		Keywords:   significantWords(lower, 5),
		Confidence: confidence,
		Relevance:  score.Importance,
	}}, nil
}

func matchType(lower string) (model.ClaimType, bool) {
	for _, entry := range typeKeywords {
		for _, phrase := range entry.phrases {
			if strings.Contains(lower, phrase) {
				return entry.claimType, true
			}
		}
	}
	return "", false
}

// scoreSentence mirrors the importance/informativeness/novelty split
// an analysis model would produce, using surface features only.
func (h *HeuristicAnalyzer) scoreSentence(text, lower string) SentenceScore {
	var score SentenceScore

	// Importance: cue density across all type keyword groups.
	hits := 0
	for _, entry := range typeKeywords {
		for _, phrase := range entry.phrases {
			if strings.Contains(lower, phrase) {
				hits++
			}
		}
	}
	score.Importance = clamp01(0.4 + 0.2*float64(hits))

	// Informativeness: numbers, proper nouns and sentence length.
	info := 0.3
	if strings.ContainsFunc(text, unicode.IsDigit) {
		info += 0.3
	}
	if countCapitalizedWords(text) >= 2 {
		info += 0.2
	}
	if len(text) >= 80 {
		info += 0.2
	}
	score.Informativeness = clamp01(info)

	// Novelty has no corpus memory offline; hold it neutral.
	score.Novelty = 0.5

	return score
}

func countCapitalizedWords(text string) int {
	count := 0
	for i, word := range strings.Fields(text) {
		if i == 0 || word == "" {
			continue
		}
		r := []rune(word)[0]
		if unicode.IsUpper(r) {
			count++
		}
	}
	return count
}

func significantWords(lower string, limit int) []string {
	seen := make(map[string]bool)
	var words []string
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(word) < 5 || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		words = append(words, word)
		if len(words) == limit {
			break
		}
	}
	return words
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
