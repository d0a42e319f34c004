package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// ClaimType categorizes the nature of an extracted knowledge claim
type ClaimType string

const (
	ClaimTypeFact            ClaimType = "fact"
	ClaimTypeOpinion         ClaimType = "opinion"
	ClaimTypeDefinition      ClaimType = "definition"
	ClaimTypeStatistic       ClaimType = "statistic"
	ClaimTypeQuote           ClaimType = "quote"
	ClaimTypePrediction      ClaimType = "prediction"
	ClaimTypeResearchFinding ClaimType = "research_finding"
	ClaimTypeTrend           ClaimType = "trend"
	ClaimTypeComparison      ClaimType = "comparison"
	ClaimTypeExplanation     ClaimType = "explanation"
)

// ConfidenceLevel is the coarse band derived from the confidence score
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"   // score >= 0.8
	ConfidenceMedium ConfidenceLevel = "medium" // score >= 0.5
	ConfidenceLow    ConfidenceLevel = "low"
)

// LevelForScore maps a confidence score to its level. The level is a pure
// function of the score; callers must never set it independently.
func LevelForScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SourceReference is a sentence-level provenance pointer into a
// FetchResult segmentation snapshot. Paragraph and sentence indices must
// resolve within the bounds of the referenced snapshot.
type SourceReference struct {
	SourceID    string `json:"source_id"`
	SourceURL   string `json:"source_url"`
	SourceTitle string `json:"source_title,omitempty"`

	ParagraphIndex int    `json:"paragraph_index"`
	SentenceIndex  int    `json:"sentence_index"`
	SentenceText   string `json:"sentence_text"`

	// Char range inside the paragraph text. CharEnd == 0 means the range
	// was not recorded.
	CharStart int `json:"char_start,omitempty"`
	CharEnd   int `json:"char_end,omitempty"`

	ContextBefore string `json:"context_before,omitempty"`
	ContextAfter  string `json:"context_after,omitempty"`

	Relevance   float64   `json:"relevance"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// KnowledgeClaim is a single attributable statement extracted from
// source text. Claims are immutable once created; later runs supersede
// them through the store's most-recent-copy-wins merge, never edit them.
type KnowledgeClaim struct {
	ID              string            `json:"id"`
	Text            string            `json:"text"`
	Type            ClaimType         `json:"type"`
	ConfidenceScore float64           `json:"confidence_score"`
	ConfidenceLevel ConfidenceLevel   `json:"confidence_level"`
	Topic           string            `json:"topic"`
	Keywords        []string          `json:"keywords,omitempty"`
	References      []SourceReference `json:"references"`
	CreatedAt       time.Time         `json:"created_at"`
}

// NormalizeClaimText lowercases, collapses whitespace and strips
// trailing punctuation so near-identical phrasings compare equal
func NormalizeClaimText(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	normalized := strings.Join(fields, " ")
	return strings.TrimRightFunc(normalized, func(r rune) bool {
		return unicode.IsPunct(r)
	})
}

// ClaimID derives the stable claim identifier from normalized text and
// topic. Identical claims extracted in different runs get the same id,
// which is what makes cross-run dedup in the store possible.
func ClaimID(text, topic string) string {
	sum := sha256.Sum256([]byte(NormalizeClaimText(text) + "|" + strings.ToLower(topic)))
	return hex.EncodeToString(sum[:8])
}
