package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Citation is one numbered entry in an article's citation list
type Citation struct {
	Index          int    `json:"index"` // 1-based marker used inline as [n]
	SourceID       string `json:"source_id"`
	SourceURL      string `json:"source_url"`
	SourceTitle    string `json:"source_title,omitempty"`
	ParagraphIndex int    `json:"paragraph_index"`
	SentenceIndex  int    `json:"sentence_index"`
}

// ArticleSection is one structured body section referencing the claims
// its prose was built from
type ArticleSection struct {
	Heading  string   `json:"heading"`
	Content  string   `json:"content"`
	ClaimIDs []string `json:"claim_ids"`
}

// Article is a generated, cited article assembled from knowledge claims
type Article struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Topic         string           `json:"topic"`
	Summary       string           `json:"summary,omitempty"`
	Content       string           `json:"content"`
	Sections      []ArticleSection `json:"sections"`
	Citations     []Citation       `json:"citations"`
	ClaimCount    int              `json:"claim_count"`
	UniqueSources int              `json:"unique_sources"`
	GeneratedBy   string           `json:"generated_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ArticleID derives a stable article identifier from topic and title so
// regenerated articles for the same topic supersede earlier copies
func ArticleID(topic, title string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(topic) + "|" + strings.ToLower(title)))
	return hex.EncodeToString(sum[:8])
}
