package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrorClass partitions fetch failures by retry eligibility
type ErrorClass string

const (
	// ErrorClassTransient covers timeouts, connection resets and 5xx
	// responses. Transient failures are retried with backoff.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent covers malformed URLs, auth failures and
	// not-found responses. Permanent failures are never retried.
	ErrorClassPermanent ErrorClass = "permanent"
)

// FetchError is a classified per-source fetch failure
type FetchError struct {
	Class      ErrorClass `json:"class"`
	URL        string     `json:"url"`
	StatusCode int        `json:"status_code,omitempty"`
	Message    string     `json:"message"`
	Err        error      `json:"-"`
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the scheduler may attempt the fetch again
func (e *FetchError) Retryable() bool {
	return e.Class == ErrorClassTransient
}

// AsFetchError unwraps err into a *FetchError if one is in the chain
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Sentence is one segmented sentence with its char range inside the
// owning paragraph
type Sentence struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
}

// Paragraph is one segmented paragraph of fetched text
type Paragraph struct {
	Index     int        `json:"index"`
	Text      string     `json:"text"`
	Sentences []Sentence `json:"sentences"`
}

// FetchResult is the per-source outcome of the crawl stage. Its
// paragraph/sentence segmentation is the snapshot that SourceReferences
// point into; it never changes after the fetch completes.
type FetchResult struct {
	SourceID    string      `json:"source_id"`
	SourceName  string      `json:"source_name,omitempty"`
	URL         string      `json:"url"`
	FinalURL    string      `json:"final_url,omitempty"`
	Success     bool        `json:"success"`
	StatusCode  int         `json:"status_code,omitempty"`
	Content     string      `json:"content,omitempty"`
	Paragraphs  []Paragraph `json:"paragraphs,omitempty"`
	FetchedAt   time.Time   `json:"fetched_at"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Attempts    int         `json:"attempts"`
	FromCache   bool        `json:"from_cache,omitempty"`
	Error       *FetchError `json:"error,omitempty"`
}

// Sentence resolves a (paragraph, sentence) index pair against the
// segmentation snapshot. ok is false when either index is out of bounds.
func (r *FetchResult) Sentence(paragraphIdx, sentenceIdx int) (Sentence, bool) {
	if paragraphIdx < 0 || paragraphIdx >= len(r.Paragraphs) {
		return Sentence{}, false
	}
	para := r.Paragraphs[paragraphIdx]
	if sentenceIdx < 0 || sentenceIdx >= len(para.Sentences) {
		return Sentence{}, false
	}
	return para.Sentences[sentenceIdx], true
}
