package model

import (
	"net/url"
	"time"
)

// SourceType categorizes how a source's raw bytes are retrieved
type SourceType string

const (
	SourceTypeFeed    SourceType = "feed"    // RSS/Atom feed
	SourceTypeWebsite SourceType = "website" // Plain web page
)

// CrawlPolicy holds per-source politeness settings
type CrawlPolicy struct {
	// MinDelay is the minimum interval between requests to this source's
	// origin. Zero means the scheduler default applies.
	MinDelay time.Duration `json:"min_delay,omitempty" yaml:"min_delay,omitempty"`

	// MaxAttempts overrides the scheduler retry budget when > 0
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`

	// RespectRobots consults robots.txt before the first dispatch
	RespectRobots bool `json:"respect_robots,omitempty" yaml:"respect_robots,omitempty"`
}

// Source is an immutable snapshot of one registered content source.
// The registry owns the canonical record; the pipeline never mutates it.
type Source struct {
	ID       string      `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	URL      string      `json:"url" yaml:"url"`
	Type     SourceType  `json:"type" yaml:"type"`
	Category string      `json:"category,omitempty" yaml:"category,omitempty"`
	Active   bool        `json:"active" yaml:"active"`
	Policy   CrawlPolicy `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// Origin returns the network host of the source URL, the unit of rate
// limiting. An unparseable URL yields an empty origin; the scheduler
// classifies that as a permanent error before dispatch.
func (s Source) Origin() string {
	parsed, err := url.Parse(s.URL)
	if err != nil {
		return ""
	}
	return parsed.Host
}
