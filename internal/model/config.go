package model

import (
	"fmt"
	"time"
)

// Config is the full pipeline configuration. Every field is explicit and
// validated; nothing is resolved through ambient globals at runtime.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Crawl    CrawlConfig    `yaml:"crawl" mapstructure:"crawl"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Generate GenerateConfig `yaml:"generate" mapstructure:"generate"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
}

// HTTPConfig controls the fetch HTTP client
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS  bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy    string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// CrawlConfig controls the rate-limited fetch scheduler
type CrawlConfig struct {
	// Concurrency bounds the global worker pool size
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`

	// DefaultDelay is the minimum inter-request interval per origin when a
	// source carries no policy of its own
	DefaultDelay time.Duration `yaml:"default_delay" mapstructure:"default_delay"`

	// MaxDelay caps the backoff-inflated per-origin delay
	MaxDelay time.Duration `yaml:"max_delay" mapstructure:"max_delay"`

	// BackoffFactor multiplies the origin delay per consecutive failure
	BackoffFactor float64 `yaml:"backoff_factor" mapstructure:"backoff_factor"`

	// MaxAttempts is the per-source retry budget for transient failures
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`

	// RespectRobots consults robots.txt before dispatching to an origin
	RespectRobots bool `yaml:"respect_robots" mapstructure:"respect_robots"`

	// MinViable is the minimum successful fetch count required to enter
	// the extract stage
	MinViable int `yaml:"min_viable" mapstructure:"min_viable"`
}

// ExtractConfig controls claim extraction and attribution
type ExtractConfig struct {
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`
	MinParagraphLen int     `yaml:"min_paragraph_len" mapstructure:"min_paragraph_len"`
	MinViable       int     `yaml:"min_viable" mapstructure:"min_viable"`
}

// GenerateConfig controls article assembly
type GenerateConfig struct {
	// MinClaimsPerTopic is the smallest claim group that yields an article
	MinClaimsPerTopic int `yaml:"min_claims_per_topic" mapstructure:"min_claims_per_topic"`
	MinViable         int `yaml:"min_viable" mapstructure:"min_viable"`
}

// StoreConfig controls the aggregation store
type StoreConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// CacheConfig controls the layered fetch cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// LLMConfig configures the optional language-analysis and
// article-writing provider
type LLMConfig struct {
	// Provider name: "openai" or "" (disabled, heuristic analysis only)
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SourcesConfig locates the source registry file
type SourcesConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Newsloom/0.1 (+https://github.com/dmarchuk/newsloom)",
			MaxBodyBytes: 2_000_000,
		},
		Crawl: CrawlConfig{
			Concurrency:   4,
			DefaultDelay:  time.Second,
			MaxDelay:      60 * time.Second,
			BackoffFactor: 2.0,
			MaxAttempts:   3,
			RespectRobots: true,
			MinViable:     1,
		},
		Extract: ExtractConfig{
			ConfidenceFloor: 0.3,
			MinParagraphLen: 40,
			MinViable:       1,
		},
		Generate: GenerateConfig{
			MinClaimsPerTopic: 2,
			MinViable:         1,
		},
		Store: StoreConfig{
			Dir: "data",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".newsloom-cache",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   6 * time.Hour,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 1500,
		},
		Sources: SourcesConfig{
			File: "sources.yaml",
		},
	}
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be positive, got %d", c.Crawl.Concurrency)
	}
	if c.Crawl.MaxAttempts <= 0 {
		return fmt.Errorf("crawl.max_attempts must be positive, got %d", c.Crawl.MaxAttempts)
	}
	if c.Crawl.BackoffFactor < 1 {
		return fmt.Errorf("crawl.backoff_factor must be >= 1, got %g", c.Crawl.BackoffFactor)
	}
	if c.Crawl.MaxDelay < c.Crawl.DefaultDelay {
		return fmt.Errorf("crawl.max_delay %v is below crawl.default_delay %v", c.Crawl.MaxDelay, c.Crawl.DefaultDelay)
	}
	if c.Extract.ConfidenceFloor < 0 || c.Extract.ConfidenceFloor > 1 {
		return fmt.Errorf("extract.confidence_floor must be in [0,1], got %g", c.Extract.ConfidenceFloor)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %v", c.HTTP.Timeout)
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir must not be empty")
	}
	switch c.LLM.Provider {
	case "", "openai":
	default:
		return fmt.Errorf("unknown llm.provider %q (supported: openai)", c.LLM.Provider)
	}
	return nil
}
