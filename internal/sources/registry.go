package sources

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmarchuk/newsloom/internal/model"
)

// Registry holds the configured sources. The pipeline takes an
// immutable snapshot per run; the registry itself is read-only after
// Load.
type Registry struct {
	sources []model.Source
	byID    map[string]model.Source
}

// registryFile is the on-disk YAML shape. Durations come in as "2s"
// style strings, which plain yaml decoding cannot place into a
// time.Duration, so the policy is decoded separately.
type registryFile struct {
	Sources []sourceEntry `yaml:"sources"`
}

type sourceEntry struct {
	ID       string           `yaml:"id"`
	Name     string           `yaml:"name"`
	URL      string           `yaml:"url"`
	Type     model.SourceType `yaml:"type"`
	Category string           `yaml:"category"`
	Active   bool             `yaml:"active"`
	Policy   policyEntry      `yaml:"policy"`
}

type policyEntry struct {
	MinDelay    string `yaml:"min_delay"`
	MaxAttempts int    `yaml:"max_attempts"`
	// Robots checking is opt-out; a nil pointer means the key was
	// absent and the source keeps the default of true.
	RespectRobots *bool `yaml:"respect_robots"`
}

func (e sourceEntry) toSource() (model.Source, error) {
	respectRobots := true
	if e.Policy.RespectRobots != nil {
		respectRobots = *e.Policy.RespectRobots
	}
	src := model.Source{
		ID:       e.ID,
		Name:     e.Name,
		URL:      e.URL,
		Type:     e.Type,
		Category: e.Category,
		Active:   e.Active,
		Policy: model.CrawlPolicy{
			MaxAttempts:   e.Policy.MaxAttempts,
			RespectRobots: respectRobots,
		},
	}
	if e.Policy.MinDelay != "" {
		d, err := time.ParseDuration(e.Policy.MinDelay)
		if err != nil {
			return src, fmt.Errorf("bad min_delay %q: %w", e.Policy.MinDelay, err)
		}
		src.Policy.MinDelay = d
	}
	return src, nil
}

// Load reads a registry from a YAML file and validates it
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from raw YAML
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	byID := make(map[string]model.Source, len(file.Sources))
	sources := make([]model.Source, 0, len(file.Sources))
	for i, entry := range file.Sources {
		if entry.ID == "" {
			return nil, fmt.Errorf("source %d: missing id", i)
		}
		if entry.URL == "" {
			return nil, fmt.Errorf("source %q: missing url", entry.ID)
		}

		src, err := entry.toSource()
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", entry.ID, err)
		}
		if src.Origin() == "" {
			return nil, fmt.Errorf("source %q: unparsable url %q", src.ID, src.URL)
		}
		switch src.Type {
		case model.SourceTypeFeed, model.SourceTypeWebsite:
		case "":
			src.Type = model.SourceTypeWebsite
		default:
			return nil, fmt.Errorf("source %q: unknown type %q", src.ID, src.Type)
		}
		if _, dup := byID[src.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		byID[src.ID] = src
		sources = append(sources, src)
	}

	return &Registry{sources: sources, byID: byID}, nil
}

// All returns every source in file order
func (r *Registry) All() []model.Source {
	out := make([]model.Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Active returns the sources eligible for crawling
func (r *Registry) Active() []model.Source {
	var out []model.Source
	for _, src := range r.sources {
		if src.Active {
			out = append(out, src)
		}
	}
	return out
}

// ByID looks up one source
func (r *Registry) ByID(id string) (model.Source, bool) {
	src, ok := r.byID[id]
	return src, ok
}

// ByCategory returns active sources in the given category,
// case-insensitively
func (r *Registry) ByCategory(category string) []model.Source {
	var out []model.Source
	for _, src := range r.sources {
		if src.Active && strings.EqualFold(src.Category, category) {
			out = append(out, src)
		}
	}
	return out
}

// Categories lists the distinct categories of active sources, sorted
func (r *Registry) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, src := range r.sources {
		if !src.Active || src.Category == "" {
			continue
		}
		key := strings.ToLower(src.Category)
		if !seen[key] {
			seen[key] = true
			out = append(out, src.Category)
		}
	}
	sort.Strings(out)
	return out
}

// TopicsByID maps each source id to its category, the default topic
// tag extraction assigns to claims from that source
func (r *Registry) TopicsByID() map[string]string {
	topics := make(map[string]string, len(r.sources))
	for _, src := range r.sources {
		topics[src.ID] = src.Category
	}
	return topics
}
