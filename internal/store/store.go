package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContentType partitions artifacts by what their items are
type ContentType string

const (
	ContentCrawledRaw ContentType = "crawled-raw"
	ContentClaims     ContentType = "claims"
	ContentArticles   ContentType = "articles"
)

// Valid reports whether ct is one of the known content types
func (ct ContentType) Valid() bool {
	switch ct {
	case ContentCrawledRaw, ContentClaims, ContentArticles:
		return true
	}
	return false
}

// Timeframe is a calendar-aligned aggregation period
type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
)

// Item is one stored record. ID must be stable across runs: identical
// content extracted in different runs carries the same id, which is
// what lets merges dedup with most-recent-copy-wins.
type Item struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// Artifact is one persisted batch of items of a single content type
type Artifact struct {
	ID          string      `json:"artifact_id"`
	CreatedAt   time.Time   `json:"created_at"`
	ContentType ContentType `json:"content_type"`
	Items       []Item      `json:"items"`
}

// Merged is the result of combining artifacts across runs
type Merged struct {
	Items      []Item     `json:"items"`
	Provenance Provenance `json:"provenance"`
}

// Provenance describes what a merge drew from
type Provenance struct {
	FileCount int       `json:"file_count"`
	ItemCount int       `json:"item_count"`
	Oldest    time.Time `json:"oldest,omitempty"`
	Newest    time.Time `json:"newest,omitempty"`
}

// Bucket is one calendar period of an aggregation
type Bucket struct {
	Period    string    `json:"period"`
	Start     time.Time `json:"start"`
	ItemCount int       `json:"item_count"`
	Items     []Item    `json:"items"`
}

// TypeStatistics summarizes one content type's footprint on disk
type TypeStatistics struct {
	FileCount  int       `json:"file_count"`
	ItemCount  int       `json:"item_count"`
	TotalBytes int64     `json:"total_bytes"`
	Latest     time.Time `json:"latest,omitempty"`
}

// Statistics is the full store summary, recomputed on every call
type Statistics struct {
	ByType     map[ContentType]TypeStatistics `json:"by_type"`
	TotalFiles int                            `json:"total_files"`
	TotalBytes int64                          `json:"total_bytes"`
}

// Store persists run artifacts as JSON files, one artifact per file.
// Writes are atomic (temp file + rename), so a reader observes either
// a complete artifact or none.
type Store struct {
	dir    string
	logger *zap.Logger
}

// New creates a store rooted at dir, creating it if needed
func New(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the store root
func (s *Store) Dir() string {
	return s.dir
}

// Save persists one artifact. A zero ID or CreatedAt is filled in.
// The filename embeds content type, timestamp and artifact id so
// pattern and time-range selection work from names alone.
func (s *Store) Save(artifact Artifact) (string, error) {
	if !artifact.ContentType.Valid() {
		return "", fmt.Errorf("unknown content type %q", artifact.ContentType)
	}
	if artifact.ID == "" {
		artifact.ID = uuid.NewString()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}

	name := fmt.Sprintf("%s_%s_%s.json",
		artifact.ContentType,
		artifact.CreatedAt.UTC().Format("20060102T150405Z"),
		artifact.ID)
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit artifact: %w", err)
	}

	s.logger.Debug("saved artifact",
		zap.String("path", name),
		zap.String("content_type", string(artifact.ContentType)),
		zap.Int("items", len(artifact.Items)))

	return path, nil
}

// LoadAndMerge selects artifacts matching the filename pattern and
// content type, newest first up to limit, concatenates their items and
// dedups by item id with the most recent copy winning. An empty match
// set is not an error. limit <= 0 means no limit.
func (s *Store) LoadAndMerge(pattern string, contentType ContentType, limit int) (*Merged, error) {
	artifacts, err := s.loadMatching(pattern, contentType, limit)
	if err != nil {
		return nil, err
	}

	merged := &Merged{Items: []Item{}}
	seen := make(map[string]bool)

	for _, artifact := range artifacts {
		merged.Provenance.FileCount++
		if merged.Provenance.Newest.IsZero() || artifact.CreatedAt.After(merged.Provenance.Newest) {
			merged.Provenance.Newest = artifact.CreatedAt
		}
		if merged.Provenance.Oldest.IsZero() || artifact.CreatedAt.Before(merged.Provenance.Oldest) {
			merged.Provenance.Oldest = artifact.CreatedAt
		}

		// Artifacts arrive newest first, so the first copy of an id is
		// the most recent one.
		for _, item := range artifact.Items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			merged.Items = append(merged.Items, item)
		}
	}

	merged.Provenance.ItemCount = len(merged.Items)
	return merged, nil
}

// LoadLatestByType merges the most recent limit artifacts of one type
func (s *Store) LoadLatestByType(contentType ContentType, limit int) (*Merged, error) {
	return s.LoadAndMerge("*", contentType, limit)
}

// AggregateByTimeframe buckets items into calendar-aligned,
// non-overlapping periods, newest period first, up to limit periods.
// Items are deduped by id across artifacts first (most recent copy
// wins), so a claim persisted by two runs counts once. Items land in
// the bucket of their own created_at, falling back to the artifact's.
func (s *Store) AggregateByTimeframe(contentType ContentType, timeframe Timeframe, limit int) ([]Bucket, error) {
	switch timeframe {
	case TimeframeDaily, TimeframeWeekly, TimeframeMonthly:
	default:
		return nil, fmt.Errorf("unknown timeframe %q", timeframe)
	}

	artifacts, err := s.loadMatching("*", contentType, 0)
	if err != nil {
		return nil, err
	}

	byStart := make(map[time.Time]*Bucket)
	seen := make(map[string]bool)
	for _, artifact := range artifacts {
		for _, item := range artifact.Items {
			// Artifacts arrive newest first, so the first copy of an id
			// is the most recent one.
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true

			at := item.CreatedAt
			if at.IsZero() {
				at = artifact.CreatedAt
			}
			start := periodStart(at.UTC(), timeframe)

			bucket, ok := byStart[start]
			if !ok {
				bucket = &Bucket{
					Period: periodLabel(start, timeframe),
					Start:  start,
				}
				byStart[start] = bucket
			}
			bucket.Items = append(bucket.Items, item)
			bucket.ItemCount++
		}
	}

	buckets := make([]Bucket, 0, len(byStart))
	for _, bucket := range byStart {
		buckets = append(buckets, *bucket)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.After(buckets[j].Start)
	})

	if limit > 0 && len(buckets) > limit {
		buckets = buckets[:limit]
	}
	return buckets, nil
}

// GetStatistics recomputes the store summary from disk on every call
func (s *Store) GetStatistics() (*Statistics, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	stats := &Statistics{ByType: make(map[ContentType]TypeStatistics)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		artifact, err := s.loadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable artifact",
				zap.String("file", entry.Name()),
				zap.Error(err))
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		ts := stats.ByType[artifact.ContentType]
		ts.FileCount++
		ts.ItemCount += len(artifact.Items)
		ts.TotalBytes += info.Size()
		if artifact.CreatedAt.After(ts.Latest) {
			ts.Latest = artifact.CreatedAt
		}
		stats.ByType[artifact.ContentType] = ts

		stats.TotalFiles++
		stats.TotalBytes += info.Size()
	}

	return stats, nil
}

// loadMatching returns artifacts matching pattern and content type,
// sorted newest first, truncated to limit when limit > 0
func (s *Store) loadMatching(pattern string, contentType ContentType, limit int) ([]Artifact, error) {
	if pattern == "" {
		pattern = "*"
	}

	glob := filepath.Join(s.dir, string(contentType)+"_"+pattern+".json")
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	var artifacts []Artifact
	for _, path := range paths {
		artifact, err := s.loadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable artifact",
				zap.String("file", filepath.Base(path)),
				zap.Error(err))
			continue
		}
		if artifact.ContentType != contentType {
			continue
		}
		artifacts = append(artifacts, artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})

	if limit > 0 && len(artifacts) > limit {
		artifacts = artifacts[:limit]
	}
	return artifacts, nil
}

func (s *Store) loadFile(path string) (Artifact, error) {
	var artifact Artifact
	data, err := os.ReadFile(path)
	if err != nil {
		return artifact, err
	}
	if err := json.Unmarshal(data, &artifact); err != nil {
		return artifact, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return artifact, nil
}

func periodStart(t time.Time, timeframe Timeframe) time.Time {
	switch timeframe {
	case TimeframeWeekly:
		// Weeks start on Monday.
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		return time.Date(t.Year(), t.Month(), t.Day()-(weekday-1), 0, 0, 0, 0, time.UTC)
	case TimeframeMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func periodLabel(start time.Time, timeframe Timeframe) string {
	switch timeframe {
	case TimeframeWeekly:
		year, week := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case TimeframeMonthly:
		return start.Format("2006-01")
	default:
		return start.Format("2006-01-02")
	}
}
