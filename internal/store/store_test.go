package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmarchuk/newsloom/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func item(id, payload string, at time.Time) Item {
	data, _ := json.Marshal(map[string]string{"value": payload})
	return Item{ID: id, CreatedAt: at, Data: data}
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	path, err := s.Save(Artifact{
		ContentType: ContentClaims,
		CreatedAt:   now,
		Items:       []Item{item("c1", "one", now), item("c2", "two", now)},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "claims_") {
		t.Errorf("filename missing content type prefix: %s", path)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	merged, err := s.LoadLatestByType(ContentClaims, 10)
	if err != nil {
		t.Fatalf("LoadLatestByType: %v", err)
	}
	if len(merged.Items) != 2 {
		t.Errorf("loaded %d items, want 2", len(merged.Items))
	}
	if merged.Provenance.FileCount != 1 {
		t.Errorf("file count = %d, want 1", merged.Provenance.FileCount)
	}
}

func TestSaveRejectsUnknownContentType(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save(Artifact{ContentType: "parquet"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadAndMergeDedupsNewestWins(t *testing.T) {
	s := newTestStore(t)
	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()

	if _, err := s.Save(Artifact{
		ContentType: ContentClaims,
		CreatedAt:   older,
		Items:       []Item{item("c1", "stale", older), item("c2", "kept", older)},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(Artifact{
		ContentType: ContentClaims,
		CreatedAt:   newer,
		Items:       []Item{item("c1", "fresh", newer)},
	}); err != nil {
		t.Fatal(err)
	}

	merged, err := s.LoadAndMerge("*", ContentClaims, 0)
	if err != nil {
		t.Fatalf("LoadAndMerge: %v", err)
	}
	if len(merged.Items) != 2 {
		t.Fatalf("merged %d items, want 2", len(merged.Items))
	}

	var payload map[string]string
	for _, it := range merged.Items {
		if it.ID == "c1" {
			if err := json.Unmarshal(it.Data, &payload); err != nil {
				t.Fatal(err)
			}
			if payload["value"] != "fresh" {
				t.Errorf("c1 value = %q, want fresh (most recent copy wins)", payload["value"])
			}
		}
	}

	if merged.Provenance.FileCount != 2 || merged.Provenance.ItemCount != 2 {
		t.Errorf("provenance = %+v", merged.Provenance)
	}
	if !merged.Provenance.Newest.After(merged.Provenance.Oldest) {
		t.Errorf("time span not recorded: %+v", merged.Provenance)
	}
}

func TestLoadAndMergeIdempotent(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	for i := 0; i < 2; i++ {
		if _, err := s.Save(Artifact{
			ContentType: ContentClaims,
			CreatedAt:   now.Add(time.Duration(i) * time.Minute),
			Items:       []Item{item("c1", "same", now), item("c2", "same", now)},
		}); err != nil {
			t.Fatal(err)
		}
	}

	first, err := s.LoadAndMerge("*", ContentClaims, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.LoadAndMerge("*", ContentClaims, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(first.Items) != 2 || len(second.Items) != 2 {
		t.Errorf("merge not idempotent: %d then %d items", len(first.Items), len(second.Items))
	}
}

func TestLoadAndMergeEmptyMatch(t *testing.T) {
	s := newTestStore(t)

	merged, err := s.LoadAndMerge("nomatch*", ContentArticles, 5)
	if err != nil {
		t.Fatalf("empty match must not be an error: %v", err)
	}
	if len(merged.Items) != 0 || merged.Provenance.FileCount != 0 {
		t.Errorf("expected empty result, got %+v", merged)
	}
}

func TestLoadAndMergeIgnoresOtherTypes(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	if _, err := s.Save(Artifact{ContentType: ContentClaims, CreatedAt: now,
		Items: []Item{item("c1", "claim", now)}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(Artifact{ContentType: ContentArticles, CreatedAt: now,
		Items: []Item{item("a1", "article", now)}}); err != nil {
		t.Fatal(err)
	}

	merged, err := s.LoadAndMerge("*", ContentArticles, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Items) != 1 || merged.Items[0].ID != "a1" {
		t.Errorf("expected only the article item, got %v", merged.Items)
	}
}

func TestAggregateByTimeframeDaily(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	// Artifacts across five distinct days, one item each.
	for day := 0; day < 5; day++ {
		at := base.AddDate(0, 0, day)
		if _, err := s.Save(Artifact{
			ContentType: ContentClaims,
			CreatedAt:   at,
			Items:       []Item{item("c"+at.Format("02"), "v", at)},
		}); err != nil {
			t.Fatal(err)
		}
	}

	buckets, err := s.AggregateByTimeframe(ContentClaims, TimeframeDaily, 3)
	if err != nil {
		t.Fatalf("AggregateByTimeframe: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("expected exactly 3 buckets, got %d", len(buckets))
	}

	if buckets[0].Period != "2026-08-29" {
		t.Errorf("newest bucket = %s, want 2026-08-29", buckets[0].Period)
	}
	for i := 1; i < len(buckets); i++ {
		if !buckets[i-1].Start.After(buckets[i].Start) {
			t.Errorf("buckets not newest first at %d", i)
		}
	}
	for _, b := range buckets {
		if b.ItemCount != 1 {
			t.Errorf("bucket %s item count = %d, want 1", b.Period, b.ItemCount)
		}
	}
}

func TestAggregateByTimeframeMonthly(t *testing.T) {
	s := newTestStore(t)

	july := time.Date(2026, 7, 10, 8, 0, 0, 0, time.UTC)
	august := time.Date(2026, 8, 2, 8, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{july, july.AddDate(0, 0, 5), august} {
		if _, err := s.Save(Artifact{
			ContentType: ContentArticles,
			CreatedAt:   at,
			Items:       []Item{item("a"+at.Format("0102"), "v", at)},
		}); err != nil {
			t.Fatal(err)
		}
	}

	buckets, err := s.AggregateByTimeframe(ContentArticles, TimeframeMonthly, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 monthly buckets, got %d", len(buckets))
	}
	if buckets[0].Period != "2026-08" || buckets[0].ItemCount != 1 {
		t.Errorf("bucket 0 = %s (%d items)", buckets[0].Period, buckets[0].ItemCount)
	}
	if buckets[1].Period != "2026-07" || buckets[1].ItemCount != 2 {
		t.Errorf("bucket 1 = %s (%d items)", buckets[1].Period, buckets[1].ItemCount)
	}
}

func TestAggregateDedupsAcrossRuns(t *testing.T) {
	s := newTestStore(t)
	day := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	// Two runs on the same day both persist claim c1; a second run also
	// sees a new claim c2.
	if _, err := s.Save(Artifact{
		ContentType: ContentClaims,
		CreatedAt:   day,
		Items:       []Item{item("c1", "first run", day)},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(Artifact{
		ContentType: ContentClaims,
		CreatedAt:   day.Add(2 * time.Hour),
		Items:       []Item{item("c1", "second run", day), item("c2", "new", day)},
	}); err != nil {
		t.Fatal(err)
	}

	buckets, err := s.AggregateByTimeframe(ContentClaims, TimeframeDaily, 0)
	if err != nil {
		t.Fatalf("AggregateByTimeframe: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	if buckets[0].ItemCount != 2 {
		t.Errorf("bucket counts %d items, want 2 (c1 deduped across runs)", buckets[0].ItemCount)
	}

	for _, it := range buckets[0].Items {
		if it.ID != "c1" {
			continue
		}
		var payload map[string]string
		if err := json.Unmarshal(it.Data, &payload); err != nil {
			t.Fatal(err)
		}
		if payload["value"] != "second run" {
			t.Errorf("c1 value = %q, want the most recent copy", payload["value"])
		}
	}
}

func TestAggregateRejectsUnknownTimeframe(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AggregateByTimeframe(ContentClaims, "hourly", 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetStatistics(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	if _, err := s.Save(Artifact{ContentType: ContentClaims, CreatedAt: now,
		Items: []Item{item("c1", "v", now), item("c2", "v", now)}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(Artifact{ContentType: ContentArticles, CreatedAt: now,
		Items: []Item{item("a1", "v", now)}}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.GetStatistics()
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if stats.TotalFiles != 2 {
		t.Errorf("total files = %d, want 2", stats.TotalFiles)
	}
	if stats.ByType[ContentClaims].ItemCount != 2 {
		t.Errorf("claims items = %d, want 2", stats.ByType[ContentClaims].ItemCount)
	}
	if stats.TotalBytes <= 0 {
		t.Error("total bytes not computed")
	}

	// A further save must be reflected on the next call.
	if _, err := s.Save(Artifact{ContentType: ContentClaims, CreatedAt: now,
		Items: []Item{item("c3", "v", now)}}); err != nil {
		t.Fatal(err)
	}
	stats, err = s.GetStatistics()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalFiles != 3 {
		t.Errorf("statistics stale: total files = %d, want 3", stats.TotalFiles)
	}
}

func TestStatisticsSkipsCorruptFiles(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(filepath.Join(s.Dir(), "claims_garbage.json"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := s.GetStatistics()
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if stats.TotalFiles != 0 {
		t.Errorf("corrupt file counted: %d", stats.TotalFiles)
	}
}

func TestClaimItems(t *testing.T) {
	now := time.Now().UTC()
	claims := []model.KnowledgeClaim{
		{ID: "c1", Text: "text", CreatedAt: now},
	}

	items, err := ClaimItems(claims)
	if err != nil {
		t.Fatalf("ClaimItems: %v", err)
	}
	if len(items) != 1 || items[0].ID != "c1" || !items[0].CreatedAt.Equal(now) {
		t.Errorf("unexpected items: %+v", items)
	}

	var decoded model.KnowledgeClaim
	if err := json.Unmarshal(items[0].Data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Text != "text" {
		t.Errorf("roundtrip text = %q", decoded.Text)
	}
}

func TestFetchItemsKeyedBySource(t *testing.T) {
	results := []*model.FetchResult{
		{SourceID: "src-a", FetchedAt: time.Now().UTC()},
		nil,
		{SourceID: "src-b", FetchedAt: time.Now().UTC()},
	}

	items, err := FetchItems(results)
	if err != nil {
		t.Fatalf("FetchItems: %v", err)
	}
	if len(items) != 2 || items[0].ID != "src-a" || items[1].ID != "src-b" {
		t.Errorf("unexpected items: %+v", items)
	}
}
