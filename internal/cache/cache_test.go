package cache

import (
	"testing"
	"time"

	"github.com/dmarchuk/newsloom/internal/model"
)

func TestMemoryCache_RoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, found := c.Get("missing"); found {
		t.Error("expected miss for unknown key")
	}

	if err := c.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, found := c.Get("k")
	if !found || string(val) != "v" {
		t.Errorf("Get = %q, %v; want v, true", val, found)
	}

	c.Delete("k")
	if _, found := c.Get("k"); found {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	original := []byte("payload")
	if err := c.Set("k", original, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	original[0] = 'X'

	val, _ := c.Get("k")
	if string(val) != "payload" {
		t.Errorf("cached value mutated through caller's slice: %q", val)
	}

	val[0] = 'Y'
	again, _ := c.Get("k")
	if string(again) != "payload" {
		t.Errorf("cached value mutated through returned slice: %q", again)
	}

	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Minute)

	if err := c.Set("stale", []byte("v"), -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, found := c.Get("stale"); found {
		t.Error("expected expired entry to miss")
	}

	if err := c.Set("fresh", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, found := c.Get("fresh"); !found {
		t.Error("expected fresh entry to hit")
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Minute)

	if err := c.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Fresh layered cache over the same dir: memory is cold, disk warm.
	c2 := NewLayeredCache(time.Minute, dir, time.Minute)
	if val, found := c2.Get("k"); !found || string(val) != "v" {
		t.Fatalf("expected disk hit, got %q, %v", val, found)
	}
}

func TestFetchCache_SnapshotRoundTrip(t *testing.T) {
	fc := NewFetchCache(NewMemoryCache(time.Minute, time.Minute), time.Minute)

	result := &model.FetchResult{
		SourceID: "src-1",
		URL:      "https://a.example/page",
		Success:  true,
		Content:  "body",
		Paragraphs: []model.Paragraph{
			{Index: 0, Text: "One complete sentence lives here.", Sentences: []model.Sentence{
				{Index: 0, Text: "One complete sentence lives here.", CharStart: 0, CharEnd: 33},
			}},
		},
	}

	if err := fc.Put(result.URL, result); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, found := fc.Get(result.URL)
	if !found {
		t.Fatal("expected cache hit")
	}
	if !got.FromCache {
		t.Error("cached result must be marked FromCache")
	}
	if len(got.Paragraphs) != 1 || got.Paragraphs[0].Sentences[0].CharEnd != 33 {
		t.Error("segmentation snapshot did not survive the round trip")
	}
}

func TestFetchCache_NeverCachesFailures(t *testing.T) {
	fc := NewFetchCache(NewMemoryCache(time.Minute, time.Minute), time.Minute)

	failed := &model.FetchResult{URL: "https://a.example/x", Success: false}
	if err := fc.Put(failed.URL, failed); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, found := fc.Get(failed.URL); found {
		t.Error("failed fetches must not be cached")
	}
}
