package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsCheckerDisallowedPath(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\nCrawl-delay: 2\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := NewRobotsChecker("newsloom/1.0", 5*time.Second)
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, srv.URL+"/articles/one")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if !allowed {
		t.Error("expected /articles/one to be allowed")
	}
	if delay != 2*time.Second {
		t.Errorf("expected 2s crawl delay, got %v", delay)
	}

	allowed, _, err = checker.CanFetch(ctx, srv.URL+"/private/secret")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if allowed {
		t.Error("expected /private/secret to be disallowed")
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("expected robots.txt fetched once, got %d", got)
	}
}

func TestRobotsCheckerMissingFileAllowsAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	checker := NewRobotsChecker("newsloom/1.0", 5*time.Second)

	allowed, delay, err := checker.CanFetch(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if !allowed {
		t.Error("missing robots.txt should allow the fetch")
	}
	if delay != 0 {
		t.Errorf("expected no crawl delay, got %v", delay)
	}
}

func TestRobotsCheckerUnreachableHostAllows(t *testing.T) {
	checker := NewRobotsChecker("newsloom/1.0", 500*time.Millisecond)

	allowed, _, err := checker.CanFetch(context.Background(), "http://127.0.0.1:1/page")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if !allowed {
		t.Error("unreachable robots.txt should allow the fetch")
	}
}

func TestRobotsCheckerClear(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer srv.Close()

	checker := NewRobotsChecker("newsloom/1.0", 5*time.Second)
	ctx := context.Background()

	if _, _, err := checker.CanFetch(ctx, srv.URL+"/a"); err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	checker.Clear()
	if _, _, err := checker.CanFetch(ctx, srv.URL+"/b"); err != nil {
		t.Fatalf("CanFetch: %v", err)
	}

	if got := hits.Load(); got != 2 {
		t.Errorf("expected refetch after Clear, got %d fetches", got)
	}
}
