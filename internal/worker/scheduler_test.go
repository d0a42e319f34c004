package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmarchuk/newsloom/internal/model"
)

func fastRetries(t *testing.T) {
	t.Helper()
	old := RetryBaseDelay
	RetryBaseDelay = time.Millisecond
	t.Cleanup(func() { RetryBaseDelay = old })
}

// fakeFetcher scripts per-source outcomes and records call timing
type fakeFetcher struct {
	mu       sync.Mutex
	fail     map[string]error // source id -> error to return on every attempt
	calls    map[string]int
	dispatch map[string][]time.Time // origin -> dispatch times
	delay    time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		fail:     make(map[string]error),
		calls:    make(map[string]int),
		dispatch: make(map[string][]time.Time),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, src model.Source) (*model.FetchResult, error) {
	f.mu.Lock()
	f.calls[src.ID]++
	f.dispatch[src.Origin()] = append(f.dispatch[src.Origin()], time.Now())
	err := f.fail[src.ID]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &model.FetchResult{
		SourceID:  src.ID,
		URL:       src.URL,
		Success:   true,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeFetcher) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func testSources(n int, origin string) []model.Source {
	sources := make([]model.Source, n)
	for i := range sources {
		sources[i] = model.Source{
			ID:  fmt.Sprintf("%s-%d", origin, i),
			URL: fmt.Sprintf("https://%s/page-%d", origin, i),
		}
	}
	return sources
}

func testCrawlConfig() model.CrawlConfig {
	return model.CrawlConfig{
		Concurrency:   4,
		DefaultDelay:  0,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		MaxAttempts:   3,
	}
}

func TestFetchBatch_OneResultPerSource(t *testing.T) {
	fastRetries(t)
	fetcher := newFakeFetcher()
	s := NewScheduler(testCrawlConfig(), fetcher, nil, nil)

	sources := append(testSources(3, "a.example"), testSources(2, "b.example")...)
	results := s.FetchBatch(context.Background(), sources)

	if len(results) != len(sources) {
		t.Fatalf("expected %d results, got %d", len(sources), len(results))
	}
	for i, res := range results {
		if res.SourceID != sources[i].ID {
			t.Errorf("result %d is for %s, want %s (input order must be preserved)", i, res.SourceID, sources[i].ID)
		}
		if !res.Success {
			t.Errorf("source %s unexpectedly failed: %v", res.SourceID, res.Error)
		}
	}
}

func TestFetchBatch_TransientRetriedThenFailed(t *testing.T) {
	fastRetries(t)
	fetcher := newFakeFetcher()
	fetcher.fail["a.example-0"] = context.DeadlineExceeded

	s := NewScheduler(testCrawlConfig(), fetcher, nil, nil)
	results := s.FetchBatch(context.Background(), testSources(1, "a.example"))

	res := results[0]
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error == nil || res.Error.Class != model.ErrorClassTransient {
		t.Fatalf("expected transient error, got %+v", res.Error)
	}
	if got := fetcher.callCount("a.example-0"); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if res.Attempts != 3 {
		t.Errorf("result records %d attempts, want 3", res.Attempts)
	}
}

func TestFetchBatch_PermanentNotRetried(t *testing.T) {
	fastRetries(t)
	fetcher := newFakeFetcher()
	fetcher.fail["a.example-0"] = &model.FetchError{
		Class:      model.ErrorClassPermanent,
		URL:        "https://a.example/page-0",
		StatusCode: 404,
		Message:    "Not Found",
	}

	s := NewScheduler(testCrawlConfig(), fetcher, nil, nil)
	results := s.FetchBatch(context.Background(), testSources(1, "a.example"))

	if results[0].Success {
		t.Fatal("expected failure")
	}
	if got := fetcher.callCount("a.example-0"); got != 1 {
		t.Errorf("permanent error retried: %d attempts", got)
	}
}

func TestFetchBatch_PartialFailureLeavesOthersUnaffected(t *testing.T) {
	fastRetries(t)
	fetcher := newFakeFetcher()
	fetcher.fail["slow.example-1"] = context.DeadlineExceeded

	slow := testSources(3, "slow.example")
	for i := range slow {
		slow[i].Policy.MinDelay = 20 * time.Millisecond
	}
	sources := append(testSources(7, "fast.example"), slow...)

	s := NewScheduler(testCrawlConfig(), fetcher, nil, nil)
	results := s.FetchBatch(context.Background(), sources)

	successes, transients := 0, 0
	for _, res := range results {
		if res.Success {
			successes++
		} else if res.Error != nil && res.Error.Class == model.ErrorClassTransient {
			transients++
		}
	}
	if successes != 9 || transients != 1 {
		t.Errorf("got %d successes and %d transient failures, want 9 and 1", successes, transients)
	}
	if got := fetcher.callCount("slow.example-1"); got != 3 {
		t.Errorf("timing-out source attempted %d times, want 3", got)
	}
}

func TestFetchBatch_OriginFairness(t *testing.T) {
	fastRetries(t)
	fetcher := newFakeFetcher()

	slowSources := testSources(3, "slow.example")
	for i := range slowSources {
		slowSources[i].Policy.MinDelay = 300 * time.Millisecond
	}
	fastSources := testSources(6, "fast.example")
	for i := range fastSources {
		fastSources[i].Policy.MinDelay = 10 * time.Millisecond
	}

	s := NewScheduler(testCrawlConfig(), fetcher, nil, nil)
	s.FetchBatch(context.Background(), append(slowSources, fastSources...))

	fetcher.mu.Lock()
	fastTimes := append([]time.Time(nil), fetcher.dispatch["fast.example"]...)
	fetcher.mu.Unlock()

	if len(fastTimes) != 6 {
		t.Fatalf("expected 6 fast dispatches, got %d", len(fastTimes))
	}
	// The fast origin's average inter-request interval tracks its own
	// delay, not the slow origin's.
	total := fastTimes[len(fastTimes)-1].Sub(fastTimes[0])
	avg := total / time.Duration(len(fastTimes)-1)
	if avg > 150*time.Millisecond {
		t.Errorf("fast origin average interval %v, should approximate its own 10ms delay", avg)
	}
}

func TestFetchBatch_Cancellation(t *testing.T) {
	fastRetries(t)
	fetcher := newFakeFetcher()
	fetcher.delay = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var cancelled atomic.Bool
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancelled.Store(true)
		cancel()
	}()

	s := NewScheduler(testCrawlConfig(), fetcher, nil, nil)
	sources := testSources(20, "a.example")
	results := s.FetchBatch(ctx, sources)

	if !cancelled.Load() {
		t.Skip("batch finished before cancellation fired")
	}
	if len(results) != len(sources) {
		t.Fatalf("cancelled batch returned %d results, want %d", len(results), len(sources))
	}
	failures := 0
	for _, res := range results {
		if !res.Success {
			failures++
		}
	}
	if failures == 0 {
		t.Error("expected at least one cancelled source")
	}
}

// fakePolicy scripts CanFetch answers and counts consultations
type fakePolicy struct {
	mu      sync.Mutex
	allowed bool
	delay   time.Duration
	calls   int
}

func (p *fakePolicy) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.allowed, p.delay, nil
}

func (p *fakePolicy) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func robotsSources(n int, origin string) []model.Source {
	sources := testSources(n, origin)
	for i := range sources {
		sources[i].Policy.RespectRobots = true
	}
	return sources
}

func TestFetchBatch_RobotsDisallowedBlocksFetch(t *testing.T) {
	fastRetries(t)
	fetcher := newFakeFetcher()
	policy := &fakePolicy{allowed: false}

	s := NewScheduler(testCrawlConfig(), fetcher, policy, nil)
	sources := robotsSources(2, "a.example")
	results := s.FetchBatch(context.Background(), sources)

	if got := policy.callCount(); got != len(sources) {
		t.Errorf("policy checker consulted %d times, want %d", got, len(sources))
	}
	for _, res := range results {
		if res.Success {
			t.Errorf("source %s fetched despite robots disallow", res.SourceID)
		}
		if res.Error == nil || res.Error.Class != model.ErrorClassPermanent {
			t.Errorf("source %s: expected permanent error, got %+v", res.SourceID, res.Error)
		}
	}
	for _, src := range sources {
		if got := fetcher.callCount(src.ID); got != 0 {
			t.Errorf("source %s fetched %d times despite disallow", src.ID, got)
		}
	}
}

func TestFetchBatch_RobotsOptOutSkipsChecker(t *testing.T) {
	fastRetries(t)
	fetcher := newFakeFetcher()
	policy := &fakePolicy{allowed: false}

	s := NewScheduler(testCrawlConfig(), fetcher, policy, nil)
	sources := testSources(2, "a.example") // zero policy: robots opted out
	results := s.FetchBatch(context.Background(), sources)

	if got := policy.callCount(); got != 0 {
		t.Errorf("policy checker consulted %d times for opted-out sources", got)
	}
	for _, res := range results {
		if !res.Success {
			t.Errorf("source %s failed: %v", res.SourceID, res.Error)
		}
	}
}

func TestFetchBatch_RobotsCrawlDelayRaisesOrigin(t *testing.T) {
	fastRetries(t)
	fetcher := newFakeFetcher()
	policy := &fakePolicy{allowed: true, delay: 750 * time.Millisecond}

	s := NewScheduler(testCrawlConfig(), fetcher, policy, nil)
	s.FetchBatch(context.Background(), robotsSources(1, "a.example"))

	if got := s.Limiter().Delay("a.example"); got < 750*time.Millisecond {
		t.Errorf("origin delay %v, want at least the robots crawl delay", got)
	}
}

func TestInterleaveByOrigin(t *testing.T) {
	sources := []model.Source{
		{ID: "a1", URL: "https://a.example/1"},
		{ID: "a2", URL: "https://a.example/2"},
		{ID: "a3", URL: "https://a.example/3"},
		{ID: "b1", URL: "https://b.example/1"},
		{ID: "b2", URL: "https://b.example/2"},
	}

	got := interleaveByOrigin(sources)
	wantOrder := []string{"a1", "b1", "a2", "b2", "a3"}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Fatalf("position %d: got %s, want %s (full: %v)", i, got[i].ID, want, ids(got))
		}
	}
}

func ids(sources []model.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.ID
	}
	return out
}
