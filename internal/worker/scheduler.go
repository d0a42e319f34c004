package worker

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/dmarchuk/newsloom/internal/model"
)

// RetryBaseDelay is the base duration for jittered retry backoff within
// a single source's attempt loop. Tests override it to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

// SourceFetcher retrieves and segments one source. Implementations
// return a classified *model.FetchError on failure.
type SourceFetcher interface {
	Fetch(ctx context.Context, src model.Source) (*model.FetchResult, error)
}

// PolicyChecker answers whether an origin permits fetching a URL and
// what crawl delay it requests. Backed by robots.txt in production.
type PolicyChecker interface {
	CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error)
}

// Scheduler executes fetch batches under per-origin politeness limits
// and bounded global concurrency
type Scheduler struct {
	fetcher     SourceFetcher
	limiter     *OriginLimiter
	policy      PolicyChecker // nil disables robots checking
	concurrency int
	maxAttempts int
	logger      *zap.Logger
}

// NewScheduler builds a scheduler from crawl configuration. policy may
// be nil when robots checking is disabled.
func NewScheduler(cfg model.CrawlConfig, fetcher SourceFetcher, policy PolicyChecker, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Scheduler{
		fetcher:     fetcher,
		limiter:     NewOriginLimiter(cfg.DefaultDelay, cfg.MaxDelay, cfg.BackoffFactor),
		policy:      policy,
		concurrency: cfg.Concurrency,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Limiter exposes the origin limiter for configuration and inspection
func (s *Scheduler) Limiter() *OriginLimiter {
	return s.limiter
}

type fetchJob struct {
	source    model.Source
	scheduler *Scheduler
}

type fetchJobResult struct {
	result model.FetchResult
}

func (r *fetchJobResult) GetError() error {
	if r.result.Error != nil {
		return r.result.Error
	}
	return nil
}

func (j *fetchJob) Execute(ctx context.Context) Result {
	return &fetchJobResult{result: j.scheduler.fetchOne(ctx, j.source)}
}

// FetchBatch fetches every source and returns exactly one result per
// input source, in input order. Individual failures are recorded in
// their result; only ctx cancellation stops the batch early, and even
// then every source still gets a (cancelled) result.
func (s *Scheduler) FetchBatch(ctx context.Context, sources []model.Source) []model.FetchResult {
	if len(sources) == 0 {
		return nil
	}

	pool := NewPool(ctx, s.concurrency)
	pool.Start()

	// Interleave origins round-robin so one slow origin cannot occupy the
	// head of the queue and starve the rest.
	for _, src := range interleaveByOrigin(sources) {
		pool.Submit(&fetchJob{source: src, scheduler: s})
	}

	collected := pool.Wait()

	byID := make(map[string]model.FetchResult, len(collected))
	for _, res := range collected {
		fr := res.(*fetchJobResult).result
		byID[fr.SourceID] = fr
	}

	results := make([]model.FetchResult, 0, len(sources))
	for _, src := range sources {
		if fr, ok := byID[src.ID]; ok {
			results = append(results, fr)
			continue
		}
		// Never executed: the batch was cancelled first.
		results = append(results, cancelledResult(src))
	}
	return results
}

func (s *Scheduler) fetchOne(ctx context.Context, src model.Source) model.FetchResult {
	start := time.Now()

	origin := src.Origin()
	if origin == "" {
		return failedResult(src, start, 1, &model.FetchError{
			Class:   model.ErrorClassPermanent,
			URL:     src.URL,
			Message: "malformed URL",
		})
	}

	if src.Policy.MinDelay > 0 {
		s.limiter.SetBaseDelay(origin, src.Policy.MinDelay)
	}

	if s.policy != nil && src.Policy.RespectRobots {
		allowed, crawlDelay, err := s.policy.CanFetch(ctx, src.URL)
		if err == nil && !allowed {
			return failedResult(src, start, 1, &model.FetchError{
				Class:   model.ErrorClassPermanent,
				URL:     src.URL,
				Message: "disallowed by robots.txt",
			})
		}
		if crawlDelay > 0 {
			s.limiter.RaiseBaseDelay(origin, crawlDelay)
		}
	}

	maxAttempts := s.maxAttempts
	if src.Policy.MaxAttempts > 0 {
		maxAttempts = src.Policy.MaxAttempts
	}

	var lastErr *model.FetchError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx, origin); err != nil {
			return cancelledResult(src)
		}

		result, err := s.fetcher.Fetch(ctx, src)
		if err == nil {
			s.limiter.RecordSuccess(origin)
			result.Attempts = attempt
			result.Elapsed = time.Since(start)
			return *result
		}

		if ctx.Err() != nil {
			return cancelledResult(src)
		}

		lastErr = ClassifyErr(src.URL, err)
		s.limiter.RecordFailure(origin)

		s.logger.Debug("fetch attempt failed",
			zap.String("source", src.ID),
			zap.String("origin", origin),
			zap.Int("attempt", attempt),
			zap.String("class", string(lastErr.Class)),
			zap.String("error", lastErr.Message))

		if !lastErr.Retryable() {
			return failedResult(src, start, attempt, lastErr)
		}
		if attempt < maxAttempts {
			if err := sleepJittered(ctx, attempt); err != nil {
				return cancelledResult(src)
			}
		}
	}

	return failedResult(src, start, maxAttempts, lastErr)
}

// sleepJittered waits RetryBaseDelay × 2^(attempt-1), inflated by up to
// 50% random jitter
func sleepJittered(ctx context.Context, attempt int) error {
	backoff := RetryBaseDelay << (attempt - 1)
	backoff += time.Duration(rand.Int63n(int64(backoff)/2 + 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

// interleaveByOrigin reorders sources round-robin across origins while
// preserving per-origin order. Deterministic for identical input.
func interleaveByOrigin(sources []model.Source) []model.Source {
	var originOrder []string
	byOrigin := make(map[string][]model.Source)
	for _, src := range sources {
		origin := src.Origin()
		if _, seen := byOrigin[origin]; !seen {
			originOrder = append(originOrder, origin)
		}
		byOrigin[origin] = append(byOrigin[origin], src)
	}

	out := make([]model.Source, 0, len(sources))
	for len(out) < len(sources) {
		for _, origin := range originOrder {
			queue := byOrigin[origin]
			if len(queue) == 0 {
				continue
			}
			out = append(out, queue[0])
			byOrigin[origin] = queue[1:]
		}
	}
	return out
}

func failedResult(src model.Source, start time.Time, attempts int, ferr *model.FetchError) model.FetchResult {
	return model.FetchResult{
		SourceID:   src.ID,
		SourceName: src.Name,
		URL:        src.URL,
		Success:    false,
		FetchedAt:  time.Now().UTC(),
		Elapsed:    time.Since(start),
		Attempts:   attempts,
		Error:      ferr,
	}
}

func cancelledResult(src model.Source) model.FetchResult {
	return model.FetchResult{
		SourceID:   src.ID,
		SourceName: src.Name,
		URL:        src.URL,
		Success:    false,
		FetchedAt:  time.Now().UTC(),
		Error: &model.FetchError{
			Class:   model.ErrorClassTransient,
			URL:     src.URL,
			Message: "batch cancelled",
		},
	}
}
