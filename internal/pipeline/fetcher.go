package pipeline

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmarchuk/newsloom/internal/cache"
	"github.com/dmarchuk/newsloom/internal/model"
	"github.com/dmarchuk/newsloom/internal/segment"
	"github.com/dmarchuk/newsloom/internal/util"
	"github.com/dmarchuk/newsloom/internal/worker"
)

// Fetcher retrieves source documents over HTTP and segments them into
// paragraphs and sentences. It satisfies the scheduler's SourceFetcher
// contract; transport failures come back as classified FetchErrors.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	segmenter  *segment.Segmenter
	cache      *cache.FetchCache // nil disables snapshot reuse
}

// NewFetcher creates a Fetcher from the HTTP configuration. fc may be
// nil when caching is disabled.
func NewFetcher(cfg model.HTTPConfig, fc *cache.FetchCache) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
		segmenter: segment.New(),
		cache:     fc,
	}
}

// Fetch retrieves and segments a single source document. A cached
// snapshot short-circuits the network entirely.
func (f *Fetcher) Fetch(ctx context.Context, src model.Source) (*model.FetchResult, error) {
	if f.cache != nil {
		if cached, ok := f.cache.Get(src.URL); ok {
			cached.SourceID = src.ID
			cached.SourceName = src.Name
			return cached, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, &model.FetchError{
			Class:   model.ErrorClassPermanent,
			URL:     src.URL,
			Message: "create request",
			Err:     err,
		}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, worker.ClassifyErr(src.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ferr := worker.ClassifyStatus(src.URL, resp.StatusCode); ferr != nil {
		return nil, ferr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, worker.ClassifyErr(src.URL, err)
	}

	content := string(body)
	result := &model.FetchResult{
		SourceID:   src.ID,
		SourceName: src.Name,
		URL:        src.URL,
		FinalURL:   resp.Request.URL.String(),
		Success:    true,
		StatusCode: resp.StatusCode,
		Content:    content,
		Paragraphs: f.segmenter.Segment(content),
		FetchedAt:  time.Now().UTC(),
	}

	if f.cache != nil {
		f.cache.Put(src.URL, result)
	}

	return result, nil
}
