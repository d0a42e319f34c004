package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmarchuk/newsloom/internal/model"
	"github.com/dmarchuk/newsloom/internal/store"
)

// Stage names used in progress counters and error summaries
const (
	StageCrawl    = "crawl"
	StageExtract  = "extract"
	StageGenerate = "generate"
	StagePersist  = "persist"
)

// transitions is the FSM table. FAILED and CANCELLED are reachable
// from any non-terminal state and are handled separately.
var transitions = map[model.RunStatus]model.RunStatus{
	model.RunPending:    model.RunCrawling,
	model.RunCrawling:   model.RunExtracting,
	model.RunExtracting: model.RunGenerating,
	model.RunGenerating: model.RunPersisting,
	model.RunPersisting: model.RunCompleted,
}

// BatchFetcher is the crawl-stage collaborator
type BatchFetcher interface {
	FetchBatch(ctx context.Context, sources []model.Source) []model.FetchResult
}

// ClaimExtractor is the extract-stage collaborator
type ClaimExtractor interface {
	Extract(ctx context.Context, results []*model.FetchResult, topics map[string]string) ([]model.KnowledgeClaim, error)
}

// ArticleWriter is the generate-stage collaborator
type ArticleWriter interface {
	Write(ctx context.Context, claims []model.KnowledgeClaim) ([]model.Article, error)
}

// ArtifactStore is the persist-stage collaborator
type ArtifactStore interface {
	Save(artifact store.Artifact) (string, error)
}

// StartRequest describes one pipeline run. Sources is the immutable
// snapshot for the run; Topics maps source id to its default topic.
type StartRequest struct {
	// RunID makes Start idempotent: starting an id that already exists
	// returns the existing run's state. Empty means generate one.
	RunID   string
	Sources []model.Source
	Topics  map[string]string
}

// Orchestrator drives runs through the crawl → extract → generate →
// persist pipeline. It is the only writer of RunState; callers get
// deep copies.
type Orchestrator struct {
	fetcher   BatchFetcher
	extractor ClaimExtractor
	writer    ArticleWriter
	artifacts ArtifactStore
	cfg       *model.Config
	logger    *zap.Logger

	mu   sync.Mutex
	runs map[string]*run
}

type run struct {
	mu     sync.Mutex
	state  model.RunState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator wires the stage collaborators together. All
// dependencies are explicit; nothing is resolved at run time.
func NewOrchestrator(cfg *model.Config, fetcher BatchFetcher, extractor ClaimExtractor, writer ArticleWriter, artifacts ArtifactStore, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		writer:    writer,
		artifacts: artifacts,
		cfg:       cfg,
		logger:    logger,
		runs:      make(map[string]*run),
	}
}

// Start launches a run and returns its initial state snapshot. The run
// proceeds in the background; poll Status or wait on Done.
func (o *Orchestrator) Start(req StartRequest) (model.RunState, error) {
	if len(req.Sources) == 0 {
		return model.RunState{}, fmt.Errorf("no sources to crawl")
	}

	id := req.RunID
	if id == "" {
		id = uuid.NewString()
	}

	o.mu.Lock()
	if existing, ok := o.runs[id]; ok {
		o.mu.Unlock()
		return existing.snapshot(), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		state: model.RunState{
			ID:        id,
			Status:    model.RunPending,
			Progress:  make(map[string]model.StageProgress),
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	o.runs[id] = r
	o.mu.Unlock()

	o.logger.Info("run started",
		zap.String("run", id),
		zap.Int("sources", len(req.Sources)))

	go o.execute(ctx, r, req)

	return r.snapshot(), nil
}

// Status returns a deep copy of the run's state
func (o *Orchestrator) Status(id string) (model.RunState, bool) {
	o.mu.Lock()
	r, ok := o.runs[id]
	o.mu.Unlock()
	if !ok {
		return model.RunState{}, false
	}
	return r.snapshot(), true
}

// Done returns a channel closed when the run reaches a terminal state
func (o *Orchestrator) Done(id string) (<-chan struct{}, bool) {
	o.mu.Lock()
	r, ok := o.runs[id]
	o.mu.Unlock()
	if !ok {
		return nil, false
	}
	return r.done, true
}

// Cancel stops a run. New work stops immediately; in-flight fetches
// may drain but their results are discarded. Returns false when the
// run is unknown or already terminal.
func (o *Orchestrator) Cancel(id string) bool {
	o.mu.Lock()
	r, ok := o.runs[id]
	o.mu.Unlock()
	if !ok {
		return false
	}

	if !r.moveTo(model.RunCancelled, "cancel requested") {
		return false
	}
	r.cancel()
	o.logger.Info("run cancelled", zap.String("run", id))
	return true
}

func (o *Orchestrator) execute(ctx context.Context, r *run, req StartRequest) {
	defer close(r.done)
	defer r.cancel()

	results, ok := o.runCrawl(ctx, r, req.Sources)
	if !ok {
		return
	}

	claims, ok := o.runExtract(ctx, r, results, req.Topics)
	if !ok {
		return
	}

	articles, ok := o.runGenerate(ctx, r, claims)
	if !ok {
		return
	}

	if !o.runPersist(r, results, claims, articles) {
		return
	}

	if r.moveTo(model.RunCompleted, "") {
		o.logger.Info("run completed",
			zap.String("run", r.snapshot().ID),
			zap.Int("claims", len(claims)),
			zap.Int("articles", len(articles)))
	}
}

func (o *Orchestrator) runCrawl(ctx context.Context, r *run, sources []model.Source) ([]model.FetchResult, bool) {
	if !r.moveTo(model.RunCrawling, "") {
		return nil, false
	}

	results := o.fetcher.FetchBatch(ctx, sources)

	// A cancelled run discards whatever the batch returned.
	if r.status() == model.RunCancelled {
		return nil, false
	}

	progress := model.StageProgress{Attempted: len(results)}
	var subErrors []model.StageError
	for _, res := range results {
		if res.Success {
			progress.Succeeded++
			continue
		}
		progress.Failed++
		msg := "fetch failed"
		if res.Error != nil {
			msg = res.Error.Message
		}
		subErrors = append(subErrors, model.StageError{
			Stage:    StageCrawl,
			SourceID: res.SourceID,
			Message:  msg,
		})
	}
	r.recordStage(StageCrawl, progress, subErrors)

	if need := minViable(o.cfg.Crawl.MinViable); progress.Succeeded < need {
		o.failRun(r, &model.StageFatalError{
			Stage:     StageCrawl,
			Message:   fmt.Sprintf("crawl successes %d below minimum viable %d", progress.Succeeded, need),
			SubErrors: subErrors,
		})
		return nil, false
	}
	return results, true
}

func (o *Orchestrator) runExtract(ctx context.Context, r *run, results []model.FetchResult, topics map[string]string) ([]model.KnowledgeClaim, bool) {
	if !r.moveTo(model.RunExtracting, "") {
		return nil, false
	}

	ptrs := make([]*model.FetchResult, len(results))
	for i := range results {
		ptrs[i] = &results[i]
	}

	claims, err := o.extractor.Extract(ctx, ptrs, topics)
	if r.status() == model.RunCancelled {
		return nil, false
	}
	if err != nil {
		r.recordStage(StageExtract, model.StageProgress{}, []model.StageError{
			{Stage: StageExtract, Message: err.Error()},
		})
		o.failRun(r, &model.StageFatalError{
			Stage:   StageExtract,
			Message: "extraction failed: " + err.Error(),
		})
		return nil, false
	}

	// A source succeeds at this stage when at least one claim cites it.
	cited := make(map[string]bool)
	for _, claim := range claims {
		for _, ref := range claim.References {
			cited[ref.SourceID] = true
		}
	}
	progress := model.StageProgress{}
	for _, res := range results {
		if !res.Success {
			continue
		}
		progress.Attempted++
		if cited[res.SourceID] {
			progress.Succeeded++
		} else {
			progress.Failed++
		}
	}
	r.recordStage(StageExtract, progress, nil)

	if need := minViable(o.cfg.Extract.MinViable); len(claims) < need {
		o.failRun(r, &model.StageFatalError{
			Stage:   StageExtract,
			Message: fmt.Sprintf("claims extracted %d below minimum viable %d", len(claims), need),
		})
		return nil, false
	}
	return claims, true
}

func (o *Orchestrator) runGenerate(ctx context.Context, r *run, claims []model.KnowledgeClaim) ([]model.Article, bool) {
	if !r.moveTo(model.RunGenerating, "") {
		return nil, false
	}

	articles, err := o.writer.Write(ctx, claims)
	if r.status() == model.RunCancelled {
		return nil, false
	}
	if err != nil {
		r.recordStage(StageGenerate, model.StageProgress{}, []model.StageError{
			{Stage: StageGenerate, Message: err.Error()},
		})
		o.failRun(r, &model.StageFatalError{
			Stage:   StageGenerate,
			Message: "generation failed: " + err.Error(),
		})
		return nil, false
	}

	topicsSeen := make(map[string]bool)
	for _, claim := range claims {
		topicsSeen[claim.Topic] = true
	}
	progress := model.StageProgress{
		Attempted: len(topicsSeen),
		Succeeded: len(articles),
	}
	if progress.Failed = progress.Attempted - progress.Succeeded; progress.Failed < 0 {
		progress.Failed = 0
	}
	r.recordStage(StageGenerate, progress, nil)

	if need := minViable(o.cfg.Generate.MinViable); len(articles) < need {
		o.failRun(r, &model.StageFatalError{
			Stage:   StageGenerate,
			Message: fmt.Sprintf("articles generated %d below minimum viable %d", len(articles), need),
		})
		return nil, false
	}
	return articles, true
}

// runPersist writes the run's three artifacts. A store failure is a
// fatal collaborator error, not a per-source one.
func (o *Orchestrator) runPersist(r *run, results []model.FetchResult, claims []model.KnowledgeClaim, articles []model.Article) bool {
	if !r.moveTo(model.RunPersisting, "") {
		return false
	}

	ptrs := make([]*model.FetchResult, len(results))
	for i := range results {
		ptrs[i] = &results[i]
	}

	progress := model.StageProgress{}
	save := func(contentType store.ContentType, items []store.Item, err error) error {
		if err != nil {
			return err
		}
		progress.Attempted++
		if _, err := o.artifacts.Save(store.Artifact{
			ContentType: contentType,
			Items:       items,
		}); err != nil {
			progress.Failed++
			return err
		}
		progress.Succeeded++
		return nil
	}

	rawItems, rawErr := store.FetchItems(ptrs)
	claimItems, claimErr := store.ClaimItems(claims)
	articleItems, articleErr := store.ArticleItems(articles)

	for _, step := range []struct {
		contentType store.ContentType
		items       []store.Item
		err         error
	}{
		{store.ContentCrawledRaw, rawItems, rawErr},
		{store.ContentClaims, claimItems, claimErr},
		{store.ContentArticles, articleItems, articleErr},
	} {
		if err := save(step.contentType, step.items, step.err); err != nil {
			r.recordStage(StagePersist, progress, []model.StageError{
				{Stage: StagePersist, Message: err.Error()},
			})
			o.failRun(r, &model.StageFatalError{
				Stage:   StagePersist,
				Message: "persist failed: " + err.Error(),
			})
			return false
		}
	}

	r.recordStage(StagePersist, progress, nil)
	return true
}

func (o *Orchestrator) failRun(r *run, ferr *model.StageFatalError) {
	r.mu.Lock()
	r.state.FailedStage = ferr.Stage
	r.mu.Unlock()

	if r.moveTo(model.RunFailed, ferr.Error()) {
		o.logger.Warn("run failed",
			zap.String("run", r.snapshot().ID),
			zap.String("stage", ferr.Stage),
			zap.Error(ferr))
	}
}

func minViable(configured int) int {
	if configured <= 0 {
		return 1
	}
	return configured
}

// moveTo applies one FSM transition. Forward moves must follow the
// transition table; FAILED and CANCELLED are accepted from any
// non-terminal state. Returns false when the move is not legal.
func (r *run) moveTo(to model.RunStatus, note string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := r.state.Status
	if from.Terminal() {
		return false
	}

	switch to {
	case model.RunFailed, model.RunCancelled:
	default:
		if transitions[from] != to {
			return false
		}
	}

	now := time.Now().UTC()
	r.state.Status = to
	r.state.Events = append(r.state.Events, model.RunEvent{
		From: from,
		To:   to,
		At:   now,
		Note: note,
	})
	if to.Terminal() && r.state.CompletedAt.IsZero() {
		r.state.CompletedAt = now
	}
	return true
}

func (r *run) status() model.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Status
}

func (r *run) snapshot() model.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

func (r *run) recordStage(stage string, progress model.StageProgress, errs []model.StageError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Progress[stage] = progress
	r.state.Errors = append(r.state.Errors, errs...)
}
