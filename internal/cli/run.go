package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dmarchuk/newsloom/internal/cache"
	"github.com/dmarchuk/newsloom/internal/extract"
	"github.com/dmarchuk/newsloom/internal/llm"
	"github.com/dmarchuk/newsloom/internal/model"
	"github.com/dmarchuk/newsloom/internal/pipeline"
	"github.com/dmarchuk/newsloom/internal/sources"
	"github.com/dmarchuk/newsloom/internal/store"
	"github.com/dmarchuk/newsloom/internal/util"
	"github.com/dmarchuk/newsloom/internal/worker"
)

var (
	runSourcesFile string
	runCategory    string
	runID          string
	runNoCache     bool
	runNoRobots    bool
)

// runCmd executes one full pipeline run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl sources, extract claims and generate cited articles",
	Long: `Run executes the full pipeline: crawl the active sources under
per-origin politeness limits, extract attributed knowledge claims,
assemble cited articles and persist the run's artifacts.

Example:
  newsloom run --sources sources.yaml
  newsloom run --category technology
  newsloom run --no-cache -v`,
	RunE: doRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runSourcesFile, "sources", "", "sources registry file (default from config)")
	runCmd.Flags().StringVar(&runCategory, "category", "", "only crawl sources in this category")
	runCmd.Flags().StringVar(&runID, "run-id", "", "explicit run id (restarting the same id is a no-op)")
	runCmd.Flags().BoolVar(&runNoCache, "no-cache", false, "disable the fetch cache")
	runCmd.Flags().BoolVar(&runNoRobots, "no-robots", false, "skip robots.txt checks")
}

func doRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runNoCache {
		cfg.Cache.Enabled = false
	}
	if runNoRobots {
		cfg.Crawl.RespectRobots = false
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	sourcesFile := runSourcesFile
	if sourcesFile == "" {
		sourcesFile = cfg.Sources.File
	}
	registry, err := sources.Load(sourcesFile)
	if err != nil {
		return err
	}

	batch := registry.Active()
	if runCategory != "" {
		batch = registry.ByCategory(runCategory)
	}
	if len(batch) == 0 {
		return fmt.Errorf("no active sources selected")
	}

	orchestrator, err := buildOrchestrator(cfg, logger)
	if err != nil {
		return err
	}

	state, err := orchestrator.Start(pipeline.StartRequest{
		RunID:   runID,
		Sources: batch,
		Topics:  registry.TopicsByID(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Run %s started: %d sources\n", state.ID, len(batch))

	// Ctrl-C cancels the run rather than killing the process outright.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	done, _ := orchestrator.Done(state.ID)
	select {
	case <-interrupt:
		fmt.Fprintln(os.Stderr, "Cancelling run...")
		orchestrator.Cancel(state.ID)
		<-done
	case <-done:
	}

	final, _ := orchestrator.Status(state.ID)
	if err := saveRunState(cfg.Store.Dir, final); err != nil {
		logger.Warn("could not save run state: " + err.Error())
	}

	printRunSummary(final)

	if final.Status != model.RunCompleted {
		return fmt.Errorf("run %s: %s", final.ID, final.Status)
	}
	return nil
}

// buildOrchestrator wires the full dependency graph explicitly, once
func buildOrchestrator(cfg *model.Config, logger *zap.Logger) (*pipeline.Orchestrator, error) {
	var fetchCache *cache.FetchCache
	if cfg.Cache.Enabled {
		layered := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		fetchCache = cache.NewFetchCache(layered, cfg.Cache.DiskTTL)
	}

	fetcher := pipeline.NewFetcher(cfg.HTTP, fetchCache)

	var policy worker.PolicyChecker
	if cfg.Crawl.RespectRobots {
		policy = util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout)
	}
	scheduler := worker.NewScheduler(cfg.Crawl, fetcher, policy, logger.Named("scheduler"))

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, err
	}

	var analyzer extract.Analyzer
	if provider != nil {
		analyzer = llm.NewAnalyzer(provider)
	} else {
		analyzer = extract.NewHeuristicAnalyzer(cfg.Extract.ConfidenceFloor)
	}
	attributor := extract.NewAttributor(analyzer, cfg.Extract, logger.Named("extract"))

	writer := llm.NewWriter(provider, cfg.Generate, logger.Named("writer"))

	artifacts, err := store.New(cfg.Store.Dir, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	return pipeline.NewOrchestrator(cfg, scheduler, attributor, writer, artifacts, logger.Named("pipeline")), nil
}

func printRunSummary(state model.RunState) {
	fmt.Printf("\nRun %s: %s\n", state.ID, state.Status)
	if state.FailedStage != "" {
		fmt.Printf("Failed stage: %s\n", state.FailedStage)
	}

	for _, stage := range []string{pipeline.StageCrawl, pipeline.StageExtract, pipeline.StageGenerate, pipeline.StagePersist} {
		progress, ok := state.Progress[stage]
		if !ok {
			continue
		}
		fmt.Printf("  %-9s attempted %d, succeeded %d, failed %d\n",
			stage, progress.Attempted, progress.Succeeded, progress.Failed)
	}

	if len(state.Errors) > 0 {
		fmt.Printf("Errors (%d):\n", len(state.Errors))
		for _, e := range state.Errors {
			if e.SourceID != "" {
				fmt.Printf("  [%s] %s: %s\n", e.Stage, e.SourceID, e.Message)
			} else {
				fmt.Printf("  [%s] %s\n", e.Stage, e.Message)
			}
		}
	}

	if !state.CompletedAt.IsZero() {
		fmt.Printf("Elapsed: %s\n", state.CompletedAt.Sub(state.StartedAt).Round(time.Millisecond))
	}
}

// saveRunState persists the final run state so `newsloom status` can
// answer for past runs
func saveRunState(storeDir string, state model.RunState) error {
	dir := filepath.Join(storeDir, "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, state.ID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
