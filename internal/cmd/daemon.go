package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kluhan/kraken/internal/config"
	"github.com/kluhan/kraken/internal/observability"
	"github.com/kluhan/kraken/internal/server"
	"github.com/kluhan/kraken/pkg/allocator"
	"github.com/kluhan/kraken/pkg/callback"
	"github.com/kluhan/kraken/pkg/crawltask"
	"github.com/kluhan/kraken/pkg/dispatch"
	"github.com/kluhan/kraken/pkg/googleplay"
	"github.com/kluhan/kraken/pkg/googleplay/requests"
	"github.com/kluhan/kraken/pkg/historic"
	"github.com/kluhan/kraken/pkg/pipeline"
	"github.com/kluhan/kraken/pkg/scheduler"
	"github.com/kluhan/kraken/pkg/store/sqlitestore"
	"github.com/kluhan/kraken/pkg/terminator"
	"github.com/kluhan/kraken/pkg/types"
)

var daemonContinueCrawl bool

var daemonCmd = &cobra.Command{
	Use:   "daemon <series-id>",
	Short: "Run the Scheduler for a registered Series until its crawl ends or the process is signalled",
	Args:  cobra.ExactArgs(1),
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().BoolVar(&daemonContinueCrawl, "continue_crawl", false, "resume the series' most recent crawl instead of starting a new one")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	seriesRef := args[0]

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("daemon: load config: %w", err)
	}
	if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return fmt.Errorf("daemon: init logger: %w", err)
	}
	logger := observability.CLILogger

	store, err := sqlitestore.Open(ctx, sqlitestore.Config{Path: cfg.Store.DSN})
	if err != nil {
		return fmt.Errorf("daemon: open store: %w", err)
	}
	defer store.Close()

	series, err := loadSeriesByRef(ctx, store, seriesRef)
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}

	crawl, err := resolveCrawl(ctx, store, series)
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}

	alloc, err := buildAllocator(store, series, *crawl, cfg.Scheduler)
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}

	handlers := buildHandlers(store)
	pool := dispatch.NewPool(dispatch.DefaultPoolConfig(), handlers, scheduler.NewTokenMiddleware(store, logger))
	defer pool.Close()
	// The Crawl Task handler submits its own stage's request/pipeline/
	// terminator/callback Signatures back through this same Pool, so it
	// can only be wired in once the Pool exists; handlers is the exact
	// map NewPool captured, so this mutation is visible to it.
	handlers[dispatch.PrefixCrawler] = crawltask.New(pool, store, logger).Handle

	crawlTaskSig := types.Signature{Name: "crawler.multi_stage_crawler"}
	stepPeriod := series.Allocator.StepPeriod
	if stepPeriod <= 0 {
		stepPeriod = cfg.Scheduler.StepPeriod
	}
	schedCfg := scheduler.Config{StepPeriod: stepPeriod, RateLimit: cfg.Scheduler.RateLimit}
	sched := scheduler.New(alloc, pool, store, *crawl, series.ID, crawlTaskSig, schedCfg, logger)

	srv := server.New(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("health server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- sched.Run(ctx)
	}()

	var runErr error
	select {
	case runErr = <-runErrCh:
	case err := <-serverErrCh:
		cancel()
		runErr = fmt.Errorf("health server: %w", err)
		<-runErrCh
	case <-ctx.Done():
		runErr = <-runErrCh
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown error", zap.Error(err))
	}

	if runErr != nil {
		return fmt.Errorf("daemon: scheduler run: %w", runErr)
	}
	cmd.Printf("crawl %s finished\n", crawl.Name)
	return nil
}

func loadSeriesByRef(ctx context.Context, store *sqlitestore.Store, ref string) (*types.Series, error) {
	series, err := store.LoadSeries(ctx, ref)
	if err == nil {
		return series, nil
	}
	return store.LoadSeriesByName(ctx, ref)
}

func resolveCrawl(ctx context.Context, store *sqlitestore.Store, series *types.Series) (*types.Crawl, error) {
	if daemonContinueCrawl {
		crawl, err := store.LoadLatestCrawl(ctx, series.ID)
		if err != nil {
			return nil, fmt.Errorf("continue crawl: %w", err)
		}
		return crawl, nil
	}
	crawl := series.NewCrawl()
	if err := store.SaveSeries(ctx, series); err != nil {
		return nil, fmt.Errorf("persist crawl sequence: %w", err)
	}
	if err := store.SaveCrawl(ctx, crawl); err != nil {
		return nil, fmt.Errorf("save new crawl: %w", err)
	}
	return crawl, nil
}

func buildAllocator(store *sqlitestore.Store, series *types.Series, crawl types.Crawl, cfg config.SchedulerConfig) (allocator.Allocator, error) {
	stepSize := series.Allocator.StepSize
	if stepSize <= 0 {
		stepSize = cfg.StepSize
	}
	bucketedCfg := allocator.BucketedConfig{
		StepSize:      stepSize,
		BucketCount:   series.Allocator.BucketCount,
		BucketTTL:     series.Allocator.BucketTTL,
		MinAllocation: series.Allocator.MinAllocation,
		TagFilters:    series.TagFilters,
	}
	switch series.Allocator.Kind {
	case types.AllocatorStatic:
		return allocator.NewStatic(store, crawl, series.ID, stepSize), nil
	case types.AllocatorUniform:
		return allocator.NewUniform(sqlitestore.NewUniformSource(store), crawl, bucketedCfg), nil
	case types.AllocatorProportional:
		return allocator.NewProportional(sqlitestore.NewProportionalSource(store), crawl, bucketedCfg), nil
	default:
		return nil, fmt.Errorf("unknown allocator kind %q", series.Allocator.Kind)
	}
}

// buildHandlers builds the exactly-one-handler-per-prefix map
// dispatch.Pool routes on, each prefix's handler in turn dispatching by
// the Signature's full task name to its concrete implementation.
func buildHandlers(store *sqlitestore.Store) map[string]dispatch.Handler {
	client := requests.NewClient("")
	detailHandler := requests.NewDetailHandler(client)
	reviewsHandler := requests.NewReviewsHandler(client)

	requestHandlers := map[string]dispatch.Handler{
		"request.googleplay.detail":  detailHandler.Handle,
		"request.googleplay.reviews": reviewsHandler.Handle,
	}

	models := historic.DefaultModels()
	pipelineHandlers := map[string]dispatch.Handler{
		"pipeline.discovery": pipeline.TargetDiscoveryHandler(store, nil),
	}
	for docType, factory := range googleplay.Factories {
		pipelineHandlers["pipeline.storage."+string(docType)] = pipeline.DataStorageHandler(store, factory, models)
	}

	return map[string]dispatch.Handler{
		dispatch.PrefixRequest:    routeByName(requestHandlers),
		dispatch.PrefixPipeline:   routeByName(pipelineHandlers),
		dispatch.PrefixTerminator: handleTerminator,
		dispatch.PrefixCallback:   callback.Handler(store),
	}
}

func routeByName(routes map[string]dispatch.Handler) dispatch.Handler {
	return func(ctx context.Context, sig types.Signature) (map[string]any, error) {
		handler, ok := routes[sig.Name]
		if !ok {
			return nil, fmt.Errorf("daemon: no handler registered for task %q", sig.Name)
		}
		return handler(ctx, sig)
	}
}

func handleTerminator(_ context.Context, sig types.Signature) (map[string]any, error) {
	stage, err := decodeStageKwarg(sig.Kwargs["stage"])
	if err != nil {
		return nil, err
	}

	var term terminator.Terminator
	switch sig.Name {
	case "terminator.static":
		term = terminator.Static(intKwarg(sig.Kwargs, "limit", 1000))
	case "terminator.overlap":
		term = terminator.Overlap(intKwarg(sig.Kwargs, "overlap", 0))
	case "terminator.budget":
		model, _ := sig.Kwargs["model"].(string)
		term = terminator.Budget(
			intKwarg(sig.Kwargs, "budget", 0),
			intKwarg(sig.Kwargs, "budget_inc", 0),
			intKwarg(sig.Kwargs, "budget_dec", 0),
			model,
		)
	default:
		return nil, fmt.Errorf("daemon: unknown terminator task %q", sig.Name)
	}
	return map[string]any{"terminated": term(stage.Progress)}, nil
}

func intKwarg(kwargs map[string]any, key string, fallback int) int {
	switch v := kwargs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func decodeStageKwarg(v any) (types.Stage, error) {
	if stage, ok := v.(types.Stage); ok {
		return stage, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return types.Stage{}, err
	}
	var stage types.Stage
	if err := json.Unmarshal(raw, &stage); err != nil {
		return types.Stage{}, err
	}
	return stage, nil
}
