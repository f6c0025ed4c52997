package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/rajasatyajit/CommentIntel/config"
	"github.com/rajasatyajit/CommentIntel/internal/classifier"
	apperrors "github.com/rajasatyajit/CommentIntel/internal/errors"
	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/metrics"
	"github.com/rajasatyajit/CommentIntel/internal/models"
	"github.com/rajasatyajit/CommentIntel/internal/priority"
)

// ReanalysisSource names runs produced by Reanalyze
const ReanalysisSource = "reanalysis"

const defaultPollInterval = 15 * time.Minute

// Source defines a pluggable comment source implementation
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Comment, error)
	Interval() time.Duration
}

// Store interface for comment and run storage
type Store interface {
	UpsertComments(ctx context.Context, comments []models.Comment) error
	QueryComments(ctx context.Context, q models.CommentQuery) ([]models.Comment, error)
	SaveRun(ctx context.Context, run *models.AnalysisRun) error
}

// Notifier is told about every recorded run
type Notifier interface {
	NotifyRun(ctx context.Context, run *models.AnalysisRun, analysis *priority.Analysis) error
}

// Result is the outcome of analysing one batch of comments
type Result struct {
	RunID      string                      `json:"run_id"`
	Source     string                      `json:"source"`
	Aggregate  *classifier.AggregateResult `json:"aggregate"`
	Analysis   *priority.Analysis          `json:"analysis"`
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt time.Time                   `json:"finished_at"`
}

// Pipeline coordinates concurrent fetching, classification, prioritisation and storing
type Pipeline struct {
	store       Store
	classifier  *classifier.Classifier
	prioritizer *priority.Engine
	notifier    Notifier
	limiter     *rate.Limiter
	sources     []Source
	cfg         config.PipelineConfig
	lookback    time.Duration
	sem         *semaphore.Weighted
	now         func() time.Time
	progress    func(done, total int)
	mu          sync.RWMutex
	running     bool
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSources replaces the sources built from configuration
func WithSources(sources ...Source) Option {
	return func(p *Pipeline) { p.sources = sources }
}

// WithNotifier sets the collaborator told about recorded runs
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithLookback sets the window of stored comments Reanalyze covers
func WithLookback(d time.Duration) Option {
	return func(p *Pipeline) { p.lookback = d }
}

// WithClock sets the time source for run timestamps and the lookback window
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithProgress reports classification progress of every batch
func WithProgress(fn func(done, total int)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// New creates a new pipeline instance
func New(store Store, cls *classifier.Classifier, prioritizer *priority.Engine, cfg config.PipelineConfig, opts ...Option) *Pipeline {
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}
	workers := cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}

	p := &Pipeline{
		store:       store,
		classifier:  cls,
		prioritizer: prioritizer,
		cfg:         cfg,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		sem:         semaphore.NewWeighted(int64(workers)),
		lookback:    priority.DefaultRecentWindow,
		now:         time.Now,
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	for _, s := range cfg.Sources {
		p.sources = append(p.sources, NewCSVSource(s.Name, s.Path, interval))
	}

	for _, opt := range opts {
		opt(p)
	}

	logger.Info("Pipeline initialized",
		"sources", len(p.sources),
		"rate_limit", cfg.RateLimit,
		"workers", workers,
	)

	return p
}

// Sources returns the configured sources
func (p *Pipeline) Sources() []Source {
	return p.sources
}

// Analyze classifies and prioritises comments without persisting anything.
// Blank comments count towards the total but are not classified.
func (p *Pipeline) Analyze(ctx context.Context, source string, comments []models.Comment) (*Result, error) {
	start := p.now().UTC()

	agg, err := p.classifier.ClassifyBatchContext(ctx, comments, classifier.BatchOptions{
		Workers:  p.cfg.WorkerCount,
		Progress: p.progress,
	})
	if err != nil {
		return nil, apperrors.PipelineError{Source: source, Stage: "classify", Err: err}
	}

	analysis := p.prioritizer.Analyze(agg)

	res := &Result{
		RunID:      uuid.NewString(),
		Source:     source,
		Aggregate:  agg,
		Analysis:   analysis,
		StartedAt:  start,
		FinishedAt: p.now().UTC(),
	}

	metrics.RecordAnalysisRun(source, res.FinishedAt.Sub(res.StartedAt))
	for _, issue := range analysis.CriticalIssues {
		metrics.SetPriorityScore(issue.Category, issue.PriorityScore)
	}
	return res, nil
}

// Record persists a result as an AnalysisRun and notifies about it. Notification
// failures are logged, not returned.
func (p *Pipeline) Record(ctx context.Context, res *Result) (*models.AnalysisRun, error) {
	run, err := NewRun(res, p.classifier.Taxonomy().Fingerprint())
	if err != nil {
		return nil, apperrors.PipelineError{Source: res.Source, Stage: "encode", Err: err}
	}

	if err := p.store.SaveRun(ctx, run); err != nil {
		return nil, apperrors.PipelineError{Source: res.Source, Stage: "store", Err: err}
	}

	if p.notifier != nil {
		if err := p.notifier.NotifyRun(ctx, run, res.Analysis); err != nil {
			logger.Warn("Run notification failed", "run_id", run.ID, "error", err)
		}
	}

	logger.Info("Analysis run recorded",
		"run_id", run.ID,
		"source", run.Source,
		"comments", run.TotalComments,
		"relevant", run.RelevantComments,
		"top_category", run.TopCategory,
		"top_score", run.TopScore,
	)
	return run, nil
}

// NewRun builds the persisted form of a result
func NewRun(res *Result, fingerprint string) (*models.AnalysisRun, error) {
	aggregate, err := json.Marshal(res.Aggregate)
	if err != nil {
		return nil, fmt.Errorf("encode aggregate: %w", err)
	}
	analysis, err := json.Marshal(res.Analysis)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}

	run := &models.AnalysisRun{
		ID:                  res.RunID,
		Source:              res.Source,
		TaxonomyFingerprint: fingerprint,
		TotalComments:       res.Aggregate.TotalComments,
		RelevantComments:    res.Aggregate.RelevantComments,
		StartedAt:           res.StartedAt,
		FinishedAt:          res.FinishedAt,
		Aggregate:           aggregate,
		Analysis:            analysis,
	}
	if top := res.Analysis.Top(); top != nil {
		run.TopCategory = top.Category
		run.TopScore = top.PriorityScore
	}
	return run, nil
}

// Reanalyze analyses the stored comments ingested within the lookback window and
// records the run.
func (p *Pipeline) Reanalyze(ctx context.Context) (*models.AnalysisRun, error) {
	since := p.now().Add(-p.lookback)
	comments, err := p.store.QueryComments(ctx, models.CommentQuery{Since: since})
	if err != nil {
		return nil, apperrors.PipelineError{Source: ReanalysisSource, Stage: "load", Err: err}
	}

	// Stores list newest first; examples must follow ingestion order
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].IngestedAt.Before(comments[j].IngestedAt)
	})

	logger.Info("Reanalysing stored comments", "count", len(comments), "since", since)

	res, err := p.Analyze(ctx, ReanalysisSource, comments)
	if err != nil {
		return nil, err
	}
	return p.Record(ctx, res)
}

// Run starts the pipeline and runs until context is cancelled
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already running")
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	logger.Info("Starting pipeline")

	// Fan-out per-source pollers
	var wg sync.WaitGroup
	errChan := make(chan error, len(p.sources))

	for _, src := range p.sources {
		src := src
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := p.runSourcePoller(ctx, src); err != nil && ctx.Err() == nil {
				errChan <- fmt.Errorf("source %s: %w", src.Name(), err)
			}
		}()
	}

	wg.Wait()
	close(errChan)

	// Collect any errors
	var errs []error
	for err := range errChan {
		errs = append(errs, err)
		logger.Error("Pipeline source error", "error", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("pipeline completed with %d errors", len(errs))
	}

	logger.Info("Pipeline stopped")
	return nil
}

// runSourcePoller runs a single source poller
func (p *Pipeline) runSourcePoller(ctx context.Context, src Source) error {
	logger.Info("Starting source poller", "source", src.Name())

	ticker := time.NewTicker(src.Interval())
	defer ticker.Stop()

	// Initial immediate run
	if _, err := p.RunOnce(ctx, src); err != nil {
		logger.Error("Initial source run failed", "source", src.Name(), "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Source poller stopping", "source", src.Name())
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.RunOnce(ctx, src); err != nil {
				logger.Error("Source run failed", "source", src.Name(), "error", err)

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(p.cfg.RetryDelay):
				}
			}
		}
	}
}

// RunOnce fetches a source, stores its comments, analyses them and records the run.
// It returns a nil run when the source had nothing to analyse.
func (p *Pipeline) RunOnce(ctx context.Context, src Source) (*models.AnalysisRun, error) {
	// Acquire semaphore to limit concurrent processing
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire semaphore: %w", err)
	}
	defer p.sem.Release(1)

	// Rate limiting
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	comments, err := p.fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	if len(comments) == 0 {
		logger.Debug("No comments fetched", "source", src.Name())
		return nil, nil
	}

	_, run, err := p.Ingest(ctx, src.Name(), comments)
	return run, err
}

// Ingest stores comments under source, analyses them and records the run
func (p *Pipeline) Ingest(ctx context.Context, source string, comments []models.Comment) (*Result, *models.AnalysisRun, error) {
	if err := p.storeComments(ctx, source, comments); err != nil {
		return nil, nil, err
	}

	res, err := p.Analyze(ctx, source, comments)
	if err != nil {
		return nil, nil, err
	}
	run, err := p.Record(ctx, res)
	if err != nil {
		return nil, nil, err
	}
	return res, run, nil
}

// fetch calls the source with linear backoff between attempts
func (p *Pipeline) fetch(ctx context.Context, src Source) ([]models.Comment, error) {
	var (
		comments []models.Comment
		err      error
	)

	for attempt := 0; attempt <= p.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * p.cfg.RetryDelay
			logger.Debug("Retrying fetch", "source", src.Name(), "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		comments, err = src.Fetch(ctx)
		if err == nil {
			return comments, nil
		}

		logger.Warn("Fetch attempt failed",
			"source", src.Name(),
			"attempt", attempt+1,
			"error", err,
		)
	}

	metrics.RecordCommentSkipped("fetch_error")
	return nil, apperrors.PipelineError{
		Source: src.Name(),
		Stage:  "fetch",
		Err:    fmt.Errorf("failed after %d attempts: %w", p.cfg.RetryAttempts+1, err),
	}
}

// storeComments upserts comments in batches, filling in the source name
func (p *Pipeline) storeComments(ctx context.Context, source string, comments []models.Comment) error {
	now := p.now().UTC().Truncate(time.Microsecond)
	for i := range comments {
		c := &comments[i]
		if c.Source == "" {
			c.Source = source
		}
		// One microsecond apart (Postgres precision) so a batch keeps its input order
		if c.IngestedAt.IsZero() {
			c.IngestedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
		c.EnsureID()
	}

	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(comments)
	}

	for i := 0; i < len(comments); i += batchSize {
		batch := comments[i:min(i+batchSize, len(comments))]
		if err := p.store.UpsertComments(ctx, batch); err != nil {
			logger.Error("Batch store failed",
				"source", source,
				"batch_start", i,
				"batch_size", len(batch),
				"error", err,
			)
			return apperrors.PipelineError{Source: source, Stage: "store", Err: err}
		}
	}
	return nil
}

// IsRunning returns whether the pipeline is currently running
func (p *Pipeline) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}
