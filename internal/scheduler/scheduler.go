// Package scheduler re-analyses stored comments on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/models"
)

// Reanalyzer runs one analysis over recently stored comments
type Reanalyzer interface {
	Reanalyze(ctx context.Context) (*models.AnalysisRun, error)
}

// Scheduler triggers a Reanalyzer on a standard five-field cron expression.
// Overlapping ticks are skipped while a run is still in progress.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	spec     string
	job      Reanalyzer
	timeout  time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	lastRun *models.AnalysisRun
	lastErr error
	runs    int
}

// New parses spec and prepares a scheduler. timeout bounds each run; zero means none.
func New(spec string, job Reanalyzer, timeout time.Duration) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	l := cronLogger{}
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		schedule: schedule,
		spec:     spec,
		job:      job,
		timeout:  timeout,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	return s, nil
}

// Start begins firing on schedule. Runs use a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	logger.Info("Scheduler started", "schedule", s.spec, "next_run", s.Next(time.Now()))
}

// Stop halts the schedule, cancels an in-flight run and waits for it to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
}

// Next returns the next activation after t
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Trigger runs the job immediately with ctx
func (s *Scheduler) Trigger(ctx context.Context) (*models.AnalysisRun, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	run, err := s.job.Reanalyze(ctx)

	s.mu.Lock()
	s.runs++
	s.lastErr = err
	if run != nil {
		s.lastRun = run
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("Scheduled re-analysis failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	if run == nil {
		logger.Info("Scheduled re-analysis found no comments", "duration", time.Since(start))
		return nil, nil
	}
	logger.Info("Scheduled re-analysis completed",
		"run_id", run.ID,
		"comments", run.TotalComments,
		"top_category", run.TopCategory,
		"duration", time.Since(start),
	)
	return run, nil
}

// Status reports how many runs have fired, the last produced run and the last error
func (s *Scheduler) Status() (runs int, last *models.AnalysisRun, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.lastRun, s.lastErr
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	_, _ = s.Trigger(ctx)
}

// cronLogger adapts the cron library's logger to the structured logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
