package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/radvia/faturamento/internal/config"
	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/job"
	"github.com/radvia/faturamento/internal/domain/registry"
	"github.com/radvia/faturamento/internal/rules"
	"github.com/radvia/faturamento/pkg/metrics"
)

// PipelineService runs the normalization pipeline as fire-and-forget
// background jobs. The trigger returns immediately with a queued job; the
// caller polls it. One run is single-threaded and strictly ordered; rules
// are idempotent, so a failed or timed-out run is recovered by re-triggering
// the whole batch.
type PipelineService struct {
	records    exam.Repository
	registries registry.Repository
	jobs       job.Repository
	splitter   *SplitService
	log        *zap.Logger
	metrics    *metrics.Collector
	cfg        config.PipelineConfig

	mu     sync.Mutex
	active map[string]bool
}

func NewPipelineService(
	records exam.Repository,
	registries registry.Repository,
	jobs job.Repository,
	splitter *SplitService,
	log *zap.Logger,
	m *metrics.Collector,
	cfg config.PipelineConfig,
) *PipelineService {
	return &PipelineService{
		records:    records,
		registries: registries,
		jobs:       jobs,
		splitter:   splitter,
		log:        log,
		metrics:    m,
		cfg:        cfg,
		active:     make(map[string]bool),
	}
}

// TriggerRun validates the request, creates a queued job and dispatches the
// run in the background. Concurrent runs on the same batch are unsafe (rules
// race on the same rows), so a second trigger while one is active is refused
// with ErrBatchBusy.
func (s *PipelineService) TriggerRun(ctx context.Context, batchID, period string, retroactive bool) (*job.ProcessingJob, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, exam.ErrBatchIDRequired
	}
	if _, err := rules.ParsePeriod(period); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.active[batchID] {
		s.mu.Unlock()
		return nil, job.ErrBatchBusy
	}
	s.active[batchID] = true
	s.mu.Unlock()

	j := &job.ProcessingJob{
		SourceBatchID:   batchID,
		ReferencePeriod: period,
		Retroactive:     retroactive,
		Status:          job.StatusQueued,
	}
	if err := s.jobs.Create(ctx, j); err != nil {
		s.release(batchID)
		return nil, err
	}

	go s.run(j)

	return j, nil
}

func (s *PipelineService) GetJob(ctx context.Context, id uuid.UUID) (*job.ProcessingJob, error) {
	return s.jobs.GetByID(ctx, id)
}

func (s *PipelineService) ListJobs(ctx context.Context, batchID string) ([]*job.ProcessingJob, error) {
	return s.jobs.ListByBatch(ctx, batchID)
}

func (s *PipelineService) release(batchID string) {
	s.mu.Lock()
	delete(s.active, batchID)
	s.mu.Unlock()
}

// run executes one full pipeline run under the wall-clock budget. The
// context deadline is checked between every rule and splitter group, so the
// run raises a timeout failure instead of running unbounded.
func (s *PipelineService) run(j *job.ProcessingJob) {
	start := time.Now()
	defer s.release(j.SourceBatchID)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()

	tracer := otel.Tracer("pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("batch", j.SourceBatchID),
		attribute.String("period", j.ReferencePeriod),
		attribute.Bool("retroactive", j.Retroactive),
	))
	defer span.End()

	log := s.log.With(
		zap.String("job_id", j.ID.String()),
		zap.String("batch", j.SourceBatchID),
		zap.String("period", j.ReferencePeriod),
	)

	if err := j.Start(); err != nil {
		log.Error("cannot start job", zap.Error(err))
		return
	}
	s.updateJob(ctx, j, log)

	before, err := s.records.CountByBatch(ctx, j.SourceBatchID)
	if err != nil {
		s.fail(ctx, j, log, fmt.Errorf("counting batch: %w", err))
		return
	}
	j.RecordsBefore = before

	if before == 0 {
		_ = j.Complete("no records in batch")
		s.updateJob(ctx, j, log)
		s.observe(j, start)
		log.Info("pipeline run completed immediately, batch is empty")
		return
	}

	snap, err := s.registries.Snapshot(ctx)
	if err != nil {
		// A registry-read failure blocks every subsequent step: abort.
		s.fail(ctx, j, log, err)
		return
	}

	recs, err := s.loadBatch(ctx, j.SourceBatchID)
	if err != nil {
		s.fail(ctx, j, log, err)
		return
	}

	rctx := &rules.Context{
		Snapshot:        snap,
		ReferencePeriod: j.ReferencePeriod,
		Retroactive:     j.Retroactive,
	}

	for _, rule := range rules.Ordered(j.Retroactive) {
		if err := ctx.Err(); err != nil {
			s.fail(ctx, j, log, fmt.Errorf("run exceeded its time budget: %w", err))
			return
		}

		survivors, res, err := s.applyRule(ctx, tracer, rctx, rule, recs)
		if err != nil {
			s.fail(ctx, j, log, fmt.Errorf("rule %s: %w", rule.Code(), err))
			return
		}
		recs = survivors

		j.AppliedRules = append(j.AppliedRules, rule.Code())
		s.updateJob(ctx, j, log)

		if s.metrics != nil {
			s.metrics.RuleExclusionsTotal.WithLabelValues(res.Code).Add(float64(len(res.Excluded)))
			s.metrics.RuleChangesTotal.WithLabelValues(res.Code).Add(float64(len(res.Changed)))
		}
		log.Info("rule applied",
			zap.String("rule", rule.Code()),
			zap.Int("excluded", len(res.Excluded)),
			zap.Int("changed", len(res.Changed)),
		)
	}

	splitCtx, splitSpan := tracer.Start(ctx, "pipeline.split")
	summary, err := s.splitter.SplitBatch(splitCtx, j.SourceBatchID, recs, snap)
	splitSpan.End()
	if err != nil {
		s.fail(ctx, j, log, fmt.Errorf("splitting exams: %w", err))
		return
	}

	after, err := s.records.CountByBatch(ctx, j.SourceBatchID)
	if err != nil {
		s.fail(ctx, j, log, fmt.Errorf("counting batch after run: %w", err))
		return
	}
	j.RecordsAfter = after

	msg := fmt.Sprintf("normalized %d rules; split %d composites into %d records",
		len(j.AppliedRules), summary.OriginalsReplaced, summary.NewRecordsCreated)
	if err := j.Complete(msg); err != nil {
		log.Error("cannot complete job", zap.Error(err))
		return
	}
	s.updateJob(ctx, j, log)
	s.observe(j, start)

	log.Info("pipeline run completed",
		zap.Int64("records_before", j.RecordsBefore),
		zap.Int64("records_after", j.RecordsAfter),
		zap.Duration("duration", time.Since(start)),
	)
}

// applyRule runs one rule in a span and persists its effects. Each rule's
// deletes and saves are their own committed units; there is no cross-rule
// transaction, so a crash leaves the batch partially normalized and the
// recovery path is a full, idempotent re-run.
func (s *PipelineService) applyRule(ctx context.Context, tracer trace.Tracer, rctx *rules.Context, rule rules.Rule, recs []*exam.Record) ([]*exam.Record, *rules.Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.rule."+rule.Code())
	defer span.End()

	survivors, res, err := rule.Apply(rctx, recs)
	if err != nil {
		return nil, nil, err
	}

	if err := s.records.DeleteByIDs(ctx, res.Excluded); err != nil {
		return nil, nil, err
	}
	if err := s.records.SaveAll(ctx, res.Changed); err != nil {
		return nil, nil, err
	}

	return survivors, res, nil
}

func (s *PipelineService) loadBatch(ctx context.Context, batchID string) ([]*exam.Record, error) {
	var all []*exam.Record
	for offset := 0; ; offset += s.cfg.PageSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("loading batch exceeded the time budget: %w", err)
		}
		page, err := s.records.ListByBatch(ctx, batchID, offset, s.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < s.cfg.PageSize {
			return all, nil
		}
	}
}

// fail finalizes the job, keeping the applied-rule list. The run context may
// already be dead (timeout), so the bookkeeping update gets a detached one.
func (s *PipelineService) fail(ctx context.Context, j *job.ProcessingJob, log *zap.Logger, cause error) {
	log.Error("pipeline run failed", zap.Error(cause), zap.Strings("applied_rules", j.AppliedRules))

	if err := j.Fail(cause.Error()); err != nil {
		log.Error("cannot mark job failed", zap.Error(err))
		return
	}
	s.updateJob(ctx, j, log)
	if s.metrics != nil {
		s.metrics.JobsTotal.WithLabelValues(string(j.Status)).Inc()
	}
}

func (s *PipelineService) updateJob(ctx context.Context, j *job.ProcessingJob, log *zap.Logger) {
	updCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.jobs.Update(updCtx, j); err != nil {
		log.Error("failed to persist job state", zap.Error(err))
	}
}

func (s *PipelineService) observe(j *job.ProcessingJob, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.JobsTotal.WithLabelValues(string(j.Status)).Inc()
	s.metrics.PipelineRunDuration.Observe(time.Since(start).Seconds())
}
