package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/pkg/metrics"
)

// RejectionRecorder persists ingestion rejections asynchronously so the
// admission path never blocks on the audit trail.
type RejectionRecorder struct {
	repo    exam.RejectionRepository
	log     *zap.Logger
	metrics *metrics.Collector
	entries chan *exam.Rejection
	done    chan struct{}
}

func NewRejectionRecorder(repo exam.RejectionRepository, log *zap.Logger, m *metrics.Collector, bufferSize int) *RejectionRecorder {
	if bufferSize <= 0 {
		bufferSize = 10_000
	}
	r := &RejectionRecorder{
		repo:    repo,
		log:     log,
		metrics: m,
		entries: make(chan *exam.Rejection, bufferSize),
		done:    make(chan struct{}),
	}
	go r.worker()
	return r
}

// RecordAsync enqueues a rejection for persistence. If the buffer is full,
// the entry is dropped and a warning is emitted.
func (r *RejectionRecorder) RecordAsync(rej *exam.Rejection) {
	select {
	case r.entries <- rej:
	default:
		if r.metrics != nil {
			r.metrics.RejectionBufferDropped.Inc()
		}
		r.log.Warn("rejection buffer full, dropping entry",
			zap.String("batch", rej.SourceBatchID),
			zap.String("reason", string(rej.Reason)),
		)
	}
}

func (r *RejectionRecorder) Shutdown() {
	close(r.entries)
	select {
	case <-r.done:
	case <-time.After(10 * time.Second):
		r.log.Warn("rejection recorder shutdown timed out; some entries may be lost")
	}
}

func (r *RejectionRecorder) worker() {
	defer close(r.done)
	for rej := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.repo.Create(ctx, rej); err != nil {
			r.log.Error("failed to persist rejection", zap.Error(err))
		} else if r.metrics != nil {
			r.metrics.RejectionsTotal.WithLabelValues(string(rej.Reason)).Inc()
		}
		cancel()
	}
}
