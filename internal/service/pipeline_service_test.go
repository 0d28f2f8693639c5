package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radvia/faturamento/internal/config"
	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/job"
	"github.com/radvia/faturamento/internal/domain/registry"
)

func pipelineSnapshot() *registry.Snapshot {
	return &registry.Snapshot{
		Catalog: map[string]registry.CatalogEntry{
			"tc cranio": {ExamName: "TC CRANIO", Modality: "TC", Specialty: "Neuro", Category: "Simples"},
		},
		Aliases: map[registry.AliasKind]map[string]string{
			registry.AliasModality: {"tomografia": "TC"},
		},
		ValueByExam: map[string]float64{},
		Denied:      map[string]bool{"cliente teste": true},
		SplitRules: map[string][]registry.SplitTarget{
			"tc abdome total": {
				{ExamName: "TC ABDOME"},
				{ExamName: "TC PELVE"},
			},
		},
	}
}

func newPipeline(records *memRecordRepo, registries registry.Repository, jobs job.Repository) *PipelineService {
	log := zap.NewNop()
	splitter := NewSplitService(records, log, nil, 100)
	return NewPipelineService(records, registries, jobs, splitter, log, nil, config.PipelineConfig{
		RunTimeout: 30 * time.Second,
		PageSize:   100,
	})
}

// waitTerminal polls the job store the way an API caller would.
func waitTerminal(t *testing.T, jobs job.Repository, id uuid.UUID) *job.ProcessingJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := jobs.GetByID(context.Background(), id)
		if err == nil && j.Terminal() {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state in time")
	return nil
}

func TestTriggerRunValidation(t *testing.T) {
	svc := newPipeline(&memRecordRepo{}, &memRegistryRepo{snap: pipelineSnapshot()}, newMemJobRepo())

	if _, err := svc.TriggerRun(context.Background(), "  ", "2025-12", false); !errors.Is(err, exam.ErrBatchIDRequired) {
		t.Errorf("blank batch: err = %v, want ErrBatchIDRequired", err)
	}
	if _, err := svc.TriggerRun(context.Background(), "lote", "dezembro", false); !errors.Is(err, exam.ErrInvalidPeriod) {
		t.Errorf("bad period: err = %v, want ErrInvalidPeriod", err)
	}
}

func TestPipelineRunFull(t *testing.T) {
	records := &memRecordRepo{}
	realized := time.Date(2025, 12, 10, 9, 0, 0, 0, time.UTC)
	seed := []*exam.Record{
		// Normalized and split: modality alias, then the composite expands.
		{SourceBatchID: "lote-1", ClientName: "Hospital São Lucas", ExamName: "TC ABDOME TOTAL", Modality: "Tomografia", Quantity: 4, RealizedAt: &realized, Status: exam.StatusSigned},
		// Excluded by the denylist.
		{SourceBatchID: "lote-1", ClientName: "Cliente Teste", ExamName: "RX TORAX", Quantity: 1, RealizedAt: &realized, Status: exam.StatusSigned},
		// Excluded for missing the realization date.
		{SourceBatchID: "lote-1", ClientName: "Hospital São Lucas", ExamName: "US ABDOME", Quantity: 1, Status: exam.StatusSigned},
		// Survives untouched except for the backfills and period stamp.
		{SourceBatchID: "lote-1", ClientName: "Hospital São Lucas", ExamName: "TC CRANIO", Quantity: 0, RealizedAt: &realized, Status: exam.StatusSigned},
	}
	if err := records.CreateMany(context.Background(), seed); err != nil {
		t.Fatal(err)
	}

	jobs := newMemJobRepo()
	svc := newPipeline(records, &memRegistryRepo{snap: pipelineSnapshot()}, jobs)

	trig, err := svc.TriggerRun(context.Background(), "lote-1", "2025-12", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trig.Status != job.StatusQueued {
		t.Errorf("trigger status = %s, want queued", trig.Status)
	}

	j := waitTerminal(t, jobs, trig.ID)
	if j.Status != job.StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", j.Status, j.ErrorMessage)
	}
	if j.RecordsBefore != 4 {
		t.Errorf("records before = %d, want 4", j.RecordsBefore)
	}
	// Two exclusions, one composite replaced by two children: 4 - 2 - 1 + 2.
	if j.RecordsAfter != 3 {
		t.Errorf("records after = %d, want 3", j.RecordsAfter)
	}
	if len(j.AppliedRules) != 10 {
		t.Errorf("applied rules = %v, want all 10 standard codes", j.AppliedRules)
	}

	byName := make(map[string]*exam.Record)
	for _, r := range records.all() {
		byName[r.ExamName] = r
	}
	if _, gone := byName["RX TORAX"]; gone {
		t.Error("denylisted row survived")
	}
	if _, gone := byName["TC ABDOME TOTAL"]; gone {
		t.Error("composite row was not replaced")
	}
	if _, ok := byName["TC ABDOME"]; !ok {
		t.Error("split child missing")
	}
	cranio := byName["TC CRANIO"]
	if cranio == nil {
		t.Fatal("TC CRANIO missing")
	}
	if cranio.Quantity != 1 {
		t.Errorf("quantity backfill = %v, want default 1", cranio.Quantity)
	}
	if cranio.Specialty != "Neuro" || cranio.Category != "Simples" {
		t.Errorf("catalog backfill missing: %q/%q", cranio.Specialty, cranio.Category)
	}
	if cranio.ReferencePeriod != "2025-12" {
		t.Errorf("period stamp = %q", cranio.ReferencePeriod)
	}
}

func TestPipelineRunEmptyBatch(t *testing.T) {
	jobs := newMemJobRepo()
	svc := newPipeline(&memRecordRepo{}, &memRegistryRepo{snap: pipelineSnapshot()}, jobs)

	trig, err := svc.TriggerRun(context.Background(), "lote-vazio", "2025-12", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	j := waitTerminal(t, jobs, trig.ID)
	if j.Status != job.StatusCompleted {
		t.Errorf("status = %s, want completed", j.Status)
	}
	if len(j.AppliedRules) != 0 {
		t.Errorf("applied rules = %v, want none on an empty batch", j.AppliedRules)
	}
}

func TestPipelineRunSnapshotFailure(t *testing.T) {
	records := &memRecordRepo{}
	realized := time.Now().UTC()
	_ = records.CreateMany(context.Background(), []*exam.Record{
		{SourceBatchID: "lote-reg", ClientName: "A", ExamName: "B", RealizedAt: &realized, Status: exam.StatusSigned},
	})

	jobs := newMemJobRepo()
	svc := newPipeline(records, &memRegistryRepo{err: errors.New("registry unavailable")}, jobs)

	trig, err := svc.TriggerRun(context.Background(), "lote-reg", "2025-12", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	j := waitTerminal(t, jobs, trig.ID)
	if j.Status != job.StatusFailed {
		t.Errorf("status = %s, want failed", j.Status)
	}
	if j.ErrorMessage == "" {
		t.Error("failed job carries no error message")
	}
}

func TestTriggerRunBatchBusy(t *testing.T) {
	records := &memRecordRepo{}
	realized := time.Now().UTC()
	_ = records.CreateMany(context.Background(), []*exam.Record{
		{SourceBatchID: "lote-busy", ClientName: "A", ExamName: "B", RealizedAt: &realized, Status: exam.StatusSigned},
	})

	gate := make(chan struct{})
	jobs := newMemJobRepo()
	svc := newPipeline(records, &memRegistryRepo{snap: pipelineSnapshot(), gate: gate}, jobs)

	first, err := svc.TriggerRun(context.Background(), "lote-busy", "2025-12", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.TriggerRun(context.Background(), "lote-busy", "2025-12", false); !errors.Is(err, job.ErrBatchBusy) {
		t.Errorf("concurrent trigger: err = %v, want ErrBatchBusy", err)
	}

	// A different batch is not blocked.
	if _, err := svc.TriggerRun(context.Background(), "lote-outro", "2025-12", false); err != nil {
		t.Errorf("other batch blocked: %v", err)
	}

	close(gate)
	waitTerminal(t, jobs, first.ID)

	// The batch frees up once the first run finishes; the guard is released
	// just after the terminal state lands, so allow a short settle.
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err := svc.TriggerRun(context.Background(), "lote-busy", "2025-12", false)
		if err == nil {
			break
		}
		if !errors.Is(err, job.ErrBatchBusy) || time.Now().After(deadline) {
			t.Fatalf("re-trigger after completion: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
