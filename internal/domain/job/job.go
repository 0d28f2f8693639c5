package job

import (
	"time"

	"github.com/google/uuid"
)

// State transitions:
//
//	queued → processing → completed
//	queued → processing → failed
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ProcessingJob tracks one asynchronous pipeline run. It is the only channel
// reporting progress and outcome to the caller, which polls by id after the
// trigger request returns.
type ProcessingJob struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	SourceBatchID   string `gorm:"column:arquivo_fonte;type:varchar(120);not null;index"`
	ReferencePeriod string `gorm:"column:periodo_referencia;type:varchar(7);not null"`
	Retroactive     bool   `gorm:"column:retroactive;default:false"`

	Status Status `gorm:"column:status;type:varchar(20);not null;default:'queued';index"`

	RecordsBefore int64 `gorm:"column:records_before;default:0"`
	RecordsAfter  int64 `gorm:"column:records_after;default:0"`

	// AppliedRules lists the codes of rules completed so far, in order.
	AppliedRules []string `gorm:"column:applied_rules;serializer:json"`

	Message      string `gorm:"column:message;type:text"`
	ErrorMessage string `gorm:"column:error_message;type:text"`

	StartedAt  *time.Time `gorm:"column:started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
}

func (ProcessingJob) TableName() string {
	return "pipeline.jobs"
}

func (j *ProcessingJob) CanTransitionTo(next Status) bool {
	allowed := map[Status][]Status{
		StatusQueued:     {StatusProcessing, StatusFailed},
		StatusProcessing: {StatusCompleted, StatusFailed},
		StatusCompleted:  {},
		StatusFailed:     {},
	}
	for _, s := range allowed[j.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// Start marks the job as processing.
func (j *ProcessingJob) Start() error {
	if !j.CanTransitionTo(StatusProcessing) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	j.Status = StatusProcessing
	j.StartedAt = &now
	return nil
}

// Complete finalizes a successful run.
func (j *ProcessingJob) Complete(message string) error {
	if !j.CanTransitionTo(StatusCompleted) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	j.Status = StatusCompleted
	j.Message = message
	j.FinishedAt = &now
	return nil
}

// Fail finalizes the run with an error, keeping the applied-rule list so the
// caller can see how far it got before re-triggering.
func (j *ProcessingJob) Fail(errMsg string) error {
	if !j.CanTransitionTo(StatusFailed) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	j.Status = StatusFailed
	j.ErrorMessage = errMsg
	j.FinishedAt = &now
	return nil
}

// Terminal reports whether the job has finished, either way.
func (j *ProcessingJob) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
