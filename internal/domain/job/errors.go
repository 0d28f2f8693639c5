package job

import "errors"

var (
	ErrJobNotFound             = errors.New("processing job not found")
	ErrInvalidStatusTransition = errors.New("invalid job status transition")
	ErrBatchBusy               = errors.New("a pipeline run is already active for this batch")
)
