package exam

import "errors"

var (
	ErrRecordNotFound  = errors.New("exam record not found")
	ErrInvalidPeriod   = errors.New("reference period must be YYYY-MM")
	ErrBatchIDRequired = errors.New("source batch id is required")
)
