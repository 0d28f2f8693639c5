package billing

import "errors"

var (
	ErrPriceNotFound         = errors.New("no price table entry matches the exam")
	ErrDemonstrativoNotFound = errors.New("demonstrativo not found")
	ErrPeriodRequired        = errors.New("reference period is required")
)
