package repository

import "errors"

// Sentinel errors for the stores.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrPeriodExists = errors.New("period already finalized")
)
