package service

import "errors"

// Sentinel errors returned by Service.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrInvalidEvent   = errors.New("invalid event")
	ErrDuplicateEvent = errors.New("duplicate event")
	ErrQueueFull      = errors.New("event queue full")
	ErrStalePeriod    = errors.New("as-of is not after the current period")
	ErrNoSnapshot     = errors.New("snapshot source not configured")
	ErrNotCurrent     = errors.New("period is not current")
)
