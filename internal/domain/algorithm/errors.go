package algorithm

import "errors"

// Sentinel kinds for configuration defects. All of them are raised at
// registration time, before any tool is scored.
var (
	ErrInvalidVersion = errors.New("invalid algorithm version")
	ErrWeightSum      = errors.New("weights must sum to 1.0")
	ErrUnknownFactor  = errors.New("unknown factor")
	ErrVersionExists  = errors.New("algorithm version already registered")
	ErrUnknownVersion = errors.New("unknown algorithm version")
)
