package config

import (
	"errors"
)

// Sentinel kinds; Validate and Load wrap them with the offending key.
var (
	ErrInvalidConfig = errors.New("config: invalid value")
	ErrLoadConfig    = errors.New("config: load failed")
)
