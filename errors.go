package urlguard

import (
	"errors"
)

var (
	ErrEmptyURL         = errors.New("no url provided")
	ErrInvalidURL       = errors.New("invalid url")
	ErrStatsUnavailable = errors.New("no cache statistics available yet")
)
