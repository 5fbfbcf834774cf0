package poll

import "errors"

var (
	ErrNotFound               = errors.New("poll not found")
	ErrConcurrentModification = errors.New("poll modified concurrently")
	ErrStoreUnavailable       = errors.New("poll store unavailable")
	ErrInvalidState           = errors.New("poll in invalid state")

	ErrTitleRequired   = errors.New("title required")
	ErrTooFewOptions   = errors.New("poll must have at least 2 options")
	ErrInvalidDates    = errors.New("ends_at must be after starts_at")
	ErrNotActive       = errors.New("poll is not active")
	ErrNotStarted      = errors.New("poll has not started")
	ErrOptionNotInPoll = errors.New("option does not belong to poll")
)
