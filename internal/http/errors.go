package api

import (
	"errors"
	"net/http"

	"polling-engine/internal/domain/poll"
	"polling-engine/internal/platform/apperr"
)

func errorResponse(w http.ResponseWriter, err error) {
	appErr := mapError(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		slogLogger.Error("request failed", "event", "http_error", "module", "http", "layer", "transport", "code", appErr.Code, "error", err.Error())
	}
	writeJSON(w, appErr.StatusCode(), map[string]string{
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}

func mapError(err error) *apperr.AppError {
	if err == nil {
		return apperr.Internal("internal_error", "internal server error", nil)
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, poll.ErrNotFound):
		return apperr.NotFound("poll_not_found", "poll not found", err)
	case errors.Is(err, poll.ErrTitleRequired):
		return apperr.BadRequest("invalid_input", "title is required", err)
	case errors.Is(err, poll.ErrTooFewOptions):
		return apperr.BadRequest("invalid_input", "poll must have at least 2 options", err)
	case errors.Is(err, poll.ErrInvalidDates):
		return apperr.BadRequest("invalid_dates", "ends_at must be after starts_at", err)
	case errors.Is(err, poll.ErrOptionNotInPoll):
		return apperr.BadRequest("invalid_option", "option does not belong to poll", err)
	case errors.Is(err, poll.ErrNotActive):
		return apperr.Conflict("poll_not_active", "poll is not active", err)
	case errors.Is(err, poll.ErrNotStarted):
		return apperr.Conflict("poll_not_started", "poll has not started yet", err)
	case errors.Is(err, poll.ErrConcurrentModification):
		return apperr.Conflict("concurrent_modification", "poll was modified concurrently, retry", err)
	case errors.Is(err, poll.ErrInvalidState):
		return apperr.Conflict("invalid_state", "poll is in an invalid lifecycle state", err)
	case errors.Is(err, poll.ErrStoreUnavailable):
		return apperr.Unavailable("store_unavailable", "poll store unavailable", err)
	default:
		return apperr.Internal("internal_error", http.StatusText(http.StatusInternalServerError), err)
	}
}
