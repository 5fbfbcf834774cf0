package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"polling-engine/internal/domain/poll"
	"polling-engine/internal/platform/apperr"
)

type createOptionRequest struct {
	Title    string `json:"title"`
	ImageRef string `json:"image_ref"`
}

type createPollRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	StartsAt    *time.Time            `json:"starts_at"`
	EndsAt      time.Time             `json:"ends_at"`
	Options     []createOptionRequest `json:"options"`
}

type pollResponse struct {
	Poll    *poll.Poll    `json:"poll"`
	Options []poll.Option `json:"options"`
}

// @Summary     Create a poll
// @Tags        polls
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       request  body      createPollRequest  true  "Poll payload"
// @Success     201      {object}  pollResponse
// @Failure     400      {object}  map[string]string  "invalid body"
// @Failure     401      {object}  map[string]string  "unauthorized"
// @Failure     503      {object}  map[string]string  "store unavailable"
// @Router      /api/v1/polls [post]
func (h *Handler) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	p := &poll.Poll{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		OwnerID:     userIDFromCtx(r),
		EndsAt:      req.EndsAt.UTC(),
	}
	if req.StartsAt != nil {
		p.StartsAt = req.StartsAt.UTC()
	}

	opts := make([]poll.Option, 0, len(req.Options))
	for _, o := range req.Options {
		title := strings.TrimSpace(o.Title)
		if title == "" {
			errorResponse(w, apperr.BadRequest("invalid_input", "option title is required", nil))
			return
		}
		opts = append(opts, poll.Option{Title: title, ImageRef: o.ImageRef})
	}

	if err := h.pollSvc.Create(r.Context(), p, opts); err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, pollResponse{Poll: p, Options: opts})
}

// @Summary     Get a poll with its options
// @Tags        polls
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Poll ID"
// @Success     200  {object}  pollResponse
// @Failure     401  {object}  map[string]string  "unauthorized"
// @Failure     404  {object}  map[string]string  "not found"
// @Router      /api/v1/polls/{id} [get]
func (h *Handler) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	p, opts, err := h.pollSvc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pollResponse{Poll: p, Options: opts})
}

// @Summary     Start a poll now
// @Description Activates a pending poll ahead of its start time. Owner or admin only.
// @Tags        polls
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Poll ID"
// @Success     200  {object}  poll.Poll
// @Failure     403  {object}  map[string]string  "not the owner"
// @Failure     404  {object}  map[string]string  "not found"
// @Router      /api/v1/polls/{id}/start [post]
func (h *Handler) handleStartPoll(w http.ResponseWriter, r *http.Request) {
	h.manualTransition(w, r, h.lifecycle.StartNow)
}

// @Summary     End a poll now
// @Description Ends an active poll ahead of its end time and tallies it. Owner or admin only.
// @Tags        polls
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Poll ID"
// @Success     200  {object}  poll.Poll
// @Failure     403  {object}  map[string]string  "not the owner"
// @Failure     404  {object}  map[string]string  "not found"
// @Failure     409  {object}  map[string]string  "poll has not started"
// @Router      /api/v1/polls/{id}/end [post]
func (h *Handler) handleEndPoll(w http.ResponseWriter, r *http.Request) {
	h.manualTransition(w, r, h.lifecycle.EndNow)
}

func (h *Handler) manualTransition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id string) (*poll.Poll, error)) {
	id := chi.URLParam(r, "id")
	p, _, err := h.pollSvc.Get(r.Context(), id)
	if err != nil {
		errorResponse(w, err)
		return
	}
	if p.OwnerID != userIDFromCtx(r) && roleFromCtx(r) != "admin" {
		errorResponse(w, apperr.Forbidden("forbidden", "only the poll owner can do this", nil))
		return
	}

	updated, err := apply(r.Context(), id)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
