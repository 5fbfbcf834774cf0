package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"polling-engine/internal/domain/vote"
	"polling-engine/internal/platform/apperr"
)

type voteRequest struct {
	OptionID string `json:"option_id"`
}

type pollResultsResponse struct {
	PollID      string        `json:"poll_id"`
	TotalVoters int64         `json:"total_voters"`
	Options     []vote.Result `json:"options"`
}

// @Summary     Vote for an option
// @Description Casts the caller's vote, replacing any earlier vote in the same poll.
// @Tags        votes
// @Security    BearerAuth
// @Accept      json
// @Param       id       path      string       true  "Poll ID"
// @Param       request  body      voteRequest  true  "Vote payload"
// @Success     204
// @Failure     400      {object}  map[string]string  "invalid body or option"
// @Failure     401      {object}  map[string]string  "unauthorized"
// @Failure     404      {object}  map[string]string  "not found"
// @Failure     409      {object}  map[string]string  "poll not active"
// @Failure     429      {object}  map[string]string  "rate limited"
// @Router      /api/v1/polls/{id}/vote [post]
func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	req.OptionID = strings.TrimSpace(req.OptionID)
	if req.OptionID == "" {
		errorResponse(w, apperr.BadRequest("invalid_input", "option_id is required", nil))
		return
	}

	if err := h.voteSvc.Vote(r.Context(), chi.URLParam(r, "id"), req.OptionID, userIDFromCtx(r)); err != nil {
		errorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary     Withdraw the caller's vote
// @Tags        votes
// @Security    BearerAuth
// @Param       id   path  string  true  "Poll ID"
// @Success     204
// @Failure     401  {object}  map[string]string  "unauthorized"
// @Failure     404  {object}  map[string]string  "not found"
// @Failure     409  {object}  map[string]string  "poll not active"
// @Router      /api/v1/polls/{id}/vote [delete]
func (h *Handler) handleCancelVote(w http.ResponseWriter, r *http.Request) {
	if err := h.voteSvc.Cancel(r.Context(), chi.URLParam(r, "id"), userIDFromCtx(r)); err != nil {
		errorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary     Poll results
// @Tags        polls
// @Security    BearerAuth
// @Produce     json
// @Param       id   path     string  true  "Poll ID"
// @Success     200  {object} pollResultsResponse
// @Failure     401  {object}  map[string]string  "unauthorized"
// @Failure     404  {object}  map[string]string  "not found"
// @Failure     503  {object}  map[string]string  "store unavailable"
// @Router      /api/v1/polls/{id}/results [get]
func (h *Handler) handlePollResults(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")
	res, total, err := h.voteSvc.Results(r.Context(), pollID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pollResultsResponse{
		PollID:      pollID,
		TotalVoters: total,
		Options:     res,
	})
}
