package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"polling-engine/internal/domain/poll"
	"polling-engine/internal/domain/vote"
	"polling-engine/internal/notify"
	jwtpkg "polling-engine/internal/platform/jwt"
)

// Lifecycle is the manual start/end surface of the lifecycle engine.
type Lifecycle interface {
	StartNow(ctx context.Context, pollID string) (*poll.Poll, error)
	EndNow(ctx context.Context, pollID string) (*poll.Poll, error)
}

type Deps struct {
	Polls        *poll.Service
	Votes        *vote.Service
	Lifecycle    Lifecycle
	JWT          *jwtpkg.Manager
	Hub          *notify.Hub
	NotifyBuffer int
	// Ready reports whether the backing store answers. Nil means always ready.
	Ready func(ctx context.Context) error
}

type Handler struct {
	pollSvc   *poll.Service
	voteSvc   *vote.Service
	lifecycle Lifecycle
	ready     func(ctx context.Context) error
}

func NewRouter(d Deps) http.Handler {
	h := &Handler{
		pollSvc:   d.Polls,
		voteSvc:   d.Votes,
		lifecycle: d.Lifecycle,
		ready:     d.Ready,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.handleReady)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	if d.Hub != nil {
		r.Get("/ws", notify.ServeWS(d.Hub, d.NotifyBuffer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(60 * time.Second))
		r.Use(AuthMiddleware(d.JWT))

		r.Post("/polls", h.handleCreatePoll)
		r.Get("/polls/{id}", h.handleGetPoll)
		r.Get("/polls/{id}/results", h.handlePollResults)
		r.With(RateLimitVotes(rate.Every(time.Minute/10), 3)).Post("/polls/{id}/vote", h.handleVote)
		r.Delete("/polls/{id}/vote", h.handleCancelVote)
		r.Post("/polls/{id}/start", h.handleStartPoll)
		r.Post("/polls/{id}/end", h.handleEndPoll)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error":   "store_unavailable",
				"message": "store not ready",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
