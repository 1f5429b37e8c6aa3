package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/assessment/internal/metrics"
	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/session"
)

// sessionRegistry holds live sessions. The least recently used session is
// evicted once the registry is full.
type sessionRegistry struct {
	cache *lru.Cache[string, *session.Controller]
}

func newSessionRegistry(size int, m *metrics.Metrics) (*sessionRegistry, error) {
	cache, err := lru.NewWithEvict(size, func(id string, c *session.Controller) {
		if !c.Snapshot().Complete {
			m.SessionAbandoned()
			zap.L().Info("serve: evicted incomplete session", zap.String("conversation_id", id))
		}
	})
	if err != nil {
		return nil, eris.Wrap(err, "serve: session registry")
	}
	return &sessionRegistry{cache: cache}, nil
}

func (r *sessionRegistry) add(c *session.Controller) {
	r.cache.Add(c.ID(), c)
}

func (r *sessionRegistry) get(id string) (*session.Controller, bool) {
	return r.cache.Get(id)
}

func (r *sessionRegistry) len() int {
	return r.cache.Len()
}

// sessionAPI serves the assessment over JSON.
type sessionAPI struct {
	newController func() *session.Controller
	sessions      *sessionRegistry
}

// buildRouter assembles the HTTP routes. gatherer backs /metrics.
func buildRouter(api *sessionAPI, origins []string, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": api.sessions.len()})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", api.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", api.get)
			r.Post("/answers", api.answer)
			r.Post("/next", api.next)
			r.Post("/back", api.back)
			r.Post("/evaluation", api.evaluate)
			r.Get("/insights", api.insights)
		})
	})
	return r
}

type createRequest struct {
	UserID     string `json:"user_id"`
	Position   string `json:"position"`
	Role       string `json:"role"`
	TeamSize   any    `json:"team_size"`
	Motivation string `json:"motivation"`
}

type questionResponse struct {
	Question *model.Question  `json:"question"`
	Session  session.Snapshot `json:"session"`
}

func (a *sessionAPI) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	teamSize := ""
	if req.TeamSize != nil {
		teamSize = fmt.Sprint(req.TeamSize)
	}
	profile, err := model.ParseProfile(req.Position, req.Role, teamSize, req.Motivation)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	profile.UserID = strings.TrimSpace(req.UserID)

	ctrl := a.newController()
	q, err := ctrl.Start(r.Context(), profile)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	a.sessions.add(ctrl)
	writeJSON(w, http.StatusCreated, questionResponse{Question: &q, Session: ctrl.Snapshot()})
}

func (a *sessionAPI) lookup(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	id := chi.URLParam(r, "id")
	ctrl, ok := a.sessions.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return ctrl, ok
}

func (a *sessionAPI) get(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (a *sessionAPI) answer(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var answer model.Answer
	if err := json.NewDecoder(r.Body).Decode(&answer); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next, err := ctrl.RecordAnswer(r.Context(), answer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{Question: next, Session: ctrl.Snapshot()})
}

// next shows the current question, or produces one after an answer whose
// write failed.
func (a *sessionAPI) next(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.lookup(w, r)
	if !ok {
		return
	}
	q, err := ctrl.RequestNextQuestion(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{Question: &q, Session: ctrl.Snapshot()})
}

func (a *sessionAPI) back(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.lookup(w, r)
	if !ok {
		return
	}
	q, err := ctrl.GoBack(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{Question: &q, Session: ctrl.Snapshot()})
}

func (a *sessionAPI) evaluate(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.lookup(w, r)
	if !ok {
		return
	}
	res, err := ctrl.Evaluate(r.Context())
	if err != nil && !errors.Is(err, model.ErrPersistence) {
		writeServiceError(w, err)
		return
	}
	if err != nil {
		// Scoring succeeded; only persistence failed. A retry saves the
		// cached result.
		zap.L().Error("serve: persist evaluation",
			zap.String("conversation_id", ctrl.ID()),
			zap.Error(err),
		)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":      "evaluation could not be saved, retry to save it",
			"evaluation": res,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *sessionAPI) insights(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Insights())
}

// writeServiceError maps session errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var pie *model.ProfileIncompleteError
	switch {
	case errors.As(err, &pie):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": pie.Error(), "missing": pie.Missing})
	case errors.Is(err, model.ErrInvalidAnswer):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, model.ErrSubmissionPending),
		errors.Is(err, model.ErrSessionAlreadyComplete),
		errors.Is(err, model.ErrSessionIncomplete),
		errors.Is(err, model.ErrNothingToUndo),
		errors.Is(err, model.ErrNoActiveQuestion),
		errors.Is(err, model.ErrSessionStarted),
		errors.Is(err, model.ErrSessionNotStarted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrPersistence):
		zap.L().Error("serve: persist session state", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "answer recorded but not saved, request the next question to continue")
	default:
		zap.L().Error("serve: request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
