package admin

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	logx "cronwork/pkg/logx"
)

// Handler builds the router for cfg. Exposed for tests.
func (s *Service) Handler(cfg Config) http.Handler {
	cfg = cfg.withDefaults()
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(rateLimit(rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)))
	r.Use(withAuth(cfg.Token))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Get("/runs", s.handleRuns)
		r.Post("/reload", s.handleReload)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Delete("/", s.handleRemoveTask)
				r.Post("/enable", s.handleToggle(true))
				r.Post("/disable", s.handleToggle(false))
			})
		})
	})
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, s.sched.Snapshot())
}

func (s *Service) handleListTasks(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, s.sched.ListTasks())
}

func (s *Service) handleGetTask(w http.ResponseWriter, r *http.Request) {
	info, ok := s.sched.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, r, http.StatusNotFound, "task not found")
		return
	}
	respondOK(w, r, info)
}

func (s *Service) handleRemoveTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sched.Remove(id) {
		respondError(w, r, http.StatusNotFound, "task not found")
		return
	}
	s.log.Info("task removed via admin api", logx.String("id", id))
	respondOK(w, r, map[string]string{"id": id})
}

func (s *Service) handleToggle(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		toggle := s.sched.Disable
		if enable {
			toggle = s.sched.Enable
		}
		if !toggle(id) {
			respondError(w, r, http.StatusNotFound, "task not found")
			return
		}
		info, _ := s.sched.Get(id)
		respondOK(w, r, info)
	}
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	respondOK(w, r, s.sched.GetHistory(limit))
}

func (s *Service) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, r, http.StatusNotFound, "run log disabled")
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	runs, err := s.runs.RecentRuns(ctx, limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, runs)
}

func (s *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reload == nil {
		respondError(w, r, http.StatusNotImplemented, "reload not available")
		return
	}
	if err := s.reload(r.Context()); err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondOK(w, r, s.sched.Snapshot())
}

// queryLimit parses ?limit. Missing means 0, which callers treat as default.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "limit must be an integer")
		return 0, false
	}
	return n, true
}
