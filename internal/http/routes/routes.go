package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/petmatch/internal/decisions"
	appmw "github.com/briangreenhill/petmatch/internal/http/middleware"
	"github.com/briangreenhill/petmatch/internal/jobs"
	"github.com/briangreenhill/petmatch/pkg/petfinder"
)

const sessionKey = "session_id"

// AnimalSource is satisfied by *petfinder.Client
type AnimalSource interface {
	Fetch(ctx context.Context, q petfinder.Query) ([]petfinder.Record, error)
}

// Enqueuer is satisfied by *asynq.Client
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	Router    *chi.Mux
	Sess      *scs.SessionManager
	Animals   AnimalSource
	Decisions decisions.Store
	Queue     Enqueuer // nil disables /animals/warm
	Defaults  petfinder.Query
	Log       zerolog.Logger
}

type ServerOptions struct {
	Sess      *scs.SessionManager
	Animals   AnimalSource
	Decisions decisions.Store
	Queue     Enqueuer
	Defaults  petfinder.Query
	Logger    zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:    r,
		Sess:      opts.Sess,
		Animals:   opts.Animals,
		Decisions: opts.Decisions,
		Queue:     opts.Queue,
		Defaults:  opts.Defaults,
		Log:       opts.Logger,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})

	r.Get("/animals", s.handleAnimals)
	r.Post("/animals/warm", s.handleWarm)

	r.Group(func(pr chi.Router) {
		pr.Use(s.sessionToContext)
		pr.Use(appmw.RequireSession)
		pr.Get("/decisions", s.handleListDecisions)
		pr.Post("/decisions", s.handleSetDecision)
		pr.Delete("/decisions", s.handleClearDecisions)
	})

	return s
}

// Handler wraps the router with session loading
func (s *Server) Handler() http.Handler {
	return s.Sess.LoadAndSave(s.Router)
}

// sessionToContext gives every browser a session id on first contact
func (s *Server) sessionToContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(s.Sess.GetString(r.Context(), sessionKey))
		if err != nil {
			id = uuid.New()
			s.Sess.Put(r.Context(), sessionKey, id.String())
		}
		next.ServeHTTP(w, r.WithContext(appmw.WithSessionID(r.Context(), id)))
	})
}

// queryFromRequest overlays URL parameters on the default search
func (s *Server) queryFromRequest(r *http.Request) (petfinder.Query, error) {
	q := s.Defaults
	if q.Page == 0 {
		q.Page = 1
	}
	v := r.URL.Query()
	if t := v.Get("type"); t != "" {
		q.Type = t
	}
	if l := v.Get("location"); l != "" {
		q.Location = l
	}
	if st := v.Get("status"); st != "" {
		q.Status = st
	}
	for name, dst := range map[string]*int{"limit": &q.Limit, "page": &q.Page} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: %s must be an integer, got %q", petfinder.ErrInvalidQuery, name, raw)
		}
		*dst = n
	}
	return q, q.Validate()
}

func (s *Server) handleAnimals(w http.ResponseWriter, r *http.Request) {
	q, err := s.queryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.Animals.Fetch(r.Context(), q)
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "records": records})
}

func (s *Server) handleWarm(w http.ResponseWriter, r *http.Request) {
	if s.Queue == nil {
		writeError(w, http.StatusServiceUnavailable, "background queue not configured")
		return
	}
	q, err := s.queryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := jobs.NewWarmTask(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := s.Queue.EnqueueContext(r.Context(), task)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("enqueue warm task")
		writeError(w, http.StatusInternalServerError, "failed to queue warm task")
		return
	}

	hlog.FromRequest(r).Info().Str("task_id", info.ID).Str("queue", info.Queue).Msg("warm task queued")
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID})
}

type decisionRequest struct {
	AnimalID string `json:"animal_id"`
	Decision string `json:"decision"`
}

func (s *Server) handleSetDecision(w http.ResponseWriter, r *http.Request) {
	sid, _ := appmw.SessionID(r.Context())

	var req decisionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AnimalID == "" {
		writeError(w, http.StatusBadRequest, "animal_id required")
		return
	}
	d, err := decisions.ParseDecision(req.Decision)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Decisions.Set(r.Context(), sid, req.AnimalID, d); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("save decision")
		writeError(w, http.StatusInternalServerError, "could not save decision")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	sid, _ := appmw.SessionID(r.Context())

	m, err := s.Decisions.List(r.Context(), sid)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list decisions")
		writeError(w, http.StatusInternalServerError, "could not load decisions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": m,
		"buckets":   decisions.Group(m),
	})
}

func (s *Server) handleClearDecisions(w http.ResponseWriter, r *http.Request) {
	sid, _ := appmw.SessionID(r.Context())

	if err := s.Decisions.Clear(r.Context(), sid); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("clear decisions")
		writeError(w, http.StatusInternalServerError, "could not clear decisions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeFetchError maps petfinder errors onto HTTP statuses
func (s *Server) writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cfgErr   *petfinder.ConfigError
		authErr  *petfinder.AuthError
		rateErr  *petfinder.RateLimitError
		fetchErr *petfinder.FetchError
	)
	logger := hlog.FromRequest(r)

	switch {
	case errors.Is(err, petfinder.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &cfgErr):
		logger.Error().Err(err).Msg("petfinder not configured")
		writeError(w, http.StatusInternalServerError, "animal search is not configured")
	case errors.As(err, &authErr):
		logger.Error().Err(err).Msg("petfinder auth failed")
		writeError(w, http.StatusBadGateway, "animal search authentication failed")
	case errors.As(err, &rateErr):
		logger.Warn().Dur("retry_after", rateErr.RetryAfter).Msg("petfinder rate limited")
		if rateErr.RetryAfter > 0 {
			secs := int((rateErr.RetryAfter + time.Second - 1) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		writeError(w, http.StatusTooManyRequests, "animal search is rate limited, try again later")
	case errors.As(err, &fetchErr):
		logger.Error().Err(err).Msg("petfinder fetch failed")
		writeError(w, http.StatusBadGateway, "animal search failed")
	default:
		logger.Error().Err(err).Msg("fetch animals")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
