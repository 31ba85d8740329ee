package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vessel-trajectory-service/internal/config"
	"vessel-trajectory-service/internal/infra/logging"
	"vessel-trajectory-service/internal/usecase"
)

type ctxKey string

const ctxKeyUserID ctxKey = "auth_user_id"

// UserID returns the authenticated user id placed in the request context by
// the auth middleware.
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserID).(string); ok {
		return v
	}
	return ""
}

type Server struct {
	jobUC  usecase.JobUseCase
	userUC usecase.UserUseCase
	auth   *AuthManager
	cfg    config.ServerConfig
	log    *zerolog.Logger
	srv    *http.Server
}

func NewServer(
	jobUC usecase.JobUseCase,
	userUC usecase.UserUseCase,
	auth *AuthManager,
	cfg config.ServerConfig,
	logger *zerolog.Logger,
) *Server {
	return &Server{jobUC: jobUC, userUC: userUC, auth: auth, cfg: cfg, log: logger}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/jobs", s.handleNewJob)
		r.Get("/jobs", s.handleUserJobs)
		r.Get("/jobs/{id}/status", s.handleJobStatus)
		r.Get("/jobs/{id}/info", s.handleJobInfo)
		r.Get("/credit", s.handleUserCredit)
		r.Get("/statistics", s.handleStatistics)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/credit/charge", s.handleChargeCredit)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("http server listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

// authenticate verifies the bearer token and resolves the claims to exactly
// one user; the resolved id rides the request context from here on.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		userID, err := s.userUC.Authenticate(r.Context(), claims)
		if err != nil {
			writeError(w, http.StatusForbidden, "authentication failed")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		ctx = logging.WithUserID(ctx, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := s.userUC.CheckAdmin(r.Context(), UserID(r.Context()))
		if err != nil || !ok {
			writeError(w, http.StatusForbidden, "not authorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
