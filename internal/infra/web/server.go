package web

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/usecase"
)

type Server struct {
	jobUC     usecase.JobUseCase
	sessionUC usecase.SessionUseCase
	statsUC   usecase.StatsUseCase
	staging   adapter.StagingStore
	apiKey    string
	auth      *AuthManager
	log       *zerolog.Logger
}

func NewServer(
	jobUC usecase.JobUseCase,
	sessionUC usecase.SessionUseCase,
	statsUC usecase.StatsUseCase,
	staging adapter.StagingStore,
	apiKey string,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{
		jobUC:     jobUC,
		sessionUC: sessionUC,
		statsUC:   statsUC,
		staging:   staging,
		apiKey:    apiKey,
		auth:      auth,
		log:       &srvLog,
	}
}

// RegisterRoutes sets up the routing for the admin API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/login", s.loginHandler)
	mux.HandleFunc("/api/v1/logout", s.logoutHandler)

	mux.Handle("/api/v1/stats", s.authMiddleware(statsHandler(s.statsUC)))
	mux.Handle("/api/v1/jobs/", s.authMiddleware(jobGetHandler(s.jobUC)))
	mux.Handle("/api/v1/staging/cleanup", s.authMiddleware(stagingCleanupHandler(s.staging)))

	sessionsRouter := s.authMiddleware(s.sessionsRouter())
	mux.Handle("/api/v1/sessions", sessionsRouter)
	mux.Handle("/api/v1/sessions/", sessionsRouter)

	mux.Handle("/metrics", promhttp.Handler())
}

// authMiddleware admits requests carrying a valid admin JWT, minted by the
// login endpoint against the configured API key.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionsRouter dispatches /api/v1/sessions and /api/v1/sessions/{id}.
func (s *Server) sessionsRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions")
		path = strings.Trim(path, "/")

		if path == "" {
			switch r.Method {
			case http.MethodGet:
				sessionsListHandler(s.sessionUC)(w, r)
			case http.MethodPost:
				sessionSubmitHandler(s.sessionUC)(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		switch r.Method {
		case http.MethodDelete:
			sessionRevokeHandler(s.sessionUC, path)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
