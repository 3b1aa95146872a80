package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/service/metrics"
	"github.com/secmon-lab/proteus/pkg/usecase"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
	"github.com/secmon-lab/proteus/pkg/utils/safe"
)

type Server struct {
	router             *chi.Mux
	useCases           *usecase.UseCases
	metrics            *metrics.Metrics
	slackSigningSecret string
	redirectURI        string
}

type Options func(*Server)

// WithSlackSigningSecret enables signature verification on /hooks/slack/*
func WithSlackSigningSecret(secret string) Options {
	return func(s *Server) {
		s.slackSigningSecret = secret
	}
}

// WithMetrics exposes /metrics and records request metrics
func WithMetrics(m *metrics.Metrics) Options {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRedirectURI sets the OAuth redirect URI sent to Slack
func WithRedirectURI(uri string) Options {
	return func(s *Server) {
		s.redirectURI = uri
	}
}

func New(uc *usecase.UseCases, opts ...Options) (*Server, error) {
	if uc == nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "use cases are required for HTTP server")
	}

	r := chi.NewRouter()

	s := &Server{
		router:   r,
		useCases: uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	if s.metrics != nil {
		r.Use(metricsMiddleware(s.metrics))
	}
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthzHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/hooks/slack", func(r chi.Router) {
		if s.slackSigningSecret != "" {
			r.Use(SlackSignatureMiddleware(s.slackSigningSecret))
		} else {
			logging.Default().Warn("slack signing secret is not set, webhook signatures are not verified")
		}

		r.Post("/event", slackEventHandler(uc.HomeTab))
		r.Post("/interaction", slackInteractionHandler(uc.Interaction))
	})

	r.Route("/auth/slack", func(r chi.Router) {
		r.Get("/install", installHandler(uc.Install, s.redirectURI))
		r.Get("/callback", installCallbackHandler(uc.Install, s.redirectURI))
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	safe.Write(r.Context(), w, []byte("ok"))
}
