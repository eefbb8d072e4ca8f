// Package server exposes the registry over HTTP. Routes live under
// /api/v1 and speak the same JSON contracts as the service layer.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/modelpark/registry/pkg/integrity"
	"github.com/modelpark/registry/pkg/registration"
	"github.com/modelpark/registry/pkg/registry"
	"github.com/modelpark/registry/pkg/search"
	"github.com/modelpark/registry/pkg/versioning"
)

// Config holds the HTTP listener settings.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"https://*", "http://*"}
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	return c
}

// Services bundles the service layer the HTTP handlers dispatch to.
type Services struct {
	Registration *registration.Service
	Search       *search.Service
	Versioning   *versioning.Service
	Integrity    *integrity.Service
	Repo         registry.Repository
	Events       registry.EventStore
}

// Server is the registry HTTP front end.
type Server struct {
	cfg    Config
	svc    Services
	router chi.Router
	http   *http.Server
	log    *slog.Logger
}

// New builds a server with its routes mounted. A nil logger falls back to
// slog.Default.
func New(cfg Config, svc Services, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	s := &Server{cfg: cfg, svc: svc, log: log}
	s.router = s.buildRouter()
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router returns the mounted routes, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.cfg.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Principal"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/assets", func(r chi.Router) {
			r.Post("/", registerHandler(s.svc.Registration))
			r.Get("/", searchHandler(s.svc.Search))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getAssetHandler(s.svc.Search))
				r.Patch("/", updateHandler(s.svc.Registration))
				r.Delete("/", deleteHandler(s.svc.Registration))
				r.Get("/dependencies", dependencyGraphHandler(s.svc.Search))
				r.Get("/dependents", dependentsHandler(s.svc.Search))
				r.Get("/events", assetEventsHandler(s.svc.Events))
				r.Post("/verify", verifyHandler(s.svc.Integrity))
				r.Post("/deprecate", deprecateHandler(s.svc.Versioning))
			})
		})

		r.Post("/checksums", checksumHandler())
		r.Get("/tags", tagsHandler(s.svc.Search))

		r.Route("/versions/{name}", func(r chi.Router) {
			r.Get("/", listVersionsHandler(s.svc.Versioning))
			r.Post("/conflict", conflictHandler(s.svc.Versioning))
			r.Get("/{version}", getByNameVersionHandler(s.svc.Search))
		})
	})

	r.Get("/healthz", s.healthHandler)
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK

	check := func(name string, err error) {
		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			return
		}
		resp.Checks[name] = "ok"
	}
	check("repository", s.svc.Repo.HealthCheck(r.Context()))
	check("events", s.svc.Events.HealthCheck(r.Context()))

	writeJSON(w, status, resp)
}
