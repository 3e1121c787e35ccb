package internal

import (
	"context"
	"embed"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scheduling-api/internal/auth"
	"scheduling-api/internal/config"
	"scheduling-api/internal/handlers"
	"scheduling-api/internal/scheduling"
	"scheduling-api/internal/store"
	"scheduling-api/internal/uploads"
)

//go:embed openapi
var openapiFS embed.FS

type Server struct {
	Store      store.Store
	Service    *scheduling.Service
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Uploads    *uploads.Store

	cfg *config.Config
}

// OpenStore connects the store named by cfg.StoreDriver
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return store.NewMemory(), nil
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		st, err := store.NewPostgres(ctx, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewServer wires the scheduling service and HTTP routes over st. Extra
// options are passed to the service after the server's own.
func NewServer(cfg *config.Config, st store.Store, opts ...scheduling.Option) (*Server, error) {
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("JWT configuration validation failed: %w", err)
	}

	metrics := NewMetrics()
	svcOpts := append([]scheduling.Option{
		scheduling.WithObserver(metrics),
		scheduling.WithDefaultTimezone(cfg.DefaultTimezone),
	}, opts...)

	s := &Server{
		Store:      st,
		Service:    scheduling.NewService(st, svcOpts...),
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Metrics:    metrics,
		Uploads:    uploads.New(cfg.UploadDir),
		cfg:        cfg,
	}

	s.Router.Use(RequestLogger)
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	// Public routes
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", s.dbPing)
	s.Router.Post("/auth/register", s.registerUser)
	s.Router.Post("/auth/login", s.loginUser)
	if cfg.EnableSwagger {
		s.mountDocs(s.Router)
	}

	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		r.Use(companyScope)
		s.mountProtectedRoutes(r)
	})

	return s, nil
}

// Close releases the store
func (s *Server) Close(ctx context.Context) error {
	if s.Store != nil {
		s.Store.Close()
	}
	return nil
}

func (s *Server) dbPing(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		http.Error(w, "db: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if _, err := w.Write([]byte("db: ok")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// managers guards routes that restructure projects
var managers = auth.MustRole("admin", "manager")

// mountProtectedRoutes mounts all routes that require authentication
func (s *Server) mountProtectedRoutes(r chi.Router) {
	r.Get("/auth/profile", s.getUserProfile)

	r.Get("/updates", s.latestUpdates)
	r.Get("/states", s.refreshCompanyStates)
	r.With(auth.MustRole("admin")).Post("/postpone", s.postponeCompany)
	r.With(managers).Post("/projects/merge", s.mergeProjects)

	r.Get("/projects", s.listProjects)
	r.With(managers).Post("/projects", s.createProject)

	r.Route("/projects/{project}", func(r chi.Router) {
		r.Get("/", s.getProject)
		r.Get("/state", s.projectState)
		r.Get("/timetable", s.timetable)
		r.Get("/gantt", s.gantt)
		r.Get("/gantt.xlsx", s.ganttWorkbook)

		r.Group(func(r chi.Router) {
			r.Use(managers)
			r.Post("/postpone", s.postponeProject)
			r.Post("/objectives", s.addObjective)
			r.Put("/team", s.setTeam)
			r.Post("/team", s.addTeamMembers)
			r.Post("/roles", s.allocateRole)
			r.Put("/roles", s.changeRole)
			r.Delete("/roles", s.removeRole)
			r.Post("/funds", s.allocateFunds)
			r.Post("/dependencies", s.addProjectDependency)
			r.Post("/split", s.splitProject)
			r.Post("/clone", s.cloneProject)
			r.Post("/restore", s.restoreProject)

			importsHandler := handlers.NewImportsHandler(s.Service, s.cfg.MaxUploadBytes)
			r.Post("/tasks/import", importsHandler.UploadExcel)
		})

		r.Get("/tasks", s.listTasks)
		r.With(managers).Post("/tasks", s.createTasks)

		r.Route("/tasks/{task}", func(r chi.Router) {
			r.Get("/", s.getTask)
			r.Get("/state", s.taskState)
			r.Get("/updates", s.taskUpdates)
			r.Post("/updates", s.recordUpdate)
			r.Get("/images", s.taskImages)
			r.Post("/mark", s.markTask)

			r.Group(func(r chi.Router) {
				r.Use(managers)
				r.Post("/postpone", s.postponeTask)
				r.Post("/restore", s.restoreTask)
				r.Post("/dependencies", s.addTaskDependency)
			})
		})
	})

	r.Get("/uploads/{filename}", s.serveUpload)
}

// evaluationTime reads the optional ?at= instant, defaulting to now
func (s *Server) evaluationTime(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("at")
	if v == "" {
		return s.Service.Now(), nil
	}
	at, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: at must be RFC3339", scheduling.ErrInvalidInput)
	}
	return at, nil
}

// mountDocs serves the OpenAPI spec and Swagger UI
func (s *Server) mountDocs(mux *chi.Mux) {
	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openapiFS.ReadFile("openapi/openapi.yaml")
		if err != nil {
			http.Error(w, "Failed to read OpenAPI spec", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		if _, err := w.Write(data); err != nil {
			log.Printf("write openapi: %v", err)
		}
	})

	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<!doctype html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Scheduling API - Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css">
    <style>
        body { margin: 0; background: #f7f7f7; }
        .swagger-ui .topbar { display: none; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: '/openapi.yaml',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis],
                tryItOutEnabled: true
            });
        };
    </script>
</body>
</html>`))
	})
}
