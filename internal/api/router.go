package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jaescalo/property-deployer/internal/api/handler"
	"github.com/jaescalo/property-deployer/internal/api/middleware"
	"github.com/jaescalo/property-deployer/internal/service"
	"github.com/jaescalo/property-deployer/internal/storage"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(
	store storage.Storage,
	deployments *service.DeploymentService,
	resolver *service.Resolver,
	bootstrapKey string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes (auth required, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(store, bootstrapKey))

		// API Keys
		keyHandler := handler.NewAPIKeyHandler(store)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{id}", keyHandler.Delete)

		// Deployments
		deploymentHandler := handler.NewDeploymentHandler(store, deployments)
		r.Post("/deployments", deploymentHandler.Create)
		r.Get("/deployments", deploymentHandler.List)
		r.Get("/deployments/{id}", deploymentHandler.Get)

		// Properties (live resolution against the remote system)
		propertyHandler := handler.NewPropertyHandler(resolver)
		r.Get("/properties/{name}", propertyHandler.Get)
	})

	return r
}
