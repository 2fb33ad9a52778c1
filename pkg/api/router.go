package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shelfd/shelfd/pkg/catalog"
	"github.com/shelfd/shelfd/pkg/service"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// The middleware stack (order matters):
//   - Request ID for request tracking
//   - Real IP extraction for proper client identification
//   - Request logging via the internal logger
//   - Panic recovery
//   - Principal extraction for the authorization oracle
//
// Routes:
//   - GET  /health, /health/ready        - probes
//   - POST /files                        - create bucket
//   - /files/{bucket}                    - bucket operations
//   - /files/{bucket}/*                  - object and multipart operations
//
// No global timeout is applied: uploads and downloads stream for as long as
// the server's read/write timeouts allow.
func NewRouter(svc *service.Service, store catalog.Store, authz service.Authorizer, cfg Config) http.Handler {
	cfg.applyDefaults()

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(principalMiddleware(cfg.JWTSecret))

	healthHandler := NewHealthHandler(store)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	bucketHandler := NewBucketHandler(svc, authz)
	objectHandler := NewObjectHandler(svc, authz)

	r.Route("/files", func(r chi.Router) {
		r.Post("/", bucketHandler.Create)

		r.Route("/{bucketID}", func(r chi.Router) {
			r.Get("/", bucketHandler.Get)
			r.Head("/", bucketHandler.Head)
			r.Put("/", bucketHandler.Update)
			r.Post("/", bucketHandler.Post)
			r.Delete("/", bucketHandler.Delete)

			r.Get("/*", objectHandler.Get)
			r.Head("/*", objectHandler.Head)
			r.Put("/*", objectHandler.Put)
			r.Post("/*", objectHandler.Post)
			r.Delete("/*", objectHandler.Delete)
		})
	})

	return r
}
