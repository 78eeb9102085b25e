package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/pulselabs/linkpulse/internal/metrics"
	"github.com/pulselabs/linkpulse/internal/models"
	"github.com/pulselabs/linkpulse/internal/service"
)

// LinkService defines the interface for the core link shortening business logic.
type LinkService interface {
	// CreateLink allocates a short code and persists a new link.
	// It returns the stored link or an error if allocation or persistence fails.
	CreateLink(ctx context.Context, p service.CreateLinkParams) (*models.Link, error)

	// Resolve runs one redirect request through the access gate and reports
	// the outcome. It never returns an error for deny decisions, only for
	// infrastructure failures.
	Resolve(ctx context.Context, code, password, rawIP, rawUserAgent string) (service.Outcome, error)

	// ListLinksForOwner retrieves every link registered under the owner,
	// newest first.
	ListLinksForOwner(ctx context.Context, owner string) ([]*models.Link, error)

	// GetAnalytics aggregates the recorded visit history of the link.
	// It returns an error if the link doesn't exist.
	GetAnalytics(ctx context.Context, code string) (*models.AnalyticsSummary, error)
}

// getValidate initializes a new validator instance for validating incoming request payloads.
// It customizes tag name extraction from struct fields to match JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
func NewRouter(logger *httplog.Logger, linkSvc LinkService) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", metrics.Handler)

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/links", func(r chi.Router) {
			r.Post("/", handleCreateLink(linkSvc, validate))
			r.Get("/{code}/analytics", handleGetAnalytics(linkSvc))
		})

		r.Get("/users/{owner}/links", handleListOwnerLinks(linkSvc))
	})

	// The redirect endpoint lives at the root so short links stay short.
	r.Get("/{code}", handleRedirect(linkSvc))

	return r
}
