// Package api exposes the review core over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/query"
	"github.com/sells-group/contract-review/internal/review"
	"github.com/sells-group/contract-review/internal/store"
)

// Querier is the read side used by the handlers.
type Querier interface {
	Documents(ctx context.Context, filter store.DocumentFilter) ([]model.Document, error)
	Document(ctx context.Context, id string) (*query.DocumentView, error)
	Versions(ctx context.Context, id string) ([]model.Version, error)
	Attributes(ctx context.Context, documentID string, sel query.VersionSelector) (*query.AttributesView, error)
	Export(ctx context.Context, documentID string, sel query.VersionSelector, format query.Format, w io.Writer) error
	Audit(ctx context.Context, documentID string) (*query.AuditView, error)
}

// Reviewer submits corrections.
type Reviewer interface {
	Submit(ctx context.Context, sub review.Submission) (*review.Outcome, error)
}

// Backend is the store surface the handlers touch directly.
type Backend interface {
	Ping(ctx context.Context) error
	ListPostbackLogs(ctx context.Context, filter store.PostbackFilter) ([]model.PostbackLog, error)
}

// Options configures the router.
type Options struct {
	CORSOrigins []string
	// Driver is reported by /health.
	Driver string
}

// Handler serves the review API.
type Handler struct {
	query    Querier
	reviewer Reviewer
	backend  Backend
	opts     Options
}

// NewHandler creates a Handler.
func NewHandler(q Querier, r Reviewer, b Backend, opts Options) *Handler {
	return &Handler{query: q, reviewer: r, backend: b, opts: opts}
}

// Router builds the chi router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(h.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", h.health)
	r.Route("/api/documents", func(r chi.Router) {
		r.Get("/", h.listDocuments)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getDocument)
			r.Get("/versions", h.listVersions)
			r.Get("/attributes", h.getAttributes)
			r.Get("/attributes/export", h.exportAttributes)
			r.Get("/audit", h.getAudit)
			r.Get("/postbacks", h.listPostbacks)
			r.Post("/review", h.submitReview)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("component", "api"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
