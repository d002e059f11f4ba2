// Package api serves the lead store over JSON HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/address"
	"github.com/sells-group/prospect-cli/internal/importer"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/scorer"
)

// Store is the persistence the API reads and writes.
type Store interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error)
	SetLeadPriority(ctx context.Context, leadID string, p model.Priority) error
	DeleteLead(ctx context.Context, leadID string) error
	AddComment(ctx context.Context, leadID, text string) (*model.Comment, error)
	ListSellers(ctx context.Context) ([]model.Seller, error)
}

// Importer persists manually entered leads through the import path.
type Importer interface {
	ImportRecord(ctx context.Context, rec address.Record, comments []string, source string) (importer.Outcome, error)
}

// Server holds the handler dependencies.
type Server struct {
	store    Store
	importer Importer
	scorer   *scorer.Scorer
	validate *validator.Validate
}

// NewServer creates a Server.
func NewServer(st Store, imp Importer, sc *scorer.Scorer) *Server {
	return &Server{
		store:    st,
		importer: imp,
		scorer:   sc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes returns the HTTP handler with CORS restricted to allowedOrigins.
func (s *Server) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/leads", func(r chi.Router) {
		r.Get("/", s.listLeads)
		r.Post("/", s.createLead)
		r.Get("/{id}", s.getLead)
		r.Delete("/{id}", s.deleteLead)
		r.Post("/{id}/comments", s.addComment)
	})
	r.Get("/sellers", s.listSellers)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
