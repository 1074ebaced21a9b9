// Package api exposes the scoring core, company analyses and alert
// administration over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/olv-group/prospect-intel/internal/alerts"
	"github.com/olv-group/prospect-intel/internal/analysis"
	"github.com/olv-group/prospect-intel/internal/config"
	"github.com/olv-group/prospect-intel/internal/guard"
	"github.com/olv-group/prospect-intel/internal/metrics"
	"github.com/olv-group/prospect-intel/internal/model"
	"github.com/olv-group/prospect-intel/internal/scorer"
)

// Route names used as rate-limit buckets and metric labels.
const (
	RouteAnalyze = "analyze"
	RouteAlerts  = "alerts"
)

// Analyzer runs and reads company analyses.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*model.Analysis, error)
	Get(ctx context.Context, raw string) (*analysis.Report, error)
}

// AlertStore is the alert administration persistence.
type AlertStore interface {
	CreateMute(ctx context.Context, m *model.AlertMute) error
	DeleteMute(ctx context.Context, id string) error
	ListActiveMutes(ctx context.Context, at time.Time) ([]model.AlertMute, error)
	ListAlertEvents(ctx context.Context, limit int) ([]model.AlertEvent, error)
}

// Sweeper runs an alert sweep on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (alerts.SweepResult, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the router. A nil Admin is enforced with no
// secret, so admin routes reject every request. A nil Limiter disables rate
// limiting. Nil Analyzer, Alerts or Sweeper leaves the routes returning 503.
type Deps struct {
	Analyzer       Analyzer
	Alerts         AlertStore
	Sweeper        Sweeper
	Health         Pinger
	Admin          *guard.Admin
	Limiter        *guard.RateLimiter
	Metrics        *metrics.Metrics
	Scorer         *scorer.Scorer
	Features       config.Features
	AllowedOrigins []string
}

type server struct {
	analyzer Analyzer
	alerts   AlertStore
	sweeper  Sweeper
	health   Pinger
	admin    *guard.Admin
	limiter  *guard.RateLimiter
	metrics  *metrics.Metrics
	scorer   *scorer.Scorer
	features config.Features
	now      func() time.Time
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	s := &server{
		analyzer: d.Analyzer,
		alerts:   d.Alerts,
		sweeper:  d.Sweeper,
		health:   d.Health,
		admin:    d.Admin,
		limiter:  d.Limiter,
		metrics:  d.Metrics,
		scorer:   d.Scorer,
		features: d.Features,
		now:      time.Now,
	}
	if s.admin == nil {
		s.admin = guard.NewAdmin(guard.AdminEnforced, "", "")
	}
	if s.scorer == nil {
		s.scorer, _ = scorer.New(scorer.DefaultWeights())
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", ClientIDHeader, s.admin.Header()},
		MaxAge:         300,
	}))
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/cnpj/normalize", s.handleNormalize)
		r.Post("/score", s.handleScore)
		r.Post("/maturity", s.handleMaturity)
		r.Post("/fit", s.handleFit)

		r.With(s.rateLimit(RouteAnalyze)).Post("/companies/analyze", s.handleAnalyze)
		r.Get("/companies/{cnpj}", s.handleGetCompany)

		r.Route("/alerts", func(r chi.Router) {
			r.Use(s.rateLimit(RouteAlerts))
			r.Use(s.requireAdmin)
			r.Get("/mutes", s.handleListMutes)
			r.Post("/mutes", s.handleCreateMute)
			r.Delete("/mutes/{id}", s.handleDeleteMute)
			r.Post("/sweep", s.handleSweep)
			r.Get("/events", s.handleListEvents)
		})
	})

	return r
}
