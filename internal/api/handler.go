// Package api provides the HTTP handlers of the semantic layer REST API.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yu-iskw/lightdash/internal/domain"
	"github.com/yu-iskw/lightdash/internal/service/metricsexplorer"
)

// CatalogService compiles projects and serves their explores.
type CatalogService interface {
	CompileProject(ctx context.Context, projectUUID string) (*domain.CompileSummary, error)
	ListExplores(ctx context.Context, projectUUID string, page domain.PageRequest) ([]domain.ExploreSummary, int64, error)
	GetExplore(ctx context.Context, projectUUID, name string) (*domain.StoredExplore, error)
}

// MetricsExplorer runs metrics-explorer and metric-total queries.
type MetricsExplorer interface {
	RunMetricExplorerQuery(ctx context.Context, req metricsexplorer.QueryRequest) (*domain.MetricsExplorerQueryResults, error)
	GetMetricTotal(ctx context.Context, projectUUID, exploreName, metricName string, timeFrame domain.TimeFrame, comparison domain.MetricTotalComparisonType) (*domain.MetricTotalResults, error)
}

// Handler serves the /v1 API.
type Handler struct {
	catalog  CatalogService
	explorer MetricsExplorer
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(catalog CatalogService, explorer MetricsExplorer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{catalog: catalog, explorer: explorer, logger: logger}
}

// Mount registers the API routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/projects/{projectUuid}", func(r chi.Router) {
		r.Post("/compile", h.CompileProject)
		r.Get("/explores", h.ListExplores)
		r.Get("/explores/{explore}", h.GetExplore)
		r.Route("/metricsExplorer/{explore}/{metric}", func(r chi.Router) {
			r.Post("/runMetricExplorerQuery", h.RunMetricExplorerQuery)
			r.Get("/runMetricTotal", h.RunMetricTotal)
		})
	})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
