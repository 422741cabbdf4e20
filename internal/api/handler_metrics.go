package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yu-iskw/lightdash/internal/domain"
	"github.com/yu-iskw/lightdash/internal/service/metricsexplorer"
)

// RunMetricExplorerQueryBody is the body of runMetricExplorerQuery.
type RunMetricExplorerQueryBody struct {
	Query                 domain.MetricExplorerQueryPayload `json:"query"`
	TimeDimensionOverride *domain.TimeDimensionConfig       `json:"timeDimensionOverride,omitempty"`
}

// RunMetricExplorerQuery handles
// POST /projects/{projectUuid}/metricsExplorer/{explore}/{metric}/runMetricExplorerQuery?startDate=&endDate=.
func (h *Handler) RunMetricExplorerQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	startDate, endDate := q.Get("startDate"), q.Get("endDate")
	if startDate == "" || endDate == "" {
		h.writeError(w, r, domain.ErrValidation("startDate and endDate are required"))
		return
	}

	var body RunMetricExplorerQueryBody
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	query, err := body.Query.ToQuery()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if o := body.TimeDimensionOverride; o != nil && o.Interval != "" {
		if o.Interval, err = domain.ParseTimeFrame(string(o.Interval)); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	results, err := h.explorer.RunMetricExplorerQuery(r.Context(), metricsexplorer.QueryRequest{
		ProjectUUID:           chi.URLParam(r, "projectUuid"),
		ExploreName:           chi.URLParam(r, "explore"),
		MetricName:            chi.URLParam(r, "metric"),
		StartDate:             startDate,
		EndDate:               endDate,
		Query:                 query,
		TimeDimensionOverride: body.TimeDimensionOverride,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, results)
}

// RunMetricTotal handles
// GET /projects/{projectUuid}/metricsExplorer/{explore}/{metric}/runMetricTotal?timeFrame=&comparisonType=.
func (h *Handler) RunMetricTotal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	timeFrame, err := domain.ParseTimeFrame(q.Get("timeFrame"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	comparison, err := domain.ParseMetricTotalComparisonType(q.Get("comparisonType"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	results, err := h.explorer.GetMetricTotal(r.Context(),
		chi.URLParam(r, "projectUuid"), chi.URLParam(r, "explore"), chi.URLParam(r, "metric"),
		timeFrame, comparison)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, results)
}
