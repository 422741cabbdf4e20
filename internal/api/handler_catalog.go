package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// CompileProject handles POST /projects/{projectUuid}/compile.
func (h *Handler) CompileProject(w http.ResponseWriter, r *http.Request) {
	summary, err := h.catalog.CompileProject(r.Context(), chi.URLParam(r, "projectUuid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, summary)
}

// ListExplores handles GET /projects/{projectUuid}/explores.
func (h *Handler) ListExplores(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, total, err := h.catalog.ListExplores(r.Context(), chi.URLParam(r, "projectUuid"), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.ExploreSummary{}
	}
	writeOK(w, domain.Page[domain.ExploreSummary]{
		Items:         items,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
		Total:         total,
	})
}

// GetExplore handles GET /projects/{projectUuid}/explores/{explore}.
func (h *Handler) GetExplore(w http.ResponseWriter, r *http.Request) {
	stored, err := h.catalog.GetExplore(r.Context(), chi.URLParam(r, "projectUuid"), chi.URLParam(r, "explore"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, stored)
}
