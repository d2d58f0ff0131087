package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jaescalo/property-deployer/internal/service"
)

// PropertyHandler handles property lookup endpoints.
type PropertyHandler struct {
	resolver *service.Resolver
}

// NewPropertyHandler creates a new PropertyHandler.
func NewPropertyHandler(resolver *service.Resolver) *PropertyHandler {
	return &PropertyHandler{resolver: resolver}
}

// Get resolves a property name against the remote system and returns its
// id and current production version. Always resolved live, never cached.
func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	summary, err := h.resolver.Resolve(r.Context(), name)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
