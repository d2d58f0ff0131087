package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/jaescalo/property-deployer/internal/service"
	"github.com/jaescalo/property-deployer/internal/storage"
	"github.com/jaescalo/property-deployer/internal/validation"
)

// DeploymentHandler handles deployment endpoints.
type DeploymentHandler struct {
	store       storage.Storage
	deployments *service.DeploymentService
}

// NewDeploymentHandler creates a new DeploymentHandler.
func NewDeploymentHandler(store storage.Storage, deployments *service.DeploymentService) *DeploymentHandler {
	return &DeploymentHandler{store: store, deployments: deployments}
}

// Create submits a deployment. The run executes in the background;
// callers poll the returned record by id until it reaches a final status.
func (h *DeploymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.DeploymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if errs := validation.ValidateDeploymentRequest(&req); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	dep, err := h.deployments.Submit(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, dep)
}

// Get returns one deployment record.
func (h *DeploymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	dep, err := h.deployments.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dep)
}

// List lists deployment records, newest first. Supports limit/offset and
// an optional property filter.
func (h *DeploymentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var (
		deps []*domain.Deployment
		err  error
	)
	if name := r.URL.Query().Get("property"); name != "" {
		deps, err = h.store.ListDeploymentsForProperty(r.Context(), name, limit, offset)
	} else {
		deps, err = h.deployments.List(r.Context(), limit, offset)
	}
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, deps)
}
