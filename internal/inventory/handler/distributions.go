package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/internal/inventory/service"
	"github.com/pantryhub/pantry-backend/pkg/httputil"
	"github.com/pantryhub/pantry-backend/pkg/logger"
)

// DistributionHandler handles the client distribution ledger
type DistributionHandler struct {
	reconciler    *service.Reconciler
	distributions *service.DistributionService
	logger        *logger.Logger
}

// NewDistributionHandler creates a new distribution handler
func NewDistributionHandler(reconciler *service.Reconciler, distributions *service.DistributionService, log *logger.Logger) *DistributionHandler {
	return &DistributionHandler{
		reconciler:    reconciler,
		distributions: distributions,
		logger:        log,
	}
}

// List lists distributions. Supports clientName, clientId, reason, from, to
// and limit.
func (h *DistributionHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pantryID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	q := r.URL.Query()
	records, err := h.distributions.List(r.Context(), tenantID, repository.DistributionFilter{
		ClientName: q.Get("clientName"),
		ClientID:   q.Get("clientId"),
		Reason:     q.Get("reason"),
		From:       from,
		To:         to,
		Limit:      limit,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, records, &httputil.Meta{
		Total: int64(len(records)),
		Limit: limit,
	})
}

// Create logs a distribution without touching batch quantities
func (h *DistributionHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pantryID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.DistributionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.reconciler.LogDistribution(r.Context(), tenantID, req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	respond(w, http.StatusCreated, result, result.Warnings)
}

// Update replaces a distribution record
func (h *DistributionHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pantryID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.DistributionUpdate
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	record, err := h.distributions.Update(r.Context(), tenantID, chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, record)
}

// Delete deletes a distribution record
func (h *DistributionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pantryID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.distributions.Delete(r.Context(), tenantID, chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Clients lists named recipients
func (h *DistributionHandler) Clients(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pantryID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	clients, err := h.distributions.Clients(r.Context(), tenantID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, clients, &httputil.Meta{Total: int64(len(clients))})
}
