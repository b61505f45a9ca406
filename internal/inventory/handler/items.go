package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/internal/inventory/service"
	"github.com/pantryhub/pantry-backend/pkg/httputil"
	"github.com/pantryhub/pantry-backend/pkg/logger"
)

// ItemHandler handles stock batch endpoints
type ItemHandler struct {
	reconciler *service.Reconciler
	inventory  *service.InventoryService
	logger     *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(reconciler *service.Reconciler, inventory *service.InventoryService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		reconciler: reconciler,
		inventory:  inventory,
		logger:     log,
	}
}

// List lists batches. Supports category, search, expiringWithinDays and limit.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
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
	days, err := queryInt(r, "expiringWithinDays")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filter := repository.BatchFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
		Limit:    limit,
	}
	if days > 0 {
		before := time.Now().UTC().AddDate(0, 0, days)
		filter.ExpiringBefore = &before
	}

	batches, err := h.inventory.ListBatches(r.Context(), tenantID, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, batches, &httputil.Meta{
		Total: int64(len(batches)),
		Limit: limit,
	})
}

// Get gets a batch by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pantryID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.inventory.GetBatch(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Create receives stock. Returns 201 for a new batch and 200 when the
// quantity merged into an existing lot.
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pantryID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.AddRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.reconciler.Add(r.Context(), tenantID, req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	status := http.StatusCreated
	if result.Merged {
		status = http.StatusOK
	}
	respond(w, status, result, result.Warnings)
}

// Update edits a batch
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pantryID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.reconciler.Update(r.Context(), tenantID, chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	respond(w, http.StatusOK, result, result.Warnings)
}

// Remove takes stock out of a batch. Parameters come from the query string:
// quantity, unit, reason, recipientName, recipientId, familySize.
func (h *ItemHandler) Remove(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pantryID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	quantity, err := queryFloat(r, "quantity")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	familySize, err := queryInt(r, "familySize")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	q := r.URL.Query()
	req := service.RemoveRequest{
		Quantity:      quantity,
		Unit:          q.Get("unit"),
		Reason:        q.Get("reason"),
		RecipientName: q.Get("recipientName"),
		RecipientID:   q.Get("recipientId"),
		FamilySize:    familySize,
	}

	result, err := h.reconciler.Remove(r.Context(), tenantID, chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	respond(w, http.StatusOK, result, result.Warnings)
}
