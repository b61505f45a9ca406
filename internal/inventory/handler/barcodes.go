package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pantryhub/pantry-backend/internal/inventory/service"
	"github.com/pantryhub/pantry-backend/pkg/httputil"
	"github.com/pantryhub/pantry-backend/pkg/logger"
)

// BarcodeHandler handles barcode lookups
type BarcodeHandler struct {
	service *service.BarcodeService
	logger  *logger.Logger
}

// NewBarcodeHandler creates a new barcode handler
func NewBarcodeHandler(svc *service.BarcodeService, log *logger.Logger) *BarcodeHandler {
	return &BarcodeHandler{
		service: svc,
		logger:  log,
	}
}

// Lookup returns cached or live metadata for a barcode. A miss is a 200 with
// found=false.
func (h *BarcodeHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pantryID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lookup, err := h.service.Lookup(r.Context(), tenantID, chi.URLParam(r, "barcode"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lookup)
}
