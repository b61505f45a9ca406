package handler

import (
	"net/http"

	"github.com/pantryhub/pantry-backend/internal/inventory/service"
	"github.com/pantryhub/pantry-backend/pkg/httputil"
	"github.com/pantryhub/pantry-backend/pkg/logger"
)

// ActivityHandler handles change log reads
type ActivityHandler struct {
	audit  *service.AuditService
	logger *logger.Logger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(audit *service.AuditService, log *logger.Logger) *ActivityHandler {
	return &ActivityHandler{
		audit:  audit,
		logger: log,
	}
}

// Recent lists the latest change log entries
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
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

	entries, err := h.audit.Recent(r.Context(), tenantID, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, &httputil.Meta{
		Total: int64(len(entries)),
		Limit: limit,
	})
}

// Impact returns impact totals for an optional from/to window
func (h *ActivityHandler) Impact(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pantryID(r)
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

	summary, err := h.audit.ImpactSummary(r.Context(), tenantID, from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}
