package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pantryhub/pantry-backend/internal/inventory/service"
	"github.com/pantryhub/pantry-backend/pkg/errors"
	"github.com/pantryhub/pantry-backend/pkg/httputil"
	"github.com/pantryhub/pantry-backend/pkg/tenant"
)

// Handlers groups the inventory endpoints
type Handlers struct {
	Items         *ItemHandler
	Barcodes      *BarcodeHandler
	Activity      *ActivityHandler
	Distributions *DistributionHandler
}

// Routes returns the router mounted under /api/v1/inventory. It expects
// TenantMiddleware to have run.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.Items.List)
		r.Post("/", h.Items.Create)
		r.Get("/{id}", h.Items.Get)
		r.Put("/{id}", h.Items.Update)
		r.Delete("/{id}", h.Items.Remove)
	})

	r.Get("/barcodes/{barcode}", h.Barcodes.Lookup)

	r.Get("/activity", h.Activity.Recent)
	r.Get("/impact", h.Activity.Impact)

	r.Route("/distributions", func(r chi.Router) {
		r.Get("/", h.Distributions.List)
		r.Post("/", h.Distributions.Create)
		r.Put("/{id}", h.Distributions.Update)
		r.Delete("/{id}", h.Distributions.Delete)
	})
	r.Get("/clients", h.Distributions.Clients)

	return r
}

// pantryID reads the tenant set by TenantMiddleware
func pantryID(r *http.Request) (string, error) {
	id, err := tenant.TenantID(r.Context())
	if err != nil {
		return "", errors.Forbidden("missing tenant context")
	}
	return id, nil
}

// respond writes data and lists degraded side writes in meta
func respond(w http.ResponseWriter, status int, data interface{}, warnings []service.Warning) {
	if len(warnings) == 0 {
		httputil.JSON(w, status, data)
		return
	}

	codes := make([]string, len(warnings))
	for i, warn := range warnings {
		codes[i] = warn.Code
	}
	httputil.JSONWithMeta(w, status, data, &httputil.Meta{Warnings: codes})
}

func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.Validation(map[string]string{name: "must be a number"})
	}
	return &v, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Validation(map[string]string{name: "must be an integer"})
	}
	return v, nil
}

// queryTime accepts YYYY-MM-DD or RFC 3339
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, errors.Validation(map[string]string{name: "must be an ISO date"})
}
