package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/errors"
	"github.com/pantryhub/pantry-backend/pkg/logger"
)

// quantityEpsilon absorbs float noise from unit conversion when deciding
// whether a removal empties a batch.
const quantityEpsilon = 1e-9

// PlanLimiter reports how many distinct barcodes a pantry may track
type PlanLimiter interface {
	MaxItems(ctx context.Context, tenantID string) (int, error)
}

// Reconciler is the single write path for the inventory ledger. Every
// mutation goes through it so merging, valuation and audit stay consistent.
type Reconciler struct {
	stores    Stores
	plans     PlanLimiter
	impact    *ImpactCalculator
	publisher EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewReconciler creates a new reconciliation pipeline
func NewReconciler(
	stores Stores,
	plans PlanLimiter,
	impact *ImpactCalculator,
	publisher EventPublisher,
	log *logger.Logger,
) *Reconciler {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{
		stores:    stores,
		plans:     plans,
		impact:    impact,
		publisher: publisher,
		logger:    log.WithComponent("reconciler"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Add receives stock. An existing batch for the same barcode and expiration
// absorbs the quantity; otherwise a new batch is created subject to the
// pantry's plan limit.
func (r *Reconciler) Add(ctx context.Context, tenantID string, req AddRequest) (*AddResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	expiration, err := parseDate("expirationDate", req.ExpirationDate)
	if err != nil {
		return nil, err
	}

	barcode := strings.TrimSpace(req.Barcode)
	if barcode == "" {
		barcode = fmt.Sprintf("AUTO-%d-%s", r.now().UnixNano(), uuid.NewString())
	}
	location := strings.TrimSpace(req.StorageLocation)
	if location == "" {
		location = repository.DefaultStorageLocation
	}

	incoming := &repository.StockBatch{
		TenantID:        tenantID,
		Name:            strings.TrimSpace(req.Name),
		Category:        strings.TrimSpace(req.Category),
		Quantity:        req.Quantity,
		Unit:            unitOrDefault(req.Unit),
		Barcode:         barcode,
		ExpirationDate:  expiration,
		StorageLocation: location,
	}

	// One retry covers a lot created or deleted between lookup and write.
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := r.stores.Batches.FindLot(ctx, tenantID, barcode, expiration)
		switch {
		case err == nil:
			result, err := r.merge(ctx, existing, incoming)
			if errors.Is(err, errors.ErrNotFound) && attempt == 0 {
				continue
			}
			return result, err
		case !errors.Is(err, errors.ErrNotFound):
			return nil, err
		}

		result, err := r.create(ctx, incoming)
		if errors.Is(err, errors.ErrConflict) && attempt == 0 {
			continue
		}
		return result, err
	}
	return nil, errors.Conflict("batch was modified concurrently")
}

func (r *Reconciler) merge(ctx context.Context, existing, incoming *repository.StockBatch) (*AddResult, error) {
	delta, ok := r.impact.Convert(incoming.Quantity, incoming.Unit, existing.Unit)
	if !ok {
		return nil, errors.Validation(map[string]string{
			"unit": "must be convertible to the existing batch unit " + existing.Unit,
		})
	}

	batch, err := r.stores.Batches.Increment(ctx, existing.TenantID, existing.ID, delta)
	if err != nil {
		return nil, err
	}

	now := r.now()
	result := &AddResult{Batch: batch, Merged: true}
	previous := batch.Quantity - delta
	entry := r.newEntry(batch, repository.ActionAdded, delta, now)
	entry.PreviousQuantity = float(previous)
	entry.NewQuantity = float(batch.Quantity)
	// A quantity change marks the entry as a merge; creations carry none.
	entry.Changes = repository.Changes{
		"quantity": {Old: formatQuantity(previous), New: formatQuantity(batch.Quantity)},
	}
	entry.ImpactMetrics = r.impact.Metrics(repository.ActionAdded, delta, batch.Unit, false, 0, batch.ExpirationDate, now)
	result.Entry = r.appendEntry(ctx, entry, &result.Warnings)

	r.publisher.BatchAdded(ctx, batch, delta, true)
	return result, nil
}

func (r *Reconciler) create(ctx context.Context, batch *repository.StockBatch) (*AddResult, error) {
	if err := r.checkPlanLimit(ctx, batch.TenantID, batch.Barcode); err != nil {
		return nil, err
	}

	created := *batch
	if err := r.stores.Batches.Insert(ctx, &created); err != nil {
		return nil, err
	}

	now := r.now()
	result := &AddResult{Batch: &created}

	if err := r.stores.Barcodes.Upsert(ctx, cacheEntry(&created)); err != nil {
		r.warn(&result.Warnings, WarningBarcodeCacheWriteFailed, "barcode cache was not updated", err, &created)
	}

	entry := r.newEntry(&created, repository.ActionAdded, created.Quantity, now)
	entry.PreviousQuantity = float(0)
	entry.NewQuantity = float(created.Quantity)
	entry.ImpactMetrics = r.impact.Metrics(repository.ActionAdded, created.Quantity, created.Unit, false, 0, created.ExpirationDate, now)
	result.Entry = r.appendEntry(ctx, entry, &result.Warnings)

	r.publisher.BatchAdded(ctx, &created, created.Quantity, false)
	return result, nil
}

// checkPlanLimit gates brand-new distinct barcodes. Barcodes the pantry
// already knows never count against the limit.
func (r *Reconciler) checkPlanLimit(ctx context.Context, tenantID, barcode string) error {
	if _, err := r.stores.Barcodes.Get(ctx, tenantID, barcode); err == nil {
		return nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return err
	}

	known, err := r.stores.Batches.HasBarcode(ctx, tenantID, barcode)
	if err != nil {
		return err
	}
	if known {
		return nil
	}

	limit, err := r.plans.MaxItems(ctx, tenantID)
	if err != nil {
		return err
	}
	if limit >= UnlimitedItems {
		return nil
	}

	count, err := r.stores.Barcodes.Count(ctx, tenantID)
	if err != nil {
		return err
	}
	if count >= limit {
		return errors.PlanLimitExceeded(limit)
	}
	return nil
}

// Update applies a partial edit. Nothing is logged when the edit changes no
// field.
func (r *Reconciler) Update(ctx context.Context, tenantID, batchID string, req UpdateRequest) (*UpdateResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	var expiration *time.Time
	if req.ExpirationDate != nil {
		var err error
		if expiration, err = parseDate("expirationDate", *req.ExpirationDate); err != nil {
			return nil, err
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		current, err := r.stores.Batches.Get(ctx, tenantID, batchID)
		if err != nil {
			return nil, err
		}

		next := applyPatch(current, req, expiration)
		changes := diffBatches(current, next)
		if len(changes) == 0 {
			return &UpdateResult{Batch: current}, nil
		}
		if _, ok := changes["barcode"]; ok {
			if err := r.checkPlanLimit(ctx, tenantID, next.Barcode); err != nil {
				return nil, err
			}
		}

		err = r.stores.Batches.UpdateIfVersion(ctx, next)
		if errors.Is(err, repository.ErrStaleVersion) && attempt == 0 {
			r.logger.Debug().Str("batch_id", batchID).Msg("batch changed during update, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		return r.recordUpdate(ctx, current, next, changes), nil
	}
	return nil, repository.StaleVersion()
}

func (r *Reconciler) recordUpdate(ctx context.Context, before, after *repository.StockBatch, changes repository.Changes) *UpdateResult {
	now := r.now()
	result := &UpdateResult{Batch: after, Changes: changes}

	if _, ok := changes["barcode"]; ok {
		r.rekeyBarcode(ctx, before, after, &result.Warnings)
	} else if metadataChanged(changes) {
		r.refreshBarcode(ctx, after, &result.Warnings)
	}

	delta := math.Abs(after.Quantity - before.Quantity)
	entry := r.newEntry(after, repository.ActionUpdated, delta, now)
	entry.Changes = changes
	if _, ok := changes["quantity"]; ok {
		entry.PreviousQuantity = float(before.Quantity)
		entry.NewQuantity = float(after.Quantity)
	}
	entry.ImpactMetrics = r.impact.Metrics(repository.ActionUpdated, delta, after.Unit, false, 0, after.ExpirationDate, now)
	result.Entry = r.appendEntry(ctx, entry, &result.Warnings)

	r.publisher.BatchUpdated(ctx, after, changes)
	return result
}

// rekeyBarcode moves the cache to a batch's new barcode. The old barcode is
// released when no other batch still carries it, so a correction does not
// count twice against the plan limit.
func (r *Reconciler) rekeyBarcode(ctx context.Context, before, after *repository.StockBatch, warnings *[]Warning) {
	if err := r.stores.Barcodes.Upsert(ctx, cacheEntry(after)); err != nil {
		r.warn(warnings, WarningBarcodeCacheWriteFailed, "barcode cache was not updated", err, after)
		return
	}

	held, err := r.stores.Batches.HasBarcode(ctx, before.TenantID, before.Barcode)
	if err == nil && !held {
		err = r.stores.Barcodes.Delete(ctx, before.TenantID, before.Barcode)
	}
	if err != nil {
		r.warn(warnings, WarningBarcodeCacheWriteFailed, "previous barcode was not released", err, after)
	}
}

// refreshBarcode rewrites the cached metadata of a barcode the pantry already
// tracks. It never registers a barcode.
func (r *Reconciler) refreshBarcode(ctx context.Context, batch *repository.StockBatch, warnings *[]Warning) {
	_, err := r.stores.Barcodes.Get(ctx, batch.TenantID, batch.Barcode)
	if errors.Is(err, errors.ErrNotFound) {
		return
	}
	if err == nil {
		err = r.stores.Barcodes.Upsert(ctx, cacheEntry(batch))
	}
	if err != nil {
		r.warn(warnings, WarningBarcodeCacheWriteFailed, "barcode cache was not updated", err, batch)
	}
}

func cacheEntry(b *repository.StockBatch) *repository.BarcodeCacheEntry {
	return &repository.BarcodeCacheEntry{
		TenantID:        b.TenantID,
		Barcode:         b.Barcode,
		Name:            b.Name,
		Category:        b.Category,
		StorageLocation: b.StorageLocation,
	}
}

// Remove takes stock out of a batch. Removing at least the batch quantity, or
// omitting the quantity, deletes the batch. A recipient name turns the
// removal into a distribution.
func (r *Reconciler) Remove(ctx context.Context, tenantID, batchID string, req RemoveRequest) (*RemoveResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.Quantity != nil && *req.Quantity <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must be greater than 0"})
	}

	for attempt := 0; attempt < 2; attempt++ {
		batch, err := r.stores.Batches.Get(ctx, tenantID, batchID)
		if err != nil {
			return nil, err
		}

		requested := batch.Quantity
		if req.Quantity != nil {
			unit := req.Unit
			if unit == "" {
				unit = batch.Unit
			}
			converted, ok := r.impact.Convert(*req.Quantity, unit, batch.Unit)
			if !ok {
				return nil, errors.Validation(map[string]string{
					"unit": "must be convertible to the batch unit " + batch.Unit,
				})
			}
			requested = converted
		}

		full := requested >= batch.Quantity-quantityEpsilon
		removed := math.Min(requested, batch.Quantity)
		remaining := batch.Quantity - removed

		if full {
			remaining = 0
			err = r.stores.Batches.DeleteIfVersion(ctx, tenantID, batchID, batch.Version)
		} else {
			next := *batch
			next.Quantity = remaining
			err = r.stores.Batches.UpdateIfVersion(ctx, &next)
		}
		if errors.Is(err, repository.ErrStaleVersion) && attempt == 0 {
			r.logger.Debug().Str("batch_id", batchID).Msg("batch changed during removal, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		return r.recordRemoval(ctx, batch, removed, remaining, full, req), nil
	}
	return nil, repository.StaleVersion()
}

func (r *Reconciler) recordRemoval(ctx context.Context, batch *repository.StockBatch, removed, remaining float64, deleted bool, req RemoveRequest) *RemoveResult {
	now := r.now()
	recipient := strings.TrimSpace(req.RecipientName)
	toRecipient := recipient != ""

	result := &RemoveResult{
		TenantID:          batch.TenantID,
		BatchID:           batch.ID,
		ItemName:          batch.Name,
		QuantityRemoved:   removed,
		QuantityRemaining: remaining,
		Unit:              batch.Unit,
		Deleted:           deleted,
	}

	action := repository.ActionUpdated
	switch {
	case deleted:
		action = repository.ActionDeleted
	case toRecipient:
		action = repository.ActionDistributed
	}

	entry := r.newEntry(batch, action, removed, now)
	entry.PreviousQuantity = float(batch.Quantity)
	entry.NewQuantity = float(remaining)
	entry.Reason = optional(req.Reason)
	if action == repository.ActionUpdated {
		entry.Changes = repository.Changes{"quantity": {
			Old: formatQuantity(batch.Quantity),
			New: formatQuantity(remaining),
		}}
	}
	if toRecipient {
		entry.RecipientName = &recipient
		entry.RecipientID = optional(req.RecipientID)
	}
	entry.ImpactMetrics = r.impact.Metrics(action, removed, batch.Unit, toRecipient, req.FamilySize, batch.ExpirationDate, now)
	result.Entry = r.appendEntry(ctx, entry, &result.Warnings)

	if toRecipient {
		reason := req.Reason
		if reason == "" {
			reason = repository.ReasonIndividual
		}
		d := &repository.ClientDistribution{
			TenantID:            batch.TenantID,
			ClientName:          recipient,
			ClientID:            optional(req.RecipientID),
			ItemID:              &batch.ID,
			ItemName:            batch.Name,
			Category:            batch.Category,
			QuantityDistributed: removed,
			Unit:                batch.Unit,
			Reason:              reason,
			DistributionDate:    now,
		}
		if err := r.stores.Distributions.Create(ctx, d); err != nil {
			r.warn(&result.Warnings, WarningDistributionWriteFailed, "distribution record was not written", err, batch)
		} else {
			result.Distribution = d
		}
	}

	r.publisher.BatchRemoved(ctx, result)
	return result
}

// LogDistribution records a hand-off of known quantities without touching
// any batch.
func (r *Reconciler) LogDistribution(ctx context.Context, tenantID string, req DistributionRequest) (*DistributionResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	now := r.now()
	date, err := parseTimestamp("distributionDate", req.DistributionDate, now)
	if err != nil {
		return nil, err
	}

	d := &repository.ClientDistribution{
		TenantID:            tenantID,
		ClientName:          strings.TrimSpace(req.ClientName),
		ClientID:            optional(req.ClientID),
		ItemID:              optional(req.ItemID),
		ItemName:            strings.TrimSpace(req.ItemName),
		Category:            strings.TrimSpace(req.Category),
		QuantityDistributed: req.QuantityDistributed,
		Unit:                unitOrDefault(req.Unit),
		Reason:              req.Reason,
		DistributionDate:    date,
	}
	if err := r.stores.Distributions.Create(ctx, d); err != nil {
		return nil, err
	}

	result := &DistributionResult{Distribution: d}
	entry := &repository.ChangeLogEntry{
		TenantID:        tenantID,
		Action:          repository.ActionDistributed,
		ItemID:          d.ItemID,
		ItemName:        d.ItemName,
		Category:        d.Category,
		QuantityChanged: d.QuantityDistributed,
		Unit:            d.Unit,
		Reason:          &d.Reason,
		RecipientName:   &d.ClientName,
		RecipientID:     d.ClientID,
		Timestamp:       now,
	}
	entry.ImpactMetrics = r.impact.Metrics(repository.ActionDistributed, d.QuantityDistributed, d.Unit, true, req.FamilySize, nil, now)
	if err := r.stores.ChangeLog.Append(ctx, entry); err != nil {
		r.logger.Error().Err(err).
			Str("pantry_id", tenantID).
			Str("distribution_id", d.ID).
			Msg("failed to append change log entry")
		result.Warnings = append(result.Warnings, Warning{Code: WarningAuditWriteFailed, Message: "change log entry was not written"})
	} else {
		result.Entry = entry
	}

	r.publisher.DistributionLogged(ctx, d)
	return result, nil
}

func (r *Reconciler) newEntry(batch *repository.StockBatch, action string, qty float64, now time.Time) *repository.ChangeLogEntry {
	id := batch.ID
	return &repository.ChangeLogEntry{
		TenantID:        batch.TenantID,
		Action:          action,
		ItemID:          &id,
		ItemName:        batch.Name,
		Category:        batch.Category,
		QuantityChanged: qty,
		Unit:            batch.Unit,
		Timestamp:       now,
	}
}

// appendEntry writes the audit entry after the primary write. A failure is
// reported as a warning and never undoes the ledger change.
func (r *Reconciler) appendEntry(ctx context.Context, entry *repository.ChangeLogEntry, warnings *[]Warning) *repository.ChangeLogEntry {
	if err := r.stores.ChangeLog.Append(ctx, entry); err != nil {
		r.logger.Error().Err(err).
			Str("pantry_id", entry.TenantID).
			Str("action", entry.Action).
			Str("item_name", entry.ItemName).
			Msg("failed to append change log entry")
		*warnings = append(*warnings, Warning{Code: WarningAuditWriteFailed, Message: "change log entry was not written"})
		return nil
	}
	return entry
}

func (r *Reconciler) warn(warnings *[]Warning, code, message string, err error, batch *repository.StockBatch) {
	r.logger.WithTenant(batch.TenantID).WithError(err).Error().
		Str("batch_id", batch.ID).
		Str("warning", code).
		Msg(message)
	*warnings = append(*warnings, Warning{Code: code, Message: message})
}

func applyPatch(current *repository.StockBatch, req UpdateRequest, expiration *time.Time) *repository.StockBatch {
	next := *current
	next.ExpirationDate = current.ExpirationDate

	if req.Name != nil {
		next.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		next.Category = strings.TrimSpace(*req.Category)
	}
	if req.Quantity != nil {
		next.Quantity = *req.Quantity
	}
	if req.Unit != nil {
		next.Unit = *req.Unit
	}
	if req.Barcode != nil {
		next.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.ExpirationDate != nil {
		next.ExpirationDate = expiration
	}
	if req.StorageLocation != nil {
		next.StorageLocation = strings.TrimSpace(*req.StorageLocation)
		if next.StorageLocation == "" {
			next.StorageLocation = repository.DefaultStorageLocation
		}
	}
	return &next
}

// diffBatches compares the editable fields by their string form so 5 and
// 5.0 or equal dates at different offsets are not reported as changes.
func diffBatches(before, after *repository.StockBatch) repository.Changes {
	fields := []struct {
		name     string
		old, new string
	}{
		{"name", before.Name, after.Name},
		{"category", before.Category, after.Category},
		{"quantity", formatQuantity(before.Quantity), formatQuantity(after.Quantity)},
		{"unit", before.Unit, after.Unit},
		{"barcode", before.Barcode, after.Barcode},
		{"expirationDate", formatDate(before.ExpirationDate), formatDate(after.ExpirationDate)},
		{"storageLocation", before.StorageLocation, after.StorageLocation},
	}

	changes := repository.Changes{}
	for _, f := range fields {
		if f.old != f.new {
			changes[f.name] = repository.FieldChange{Old: f.old, New: f.new}
		}
	}
	return changes
}

// metadataChanged reports whether an edit touched what the barcode cache holds
func metadataChanged(changes repository.Changes) bool {
	for _, field := range []string{"name", "category", "storageLocation"} {
		if _, ok := changes[field]; ok {
			return true
		}
	}
	return false
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return errors.Forbidden("missing tenant context")
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) BatchAdded(context.Context, *repository.StockBatch, float64, bool)        {}
func (nopPublisher) BatchUpdated(context.Context, *repository.StockBatch, repository.Changes) {}
func (nopPublisher) BatchRemoved(context.Context, *RemoveResult)                              {}
func (nopPublisher) DistributionLogged(context.Context, *repository.ClientDistribution)       {}
