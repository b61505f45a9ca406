package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SetTenantQuery scopes the current transaction to a pantry. RLS policies read
// the value back with current_setting('app.current_tenant').
const SetTenantQuery = "SELECT set_config('app.current_tenant', $1, true)"

// WithTenantTx runs fn inside a transaction bound to tenantID.
//
// Usage in repositories:
//
//	err := r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
//	    return tx.GetContext(ctx, &batch, "SELECT * FROM stock_batches WHERE tenant_id = $1 AND id = $2", tenantID, id)
//	})
//
// set_config with is_local=true behaves like SET LOCAL: the setting is dropped
// on commit or rollback, so pooled connections never leak a tenant. Queries
// still filter on tenant_id explicitly; RLS is the second fence.
func (db *DB) WithTenantTx(ctx context.Context, tenantID string, fn func(*sqlx.Tx) error) error {
	if tenantID == "" {
		return fmt.Errorf("tenant id is required")
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, SetTenantQuery, tenantID); err != nil {
			return fmt.Errorf("failed to set app.current_tenant: %w", err)
		}
		return fn(tx)
	})
}
