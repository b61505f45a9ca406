package repository

// Migrations returns the idempotent DDL for the inventory tables. Every table
// leads its indexes with tenant_id and carries an RLS policy keyed on
// app.current_tenant.
func Migrations() []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_batches (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			unit TEXT NOT NULL DEFAULT 'units',
			barcode TEXT NOT NULL,
			expiration_date TIMESTAMPTZ,
			storage_location TEXT NOT NULL DEFAULT 'N/A',
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_modified TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_batches_quantity_non_negative CHECK (quantity >= 0),
			CONSTRAINT stock_batches_unit_valid CHECK (unit IN ('units', 'lbs', 'kg', 'oz')),
			CONSTRAINT stock_batches_lot_key UNIQUE NULLS NOT DISTINCT (tenant_id, barcode, expiration_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_batches_tenant_barcode ON stock_batches (tenant_id, barcode)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_batches_tenant_expiration ON stock_batches (tenant_id, expiration_date)`,

		`CREATE TABLE IF NOT EXISTS barcode_cache (
			tenant_id TEXT NOT NULL,
			barcode TEXT NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			storage_location TEXT NOT NULL DEFAULT 'N/A',
			last_modified TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tenant_id, barcode)
		)`,

		`CREATE TABLE IF NOT EXISTS change_logs (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			action TEXT NOT NULL,
			item_id TEXT,
			item_name TEXT NOT NULL,
			category TEXT NOT NULL,
			changes JSONB,
			quantity_changed DOUBLE PRECISION NOT NULL DEFAULT 0,
			unit TEXT NOT NULL DEFAULT 'units',
			previous_quantity DOUBLE PRECISION,
			new_quantity DOUBLE PRECISION,
			reason TEXT,
			recipient_name TEXT,
			recipient_id TEXT,
			standardized_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			estimated_value DOUBLE PRECISION NOT NULL DEFAULT 0,
			people_served INTEGER NOT NULL DEFAULT 0,
			waste_diverted BOOLEAN NOT NULL DEFAULT FALSE,
			logged_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT change_logs_action_valid CHECK (action IN ('added', 'updated', 'deleted', 'distributed'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_change_logs_tenant_logged_at ON change_logs (tenant_id, logged_at DESC)`,

		`CREATE TABLE IF NOT EXISTS client_distributions (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			client_name TEXT NOT NULL,
			client_id TEXT,
			item_id TEXT,
			item_name TEXT NOT NULL,
			category TEXT NOT NULL,
			quantity_distributed DOUBLE PRECISION NOT NULL,
			unit TEXT NOT NULL DEFAULT 'units',
			reason TEXT NOT NULL,
			distribution_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT client_distributions_reason_valid CHECK (reason IN ('individual', 'family', 'emergency', 'expired', 'damaged', 'other'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_client_distributions_tenant_date ON client_distributions (tenant_id, distribution_date DESC)`,

		`CREATE TABLE IF NOT EXISTS pantry_plans (
			tenant_id TEXT PRIMARY KEY,
			plan TEXT NOT NULL,
			max_items INTEGER NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, table := range []string{"stock_batches", "barcode_cache", "change_logs", "client_distributions", "pantry_plans"} {
		stmts = append(stmts,
			`ALTER TABLE `+table+` ENABLE ROW LEVEL SECURITY`,
			`DROP POLICY IF EXISTS tenant_isolation ON `+table,
			`CREATE POLICY tenant_isolation ON `+table+
				` USING (tenant_id = current_setting('app.current_tenant', true))`+
				` WITH CHECK (tenant_id = current_setting('app.current_tenant', true))`,
		)
	}

	return stmts
}

// Tables lists the inventory tables, children first
func Tables() []string {
	return []string{"change_logs", "client_distributions", "barcode_cache", "stock_batches", "pantry_plans"}
}
