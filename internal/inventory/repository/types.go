package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Units a batch quantity can be recorded in
const (
	UnitUnits = "units"
	UnitLbs   = "lbs"
	UnitKg    = "kg"
	UnitOz    = "oz"
)

// DefaultStorageLocation is stored when a batch has no location
const DefaultStorageLocation = "N/A"

// Change log actions
const (
	ActionAdded       = "added"
	ActionUpdated     = "updated"
	ActionDeleted     = "deleted"
	ActionDistributed = "distributed"
)

// Distribution reasons
const (
	ReasonIndividual = "individual"
	ReasonFamily     = "family"
	ReasonEmergency  = "emergency"
	ReasonExpired    = "expired"
	ReasonDamaged    = "damaged"
	ReasonOther      = "other"
)

// Sentinel client names for distributions without a named recipient
const (
	ClientGeneralAdjustment = "General Inventory Adjustment"
	ClientWalkIn            = "Walk-in Client"
)

// ValidUnit reports whether u is a supported unit
func ValidUnit(u string) bool {
	switch u {
	case UnitUnits, UnitLbs, UnitKg, UnitOz:
		return true
	}
	return false
}

// ValidReason reports whether r is a supported distribution reason
func ValidReason(r string) bool {
	switch r {
	case ReasonIndividual, ReasonFamily, ReasonEmergency, ReasonExpired, ReasonDamaged, ReasonOther:
		return true
	}
	return false
}

// StockBatch is one lot of an item held by a pantry. A lot is identified by
// barcode and expiration date; a nil expiration is its own lot.
type StockBatch struct {
	ID              string     `db:"id" json:"id"`
	TenantID        string     `db:"tenant_id" json:"pantryId"`
	Name            string     `db:"name" json:"name"`
	Category        string     `db:"category" json:"category"`
	Quantity        float64    `db:"quantity" json:"quantity"`
	Unit            string     `db:"unit" json:"unit"`
	Barcode         string     `db:"barcode" json:"barcode"`
	ExpirationDate  *time.Time `db:"expiration_date" json:"expirationDate,omitempty"`
	StorageLocation string     `db:"storage_location" json:"storageLocation"`
	Version         int64      `db:"version" json:"version"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	LastModified    time.Time  `db:"last_modified" json:"lastModified"`
}

// LotKey identifies the lot a batch belongs to within its pantry
func (b *StockBatch) LotKey() string {
	return LotKey(b.Barcode, b.ExpirationDate)
}

// LotKey builds the lot identity for a barcode and normalized expiration
func LotKey(barcode string, expiration *time.Time) string {
	if expiration == nil {
		return barcode + "|none"
	}
	return barcode + "|" + expiration.UTC().Format("2006-01-02")
}

// BarcodeCacheEntry is the last-known metadata for a barcode in a pantry
type BarcodeCacheEntry struct {
	TenantID        string    `db:"tenant_id" json:"pantryId"`
	Barcode         string    `db:"barcode" json:"barcode"`
	Name            string    `db:"name" json:"name"`
	Category        string    `db:"category" json:"category"`
	StorageLocation string    `db:"storage_location" json:"storageLocation"`
	LastModified    time.Time `db:"last_modified" json:"lastModified"`
}

// FieldChange is the before and after value of one edited field
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Changes maps field names to their edits. Stored as JSONB.
type Changes map[string]FieldChange

// Value implements driver.Valuer
func (c Changes) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *Changes) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("cannot scan %T into Changes", src)
	}
}

// ImpactMetrics are derived from the quantity moved by a change
type ImpactMetrics struct {
	StandardizedWeight float64 `db:"standardized_weight" json:"standardizedWeight"`
	EstimatedValue     float64 `db:"estimated_value" json:"estimatedValue"`
	PeopleServed       int     `db:"people_served" json:"peopleServed"`
	WasteDiverted      bool    `db:"waste_diverted" json:"wasteDiverted"`
}

// ChangeLogEntry is an append-only audit record
type ChangeLogEntry struct {
	ID               string   `db:"id" json:"id"`
	TenantID         string   `db:"tenant_id" json:"pantryId"`
	Action           string   `db:"action" json:"action"`
	ItemID           *string  `db:"item_id" json:"itemId,omitempty"`
	ItemName         string   `db:"item_name" json:"itemName"`
	Category         string   `db:"category" json:"category"`
	Changes          Changes  `db:"changes" json:"changes,omitempty"`
	QuantityChanged  float64  `db:"quantity_changed" json:"quantityChanged"`
	Unit             string   `db:"unit" json:"unit"`
	PreviousQuantity *float64 `db:"previous_quantity" json:"previousQuantity,omitempty"`
	NewQuantity      *float64 `db:"new_quantity" json:"newQuantity,omitempty"`
	Reason           *string  `db:"reason" json:"reason,omitempty"`
	RecipientName    *string  `db:"recipient_name" json:"recipientName,omitempty"`
	RecipientID      *string  `db:"recipient_id" json:"recipientId,omitempty"`
	ImpactMetrics
	Timestamp time.Time `db:"logged_at" json:"timestamp"`
}

// ClientDistribution records stock handed to a client
type ClientDistribution struct {
	ID                  string    `db:"id" json:"id"`
	TenantID            string    `db:"tenant_id" json:"pantryId"`
	ClientName          string    `db:"client_name" json:"clientName"`
	ClientID            *string   `db:"client_id" json:"clientId,omitempty"`
	ItemID              *string   `db:"item_id" json:"itemId,omitempty"`
	ItemName            string    `db:"item_name" json:"itemName"`
	Category            string    `db:"category" json:"category"`
	QuantityDistributed float64   `db:"quantity_distributed" json:"quantityDistributed"`
	Unit                string    `db:"unit" json:"unit"`
	Reason              string    `db:"reason" json:"reason"`
	DistributionDate    time.Time `db:"distribution_date" json:"distributionDate"`
	CreatedAt           time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time `db:"updated_at" json:"updatedAt"`
}

// ClientSummary is one row of the client directory
type ClientSummary struct {
	ClientName string    `db:"client_name" json:"clientName"`
	ClientID   *string   `db:"client_id" json:"clientId,omitempty"`
	Visits     int       `db:"visits" json:"visits"`
	LastVisit  time.Time `db:"last_visit" json:"lastVisit"`
}

// PantryPlan is the local copy of a pantry's subscription limits
type PantryPlan struct {
	TenantID  string    `db:"tenant_id" json:"pantryId"`
	Plan      string    `db:"plan" json:"plan"`
	MaxItems  int       `db:"max_items" json:"maxItems"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ImpactBucket aggregates change log metrics for one action, split by
// whether the entries named a recipient.
type ImpactBucket struct {
	Action        string  `db:"action"`
	ToRecipient   bool    `db:"to_recipient"`
	Entries       int     `db:"entries"`
	Weight        float64 `db:"weight"`
	Value         float64 `db:"value"`
	PeopleServed  int     `db:"people_served"`
	WasteDiverted int     `db:"waste_diverted"`
}

// BatchFilter narrows a batch listing
type BatchFilter struct {
	Category       string
	Search         string
	ExpiringBefore *time.Time
	Limit          int
}

// DistributionFilter narrows a distribution listing
type DistributionFilter struct {
	ClientName string
	ClientID   string
	Reason     string
	From       *time.Time
	To         *time.Time
	Limit      int
}
