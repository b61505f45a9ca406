package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Inventory events
	EventBatchAdded         = "inventory.batch.added"
	EventBatchUpdated       = "inventory.batch.updated"
	EventBatchRemoved       = "inventory.batch.removed"
	EventDistributionLogged = "inventory.distribution.logged"

	// Organization events
	EventPlanChanged = "organization.plan.changed"
)

// Exchange names
const (
	ExchangeInventoryEvents    = "inventory.events"
	ExchangeOrganizationEvents = "organization.events"
	ExchangeDeadLetter         = "dlx.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Inventory Events

// BatchAddedEvent is published when stock is received, either as a new
// batch or merged into an existing lot.
type BatchAddedEvent struct {
	PantryID      string     `json:"pantry_id"`
	BatchID       string     `json:"batch_id"`
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	Barcode       string     `json:"barcode"`
	Quantity      float64    `json:"quantity"`
	TotalQuantity float64    `json:"total_quantity"`
	Unit          string     `json:"unit"`
	Merged        bool       `json:"merged"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// BatchUpdatedEvent is published when a batch is edited
type BatchUpdatedEvent struct {
	PantryID string            `json:"pantry_id"`
	BatchID  string            `json:"batch_id"`
	Changed  []string          `json:"changed"`
	Values   map[string]string `json:"values,omitempty"`
}

// BatchRemovedEvent is published when stock leaves a batch
type BatchRemovedEvent struct {
	PantryID        string  `json:"pantry_id"`
	BatchID         string  `json:"batch_id"`
	Name            string  `json:"name"`
	QuantityRemoved float64 `json:"quantity_removed"`
	QuantityLeft    float64 `json:"quantity_left"`
	Unit            string  `json:"unit"`
	Deleted         bool    `json:"deleted"`
	RecipientName   string  `json:"recipient_name,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	StandardizedLbs float64 `json:"standardized_lbs"`
	EstimatedValue  float64 `json:"estimated_value"`
	PeopleServed    int     `json:"people_served"`
}

// DistributionLoggedEvent is published for every client distribution record
type DistributionLoggedEvent struct {
	PantryID       string    `json:"pantry_id"`
	DistributionID string    `json:"distribution_id"`
	ClientName     string    `json:"client_name"`
	ClientID       string    `json:"client_id,omitempty"`
	ItemID         string    `json:"item_id,omitempty"`
	ItemName       string    `json:"item_name"`
	Quantity       float64   `json:"quantity"`
	Unit           string    `json:"unit"`
	Reason         string    `json:"reason"`
	DistributedAt  time.Time `json:"distributed_at"`
}

// Organization Events

// PlanChangedEvent is consumed when the organization service changes a
// pantry's subscription plan. MaxItems of zero or less means unlimited.
type PlanChangedEvent struct {
	PantryID string `json:"pantry_id"`
	Plan     string `json:"plan"`
	MaxItems int    `json:"max_items"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
