package domain

import (
	"encoding/json"
	"time"
)

// AggregateType identifies the consistency boundary an event belongs to.
type AggregateType string

const (
	AggregateUser         AggregateType = "User"
	AggregateSeller       AggregateType = "Seller"
	AggregateProduct      AggregateType = "Product"
	AggregateInventory    AggregateType = "Inventory"
	AggregateOrder        AggregateType = "Order"
	AggregateUserLocation AggregateType = "UserLocation"
	AggregateNotification AggregateType = "Notification"
)

// Event is an immutable fact describing a state change. Once appended to
// the event log it is never rewritten or deleted.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregateId"`
	AggregateType AggregateType   `json:"aggregateType"`
	Type          string          `json:"eventType"`
	Data          json.RawMessage `json:"eventData"`
	// Version is an advisory sequence hint supplied by the command
	// handler. The event log does not enforce monotonicity.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}
