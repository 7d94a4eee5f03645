package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventMovementRecorded = "inventory.movement.recorded"
	EventMovementEdited   = "inventory.movement.edited"
	EventMovementDeleted  = "inventory.movement.deleted"
	EventLotReceived      = "inventory.lot.received"
	EventLotInspected     = "inventory.lot.inspected"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
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
		ID:            uuid.New().String(),
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

// MovementRecordedEvent is published when a stock movement is recorded
type MovementRecordedEvent struct {
	MovementID    string `json:"movement_id"`
	ItemID        string `json:"item_id"`
	MovementType  string `json:"movement_type"`
	PieceDelta    int    `json:"piece_delta"`
	WeightDeltaKg string `json:"weight_delta_kg"`
	CurrentPieces int    `json:"current_pieces"`
	ActorID       string `json:"actor_id"`
}

// MovementEditedEvent is published when a historical movement is edited
type MovementEditedEvent struct {
	MovementID    string `json:"movement_id"`
	ItemID        string `json:"item_id"`
	OldPieceDelta int    `json:"old_piece_delta"`
	NewPieceDelta int    `json:"new_piece_delta"`
	CurrentPieces int    `json:"current_pieces"`
	ActorID       string `json:"actor_id"`
}

// MovementDeletedEvent is published when a historical movement is deleted
type MovementDeletedEvent struct {
	MovementID    string `json:"movement_id"`
	ItemID        string `json:"item_id"`
	PieceDelta    int    `json:"piece_delta"`
	CurrentPieces int    `json:"current_pieces"`
	ActorID       string `json:"actor_id"`
}

// LotReceivedEvent is published when a receiving is confirmed
type LotReceivedEvent struct {
	LotID          string   `json:"lot_id"`
	LotNumber      string   `json:"lot_number"`
	MaterialID     string   `json:"material_id"`
	ItemIDs        []string `json:"item_ids"`
	ReceivedPieces int      `json:"received_pieces"`
	ActorID        string   `json:"actor_id"`
}

// LotInspectedEvent is published when a lot's inspection status changes
type LotInspectedEvent struct {
	LotID   string `json:"lot_id"`
	Status  string `json:"status"`
	ActorID string `json:"actor_id"`
}
