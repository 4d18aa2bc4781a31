package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/yardgate-backend/pkg/enums"
)

// TransitionEvent is an append-only entry for one lifecycle step.
type TransitionEvent struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TransactionID uuid.UUID               `gorm:"column:transaction_id;type:uuid;not null;index" json:"transaction_id"`
	Plate         string                  `gorm:"column:plate;not null" json:"plate"`
	Location      string                  `gorm:"column:location;not null" json:"location"`
	Transition    enums.Transition        `gorm:"column:transition;not null" json:"transition"`
	FromStatus    enums.TransactionStatus `gorm:"column:from_status" json:"from_status,omitempty"`
	ToStatus      enums.TransactionStatus `gorm:"column:to_status;not null" json:"to_status"`
	Slot          enums.ManifestSlot      `gorm:"column:slot;not null" json:"slot"`
	OperatorID    string                  `gorm:"column:operator_id;not null" json:"operator_id"`
	ItemCount     int                     `gorm:"column:item_count;not null" json:"item_count"`
	OccurredAt    time.Time               `gorm:"column:occurred_at;not null" json:"occurred_at"`
}

func (TransitionEvent) TableName() string {
	return "transition_events"
}
