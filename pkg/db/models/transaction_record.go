package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	"github.com/angelmondragon/yardgate-backend/pkg/types"
)

// TransactionRecord tracks one vehicle's exit and return cycle. Each of the
// four manifests is written by one station at one stage; the status decides
// which one is writable next.
type TransactionRecord struct {
	ID       uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Plate    string                  `gorm:"column:plate;not null;index" json:"plate"`
	Driver   string                  `gorm:"column:driver;not null" json:"driver"`
	Location string                  `gorm:"column:location;not null;index" json:"location"`
	Status   enums.TransactionStatus `gorm:"column:status;not null;index" json:"status"`

	ExitItemsDesk  types.Manifest `gorm:"column:exit_items_desk;type:text;not null" json:"exit_items_desk"`
	ExitItemsGate  types.Manifest `gorm:"column:exit_items_gate;type:text;not null" json:"exit_items_gate"`
	EntryItemsGate types.Manifest `gorm:"column:entry_items_gate;type:text;not null" json:"entry_items_gate"`
	EntryItemsDesk types.Manifest `gorm:"column:entry_items_desk;type:text;not null" json:"entry_items_desk"`

	ExitTime  *time.Time `gorm:"column:exit_time" json:"exit_time,omitempty"`
	EntryTime *time.Time `gorm:"column:entry_time" json:"entry_time,omitempty"`

	DeskOperatorOut string `gorm:"column:desk_operator_out;not null" json:"desk_operator_out"`
	GateOperatorOut string `gorm:"column:gate_operator_out" json:"gate_operator_out,omitempty"`
	GateOperatorIn  string `gorm:"column:gate_operator_in" json:"gate_operator_in,omitempty"`
	DeskOperatorIn  string `gorm:"column:desk_operator_in" json:"desk_operator_in,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (TransactionRecord) TableName() string {
	return "transaction_records"
}

// IsOpen reports whether the record still blocks its plate.
func (r *TransactionRecord) IsOpen() bool {
	return r != nil && r.Status != enums.TransactionStatusCompleted
}

// Clone returns a deep copy; manifests and timestamps are not shared.
func (r *TransactionRecord) Clone() *TransactionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.ExitItemsDesk = r.ExitItemsDesk.Clone()
	out.ExitItemsGate = r.ExitItemsGate.Clone()
	out.EntryItemsGate = r.EntryItemsGate.Clone()
	out.EntryItemsDesk = r.EntryItemsDesk.Clone()
	out.ExitTime = cloneTime(r.ExitTime)
	out.EntryTime = cloneTime(r.EntryTime)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
