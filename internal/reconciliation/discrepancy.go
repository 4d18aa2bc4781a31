package reconciliation

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/types"
)

// ItemDifference is one identity's line in a discrepancy.
type ItemDifference struct {
	Name       string         `json:"name"`
	Detail     string         `json:"detail,omitempty"`
	Kind       enums.ItemKind `json:"kind"`
	Expected   int            `json:"expected"`
	Actual     int            `json:"actual"`
	Difference int            `json:"difference"`
}

// Discrepancy compares two manifests of a completed record. Positive values
// mean more came back than was expected. ByItem stays out of JSON because a
// rendered identity such as "Regulador (0-3)" is ambiguous as an object key;
// Lines carries name and detail separately.
type Discrepancy struct {
	TransactionID uuid.UUID              `json:"transaction_id"`
	NetDifference int                    `json:"net_difference"`
	ByItem        map[types.Identity]int `json:"-"`
	Lines         []ItemDifference       `json:"lines"`
}

// ComputeDiscrepancy compares what the desk counted back in against what it
// declared out.
func ComputeDiscrepancy(record *models.TransactionRecord) (Discrepancy, error) {
	if err := requireCompleted(record); err != nil {
		return Discrepancy{}, err
	}
	return diff(record.ID, record.ExitItemsDesk, record.EntryItemsDesk), nil
}

// CompareChecklist compares the desk's inbound count against the gate's
// checklist for the same return.
func CompareChecklist(record *models.TransactionRecord) (Discrepancy, error) {
	if err := requireCompleted(record); err != nil {
		return Discrepancy{}, err
	}
	return diff(record.ID, record.EntryItemsGate, record.EntryItemsDesk), nil
}

func requireCompleted(record *models.TransactionRecord) error {
	if record == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction record is required")
	}
	if record.Status != enums.TransactionStatusCompleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not completed").
			WithDetails(map[string]any{
				"transaction_id": record.ID.String(),
				"status":         record.Status.String(),
			})
	}
	return nil
}

// diff walks expected first, then identities only present in actual, so
// lines keep manifest order.
func diff(id uuid.UUID, expected, actual types.Manifest) Discrepancy {
	out := Discrepancy{
		TransactionID: id,
		ByItem:        make(map[types.Identity]int),
		Lines:         []ItemDifference{},
	}
	seen := make(map[types.Identity]bool)
	add := func(item types.Item) {
		key := item.Identity()
		if seen[key] {
			return
		}
		seen[key] = true
		exp, act := expected.Quantity(key), actual.Quantity(key)
		out.ByItem[key] = act - exp
		out.Lines = append(out.Lines, ItemDifference{
			Name:       key.Name,
			Detail:     key.Detail,
			Kind:       item.Kind,
			Expected:   exp,
			Actual:     act,
			Difference: act - exp,
		})
	}
	for _, item := range expected {
		add(item)
	}
	for _, item := range actual {
		add(item)
	}
	out.NetDifference = actual.Total() - expected.Total()
	return out
}
