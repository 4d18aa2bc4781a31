package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
)

// Hook appends an event inside the write that moved a record from before to
// after. It matches transactions.AfterWrite.
type Hook = func(ctx context.Context, tx *gorm.DB, before, after *models.TransactionRecord) error

// Service records and lists transition events.
type Service interface {
	Recorder(transition enums.Transition, operator string) Hook
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.TransitionEvent, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// RecordTransitionInput captures a transition that has been applied to
// Record but not yet committed.
type RecordTransitionInput struct {
	Record     *models.TransactionRecord
	Transition enums.Transition
	From       enums.TransactionStatus
	Operator   string
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Recorder returns a store hook that writes the event through the store's
// own transaction, so a transition and its event commit or fail together.
func (s *service) Recorder(transition enums.Transition, operator string) Hook {
	return func(ctx context.Context, tx *gorm.DB, before, after *models.TransactionRecord) error {
		input := RecordTransitionInput{Record: after, Transition: transition, Operator: operator}
		if before != nil {
			input.From = before.Status
		}
		_, err := s.record(ctx, s.repo.WithTx(tx), input)
		return err
	}
}

func (s *service) record(ctx context.Context, repo Repository, input RecordTransitionInput) (*models.TransitionEvent, error) {
	if input.Record == nil || input.Record.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction record is required")
	}
	rule, ok := input.Transition.Rule()
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "invalid transition %q", input.Transition)
	}
	if input.Record.Status != rule.To {
		return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "record is %s, %s leads to %s", input.Record.Status, input.Transition, rule.To)
	}
	if input.Operator == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "operator is required")
	}

	event := &models.TransitionEvent{
		ID:            uuid.New(),
		TransactionID: input.Record.ID,
		Plate:         input.Record.Plate,
		Location:      input.Record.Location,
		Transition:    input.Transition,
		FromStatus:    input.From,
		ToStatus:      rule.To,
		Slot:          rule.Slot,
		OperatorID:    input.Operator,
		ItemCount:     slotTotal(input.Record, rule.Slot),
		OccurredAt:    s.now().UTC(),
	}
	if err := repo.Create(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transition")
	}
	return event, nil
}

func (s *service) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.TransitionEvent, error) {
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	events, err := s.repo.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transition events")
	}
	return events, nil
}

func slotTotal(record *models.TransactionRecord, slot enums.ManifestSlot) int {
	switch slot {
	case enums.ManifestSlotDeskOut:
		return record.ExitItemsDesk.Total()
	case enums.ManifestSlotGateOut:
		// the gate authorizes against the desk's list
		return record.ExitItemsDesk.Total()
	case enums.ManifestSlotGateIn:
		return record.EntryItemsGate.Total()
	case enums.ManifestSlotDeskIn:
		return record.EntryItemsDesk.Total()
	}
	return 0
}
