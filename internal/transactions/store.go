package transactions

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
)

// MsgOpenCycle is returned when a plate already has a non-completed record.
const MsgOpenCycle = "vehicle already has an open cycle"

// UpdateFunc mutates a private copy of a record. Returning an error discards
// the copy and leaves the stored record untouched.
type UpdateFunc func(record *models.TransactionRecord) error

// AfterWrite runs inside the write that creates or changes a record, before
// it is committed. before is nil on Create. tx carries the gorm transaction,
// or is nil for the in-memory store. Hooks must not modify the records; an
// error undoes the write and is returned to the caller unchanged.
type AfterWrite func(ctx context.Context, tx *gorm.DB, before, after *models.TransactionRecord) error

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Statuses []enums.TransactionStatus
	Location string
	Plate    string
}

// Store is the authoritative collection of transaction records. Implementations
// enforce at most one open record per plate and run each Update as a single
// check-and-write step.
type Store interface {
	Create(ctx context.Context, record *models.TransactionRecord, hooks ...AfterWrite) (*models.TransactionRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*models.TransactionRecord, error)
	FindOpenByPlate(ctx context.Context, plate string) (*models.TransactionRecord, error)
	FindByPlate(ctx context.Context, plate string) ([]models.TransactionRecord, error)
	ListByStatus(ctx context.Context, statuses ...enums.TransactionStatus) ([]models.TransactionRecord, error)
	ListByLocation(ctx context.Context, location string) ([]models.TransactionRecord, error)
	List(ctx context.Context, filter Filter) ([]models.TransactionRecord, error)
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc, hooks ...AfterWrite) (*models.TransactionRecord, error)
}

// NormalizePlate trims, upper-cases and drops inner whitespace so that
// "ab 1234" and "AB1234" address the same vehicle.
func NormalizePlate(plate string) string {
	var b strings.Builder
	b.Grow(len(plate))
	for _, r := range strings.ToUpper(plate) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func openCycleError(plate string, existing uuid.UUID) error {
	details := map[string]any{"plate": plate}
	if existing != uuid.Nil {
		details["transaction_id"] = existing.String()
	}
	return pkgerrors.New(pkgerrors.CodeConflict, MsgOpenCycle).WithDetails(details)
}

func notFoundError(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found").
		WithDetails(map[string]any{"transaction_id": id.String()})
}

func noOpenCycleError(plate string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "no open cycle for vehicle").
		WithDetails(map[string]any{"plate": plate})
}

func runHooks(ctx context.Context, tx *gorm.DB, before, after *models.TransactionRecord, hooks []AfterWrite) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, tx, before, after); err != nil {
			return err
		}
	}
	return nil
}

// checkImmutable rejects updates to completed records and updates that touch
// identity fields or rewrite stamps that are already set.
func checkImmutable(before, after *models.TransactionRecord) error {
	if before.Status == enums.TransactionStatusCompleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "completed transactions cannot be changed").
			WithDetails(map[string]any{"transaction_id": before.ID.String()})
	}
	if after.ID != before.ID || after.Plate != before.Plate ||
		after.Driver != before.Driver || after.Location != before.Location {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction identity fields are immutable")
	}
	if before.ExitTime != nil && (after.ExitTime == nil || !after.ExitTime.Equal(*before.ExitTime)) {
		return pkgerrors.New(pkgerrors.CodeInternal, "exit time is already set")
	}
	if before.EntryTime != nil && (after.EntryTime == nil || !after.EntryTime.Equal(*before.EntryTime)) {
		return pkgerrors.New(pkgerrors.CodeInternal, "entry time is already set")
	}
	operators := []struct {
		field         string
		before, after string
	}{
		{"desk_operator_out", before.DeskOperatorOut, after.DeskOperatorOut},
		{"gate_operator_out", before.GateOperatorOut, after.GateOperatorOut},
		{"gate_operator_in", before.GateOperatorIn, after.GateOperatorIn},
		{"desk_operator_in", before.DeskOperatorIn, after.DeskOperatorIn},
	}
	for _, op := range operators {
		if op.before != "" && op.after != op.before {
			return pkgerrors.Newf(pkgerrors.CodeInternal, "%s is already set", op.field)
		}
	}
	if after.Status.Rank() < before.Status.Rank() {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction status cannot move backwards")
	}
	return nil
}

func matches(record *models.TransactionRecord, filter Filter) bool {
	if filter.Location != "" && record.Location != filter.Location {
		return false
	}
	if filter.Plate != "" && record.Plate != NormalizePlate(filter.Plate) {
		return false
	}
	if len(filter.Statuses) == 0 {
		return true
	}
	for _, status := range filter.Statuses {
		if record.Status == status {
			return true
		}
	}
	return false
}
