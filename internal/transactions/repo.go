package transactions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/yardgate-backend/pkg/db"
	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
)

// OpenPlateIndex is the partial unique index that backs the one-open-cycle
// rule in SQL. SQLite names the indexed column instead of the index when it
// is violated.
const (
	OpenPlateIndex  = "ux_transaction_records_open_plate"
	openPlateColumn = "transaction_records.plate"
)

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository returns a Store persisted through gorm.
func NewRepository(conn *gorm.DB) Store {
	return &repository{db: conn, now: time.Now}
}

// Create inserts the record and runs hooks in the same database transaction.
func (r *repository) Create(ctx context.Context, record *models.TransactionRecord, hooks ...AfterWrite) (*models.TransactionRecord, error) {
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction record is required")
	}
	rec := record.Clone()
	rec.Plate = NormalizePlate(rec.Plate)
	if rec.Plate == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plate is required")
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := r.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rec.IsOpen() {
			var existing models.TransactionRecord
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("plate = ? AND status <> ?", rec.Plate, enums.TransactionStatusCompleted).
				First(&existing).Error
			switch {
			case err == nil:
				return openCycleError(rec.Plate, existing.ID)
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return runHooks(ctx, tx, nil, rec, hooks)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if db.IsUniqueViolation(err, OpenPlateIndex, openPlateColumn) {
			return nil, openCycleError(rec.Plate, uuid.Nil)
		}
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "transaction id already exists").
				WithDetails(map[string]any{"transaction_id": rec.ID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
	}
	return rec, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	return &rec, nil
}

func (r *repository) FindOpenByPlate(ctx context.Context, plate string) (*models.TransactionRecord, error) {
	plate = NormalizePlate(plate)
	var rec models.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("plate = ? AND status <> ?", plate, enums.TransactionStatusCompleted).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noOpenCycleError(plate)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open transaction")
	}
	return &rec, nil
}

func (r *repository) FindByPlate(ctx context.Context, plate string) ([]models.TransactionRecord, error) {
	return r.List(ctx, Filter{Plate: plate})
}

func (r *repository) ListByStatus(ctx context.Context, statuses ...enums.TransactionStatus) ([]models.TransactionRecord, error) {
	return r.List(ctx, Filter{Statuses: statuses})
}

func (r *repository) ListByLocation(ctx context.Context, location string) ([]models.TransactionRecord, error) {
	return r.List(ctx, Filter{Location: location})
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.TransactionRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.TransactionRecord{})
	if filter.Location != "" {
		query = query.Where("location = ?", filter.Location)
	}
	if filter.Plate != "" {
		query = query.Where("plate = ?", NormalizePlate(filter.Plate))
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var records []models.TransactionRecord
	if err := query.Order("created_at ASC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return records, nil
}

// Update loads the row, applies fn to a copy and writes it back only if the
// stored status has not moved in the meantime. Hooks share the transaction.
func (r *repository) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc, hooks ...AfterWrite) (*models.TransactionRecord, error) {
	var (
		updated *models.TransactionRecord
		fnErr   error
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.TransactionRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError(id)
			}
			return err
		}

		next := current.Clone()
		if fnErr = fn(next); fnErr != nil {
			return fnErr
		}
		if err := checkImmutable(&current, next); err != nil {
			return err
		}
		next.UpdatedAt = r.now().UTC()

		res := tx.Model(&models.TransactionRecord{}).
			Where("id = ? AND status = ?", id, current.Status).
			Updates(updateColumns(next))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction changed concurrently").
				WithDetails(map[string]any{"transaction_id": id.String()})
		}
		if err := runHooks(ctx, tx, &current, next, hooks); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		if fnErr != nil || pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transaction")
	}
	return updated, nil
}

func updateColumns(rec *models.TransactionRecord) map[string]any {
	return map[string]any{
		"status":            rec.Status,
		"exit_items_desk":   rec.ExitItemsDesk,
		"exit_items_gate":   rec.ExitItemsGate,
		"entry_items_gate":  rec.EntryItemsGate,
		"entry_items_desk":  rec.EntryItemsDesk,
		"exit_time":         rec.ExitTime,
		"entry_time":        rec.EntryTime,
		"desk_operator_out": rec.DeskOperatorOut,
		"gate_operator_out": rec.GateOperatorOut,
		"gate_operator_in":  rec.GateOperatorIn,
		"desk_operator_in":  rec.DeskOperatorIn,
		"updated_at":        rec.UpdatedAt,
	}
}
