package transactions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/types"
)

func newRecord(t *testing.T, plate, location string) *models.TransactionRecord {
	t.Helper()
	items, err := types.NewManifest(types.Asset("Cilindro 10m3", 5, ""), types.Supply("Guantes", 10, "L"))
	require.NoError(t, err)
	return &models.TransactionRecord{
		Plate:           plate,
		Driver:          "J.Perez",
		Location:        location,
		Status:          enums.TransactionStatusPendingExit,
		ExitItemsDesk:   items,
		DeskOperatorOut: "op1",
	}
}

func complete(t *testing.T, store Store, id uuid.UUID) {
	t.Helper()
	_, err := store.Update(context.Background(), id, func(rec *models.TransactionRecord) error {
		rec.Status = enums.TransactionStatusCompleted
		return nil
	})
	require.NoError(t, err)
}

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("create assigns id and normalizes plate", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(context.Background(), newRecord(t, " ab 1234 ", "north"))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, "AB1234", created.Plate)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := store.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "AB1234", got.Plate)
		assert.Equal(t, enums.TransactionStatusPendingExit, got.Status)
		assert.Equal(t, 5, got.ExitItemsDesk.Quantity(types.NewIdentity("Cilindro 10m3", "")))
		assert.Equal(t, 10, got.ExitItemsDesk.Quantity(types.NewIdentity("Guantes", "L")))
		assert.Empty(t, got.EntryItemsDesk)
		assert.Nil(t, got.ExitTime)
	})

	t.Run("second open cycle for a plate conflicts", func(t *testing.T) {
		store := newStore(t)
		first, err := store.Create(context.Background(), newRecord(t, "AB1234", "north"))
		require.NoError(t, err)

		_, err = store.Create(context.Background(), newRecord(t, "ab1234", "south"))
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err))
		assert.Equal(t, MsgOpenCycle, pkgerrors.As(err).Message())

		complete(t, store, first.ID)

		second, err := store.Create(context.Background(), newRecord(t, "AB1234", "north"))
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		open, err := store.FindOpenByPlate(context.Background(), "AB 1234")
		require.NoError(t, err)
		assert.Equal(t, second.ID, open.ID)

		history, err := store.FindByPlate(context.Background(), "AB1234")
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})

	t.Run("unknown ids and plates are not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(context.Background(), uuid.New())
		assert.True(t, pkgerrors.IsNotFound(err))

		_, err = store.FindOpenByPlate(context.Background(), "ZZ9999")
		assert.True(t, pkgerrors.IsNotFound(err))

		_, err = store.Update(context.Background(), uuid.New(), func(*models.TransactionRecord) error { return nil })
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("failed update leaves record untouched", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(context.Background(), newRecord(t, "CD5678", "north"))
		require.NoError(t, err)

		boom := errors.New("boom")
		_, err = store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			now := time.Now()
			rec.Status = enums.TransactionStatusInRoute
			rec.ExitTime = &now
			rec.GateOperatorOut = "gate1"
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := store.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.TransactionStatusPendingExit, got.Status)
		assert.Nil(t, got.ExitTime)
		assert.Empty(t, got.GateOperatorOut)
	})

	t.Run("update persists changes", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(context.Background(), newRecord(t, "EF9012", "north"))
		require.NoError(t, err)

		exit := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
		updated, err := store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			rec.Status = enums.TransactionStatusInRoute
			rec.ExitTime = &exit
			rec.GateOperatorOut = "gate1"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, enums.TransactionStatusInRoute, updated.Status)

		got, err := store.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.TransactionStatusInRoute, got.Status)
		require.NotNil(t, got.ExitTime)
		assert.True(t, got.ExitTime.Equal(exit))
		assert.Equal(t, "gate1", got.GateOperatorOut)
	})

	t.Run("identity fields and stamps are immutable", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(context.Background(), newRecord(t, "GH3456", "north"))
		require.NoError(t, err)

		_, err = store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			rec.Plate = "OTHER"
			return nil
		})
		require.Error(t, err)

		_, err = store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			rec.Location = "south"
			return nil
		})
		require.Error(t, err)

		exit := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
		_, err = store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			rec.Status = enums.TransactionStatusInRoute
			rec.ExitTime = &exit
			return nil
		})
		require.NoError(t, err)

		_, err = store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			later := exit.Add(time.Hour)
			rec.ExitTime = &later
			return nil
		})
		require.Error(t, err)

		_, err = store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			rec.Status = enums.TransactionStatusPendingExit
			return nil
		})
		require.Error(t, err)

		got, err := store.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "north", got.Location)
		assert.Equal(t, enums.TransactionStatusInRoute, got.Status)
		assert.True(t, got.ExitTime.Equal(exit))
	})

	t.Run("operator stamps are never overwritten", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(context.Background(), newRecord(t, "KL1122", "north"))
		require.NoError(t, err)

		_, err = store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			rec.DeskOperatorOut = "op2"
			return nil
		})
		require.Error(t, err)

		_, err = store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			rec.Status = enums.TransactionStatusInRoute
			rec.GateOperatorOut = "gate1"
			return nil
		})
		require.NoError(t, err)

		_, err = store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			rec.GateOperatorOut = "gate9"
			return nil
		})
		require.Error(t, err)

		got, err := store.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "op1", got.DeskOperatorOut)
		assert.Equal(t, "gate1", got.GateOperatorOut)
	})

	t.Run("completed records are archival", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(context.Background(), newRecord(t, "MN3344", "north"))
		require.NoError(t, err)
		complete(t, store, created.ID)

		_, err = store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			rec.ExitItemsDesk = types.Manifest{}
			return nil
		})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsStateConflict(err))

		_, err = store.Update(context.Background(), created.ID, func(*models.TransactionRecord) error { return nil })
		assert.True(t, pkgerrors.IsStateConflict(err), "even an empty change is refused")

		got, err := store.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.ExitItemsDesk.Quantity(types.NewIdentity("Cilindro 10m3", "")))
	})

	t.Run("duplicate id is not reported as an open cycle", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(context.Background(), newRecord(t, "OP5566", "north"))
		require.NoError(t, err)

		dup := newRecord(t, "QR7788", "north")
		dup.ID = created.ID
		_, err = store.Create(context.Background(), dup)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err))
		assert.NotEqual(t, MsgOpenCycle, pkgerrors.As(err).Message())
	})

	t.Run("hooks see the write and undo it on failure", func(t *testing.T) {
		store := newStore(t)
		var seen []enums.TransactionStatus
		record := func(ctx context.Context, tx *gorm.DB, before, after *models.TransactionRecord) error {
			if before != nil {
				seen = append(seen, before.Status)
			}
			seen = append(seen, after.Status)
			return nil
		}
		boom := pkgerrors.New(pkgerrors.CodeDependency, "event sink down")
		fail := func(context.Context, *gorm.DB, *models.TransactionRecord, *models.TransactionRecord) error {
			return boom
		}

		created, err := store.Create(context.Background(), newRecord(t, "ST9900", "north"), record)
		require.NoError(t, err)
		assert.Equal(t, []enums.TransactionStatus{enums.TransactionStatusPendingExit}, seen)

		_, err = store.Update(context.Background(), created.ID, func(rec *models.TransactionRecord) error {
			rec.Status = enums.TransactionStatusInRoute
			rec.GateOperatorOut = "gate1"
			return nil
		}, record, fail)
		require.ErrorIs(t, err, boom)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

		got, err := store.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.TransactionStatusPendingExit, got.Status)
		assert.Empty(t, got.GateOperatorOut)

		_, err = store.Create(context.Background(), newRecord(t, "UV1357", "north"), fail)
		require.ErrorIs(t, err, boom)
		_, err = store.FindOpenByPlate(context.Background(), "UV1357")
		assert.True(t, pkgerrors.IsNotFound(err), "a failed hook leaves no record behind")
	})

	t.Run("list filters", func(t *testing.T) {
		store := newStore(t)
		a, err := store.Create(context.Background(), newRecord(t, "AA0001", "north"))
		require.NoError(t, err)
		_, err = store.Create(context.Background(), newRecord(t, "AA0002", "south"))
		require.NoError(t, err)
		c, err := store.Create(context.Background(), newRecord(t, "AA0003", "north"))
		require.NoError(t, err)
		complete(t, store, c.ID)

		north, err := store.ListByLocation(context.Background(), "north")
		require.NoError(t, err)
		assert.Len(t, north, 2)

		pending, err := store.ListByStatus(context.Background(), enums.TransactionStatusPendingExit)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		both, err := store.ListByStatus(context.Background(), enums.TransactionStatusPendingExit, enums.TransactionStatusCompleted)
		require.NoError(t, err)
		assert.Len(t, both, 3)

		filtered, err := store.List(context.Background(), Filter{
			Location: "north",
			Statuses: []enums.TransactionStatus{enums.TransactionStatusPendingExit},
		})
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		assert.Equal(t, a.ID, filtered[0].ID)

		all, err := store.List(context.Background(), Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(context.Background(), newRecord(t, "IJ7890", "north"))
		require.NoError(t, err)
		created.ExitItemsDesk[0].Quantity = 99

		got, err := store.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.ExitItemsDesk[0].Quantity)
	})
}

func TestNormalizePlate(t *testing.T) {
	tests := map[string]string{
		"AB1234":    "AB1234",
		" ab 1234 ": "AB1234",
		"ab-12\t34": "AB-1234",
		"":          "",
		"   ":       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePlate(in), "input %q", in)
	}
}
