package desk

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/yardgate-backend/internal/ledger"
	"github.com/angelmondragon/yardgate-backend/internal/transactions"
	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
	"github.com/angelmondragon/yardgate-backend/pkg/types"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, out io.Writer) (Service, *transactions.MemoryStore, ledger.Service) {
	t.Helper()
	store := transactions.NewMemoryStore()
	ledgerSvc, err := ledger.NewService(ledger.NewMemoryRepository())
	require.NoError(t, err)
	if out == nil {
		out = io.Discard
	}
	svc, err := NewService(ServiceParams{
		Store:    store,
		Ledger:   ledgerSvc,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: out}),
		Location: "main-yard",
		Clock:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, store, ledgerSvc
}

func moveTo(t *testing.T, store transactions.Store, rec *models.TransactionRecord, status enums.TransactionStatus) {
	t.Helper()
	_, err := store.Update(context.Background(), rec.ID, func(r *models.TransactionRecord) error {
		r.Status = status
		return nil
	})
	require.NoError(t, err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	_, err = NewService(ServiceParams{Store: transactions.NewMemoryStore()})
	require.Error(t, err)
}

func TestDeclareExit(t *testing.T) {
	var logs bytes.Buffer
	svc, store, ledgerSvc := newTestService(t, &logs)

	rec, err := svc.DeclareExit(context.Background(), DeclareExitInput{
		Plate:    "ab 1234",
		Driver:   " J.Perez ",
		Items:    []types.Item{types.Asset("Cilindro 10m3", 5, ""), types.Asset("Regulador", 2, "0-3")},
		Operator: "op1",
	})
	require.NoError(t, err)
	assert.Equal(t, "AB1234", rec.Plate)
	assert.Equal(t, "J.Perez", rec.Driver)
	assert.Equal(t, "main-yard", rec.Location)
	assert.Equal(t, enums.TransactionStatusPendingExit, rec.Status)
	assert.Equal(t, "op1", rec.DeskOperatorOut)
	assert.Equal(t, 7, rec.ExitItemsDesk.Total())
	assert.Nil(t, rec.ExitTime)
	assert.True(t, rec.CreatedAt.Equal(fixedNow))

	pending, err := store.ListByStatus(context.Background(), enums.TransactionStatusPendingExit)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rec.ID, pending[0].ID)

	events, err := ledgerSvc.ListByTransaction(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.TransitionDeclareExit, events[0].Transition)
	assert.Equal(t, 7, events[0].ItemCount)

	assert.Contains(t, logs.String(), `"message":"transaction.created"`)
	assert.Contains(t, logs.String(), `"plate":"AB1234"`)
}

func TestDeclareExitWithNoItemsIsLegal(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	rec, err := svc.DeclareExit(context.Background(), DeclareExitInput{
		Plate: "AB1234", Driver: "J.Perez", Location: "north", Operator: "op1",
	})
	require.NoError(t, err)
	assert.Empty(t, rec.ExitItemsDesk)
	assert.Equal(t, "north", rec.Location)
}

func TestDeclareExitRejectsOpenCycle(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	first, err := svc.DeclareExit(context.Background(), DeclareExitInput{Plate: "AB1234", Driver: "J.Perez", Operator: "op1"})
	require.NoError(t, err)

	for _, status := range []enums.TransactionStatus{
		enums.TransactionStatusPendingExit,
		enums.TransactionStatusInRoute,
		enums.TransactionStatusEntryAuthorized,
	} {
		moveTo(t, store, first, status)
		_, err = svc.DeclareExit(context.Background(), DeclareExitInput{Plate: "AB 1234", Driver: "Other", Operator: "op2"})
		require.Error(t, err, status.String())
		assert.True(t, pkgerrors.IsConflict(err))
		assert.Equal(t, transactions.MsgOpenCycle, pkgerrors.As(err).Message())
	}

	moveTo(t, store, first, enums.TransactionStatusCompleted)
	_, err = svc.DeclareExit(context.Background(), DeclareExitInput{Plate: "AB1234", Driver: "J.Perez", Operator: "op1"})
	require.NoError(t, err)
}

func TestDeclareExitValidation(t *testing.T) {
	svc, store, _ := newTestService(t, nil)

	tests := []struct {
		name  string
		input DeclareExitInput
	}{
		{"missing plate", DeclareExitInput{Plate: "  ", Driver: "J.Perez", Operator: "op1"}},
		{"missing driver", DeclareExitInput{Plate: "AB1234", Operator: "op1"}},
		{"missing operator", DeclareExitInput{Plate: "AB1234", Driver: "J.Perez"}},
		{"negative quantity", DeclareExitInput{
			Plate: "AB1234", Driver: "J.Perez", Operator: "op1",
			Items: []types.Item{{Name: "Cilindro", Quantity: -1, Kind: enums.ItemKindAsset}},
		}},
		{"kind flip", DeclareExitInput{
			Plate: "AB1234", Driver: "J.Perez", Operator: "op1",
			Items: []types.Item{types.Asset("Cilindro", 1, ""), types.Supply("Cilindro", 1, "")},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.DeclareExit(context.Background(), tc.input)
			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}

	all, err := store.List(context.Background(), transactions.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDeclareEntryBeforeGateFails(t *testing.T) {
	svc, store, _ := newTestService(t, nil)

	_, err := svc.DeclareEntry(context.Background(), DeclareEntryInput{Plate: "AB1234", Operator: "op1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStateConflict(err))
	assert.Equal(t, MsgEntryNotAuthorized, pkgerrors.As(err).Message())

	rec, err := svc.DeclareExit(context.Background(), DeclareExitInput{Plate: "AB1234", Driver: "J.Perez", Operator: "op1"})
	require.NoError(t, err)

	for _, status := range []enums.TransactionStatus{enums.TransactionStatusPendingExit, enums.TransactionStatusInRoute, enums.TransactionStatusPendingEntry} {
		moveTo(t, store, rec, status)
		_, err = svc.DeclareEntry(context.Background(), DeclareEntryInput{
			Plate:    "AB1234",
			Items:    []types.Item{types.Asset("Cilindro 10m3", 4, "")},
			Operator: "op1",
		})
		require.Error(t, err, status.String())
		assert.True(t, pkgerrors.IsStateConflict(err))

		stored, err := store.Get(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.EntryItemsDesk)
		assert.Empty(t, stored.DeskOperatorIn)
	}
}

func TestDeclareEntryCompletesCycle(t *testing.T) {
	svc, store, ledgerSvc := newTestService(t, nil)
	rec, err := svc.DeclareExit(context.Background(), DeclareExitInput{Plate: "AB1234", Driver: "J.Perez", Operator: "op1"})
	require.NoError(t, err)
	moveTo(t, store, rec, enums.TransactionStatusEntryAuthorized)

	done, err := svc.DeclareEntry(context.Background(), DeclareEntryInput{
		Plate:    "ab1234",
		Items:    []types.Item{types.Asset("Cilindro 10m3", 4, ""), types.Supply("Guantes", 2, "")},
		Operator: "op3",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, done.Status)
	assert.Equal(t, "op3", done.DeskOperatorIn)
	assert.Equal(t, 6, done.EntryItemsDesk.Total())

	_, err = store.FindOpenByPlate(context.Background(), "AB1234")
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = svc.DeclareEntry(context.Background(), DeclareEntryInput{Plate: "AB1234", Operator: "op3"})
	assert.True(t, pkgerrors.IsStateConflict(err), "a completed cycle cannot be closed twice")

	events, err := ledgerSvc.ListByTransaction(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, enums.TransitionDeclareEntry, events[1].Transition)
	assert.Equal(t, enums.TransactionStatusEntryAuthorized, events[1].FromStatus)
}

// brokenEvents refuses every event write.
type brokenEvents struct {
	ledger.Repository
}

func (b brokenEvents) WithTx(*gorm.DB) ledger.Repository { return b }

func (brokenEvents) Create(context.Context, *models.TransitionEvent) error {
	return errors.New("event log unavailable")
}

func TestDeclareExitFailsWhenEventCannotBeRecorded(t *testing.T) {
	store := transactions.NewMemoryStore()
	ledgerSvc, err := ledger.NewService(brokenEvents{})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Store:    store,
		Ledger:   ledgerSvc,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Location: "main-yard",
	})
	require.NoError(t, err)

	_, err = svc.DeclareExit(context.Background(), DeclareExitInput{Plate: "AB1234", Driver: "J.Perez", Operator: "op1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	_, err = store.FindOpenByPlate(context.Background(), "AB1234")
	assert.True(t, pkgerrors.IsNotFound(err), "no cycle is opened without its event")
}
