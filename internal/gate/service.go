package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/yardgate-backend/internal/ledger"
	"github.com/angelmondragon/yardgate-backend/internal/transactions"
	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
	"github.com/angelmondragon/yardgate-backend/pkg/metrics"
	"github.com/angelmondragon/yardgate-backend/pkg/types"
)

// Service authorizes physical passage at the security gate.
type Service interface {
	AuthorizeExit(ctx context.Context, input AuthorizeExitInput) (*ExitAuthorization, error)
	AuthorizeEntry(ctx context.Context, input AuthorizeEntryInput) (*models.TransactionRecord, error)
	PendingExits(ctx context.Context, location string) ([]models.TransactionRecord, error)
	AwaitingEntry(ctx context.Context, location string) ([]models.TransactionRecord, error)
}

type AuthorizeExitInput struct {
	TransactionID uuid.UUID
	Operator      string
}

type AuthorizeEntryInput struct {
	TransactionID uuid.UUID
	Checklist     []types.Item
	Operator      string
}

// ExitAuthorization is the updated record plus the manifest the guard checks
// the vehicle against.
type ExitAuthorization struct {
	Record       *models.TransactionRecord `json:"record"`
	ExitManifest types.Manifest            `json:"exit_manifest"`
}

// ServiceParams configure the gate service.
type ServiceParams struct {
	Store   transactions.Store
	Ledger  ledger.Service
	Logger  *logger.Logger
	Metrics *metrics.TransitionMetrics
	Clock   func() time.Time
}

type service struct {
	store   transactions.Store
	ledger  ledger.Service
	logg    *logger.Logger
	metrics *metrics.TransitionMetrics
	now     func() time.Time
}

// NewService builds a gate service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("transaction store required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		store:   params.Store,
		ledger:  params.Ledger,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     clock,
	}, nil
}

func (s *service) AuthorizeExit(ctx context.Context, input AuthorizeExitInput) (*ExitAuthorization, error) {
	operator := strings.TrimSpace(input.Operator)
	record, from, err := s.transition(ctx, enums.TransitionAuthorizeExit, input.TransactionID, operator, func(rec *models.TransactionRecord, now time.Time) {
		rec.ExitTime = &now
		rec.GateOperatorOut = operator
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.afterTransition(ctx, record, enums.TransitionAuthorizeExit, from)
	s.logg.Info(logCtx, "transaction.exit_authorized")
	return &ExitAuthorization{
		Record:       record,
		ExitManifest: record.ExitItemsDesk.Clone(),
	}, nil
}

func (s *service) AuthorizeEntry(ctx context.Context, input AuthorizeEntryInput) (*models.TransactionRecord, error) {
	operator := strings.TrimSpace(input.Operator)
	checklist, err := types.NewManifest(input.Checklist...)
	if err != nil {
		err = pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checklist")
		s.metrics.IncRejection(enums.TransitionAuthorizeEntry.String(), err)
		return nil, err
	}

	record, from, err := s.transition(ctx, enums.TransitionAuthorizeEntry, input.TransactionID, operator, func(rec *models.TransactionRecord, now time.Time) {
		rec.EntryItemsGate = checklist.Clone()
		rec.EntryTime = &now
		rec.GateOperatorIn = operator
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.afterTransition(ctx, record, enums.TransitionAuthorizeEntry, from)
	s.logg.Info(logCtx, "transaction.entry_authorized")
	return record, nil
}

// PendingExits lists records waiting for the gate to let them out.
func (s *service) PendingExits(ctx context.Context, location string) ([]models.TransactionRecord, error) {
	return s.store.List(ctx, transactions.Filter{
		Location: strings.TrimSpace(location),
		Statuses: []enums.TransactionStatus{enums.TransactionStatusPendingExit},
	})
}

// AwaitingEntry lists vehicles that are away and may be re-admitted.
func (s *service) AwaitingEntry(ctx context.Context, location string) ([]models.TransactionRecord, error) {
	rule, _ := enums.TransitionAuthorizeEntry.Rule()
	return s.store.List(ctx, transactions.Filter{
		Location: strings.TrimSpace(location),
		Statuses: rule.From,
	})
}

// transition validates and applies one gate step inside the store's update
// and appends its event in the same write. The record is left untouched on
// any failure.
func (s *service) transition(
	ctx context.Context,
	transition enums.Transition,
	id uuid.UUID,
	operator string,
	stamp func(rec *models.TransactionRecord, now time.Time),
) (*models.TransactionRecord, enums.TransactionStatus, error) {
	var from enums.TransactionStatus
	reject := func(err error) (*models.TransactionRecord, enums.TransactionStatus, error) {
		s.metrics.IncRejection(transition.String(), err)
		return nil, "", err
	}

	if id == uuid.Nil {
		return reject(pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required"))
	}
	if operator == "" {
		return reject(pkgerrors.New(pkgerrors.CodeValidation, "operator is required"))
	}

	record, err := s.store.Update(ctx, id, func(rec *models.TransactionRecord) error {
		next, err := transition.Apply(rec.Status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, fmt.Sprintf("transaction is %s, cannot %s", rec.Status, humanize(transition))).
				WithDetails(map[string]any{
					"transaction_id": rec.ID.String(),
					"status":         rec.Status.String(),
					"transition":     transition.String(),
				})
		}
		from = rec.Status
		rec.Status = next
		stamp(rec, s.now().UTC())
		return nil
	}, s.ledger.Recorder(transition, operator))
	if err != nil {
		return reject(err)
	}
	return record, from, nil
}

// afterTransition counts a committed transition and returns the log context
// describing it. The event itself is written with the record.
func (s *service) afterTransition(ctx context.Context, record *models.TransactionRecord, transition enums.Transition, from enums.TransactionStatus) context.Context {
	s.metrics.IncTransition(transition.String())
	return s.logg.WithTransition(s.logContext(ctx, record), transition.String(), from.String(), record.Status.String())
}

func (s *service) logContext(ctx context.Context, record *models.TransactionRecord) context.Context {
	ctx = s.logg.WithTransactionID(ctx, record.ID.String())
	ctx = s.logg.WithPlate(ctx, record.Plate)
	ctx = s.logg.WithLocation(ctx, record.Location)
	return s.logg.WithField(ctx, "status", record.Status.String())
}

func humanize(transition enums.Transition) string {
	return strings.ReplaceAll(transition.String(), "_", " ")
}
