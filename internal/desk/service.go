package desk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/yardgate-backend/internal/ledger"
	"github.com/angelmondragon/yardgate-backend/internal/transactions"
	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
	"github.com/angelmondragon/yardgate-backend/pkg/metrics"
	"github.com/angelmondragon/yardgate-backend/pkg/types"
)

// MsgEntryNotAuthorized is returned when the desk tries to close a cycle the
// gate has not re-admitted yet.
const MsgEntryNotAuthorized = "entry not authorized by gate"

// Service captures the logistics desk declarations that open and close a cycle.
type Service interface {
	DeclareExit(ctx context.Context, input DeclareExitInput) (*models.TransactionRecord, error)
	DeclareEntry(ctx context.Context, input DeclareEntryInput) (*models.TransactionRecord, error)
}

// DeclareExitInput describes a vehicle leaving with cargo. An empty Location
// falls back to the service's default node.
type DeclareExitInput struct {
	Plate    string
	Driver   string
	Location string
	Items    []types.Item
	Operator string
}

// DeclareEntryInput describes what the desk counts back in.
type DeclareEntryInput struct {
	Plate    string
	Items    []types.Item
	Operator string
}

// ServiceParams configure the desk service.
type ServiceParams struct {
	Store    transactions.Store
	Ledger   ledger.Service
	Logger   *logger.Logger
	Metrics  *metrics.TransitionMetrics
	Location string
	Clock    func() time.Time
}

type service struct {
	store    transactions.Store
	ledger   ledger.Service
	logg     *logger.Logger
	metrics  *metrics.TransitionMetrics
	location string
	now      func() time.Time
}

// NewService builds a desk service.
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
		store:    params.Store,
		ledger:   params.Ledger,
		logg:     params.Logger,
		metrics:  params.Metrics,
		location: strings.TrimSpace(params.Location),
		now:      clock,
	}, nil
}

func (s *service) DeclareExit(ctx context.Context, input DeclareExitInput) (*models.TransactionRecord, error) {
	const transition = enums.TransitionDeclareExit

	record, err := s.declareExit(ctx, input)
	if err != nil {
		s.metrics.IncRejection(transition.String(), err)
		return nil, err
	}

	logCtx := s.afterTransition(ctx, record, transition, "")
	s.logg.Info(logCtx, "transaction.created")
	return record, nil
}

func (s *service) declareExit(ctx context.Context, input DeclareExitInput) (*models.TransactionRecord, error) {
	plate := transactions.NormalizePlate(input.Plate)
	driver := strings.TrimSpace(input.Driver)
	operator := strings.TrimSpace(input.Operator)
	location := strings.TrimSpace(input.Location)
	if location == "" {
		location = s.location
	}

	switch {
	case plate == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plate is required")
	case driver == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver is required")
	case operator == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "operator is required")
	case location == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location is required")
	}

	items, err := buildManifest(input.Items)
	if err != nil {
		return nil, err
	}

	rule, _ := enums.TransitionDeclareExit.Rule()
	now := s.now().UTC()
	return s.store.Create(ctx, &models.TransactionRecord{
		Plate:           plate,
		Driver:          driver,
		Location:        location,
		Status:          rule.To,
		ExitItemsDesk:   items,
		ExitItemsGate:   types.Manifest{},
		EntryItemsGate:  types.Manifest{},
		EntryItemsDesk:  types.Manifest{},
		DeskOperatorOut: operator,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, s.ledger.Recorder(enums.TransitionDeclareExit, operator))
}

func (s *service) DeclareEntry(ctx context.Context, input DeclareEntryInput) (*models.TransactionRecord, error) {
	const transition = enums.TransitionDeclareEntry

	var from enums.TransactionStatus
	record, err := s.declareEntry(ctx, input, &from)
	if err != nil {
		s.metrics.IncRejection(transition.String(), err)
		return nil, err
	}

	logCtx := s.afterTransition(ctx, record, transition, from)
	s.logg.Info(logCtx, "transaction.completed")
	return record, nil
}

func (s *service) declareEntry(ctx context.Context, input DeclareEntryInput, from *enums.TransactionStatus) (*models.TransactionRecord, error) {
	plate := transactions.NormalizePlate(input.Plate)
	operator := strings.TrimSpace(input.Operator)
	switch {
	case plate == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plate is required")
	case operator == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "operator is required")
	}

	items, err := buildManifest(input.Items)
	if err != nil {
		return nil, err
	}

	open, err := s.store.FindOpenByPlate(ctx, plate)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, entryNotAuthorized(plate, "")
		}
		return nil, err
	}

	return s.store.Update(ctx, open.ID, func(rec *models.TransactionRecord) error {
		next, err := enums.TransitionDeclareEntry.Apply(rec.Status)
		if err != nil {
			return entryNotAuthorized(plate, rec.Status)
		}
		*from = rec.Status
		rec.Status = next
		rec.EntryItemsDesk = items.Clone()
		rec.DeskOperatorIn = operator
		return nil
	}, s.ledger.Recorder(enums.TransitionDeclareEntry, operator))
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

func buildManifest(items []types.Item) (types.Manifest, error) {
	manifest, err := types.NewManifest(items...)
	if err != nil {
		problems := make([]string, 0, len(multierr.Errors(err)))
		for _, e := range multierr.Errors(err) {
			problems = append(problems, e.Error())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid items").
			WithDetails(map[string]any{"items": problems})
	}
	return manifest, nil
}

func entryNotAuthorized(plate string, status enums.TransactionStatus) error {
	details := map[string]any{"plate": plate}
	if status != "" {
		details["status"] = status.String()
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, MsgEntryNotAuthorized).WithDetails(details)
}
