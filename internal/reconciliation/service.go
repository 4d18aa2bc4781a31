package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/yardgate-backend/internal/transactions"
	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
	"github.com/angelmondragon/yardgate-backend/pkg/metrics"
)

// Service runs reports over the transaction store.
type Service interface {
	Flow(ctx context.Context, location string, window enums.ReportWindow) (FlowReport, error)
	Discrepancy(ctx context.Context, transactionID uuid.UUID) (Discrepancy, error)
	Checklist(ctx context.Context, transactionID uuid.UUID) (Discrepancy, error)
}

// ServiceParams configure the reporting service. Timezone decides which
// calendar day a timestamp falls on; nil means UTC.
type ServiceParams struct {
	Store    transactions.Store
	Logger   *logger.Logger
	Metrics  *metrics.TransitionMetrics
	Timezone *time.Location
	Clock    func() time.Time
}

type service struct {
	store   transactions.Store
	logg    *logger.Logger
	metrics *metrics.TransitionMetrics
	tz      *time.Location
	now     func() time.Time
}

// NewService builds a reporting service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("transaction store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	tz := params.Timezone
	if tz == nil {
		tz = time.UTC
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		store:   params.Store,
		logg:    params.Logger,
		metrics: params.Metrics,
		tz:      tz,
		now:     clock,
	}, nil
}

func (s *service) Flow(ctx context.Context, location string, window enums.ReportWindow) (FlowReport, error) {
	if !window.IsValid() {
		return FlowReport{}, pkgerrors.New(pkgerrors.CodeValidation, "window must be week or month")
	}
	start := time.Now()
	defer func() { s.metrics.ObserveReport("flow", time.Since(start)) }()

	location = strings.TrimSpace(location)
	records, err := s.store.List(ctx, transactions.Filter{Location: location})
	if err != nil {
		return FlowReport{}, err
	}
	report := ComputeFlow(records, location, window, s.now().In(s.tz))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"report":         "flow",
		"window":         window.String(),
		"records":        len(records),
		"total_outbound": report.TotalOutbound,
		"total_inbound":  report.TotalInbound,
	})
	s.logg.Debug(logCtx, "report.computed")
	return report, nil
}

func (s *service) Discrepancy(ctx context.Context, transactionID uuid.UUID) (Discrepancy, error) {
	return s.compare(ctx, "discrepancy", transactionID, ComputeDiscrepancy)
}

func (s *service) Checklist(ctx context.Context, transactionID uuid.UUID) (Discrepancy, error) {
	return s.compare(ctx, "checklist", transactionID, CompareChecklist)
}

func (s *service) compare(ctx context.Context, report string, id uuid.UUID, fn func(*models.TransactionRecord) (Discrepancy, error)) (Discrepancy, error) {
	if id == uuid.Nil {
		return Discrepancy{}, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	start := time.Now()
	defer func() { s.metrics.ObserveReport(report, time.Since(start)) }()

	record, err := s.store.Get(ctx, id)
	if err != nil {
		return Discrepancy{}, err
	}
	return fn(record)
}
