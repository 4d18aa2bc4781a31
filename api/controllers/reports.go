package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/yardgate-backend/api/responses"
	"github.com/angelmondragon/yardgate-backend/api/validators"
	"github.com/angelmondragon/yardgate-backend/internal/reconciliation"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
)

// FlowReport returns outbound/inbound totals for a location over a week or
// month. The window defaults to week.
func FlowReport(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		window, err := validators.ParseQueryWindow(r, "window", enums.ReportWindowWeek)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Flow(r.Context(), strings.TrimSpace(r.URL.Query().Get("location")), window)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}

// DiscrepancyReport compares what left with what came back for a completed
// record.
func DiscrepancyReport(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, transactionIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Discrepancy(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}

// ChecklistReport compares the desk's entry count with the gate checklist.
func ChecklistReport(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, transactionIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Checklist(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}
