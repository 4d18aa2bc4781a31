package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/yardgate-backend/api/middleware"
	"github.com/angelmondragon/yardgate-backend/api/responses"
	"github.com/angelmondragon/yardgate-backend/api/validators"
	"github.com/angelmondragon/yardgate-backend/internal/gate"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
)

const transactionIDParam = "transactionId"

type authorizeEntryRequest struct {
	Checklist []itemRequest `json:"checklist" validate:"dive"`
	Taps      []tapRequest  `json:"taps,omitempty" validate:"dive"`
}

// GateAuthorizeExit lets a PENDING_EXIT vehicle leave and returns the
// manifest the guard checks it against.
func GateAuthorizeExit(svc gate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gate service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, transactionIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auth, err := svc.AuthorizeExit(r.Context(), gate.AuthorizeExitInput{
			TransactionID: id,
			Operator:      middleware.OperatorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, auth)
	}
}

// GateAuthorizeEntry re-admits a returning vehicle with the guard's
// checklist. An empty body is an empty checklist.
func GateAuthorizeEntry(svc gate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gate service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, transactionIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req authorizeEntryRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		checklist, err := buildItems(req.Checklist, req.Taps)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.AuthorizeEntry(r.Context(), gate.AuthorizeEntryInput{
			TransactionID: id,
			Checklist:     checklist,
			Operator:      middleware.OperatorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// GatePendingExits lists records waiting for exit authorization.
func GatePendingExits(svc gate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gate service unavailable"))
			return
		}
		records, err := svc.PendingExits(r.Context(), strings.TrimSpace(r.URL.Query().Get("location")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, records)
	}
}

// GateAwaitingEntry lists vehicles that are out and may come back.
func GateAwaitingEntry(svc gate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gate service unavailable"))
			return
		}
		records, err := svc.AwaitingEntry(r.Context(), strings.TrimSpace(r.URL.Query().Get("location")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, records)
	}
}
