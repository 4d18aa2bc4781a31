package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/yardgate-backend/api/responses"
	"github.com/angelmondragon/yardgate-backend/api/validators"
	"github.com/angelmondragon/yardgate-backend/internal/ledger"
	"github.com/angelmondragon/yardgate-backend/internal/transactions"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
	"github.com/angelmondragon/yardgate-backend/pkg/pagination"
)

// ListTransactions filters records by status, location and plate, one page at
// a time.
func ListTransactions(store transactions.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction store unavailable"))
			return
		}

		statuses, err := validators.ParseQueryStatuses(r, "status")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryLimit(r, "limit")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		page, err := transactions.ListPage(r.Context(), store, transactions.Filter{
			Statuses: statuses,
			Location: strings.TrimSpace(query.Get("location")),
			Plate:    strings.TrimSpace(query.Get("plate")),
		}, pagination.Params{Limit: limit, Cursor: query.Get("cursor")})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

func GetTransaction(store transactions.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction store unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, transactionIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := store.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// ListTransactionEvents returns the transition history of one record, oldest
// first.
func ListTransactionEvents(store transactions.Store, svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, transactionIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := store.Get(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.ListByTransaction(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, events)
	}
}
