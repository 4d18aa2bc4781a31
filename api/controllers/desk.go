package controllers

import (
	"net/http"

	"github.com/angelmondragon/yardgate-backend/api/middleware"
	"github.com/angelmondragon/yardgate-backend/api/responses"
	"github.com/angelmondragon/yardgate-backend/api/validators"
	"github.com/angelmondragon/yardgate-backend/internal/desk"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
)

type declareExitRequest struct {
	Plate    string        `json:"plate" validate:"required,max=16"`
	Driver   string        `json:"driver" validate:"required,max=120"`
	Location string        `json:"location,omitempty" validate:"max=60"`
	Items    []itemRequest `json:"items" validate:"dive"`
	Taps     []tapRequest  `json:"taps,omitempty" validate:"dive"`
}

type declareEntryRequest struct {
	Plate string        `json:"plate" validate:"required,max=16"`
	Items []itemRequest `json:"items" validate:"dive"`
	Taps  []tapRequest  `json:"taps,omitempty" validate:"dive"`
}

// DeskDeclareExit opens a cycle for a vehicle leaving with cargo.
func DeskDeclareExit(svc desk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "desk service unavailable"))
			return
		}

		var req declareExitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := buildItems(req.Items, req.Taps)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.DeclareExit(r.Context(), desk.DeclareExitInput{
			Plate:    validators.SanitizeString(req.Plate, 16),
			Driver:   validators.SanitizeString(req.Driver, 120),
			Location: validators.SanitizeString(req.Location, 60),
			Items:    items,
			Operator: middleware.OperatorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// DeskDeclareEntry closes the plate's cycle once the gate has re-admitted it.
func DeskDeclareEntry(svc desk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "desk service unavailable"))
			return
		}

		var req declareEntryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := buildItems(req.Items, req.Taps)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.DeclareEntry(r.Context(), desk.DeclareEntryInput{
			Plate:    validators.SanitizeString(req.Plate, 16),
			Items:    items,
			Operator: middleware.OperatorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}
