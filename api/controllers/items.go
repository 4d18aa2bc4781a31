package controllers

import (
	"strings"

	"github.com/angelmondragon/yardgate-backend/internal/desk"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/types"
)

const (
	tapIncrement = "increment"
	tapDecrement = "decrement"
)

// itemRequest is one manifest line as typed by the console.
type itemRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Kind     string `json:"kind" validate:"required,item_kind"`
	Detail   string `json:"detail,omitempty" validate:"max=60"`
}

// tapRequest is a single +/- press on a line's stepper, replayed after the
// typed lines.
type tapRequest struct {
	Name   string `json:"name" validate:"required,max=120"`
	Kind   string `json:"kind,omitempty" validate:"omitempty,item_kind"`
	Detail string `json:"detail,omitempty" validate:"max=60"`
	Action string `json:"action" validate:"required,oneof=increment decrement"`
}

// buildItems folds typed lines and stepper taps into the list that is
// submitted with the declaration.
func buildItems(lines []itemRequest, taps []tapRequest) ([]types.Item, error) {
	items := make([]types.Item, 0, len(lines))
	for _, line := range lines {
		kind, err := enums.ParseItemKind(line.Kind)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item kind")
		}
		items = append(items, types.Item{
			Name:     line.Name,
			Quantity: line.Quantity,
			Kind:     kind,
			Detail:   line.Detail,
		})
	}
	if len(taps) == 0 {
		return items, nil
	}

	draft, err := desk.NewDraft(items...)
	if err != nil {
		return nil, err
	}
	for _, tap := range taps {
		id := types.NewIdentity(tap.Name, tap.Detail)
		switch strings.ToLower(tap.Action) {
		case tapIncrement:
			kind, err := enums.ParseItemKind(tap.Kind)
			if err != nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "kind is required to add a line").
					WithDetails(map[string]any{"item": id.String()})
			}
			if err := draft.Increment(id, kind); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item edit")
			}
		case tapDecrement:
			if err := draft.Decrement(id); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item edit")
			}
		}
	}
	return draft.Items(), nil
}
