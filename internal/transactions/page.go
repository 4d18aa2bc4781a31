package transactions

import (
	"context"
	"sort"

	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/pagination"
)

// Page is one slice of a filtered listing, oldest first.
type Page struct {
	Transactions []models.TransactionRecord `json:"transactions"`
	NextCursor   string                     `json:"next_cursor,omitempty"`
}

// ListPage runs List and returns the rows after params.Cursor, at most
// params.Limit of them.
func ListPage(ctx context.Context, store Store, filter Filter, params pagination.Params) (Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]any{"field": "cursor"})
	}

	records, err := store.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	start := 0
	if cursor != nil {
		for start < len(records) && cursor.Precedes(records[start].CreatedAt, records[start].ID) {
			start++
		}
	}
	records = records[start:]

	limit := pagination.NormalizeLimit(params.Limit)
	page := Page{Transactions: records}
	if len(records) >= pagination.LimitWithBuffer(params.Limit) {
		last := records[limit-1]
		page.Transactions = records[:limit]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	if page.Transactions == nil {
		page.Transactions = []models.TransactionRecord{}
	}
	return page, nil
}
