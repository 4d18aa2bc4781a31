package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/yardgate-backend/api/responses"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
)

const (
	OperatorIDHeader   = "X-Operator-Id"
	OperatorRoleHeader = "X-Operator-Role"
)

// Operator lifts the console's operator headers into the request context and
// the request logger. The role is informational only; it is never used to
// gate an action.
func Operator(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if id := strings.TrimSpace(r.Header.Get(OperatorIDHeader)); id != "" {
				ctx = WithOperatorID(ctx, id)
				if logg != nil {
					ctx = logg.WithOperator(ctx, id)
				}
			}
			if role := strings.TrimSpace(r.Header.Get(OperatorRoleHeader)); role != "" {
				ctx = WithOperatorRole(ctx, role)
				if logg != nil {
					ctx = logg.WithOperatorRole(ctx, role)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperator rejects requests that do not carry an operator id. Mount it
// on routes that stamp an operator on a transaction.
func RequireOperator(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if OperatorIDFromContext(r.Context()) == "" {
				err := pkgerrors.New(pkgerrors.CodeValidation, OperatorIDHeader+" header required").
					WithDetails(map[string]any{"header": OperatorIDHeader})
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
