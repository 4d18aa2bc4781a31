package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
)

// ParseUUIDParam reads a chi URL parameter as a UUID.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// ParseQueryStatuses reads a comma separated list of transaction statuses.
func ParseQueryStatuses(r *http.Request, key string) ([]enums.TransactionStatus, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	var statuses []enums.TransactionStatus
	for _, part := range strings.Split(raw, ",") {
		status, err := enums.ParseTransactionStatus(strings.ToUpper(strings.TrimSpace(part)))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown status").WithDetails(map[string]any{"field": key, "value": part})
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// ParseQueryWindow reads a report window, falling back to defaultVal.
func ParseQueryWindow(r *http.Request, key string, defaultVal enums.ReportWindow) (enums.ReportWindow, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	window, err := enums.ParseReportWindow(raw)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "window must be week or month").WithDetails(map[string]any{"field": key})
	}
	return window, nil
}

// ParseQueryLimit reads a positive page size. An absent value returns zero so
// the caller's default applies.
func ParseQueryLimit(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a positive integer").WithDetails(map[string]any{"field": key})
	}
	return limit, nil
}
