package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/pagination"
)

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func invalidQuery(key, message string, extra map[string]any) *pkgerrors.Error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
}

// ParseQueryInt reads key as an integer in [lo, hi], returning def when absent.
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(key, "query parameter must be numeric", nil)
	}
	if n < lo || n > hi {
		return 0, invalidQuery(key, "query parameter out of range", map[string]any{"min": lo, "max": hi})
	}
	return n, nil
}

// ParseQueryBool reads key as a boolean, returning false when absent.
func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidQuery(key, "query parameter must be true or false", nil)
	}
	return v, nil
}

// PageParams reads the limit and cursor shared by every list endpoint.
func PageParams(r *http.Request) (pagination.Params, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: queryValue(r, "cursor")}, nil
}
