package validators

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
)

var filterFieldRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryFilter turns field=value query parameters into equality filters.
// Each field may appear once and must be a plain column name.
func ParseQueryFilter(r *http.Request) (map[string]string, error) {
	query := r.URL.Query()
	filter := make(map[string]string, len(query))
	for field, values := range query {
		if !filterFieldRe.MatchString(field) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid filter field").WithDetails(map[string]any{"field": field})
		}
		if len(values) != 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "filter field repeated").WithDetails(map[string]any{"field": field})
		}
		filter[field] = values[0]
	}
	return filter, nil
}
