package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/possync/api/middleware"
	"github.com/angelmondragon/possync/api/responses"
	"github.com/angelmondragon/possync/api/validators"
	"github.com/angelmondragon/possync/internal/remote"
	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
	"github.com/angelmondragon/possync/pkg/logger"
)

// TableSelect lists rows of {table}. Every query parameter is an equality filter.
func TableSelect(backend remote.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if backend == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "record backend unavailable"))
			return
		}

		table := chi.URLParam(r, "table")
		fields, err := validators.ParseQueryFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := make(remote.Filter, len(fields))
		for key, value := range fields {
			filter[key] = value
		}

		rows, err := backend.Select(r.Context(), table, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, rows, len(rows))
	}
}

// TableInsert creates a row in {table} and returns it as stored.
func TableInsert(backend remote.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if backend == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "record backend unavailable"))
			return
		}

		table := chi.URLParam(r, "table")
		body, err := validators.DecodeJSONObject(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := remote.WithIdempotencyKey(r.Context(), r.Header.Get("Idempotency-Key"))
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"table":       table,
				"terminal_id": middleware.TerminalIDFromContext(ctx),
			})
		}

		created, err := backend.Insert(ctx, table, remote.Record(normalizeNumbers(body)))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// TableUpdate patches row {id} of {table}.
func TableUpdate(backend remote.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if backend == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "record backend unavailable"))
			return
		}

		table := chi.URLParam(r, "table")
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "id is required"))
			return
		}

		patch, err := validators.DecodeJSONObject(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := backend.Update(r.Context(), table, id, remote.Record(normalizeNumbers(patch))); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": id})
	}
}

// TableDelete removes row {id} of {table}.
func TableDelete(backend remote.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if backend == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "record backend unavailable"))
			return
		}

		table := chi.URLParam(r, "table")
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "id is required"))
			return
		}

		if err := backend.Delete(r.Context(), table, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// normalizeNumbers turns integral json.Numbers into int64 and keeps the rest
// as their decimal text.
func normalizeNumbers(in map[string]any) map[string]any {
	for k, v := range in {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			in[k] = i
			continue
		}
		in[k] = n.String()
	}
	return in
}
