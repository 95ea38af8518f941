package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/possync/api/responses"
	"github.com/angelmondragon/possync/api/validators"
	"github.com/angelmondragon/possync/internal/catalog"
	"github.com/angelmondragon/possync/internal/localstore"
	"github.com/angelmondragon/possync/internal/pos"
	"github.com/angelmondragon/possync/internal/queue"
	"github.com/angelmondragon/possync/internal/reachability"
	"github.com/angelmondragon/possync/pkg/enums"
	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
	"github.com/angelmondragon/possync/pkg/logger"
)

const maxBarcodeLen = 128

// AgentService is the terminal-facing surface of the sync layer.
type AgentService interface {
	State() reachability.State
	OfflineCapable() bool
	PendingCount(ctx context.Context) (int, error)
	ViewsGeneration() uint64
	TriggerSync(ctx context.Context) bool
	EnqueueOrSend(ctx context.Context, a queue.Action) (pos.Outcome, error)
	GetCachedProducts(ctx context.Context) catalog.View
	GetCachedProductByBarcode(ctx context.Context, code string) (*localstore.Product, string)
	Sales(ctx context.Context) ([]localstore.OfflineSale, error)
}

// NetworkSwitch flips a manual connectivity signal.
type NetworkSwitch interface {
	Set(online bool)
}

// ReachabilityChecker re-evaluates reachability immediately.
type ReachabilityChecker interface {
	Check(ctx context.Context) bool
}

type statusResponse struct {
	Online          bool   `json:"online"`
	Syncing         bool   `json:"syncing"`
	Pending         int    `json:"pending"`
	OfflineCapable  bool   `json:"offline_capable"`
	ViewsGeneration uint64 `json:"views_generation"`
}

// AgentStatus reports reachability, sync activity and queue depth.
func AgentStatus(svc AgentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync service unavailable"))
			return
		}

		pending, err := svc.PendingCount(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending actions"))
			return
		}

		state := svc.State()
		responses.WriteSuccess(w, statusResponse{
			Online:          state.Online,
			Syncing:         state.Syncing,
			Pending:         pending,
			OfflineCapable:  svc.OfflineCapable(),
			ViewsGeneration: svc.ViewsGeneration(),
		})
	}
}

type mutationRequest struct {
	Kind    string          `json:"kind" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// AgentMutate sends a mutation to the remote or queues it. Queued mutations
// answer 202.
func AgentMutate(svc AgentService, logg *logger.Logger) http.HandlerFunc {
	registry := queue.DefaultRegistry()
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync service unavailable"))
			return
		}

		var payload mutationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseActionKind(strings.TrimSpace(payload.Kind))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
			return
		}

		action, err := registry.Decode(kind, queue.PayloadVersion, payload.Payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payload"))
			return
		}

		out, err := svc.EnqueueOrSend(r.Context(), action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if out.Queued {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, out)
	}
}

// AgentSync asks for a queue drain. It never waits for the drain to finish.
func AgentSync(svc AgentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync service unavailable"))
			return
		}
		started := svc.TriggerSync(r.Context())
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]bool{"started": started})
	}
}

func AgentProducts(svc AgentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync service unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.GetCachedProducts(r.Context()))
	}
}

// AgentProductByBarcode looks up an exact barcode match.
func AgentProductByBarcode(svc AgentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync service unavailable"))
			return
		}

		code := validators.SanitizeBarcode(chi.URLParam(r, "code"), maxBarcodeLen)
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "barcode is required"))
			return
		}

		product, source := svc.GetCachedProductByBarcode(r.Context(), code)
		if product == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no product with barcode "+code))
			return
		}
		responses.WriteSuccess(w, map[string]any{"product": product, "source": source})
	}
}

// AgentSales returns the newest entries of the local sale journal.
func AgentSales(svc AgentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sales, err := svc.Sales(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales"))
			return
		}
		total := len(sales)
		if total > limit {
			sales = sales[:limit]
		}
		responses.WriteList(w, sales, total)
	}
}

type networkRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// AgentNetwork drives the manual connectivity signal, then re-checks
// reachability so the answer reflects the probe result.
func AgentNetwork(sw NetworkSwitch, checker ReachabilityChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sw == nil || checker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "manual network control is disabled"))
			return
		}

		var payload networkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sw.Set(*payload.Online)
		online := checker.Check(r.Context())
		responses.WriteSuccess(w, map[string]bool{"online": online})
	}
}
