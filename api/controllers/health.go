package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/possync/api/responses"
	"github.com/angelmondragon/possync/pkg/config"
	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
	"github.com/angelmondragon/possync/pkg/logger"
)

const envHeader = "X-Possync-Env"

// Pinger is any dependency the readiness check can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency. A nil pinger is skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

// Healthz answers the terminal's reachability probe. HEAD gets headers only.
func Healthz(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		w.Header().Set("Cache-Control", "no-store")
		if r.Method == http.MethodHead {
			responses.WriteNoContent(w)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
