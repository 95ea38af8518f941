package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/possync/api/responses"
	pkgAuth "github.com/angelmondragon/possync/pkg/auth"
	"github.com/angelmondragon/possync/pkg/config"
	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
	"github.com/angelmondragon/possync/pkg/logger"
)

// TerminalAuth validates a terminal bearer token and seeds the request context with its claims.
func TerminalAuth(cfg config.RemoteConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseTerminalToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithTerminalID(r.Context(), claims.TerminalID)
			if claims.StoreID != "" {
				ctx = WithStoreID(ctx, claims.StoreID)
			}

			if logg != nil {
				ctx = logg.WithTerminalID(ctx, claims.TerminalID)
				if claims.StoreID != "" {
					ctx = logg.WithStoreID(ctx, claims.StoreID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
