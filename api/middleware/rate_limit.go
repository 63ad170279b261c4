package middleware

import (
	"net/http"

	"github.com/go-chi/httprate"

	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

// ClientIP picks how a request's address is derived for rate limiting. Proxy
// headers are client controlled unless a trusted proxy rewrites them, so
// the socket address is used by default.
func ClientIP(trustProxyHeaders bool) httprate.KeyFunc {
	if trustProxyHeaders {
		return httprate.KeyByRealIP
	}
	return httprate.KeyByIP
}

// APIRateLimit caps per-IP request volume across the API with an in-process counter.
func APIRateLimit(cfg config.APIRateLimitConfig, clientIP httprate.KeyFunc, logg *logger.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled || cfg.Requests <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if clientIP == nil {
		clientIP = httprate.KeyByIP
	}
	return httprate.Limit(cfg.Requests, cfg.Window,
		httprate.WithKeyFuncs(clientIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
		}),
	)
}
