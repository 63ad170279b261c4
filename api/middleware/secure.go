package middleware

import (
	"net/http"

	"github.com/unrolled/secure"

	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

// SecureHeaders applies the standard response hardening headers.
func SecureHeaders(cfg config.SecurityConfig, isDev bool, logg *logger.Logger) func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		AllowedHosts:          cfg.AllowedHosts,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.SSLRedirect,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:            cfg.HSTSSeconds,
		STSIncludeSubdomains:  true,
		IsDevelopment:         isDev,
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := secureMiddleware.Process(w, r); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "request blocked"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
