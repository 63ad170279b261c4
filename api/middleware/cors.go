package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets the register front end call the API. Credentials are only
// allowed when origins are listed explicitly.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			tokenHeader, idempotencyHeader,
		},
		ExposedHeaders:   []string{tokenHeader, requestIDHeader, "Idempotency-Replayed", "Retry-After"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})
}
