package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/angelmondragon/pos-backend/api/responses"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/ratelimit"
)

// loginBodyLimit caps how much of a login body is buffered to find the email.
const loginBodyLimit = 16 << 10

// LoginLimiters throttle credential guessing. IP counts attempts per client
// address and Email per target account, so neither rotating addresses nor
// spraying accounts escapes. Either may be nil. ClientIP defaults to the
// socket address.
type LoginLimiters struct {
	IP       ratelimit.Limiter
	Email    ratelimit.Limiter
	Window   time.Duration
	ClientIP httprate.KeyFunc
}

// throttleKey derives the identifier one limiter counts for a request.
type throttleKey struct {
	scope   string
	limiter ratelimit.Limiter
	key     func(r *http.Request, body []byte) string
}

// LoginThrottle rejects login attempts once any limiter is exhausted. A
// limiter store outage fails closed with 503.
func LoginThrottle(limiters LoginLimiters, logg *logger.Logger) func(http.Handler) http.Handler {
	var keys []throttleKey
	if limiters.IP != nil {
		keys = append(keys, throttleKey{scope: "ip", limiter: limiters.IP, key: remoteIP(limiters.ClientIP)})
	}
	if limiters.Email != nil {
		keys = append(keys, throttleKey{scope: "email", limiter: limiters.Email, key: emailDigest})
	}
	retryAfter := ""
	if limiters.Window > 0 {
		retryAfter = strconv.Itoa(int(limiters.Window.Round(time.Second).Seconds()))
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			body, err := io.ReadAll(io.LimitReader(r.Body, loginBodyLimit))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			for _, k := range keys {
				id := k.key(r, body)
				if id == "" {
					continue
				}
				allowed, err := k.limiter.Allow(ctx, id)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "login throttle"))
					return
				}
				if allowed {
					continue
				}
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"scope":      k.scope,
						"identifier": id,
					}), "login.throttled")
				}
				if retryAfter != "" {
					w.Header().Set("Retry-After", retryAfter)
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(clientIP httprate.KeyFunc) func(*http.Request, []byte) string {
	if clientIP == nil {
		clientIP = httprate.KeyByIP
	}
	return func(r *http.Request, _ []byte) string {
		ip, err := clientIP(r)
		if err != nil {
			return ""
		}
		return ip
	}
}

// emailDigest keys the email limiter without putting addresses in Redis or logs.
func emailDigest(_ *http.Request, body []byte) string {
	var login struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &login); err != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(login.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
