package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/pos-backend/api/middleware"
	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/api/validators"
	pkgAuth "github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/auth/session"
	"github.com/angelmondragon/pos-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type sessionTokenRotator interface {
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type sessionEndpoints struct {
	sessions sessionTokenRotator
	jwt      config.JWTConfig
	logg     *logger.Logger
}

func (e sessionEndpoints) fail(w http.ResponseWriter, r *http.Request, err error) {
	responses.WriteError(r.Context(), e.logg, w, err)
}

// claims tolerates an expired access token: a register whose token lapsed
// must still be able to log out or refresh.
func (e sessionEndpoints) claims(r *http.Request) (*pkgAuth.AccessTokenClaims, error) {
	if e.sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable")
	}
	raw := middleware.BearerToken(r)
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(e.jwt, raw)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	case claims.ID == "":
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}

// AuthLogout drops the refresh token bound to the caller's access token.
func AuthLogout(manager sessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	e := sessionEndpoints{sessions: manager, jwt: cfg, logg: logg}
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := e.claims(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		if err := e.sessions.Revoke(r.Context(), claims.ID); err != nil {
			e.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthRefresh swaps a refresh token for a new pair. The new access token
// keeps the role and location of the old one.
func AuthRefresh(manager sessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	e := sessionEndpoints{sessions: manager, jwt: cfg, logg: logg}
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := e.claims(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			e.fail(w, r, err)
			return
		}

		accessID, refreshToken, err := e.sessions.Rotate(r.Context(), claims.ID, body.RefreshToken)
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			e.fail(w, r, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token"))
			return
		}
		if err != nil {
			e.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session"))
			return
		}

		accessToken, err := pkgAuth.MintAccessToken(e.jwt, time.Now().UTC(), pkgAuth.AccessTokenPayload{
			UserID:     claims.UserID,
			Role:       claims.Role,
			LocationID: claims.LocationID,
			JTI:        accessID,
		})
		if err != nil {
			e.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt"))
			return
		}
		w.Header().Set(tokenHeader, accessToken)
		responses.WriteSuccess(w, refreshResponse{AccessToken: accessToken, RefreshToken: refreshToken})
	}
}
