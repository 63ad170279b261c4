package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pos-backend/pkg/config"
)

// clockSkew tolerated between the API replicas that mint and verify tokens.
const clockSkew = 30 * time.Second

var (
	ErrTokenExpired = errors.New("access token expired")
	ErrTokenInvalid = errors.New("access token invalid")
)

var hs256 = jwt.SigningMethodHS256

// MintAccessToken issues a signed HS256 JWT valid for the configured TTL. A
// blank JTI gets a fresh uuid.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	err := multierr.Combine(checkSigningConfig(cfg), checkPayload(payload))
	if ttl := cfg.AccessTokenTTL(); ttl <= 0 {
		err = multierr.Append(err, errors.New("jwt expiration minutes must be positive"))
	}
	if err != nil {
		return "", err
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	now = now.UTC()
	token := jwt.NewWithClaims(hs256, AccessTokenClaims{
		UserID:     payload.UserID,
		Role:       payload.Role,
		LocationID: payload.LocationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL())),
		},
	})
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry. Failures wrap
// ErrTokenExpired or ErrTokenInvalid.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return verify(cfg, raw, true)
}

// ParseAccessTokenAllowExpired verifies everything except the time-based
// claims, so logout and refresh can still read the jti of a lapsed token.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return verify(cfg, raw, false)
}

func verify(cfg config.JWTConfig, raw string, checkTime bool) (*AccessTokenClaims, error) {
	if err := checkSigningConfig(cfg); err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{hs256.Alg()})}
	if checkTime {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired(), jwt.WithLeeway(clockSkew))
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	// WithoutClaimsValidation also skips the issuer check
	if claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrTokenInvalid, claims.Issuer)
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: invalid role claim %q", ErrTokenInvalid, claims.Role)
	}
	if claims.UserID == uuid.Nil || claims.Subject != claims.UserID.String() {
		return nil, fmt.Errorf("%w: subject does not match user", ErrTokenInvalid)
	}
	return claims, nil
}

func checkSigningConfig(cfg config.JWTConfig) error {
	var err error
	if cfg.Secret == "" {
		err = multierr.Append(err, errors.New("jwt secret is required"))
	}
	if cfg.Issuer == "" {
		err = multierr.Append(err, errors.New("jwt issuer is required"))
	}
	return err
}

func checkPayload(p AccessTokenPayload) error {
	var err error
	if p.UserID == uuid.Nil {
		err = multierr.Append(err, errors.New("user id is required"))
	}
	if !p.Role.IsValid() {
		err = multierr.Append(err, fmt.Errorf("invalid user role %q", p.Role))
	}
	return err
}
