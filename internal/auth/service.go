package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/users"
	pkgAuth "github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/auth/session"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/security"
)

// Every credential failure returns this one error so callers cannot tell
// unknown accounts from wrong passwords.
var errBadCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")

// Service defines the behavior needed by the auth controller.
type Service interface {
	Authenticate(ctx context.Context, email, password string) (*Identity, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	LocationExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
}

type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Hasher         *security.Hasher
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
}

type service struct {
	users    userRepository
	sessions sessionManager
	hasher   *security.Hasher
	jwtCfg   config.JWTConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.UserRepo == nil:
		return nil, errors.New("user repository is required")
	case params.SessionManager == nil:
		return nil, errors.New("session manager is required")
	case params.Hasher == nil:
		return nil, errors.New("password hasher is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		users:    params.UserRepo,
		sessions: params.SessionManager,
		hasher:   params.Hasher,
		jwtCfg:   params.JWTConfig,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Authenticate checks credentials without opening a session.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	user, err := s.verify(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return &Identity{ActorID: user.ID, IsAdmin: user.Role.IsAdmin()}, nil
}

// Login verifies credentials, binds the session to a location and issues an
// access and refresh token pair keyed by the same jti.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.verify(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	locationID, err := s.sessionLocation(ctx, user, req.LocationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	jti := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID:     user.ID,
		Role:       user.Role,
		LocationID: locationID,
		JTI:        jti,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.sessions.Generate(ctx, jti)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open session")
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		LocationID:   locationID,
		User:         users.FromModel(user),
	}, nil
}

// sessionLocation prefers an explicitly requested location over the user's default.
func (s *service) sessionLocation(ctx context.Context, user *models.User, requested *uuid.UUID) (*uuid.UUID, error) {
	if requested == nil || *requested == uuid.Nil {
		return user.DefaultLocationID, nil
	}
	ok, err := s.users.LocationExists(ctx, *requested)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check location")
	}
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "location %s not found", *requested)
	}
	return requested, nil
}

func (s *service) verify(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errBadCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.hasher.Decoy(password)
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	ok, stale, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok || !user.IsActive || !user.Role.IsValid() {
		return nil, errBadCredentials
	}
	if stale {
		s.upgradeHash(ctx, user, password)
	}
	return user, nil
}

// upgradeHash re-hashes under the current parameters. Failures only delay the
// upgrade to the next successful login.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"user_id": user.ID.String(),
			"error":   err.Error(),
		}), "password rehash skipped")
		return
	}
	user.PasswordHash = hash
}
