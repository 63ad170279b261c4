package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "pos",
	ExpirationMinutes: 30,
}

func TestServiceLoginIssuesTokensWithDefaultLocation(t *testing.T) {
	locationID := uuid.New()
	user := testUser(t, "cashier@example.com", "till-secret", enums.UserRoleCashier)
	user.DefaultLocationID = &locationID

	repo := &stubUserRepo{user: user}
	sessions := &stubSessionManager{}
	svc := mustService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "  Cashier@Example.com ",
		Password: "till-secret",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.RefreshToken != "refresh-token" {
		t.Fatalf("unexpected refresh token %q", resp.RefreshToken)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.UserRoleCashier {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.LocationID == nil || *claims.LocationID != locationID {
		t.Fatalf("expected default location claim, got %v", claims.LocationID)
	}
	if sessions.accessID != claims.ID {
		t.Fatalf("session keyed by %q, token jti %q", sessions.accessID, claims.ID)
	}
	if repo.lastLoginFor != user.ID {
		t.Fatalf("expected last login to be recorded")
	}
	if resp.User == nil || resp.User.Email != user.Email {
		t.Fatalf("expected user dto in response")
	}
}

func TestServiceLoginHonoursRequestedLocation(t *testing.T) {
	requested := uuid.New()
	user := testUser(t, "admin@example.com", "admin-secret", enums.UserRoleAdmin)
	repo := &stubUserRepo{user: user, locations: map[uuid.UUID]bool{requested: true}}
	svc := mustService(t, repo, &stubSessionManager{})

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:      user.Email,
		Password:   "admin-secret",
		LocationID: &requested,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.LocationID == nil || *resp.LocationID != requested {
		t.Fatalf("expected requested location, got %v", resp.LocationID)
	}
}

func TestServiceLoginUnknownLocation(t *testing.T) {
	missing := uuid.New()
	user := testUser(t, "admin@example.com", "admin-secret", enums.UserRoleAdmin)
	svc := mustService(t, &stubUserRepo{user: user}, &stubSessionManager{})

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:      user.Email,
		Password:   "admin-secret",
		LocationID: &missing,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := testUser(t, "cashier@example.com", "right", enums.UserRoleCashier)
	inactive := testUser(t, "gone@example.com", "right", enums.UserRoleCashier)
	inactive.IsActive = false

	cases := []struct {
		name     string
		user     *models.User
		email    string
		password string
	}{
		{name: "wrong password", user: user, email: user.Email, password: "wrong"},
		{name: "unknown email", user: user, email: "nobody@example.com", password: "right"},
		{name: "inactive user", user: inactive, email: inactive.Email, password: "right"},
		{name: "empty password", user: user, email: user.Email, password: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions := &stubSessionManager{}
			svc := mustService(t, &stubUserRepo{user: tc.user}, sessions)
			_, err := svc.Login(context.Background(), LoginRequest{Email: tc.email, Password: tc.password})
			if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
			if sessions.accessID != "" {
				t.Fatalf("no session should be created")
			}
		})
	}
}

func TestServiceAuthenticate(t *testing.T) {
	admin := testUser(t, "admin@example.com", "admin-secret", enums.UserRoleAdmin)
	svc := mustService(t, &stubUserRepo{user: admin}, &stubSessionManager{})

	identity, err := svc.Authenticate(context.Background(), admin.Email, "admin-secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.ActorID != admin.ID || !identity.IsAdmin {
		t.Fatalf("unexpected identity %+v", identity)
	}

	if _, err := svc.Authenticate(context.Background(), admin.Email, "nope"); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestServiceLoginSessionFailure(t *testing.T) {
	user := testUser(t, "cashier@example.com", "till-secret", enums.UserRoleCashier)
	svc := mustService(t, &stubUserRepo{user: user}, &stubSessionManager{err: errors.New("redis down")})

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "till-secret"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestServiceLoginUpgradesStaleHash(t *testing.T) {
	user := testUser(t, "cashier@example.com", "till-secret", enums.UserRoleCashier)
	repo := &stubUserRepo{user: user}
	original := user.PasswordHash

	stronger := fastPasswords
	stronger.ArgonTime = 2
	hasher, err := security.NewHasher(stronger)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	svc, err := NewService(ServiceParams{UserRepo: repo, SessionManager: &stubSessionManager{}, Hasher: hasher, JWTConfig: testJWT})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "till-secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if repo.rehashed == "" || repo.rehashed == original {
		t.Fatalf("expected hash upgrade")
	}
	ok, stale, err := hasher.Verify("till-secret", repo.rehashed)
	if err != nil || !ok || stale {
		t.Fatalf("upgraded hash unusable: ok=%v stale=%v err=%v", ok, stale, err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{UserRepo: &stubUserRepo{}, SessionManager: &stubSessionManager{}}); err == nil {
		t.Fatal("expected missing hasher error")
	}
}

func mustService(t *testing.T, repo userRepository, sessions sessionManager) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{UserRepo: repo, SessionManager: sessions, Hasher: testHasher(t), JWTConfig: testJWT})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func testUser(t *testing.T, email, password string, role enums.UserRole) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: mustHashPassword(t, password),
		FirstName:    "Test",
		LastName:     "Operator",
		Role:         role,
		IsActive:     true,
	}
}

var fastPasswords = config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1}

func testHasher(t *testing.T) *security.Hasher {
	t.Helper()
	h, err := security.NewHasher(fastPasswords)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return h
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := testHasher(t).Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

type stubUserRepo struct {
	user         *models.User
	locations    map[uuid.UUID]bool
	lastLoginFor uuid.UUID
	rehashed     string
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.lastLoginFor = id
	return nil
}

func (s *stubUserRepo) UpdatePasswordHash(_ context.Context, _ uuid.UUID, hash string) error {
	s.rehashed = hash
	return nil
}

func (s *stubUserRepo) LocationExists(_ context.Context, id uuid.UUID) (bool, error) {
	return s.locations[id], nil
}

type stubSessionManager struct {
	accessID string
	err      error
}

func (s *stubSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.accessID = accessID
	return "refresh-token", nil
}
