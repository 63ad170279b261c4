package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

func newRegisterFixture(t *testing.T) (RegisterService, *db.Client) {
	t.Helper()
	client := db.NewFromGorm(dbtest.NewSQLite(t))
	svc, err := NewRegisterService(RegisterServiceParams{DB: client, Hasher: testHasher(t)})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}
	return svc, client
}

func validRegisterRequest() RegisterRequest {
	return RegisterRequest{
		FirstName: "Ana",
		LastName:  "Lopez",
		Email:     "Ana@Example.com",
		Password:  "supersecret",
		Role:      "cashier",
	}
}

func TestBootstrapCreatesFirstAdminOnce(t *testing.T) {
	svc, client := newRegisterFixture(t)
	ctx := context.Background()

	req := validRegisterRequest()
	req.Role = "cashier"
	user, err := svc.Bootstrap(ctx, req)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if user.Role != enums.UserRoleAdmin {
		t.Fatalf("bootstrap must create an admin, got %s", user.Role)
	}
	if user.Email != "ana@example.com" {
		t.Fatalf("expected normalised email, got %s", user.Email)
	}

	var stored models.User
	if err := client.DB().First(&stored, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	ok, _, err := testHasher(t).Verify("supersecret", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
	}

	second := validRegisterRequest()
	second.Email = "other@example.com"
	if _, err := svc.Bootstrap(ctx, second); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on second bootstrap, got %v", err)
	}
}

func TestRegisterRequiresAdmin(t *testing.T) {
	svc, _ := newRegisterFixture(t)
	cashier := pkgAuth.Actor{UserID: uuid.New(), Role: enums.UserRoleCashier}

	if _, err := svc.Register(context.Background(), cashier, validRegisterRequest()); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRegisterCashierWithLocation(t *testing.T) {
	svc, client := newRegisterFixture(t)
	ctx := context.Background()
	location := &models.Location{Code: "MAIN", Name: "Main store", IsActive: true}
	dbtest.Seed(t, client.DB(), location)

	admin := pkgAuth.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	req := validRegisterRequest()
	req.DefaultLocationID = &location.ID

	user, err := svc.Register(ctx, admin, req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != enums.UserRoleCashier || user.DefaultLocationID == nil || *user.DefaultLocationID != location.ID {
		t.Fatalf("unexpected user %+v", user)
	}

	if _, err := svc.Register(ctx, admin, req); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected duplicate email conflict, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newRegisterFixture(t)
	admin := pkgAuth.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	missing := uuid.New()

	cases := []struct {
		name   string
		mutate func(*RegisterRequest)
		code   pkgerrors.Code
	}{
		{name: "blank email", mutate: func(r *RegisterRequest) { r.Email = " " }, code: pkgerrors.CodeValidation},
		{name: "blank name", mutate: func(r *RegisterRequest) { r.FirstName = "" }, code: pkgerrors.CodeValidation},
		{name: "unknown role", mutate: func(r *RegisterRequest) { r.Role = "manager" }, code: pkgerrors.CodeValidation},
		{name: "empty password", mutate: func(r *RegisterRequest) { r.Password = "" }, code: pkgerrors.CodeValidation},
		{name: "unknown location", mutate: func(r *RegisterRequest) { r.DefaultLocationID = &missing }, code: pkgerrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRegisterRequest()
			tc.mutate(&req)
			if _, err := svc.Register(context.Background(), admin, req); !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}
