package register

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	conn     *gorm.DB
	clock    *clock
	svc      Service
	location models.Location
	cashier  auth.Actor
	other    auth.Actor
	admin    auth.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	f := &fixture{
		conn:     conn,
		clock:    &clock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)},
		location: models.Location{Code: "MAIN", Name: "Main store"},
	}
	dbtest.Seed(t, conn, &f.location)
	f.cashier = f.user(t, enums.UserRoleCashier)
	f.other = f.user(t, enums.UserRoleCashier)
	f.admin = f.user(t, enums.UserRoleAdmin)

	svc, err := NewService(ServiceParams{
		DB:   db.NewFromGorm(conn),
		Repo: NewRepository(conn),
		Now:  f.clock.Now,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) user(t *testing.T, role enums.UserRole) auth.Actor {
	t.Helper()
	locationID := f.location.ID
	user := models.User{
		Email:             string(role) + "+" + uuid.NewString() + "@example.com",
		PasswordHash:      "hash",
		FirstName:         "Test",
		LastName:          "User",
		Role:              role,
		DefaultLocationID: &locationID,
	}
	dbtest.Seed(t, f.conn, &user)
	return auth.Actor{UserID: user.ID, Role: role, LocationID: &locationID}
}

// sale records a sale at the fixture location offset from the clock.
func (f *fixture) sale(t *testing.T, at time.Duration, method enums.PaymentMethod, status enums.SaleStatus, totalCents int) {
	t.Helper()
	dbtest.Seed(t, f.conn, &models.Sale{
		ActorID:       f.cashier.UserID,
		LocationID:    f.location.ID,
		TicketNumber:  "TKT-20260105-" + strings.ToUpper(uuid.NewString()[:10]),
		SubtotalCents: totalCents,
		TotalCents:    totalCents,
		PaymentMethod: method,
		Status:        status,
		CreatedAt:     f.clock.Now().Add(at),
	})
}

func (f *fixture) open(t *testing.T, actor auth.Actor, cash string) *SessionDTO {
	t.Helper()
	session, err := f.svc.Open(context.Background(), actor, OpenInput{OpeningCash: cash})
	require.NoError(t, err)
	return session
}

func TestOpenCloseReconcilesCashSales(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.sale(t, -time.Hour, enums.PaymentMethodCash, enums.SaleStatusCompleted, 9999)
	session := f.open(t, f.cashier, "150.00")
	require.Equal(t, enums.RegisterStatusOpen, session.Status)
	require.Equal(t, 15000, session.OpeningCashCents)
	require.Equal(t, f.location.ID, session.LocationID)
	require.Nil(t, session.ClosedAt)

	f.sale(t, time.Minute, enums.PaymentMethodCash, enums.SaleStatusCompleted, 2900)
	f.sale(t, 2*time.Minute, enums.PaymentMethodCash, enums.SaleStatusCompleted, 1160)
	f.sale(t, 3*time.Minute, enums.PaymentMethodCard, enums.SaleStatusCompleted, 5000)
	f.sale(t, 4*time.Minute, enums.PaymentMethodCash, enums.SaleStatusVoided, 700)
	f.clock.advance(8 * time.Hour)

	current, err := f.svc.Current(ctx, f.cashier, nil)
	require.NoError(t, err)
	require.Equal(t, session.ID, current.Session.ID)
	require.Equal(t, 3, current.SalesCount)
	require.Equal(t, 9060, current.SalesTotalCents)
	require.Equal(t, "90.60", current.SalesTotal)
	require.Equal(t, 4060, current.CashSalesCents)
	require.Equal(t, 1, current.VoidedCount)
	require.Equal(t, 19060, current.ExpectedCashCents)
	require.Equal(t, "190.60", current.ExpectedCash)

	closed, err := f.svc.Close(ctx, f.cashier, session.ID, CloseInput{CountedCash: "190.10", Notes: "  short fifty cents "})
	require.NoError(t, err)
	require.Equal(t, enums.RegisterStatusClosed, closed.Status)
	require.Equal(t, 19060, *closed.ExpectedCashCents)
	require.Equal(t, 19010, *closed.CountedCashCents)
	require.Equal(t, -50, *closed.DifferenceCents)
	require.Equal(t, "-0.50", *closed.Difference)
	require.Equal(t, "short fifty cents", *closed.Notes)
	require.Equal(t, f.cashier.UserID, *closed.ClosedBy)
	require.NotNil(t, closed.ClosedAt)

	// later sales do not move a closed session's figures
	f.sale(t, time.Minute, enums.PaymentMethodCash, enums.SaleStatusCompleted, 1000)
	f.clock.advance(time.Hour)

	report, err := f.svc.Get(ctx, f.cashier, session.ID)
	require.NoError(t, err)
	require.Equal(t, enums.RegisterStatusClosed, report.Session.Status)
	require.Equal(t, 3, report.SalesCount)
	require.Equal(t, 19060, report.ExpectedCashCents)

	_, err = f.svc.Current(ctx, f.cashier, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestOpenTwiceAtLocationConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first := f.open(t, f.cashier, "100")
	_, err := f.svc.Open(ctx, f.other, OpenInput{OpeningCash: "50"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = f.svc.Close(ctx, f.cashier, first.ID, CloseInput{CountedCash: "100"})
	require.NoError(t, err)
	second := f.open(t, f.other, "50")
	require.NotEqual(t, first.ID, second.ID)
}

func TestOpenRegisterIndexAllowsOneOpenPerLocation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repo := NewRepository(f.conn)
	ctx := context.Background()
	session := func(status enums.RegisterStatus) *models.RegisterSession {
		return &models.RegisterSession{
			LocationID: f.location.ID,
			OpenedBy:   f.cashier.UserID,
			Status:     status,
			OpenedAt:   f.clock.Now(),
		}
	}

	require.NoError(t, repo.Create(ctx, session(enums.RegisterStatusClosed)))
	require.NoError(t, repo.Create(ctx, session(enums.RegisterStatusClosed)))
	require.NoError(t, repo.Create(ctx, session(enums.RegisterStatusOpen)))
	err := repo.Create(ctx, session(enums.RegisterStatusOpen))
	require.Error(t, err)
	require.True(t, db.IsUniqueViolation(err, models.OpenRegisterConstraint, models.OpenRegisterColumn), "got %v", err)
}

func TestCloseTwiceConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	session := f.open(t, f.cashier, "20.00")
	_, err := f.svc.Close(ctx, f.admin, session.ID, CloseInput{CountedCash: "20.00"})
	require.NoError(t, err)

	_, err = f.svc.Close(ctx, f.cashier, session.ID, CloseInput{CountedCash: "25.00"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	var stored models.RegisterSession
	require.NoError(t, f.conn.First(&stored, "id = ?", session.ID).Error)
	require.Equal(t, 2000, *stored.CountedCashCents)
	require.Equal(t, f.admin.UserID, *stored.ClosedBy)
}

func TestSessionAccessIsLimitedToOpenerAndAdmins(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	session := f.open(t, f.cashier, "10")

	_, err := f.svc.Close(ctx, f.other, session.ID, CloseInput{CountedCash: "10"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)

	_, err = f.svc.Get(ctx, f.other, session.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	report, err := f.svc.Get(ctx, f.admin, session.ID)
	require.NoError(t, err)
	require.Equal(t, 1000, report.ExpectedCashCents)

	_, err = f.svc.Get(ctx, f.admin, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = f.svc.Open(ctx, auth.Actor{}, OpenInput{OpeningCash: "10"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "got %v", err)
}

func TestOpenAndCloseValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	unknown := uuid.New()

	for _, tc := range []struct {
		name  string
		input OpenInput
		code  pkgerrors.Code
	}{
		{name: "empty cash", input: OpenInput{OpeningCash: " "}, code: pkgerrors.CodeValidation},
		{name: "not a number", input: OpenInput{OpeningCash: "abc"}, code: pkgerrors.CodeValidation},
		{name: "negative", input: OpenInput{OpeningCash: "-1.00"}, code: pkgerrors.CodeValidation},
		{name: "too large", input: OpenInput{OpeningCash: "10000000.01"}, code: pkgerrors.CodeValidation},
		{name: "unknown location", input: OpenInput{OpeningCash: "1", LocationID: &unknown}, code: pkgerrors.CodeNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Open(ctx, f.cashier, tc.input)
			require.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}

	noLocation := auth.Actor{UserID: f.cashier.UserID, Role: enums.UserRoleCashier}
	_, err := f.svc.Open(ctx, noLocation, OpenInput{OpeningCash: "1"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	session := f.open(t, f.cashier, "10000000.00")
	_, err = f.svc.Close(ctx, f.cashier, session.ID, CloseInput{CountedCash: "1", Notes: strings.Repeat("x", maxNotesLength+1)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	_, err = f.svc.Close(ctx, f.cashier, session.ID, CloseInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	_, err = f.svc.Close(ctx, f.cashier, uuid.Nil, CloseInput{CountedCash: "1"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	var stored models.RegisterSession
	require.NoError(t, f.conn.First(&stored, "id = ?", session.ID).Error)
	require.Equal(t, enums.RegisterStatusOpen, stored.Status)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	_, err = NewService(ServiceParams{DB: db.NewFromGorm(dbtest.NewSQLite(t))})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
}
