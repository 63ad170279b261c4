// Package register runs cash drawer sessions: counted in at opening, counted
// out at closing, and reconciled against the cash sales taken in between.
package register

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/money"
)

const (
	MaxCashCents   = 1_000_000_000
	maxNotesLength = 500
)

// Service is the cash drawer surface exposed to the API.
type Service interface {
	Open(ctx context.Context, actor auth.Actor, input OpenInput) (*SessionDTO, error)
	Close(ctx context.Context, actor auth.Actor, id uuid.UUID, input CloseInput) (*SessionDTO, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*SessionReport, error)
	Current(ctx context.Context, actor auth.Actor, locationID *uuid.UUID) (*SessionReport, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	DB     txRunner
	Repo   *Repository
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	tx   txRunner
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "register repository required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{tx: params.DB, repo: params.Repo, logg: logg, now: now}, nil
}

// Open starts a session for a location. A location has at most one open
// session; a second Open fails with CONFLICT until the first is closed.
func (s *service) Open(ctx context.Context, actor auth.Actor, input OpenInput) (*SessionDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	opening, err := parseCash("opening_cash", input.OpeningCash)
	if err != nil {
		return nil, err
	}
	locationID, err := s.resolveLocation(ctx, actor, input.LocationID)
	if err != nil {
		return nil, err
	}

	session := &models.RegisterSession{
		LocationID:       locationID,
		OpenedBy:         actor.UserID,
		OpeningCashCents: opening,
		Status:           enums.RegisterStatusOpen,
		OpenedAt:         s.now().UTC(),
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindOpen(ctx, locationID); err == nil {
			return alreadyOpen(locationID)
		} else if !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check open register")
		}
		if err := repo.Create(ctx, session); err != nil {
			if db.IsUniqueViolation(err, models.OpenRegisterConstraint, models.OpenRegisterColumn) {
				return alreadyOpen(locationID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open register")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"register_session_id": session.ID.String(),
		"location_id":         locationID.String(),
		"opening_cash_cents":  opening,
	}), "register opened")
	dto := sessionFromModel(*session)
	return &dto, nil
}

// Close counts the drawer out. Expected cash is the opening float plus every
// completed cash sale at the location since opening; the difference is
// counted minus expected, so a shortage is negative.
func (s *service) Close(ctx context.Context, actor auth.Actor, id uuid.UUID, input CloseInput) (*SessionDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	counted, err := parseCash("counted_cash", input.CountedCash)
	if err != nil {
		return nil, err
	}
	var notes *string
	if trimmed := strings.TrimSpace(input.Notes); trimmed != "" {
		if len(trimmed) > maxNotesLength {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "notes cannot exceed %d characters", maxNotesLength)
		}
		notes = &trimmed
	}

	var closed *models.RegisterSession
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if session.OpenedBy != actor.UserID && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the opener or an admin can close this register")
		}
		if session.Status != enums.RegisterStatusOpen {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "register session %s is already closed", id)
		}

		now := s.now().UTC()
		summary, err := s.summarise(ctx, repo, session, now)
		if err != nil {
			return err
		}
		expected := summary.ExpectedCashCents
		difference := counted - expected
		closedBy := actor.UserID
		session.ClosedBy = &closedBy
		session.ExpectedCashCents = &expected
		session.CountedCashCents = &counted
		session.DifferenceCents = &difference
		session.Notes = notes
		session.ClosedAt = &now

		ok, err := repo.MarkClosed(ctx, session)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close register")
		}
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "register session %s is already closed", id)
		}
		session.Status = enums.RegisterStatusClosed
		closed = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"register_session_id": closed.ID.String(),
		"expected_cash_cents": *closed.ExpectedCashCents,
		"counted_cash_cents":  counted,
		"difference_cents":    *closed.DifferenceCents,
	})
	if *closed.DifferenceCents != 0 {
		s.logg.Warn(logCtx, "register closed with a cash difference")
	} else {
		s.logg.Info(logCtx, "register closed")
	}
	dto := sessionFromModel(*closed)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*SessionReport, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	session, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	// cashiers only see the drawers they opened
	if !actor.IsAdmin() && session.OpenedBy != actor.UserID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "register session %s not found", id)
	}
	return s.report(ctx, session)
}

// Current reports the open session of the requested or the actor's location.
func (s *service) Current(ctx context.Context, actor auth.Actor, locationID *uuid.UUID) (*SessionReport, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	resolved, err := s.resolveLocation(ctx, actor, locationID)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.FindOpen(ctx, resolved)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no open register at location %s", resolved)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load open register")
	}
	return s.report(ctx, session)
}

func (s *service) report(ctx context.Context, session *models.RegisterSession) (*SessionReport, error) {
	to := s.now().UTC()
	if session.ClosedAt != nil {
		to = *session.ClosedAt
	}
	summary, err := s.summarise(ctx, s.repo, session, to)
	if err != nil {
		return nil, err
	}
	if session.ExpectedCashCents != nil {
		summary.ExpectedCashCents = *session.ExpectedCashCents
	}
	summary.Session = sessionFromModel(*session)
	summary.SalesTotal = money.Format(summary.SalesTotalCents)
	summary.ExpectedCash = money.Format(summary.ExpectedCashCents)
	return summary, nil
}

// summarise totals the sales of the session's location in [opened_at, to).
func (s *service) summarise(ctx context.Context, repo *Repository, session *models.RegisterSession, to time.Time) (*SessionReport, error) {
	rows, err := repo.SalesBetween(ctx, session.LocationID, session.OpenedAt, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum register sales")
	}
	summary := &SessionReport{}
	for _, row := range rows {
		if row.Status == enums.SaleStatusVoided {
			summary.VoidedCount += int(row.SaleCount)
			continue
		}
		summary.SalesCount += int(row.SaleCount)
		summary.SalesTotalCents += int(row.TotalCents)
		if row.PaymentMethod == enums.PaymentMethodCash {
			summary.CashSalesCents += int(row.TotalCents)
		}
	}
	summary.ExpectedCashCents = session.OpeningCashCents + summary.CashSalesCents
	return summary, nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.RegisterSession, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "register session id is required")
	}
	session, err := repo.Get(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "register session %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load register session")
	}
	return session, nil
}

func (s *service) resolveLocation(ctx context.Context, actor auth.Actor, requested *uuid.UUID) (uuid.UUID, error) {
	var locationID uuid.UUID
	switch {
	case requested != nil && *requested != uuid.Nil:
		locationID = *requested
	case actor.LocationID != nil && *actor.LocationID != uuid.Nil:
		locationID = *actor.LocationID
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "location_id is required")
	}
	ok, err := s.repo.LocationExists(ctx, locationID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check location")
	}
	if !ok {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "location %s not found", locationID)
	}
	return locationID, nil
}

// parseCash reads a non-negative decimal amount such as "150.00" into cents.
func parseCash(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is required", field)
	}
	cents, err := money.Parse(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	if cents < 0 || cents > MaxCashCents {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be between 0.00 and %s", field, money.Format(MaxCashCents))
	}
	return cents, nil
}

func alreadyOpen(locationID uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "a register is already open at location %s", locationID)
}
