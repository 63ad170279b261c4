package register

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) LocationExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Location{}).Where("id = ? AND is_active = ?", id, true).Count(&count).Error
	return count > 0, err
}

func (r *Repository) Create(ctx context.Context, session *models.RegisterSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.RegisterSession, error) {
	var session models.RegisterSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// FindOpen returns the open session of a location.
func (r *Repository) FindOpen(ctx context.Context, locationID uuid.UUID) (*models.RegisterSession, error) {
	var session models.RegisterSession
	err := r.db.WithContext(ctx).
		Where("location_id = ? AND status = ?", locationID, enums.RegisterStatusOpen).
		Take(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// MarkClosed records the count on a session that is still open and reports
// whether it was.
func (r *Repository) MarkClosed(ctx context.Context, session *models.RegisterSession) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RegisterSession{}).
		Where("id = ? AND status = ?", session.ID, enums.RegisterStatusOpen).
		Updates(map[string]any{
			"status":              enums.RegisterStatusClosed,
			"closed_by":           session.ClosedBy,
			"expected_cash_cents": session.ExpectedCashCents,
			"counted_cash_cents":  session.CountedCashCents,
			"difference_cents":    session.DifferenceCents,
			"notes":               session.Notes,
			"closed_at":           session.ClosedAt,
		})
	return res.RowsAffected == 1, res.Error
}

type salesRow struct {
	Status        enums.SaleStatus
	PaymentMethod enums.PaymentMethod
	SaleCount     int64
	TotalCents    int64
}

// SalesBetween groups the sales of a location in [from, to).
func (r *Repository) SalesBetween(ctx context.Context, locationID uuid.UUID, from, to time.Time) ([]salesRow, error) {
	var rows []salesRow
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("status, payment_method, COUNT(*) AS sale_count, COALESCE(SUM(total_cents), 0) AS total_cents").
		Where("location_id = ? AND created_at >= ? AND created_at < ?", locationID, from, to).
		Group("status, payment_method").
		Scan(&rows).Error
	return rows, err
}
