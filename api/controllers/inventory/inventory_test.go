package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/api/middleware"
	"github.com/angelmondragon/pos-backend/internal/stock"
	"github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

type stubStock struct {
	result        *stock.AdjustResult
	levels        []stock.Level
	err           error
	lastAdjust    stock.AdjustInput
	lastLocation  uuid.UUID
	lastFilter    stock.MovementFilter
	lastThreshold int
}

func (s *stubStock) Adjust(_ context.Context, _ auth.Actor, input stock.AdjustInput) (*stock.AdjustResult, error) {
	s.lastAdjust = input
	return s.result, s.err
}

func (s *stubStock) ListLevels(_ context.Context, locationID uuid.UUID, _ int) ([]stock.Level, error) {
	s.lastLocation = locationID
	return s.levels, s.err
}

func (s *stubStock) ListMovements(_ context.Context, filter stock.MovementFilter) ([]stock.Movement, error) {
	s.lastFilter = filter
	return nil, s.err
}

func (s *stubStock) LowStock(_ context.Context, _ *uuid.UUID, threshold int) ([]stock.Level, error) {
	s.lastThreshold = threshold
	return s.levels, s.err
}

func withActor(req *http.Request, actor auth.Actor) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func TestAdjustReturnsNewQuantity(t *testing.T) {
	svc := &stubStock{result: &stock.AdjustResult{NewQuantity: 17}}
	productID, locationID := uuid.New(), uuid.New()
	body := `{"product_id":"` + productID.String() + `","location_id":"` + locationID.String() + `","delta":-3,"reason":"damaged"}`

	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/inventory/adjust", bytes.NewBufferString(body)),
		auth.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	rec := httptest.NewRecorder()
	Adjust(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data map[string]int `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data["new_quantity"] != 17 {
		t.Fatalf("unexpected body %v", envelope.Data)
	}
	if svc.lastAdjust.Delta != -3 || svc.lastAdjust.ProductID != productID || svc.lastAdjust.Reason != "damaged" {
		t.Fatalf("unexpected input %+v", svc.lastAdjust)
	}
}

func TestAdjustErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown product", pkgerrors.New(pkgerrors.CodeNotFound, "product not found"), http.StatusNotFound},
		{"zero delta", pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero"), http.StatusBadRequest},
		{"below zero", pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock"), http.StatusConflict},
		{"cashier", pkgerrors.New(pkgerrors.CodeForbidden, "admin only"), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubStock{err: tc.err}
			req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/inventory/adjust", bytes.NewBufferString(`{"delta":1}`)),
				auth.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin})
			rec := httptest.NewRecorder()
			Adjust(svc, nil).ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestLevelsDefaultsToActorLocation(t *testing.T) {
	locationID := uuid.New()
	svc := &stubStock{}
	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil),
		auth.Actor{UserID: uuid.New(), Role: enums.UserRoleCashier, LocationID: &locationID})
	rec := httptest.NewRecorder()
	Levels(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastLocation != locationID {
		t.Fatalf("expected actor location to be used")
	}

	req = withActor(httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil),
		auth.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	rec = httptest.NewRecorder()
	Levels(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without any location, got %d", rec.Code)
	}
}

func TestMovementsAndLowStockQuery(t *testing.T) {
	productID := uuid.New()
	svc := &stubStock{}

	rec := httptest.NewRecorder()
	Movements(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/movements?product_id="+productID.String()+"&limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastFilter.ProductID == nil || *svc.lastFilter.ProductID != productID || svc.lastFilter.Limit != 5 {
		t.Fatalf("unexpected filter %+v", svc.lastFilter)
	}

	rec = httptest.NewRecorder()
	LowStock(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/low-stock", nil))
	if rec.Code != http.StatusOK || svc.lastThreshold != -1 {
		t.Fatalf("expected default threshold sentinel, got %d (status %d)", svc.lastThreshold, rec.Code)
	}

	rec = httptest.NewRecorder()
	LowStock(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/low-stock?threshold=3", nil))
	if svc.lastThreshold != 3 {
		t.Fatalf("expected threshold 3, got %d", svc.lastThreshold)
	}
}
