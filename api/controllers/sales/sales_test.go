package sales

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/api/middleware"
	internalsales "github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/internal/stock"
	"github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
)

type stubSales struct {
	result     *internalsales.Result
	sale       *internalsales.SaleDTO
	page       *pagination.Page[internalsales.SaleDTO]
	err        error
	lastInput  internalsales.CreateSaleInput
	lastTicket string
	lastParams pagination.Params
	lastVoid   internalsales.VoidInput
	report     *internalsales.Report
	lastReport internalsales.ReportParams
}

func (s *stubSales) Void(_ context.Context, _ auth.Actor, ticket string, input internalsales.VoidInput) (*internalsales.SaleDTO, error) {
	s.lastTicket = ticket
	s.lastVoid = input
	return s.sale, s.err
}

func (s *stubSales) Report(_ context.Context, _ auth.Actor, params internalsales.ReportParams) (*internalsales.Report, error) {
	s.lastReport = params
	return s.report, s.err
}

func (s *stubSales) Create(_ context.Context, _ auth.Actor, input internalsales.CreateSaleInput) (*internalsales.Result, error) {
	s.lastInput = input
	return s.result, s.err
}

func (s *stubSales) GetByTicket(_ context.Context, _ auth.Actor, ticket string) (*internalsales.SaleDTO, error) {
	s.lastTicket = ticket
	return s.sale, s.err
}

func (s *stubSales) List(_ context.Context, _ auth.Actor, params pagination.Params) (*pagination.Page[internalsales.SaleDTO], error) {
	s.lastParams = params
	return s.page, s.err
}

func cashierRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	return req.WithContext(middleware.WithActor(req.Context(), auth.Actor{UserID: uuid.New(), Role: enums.UserRoleCashier}))
}

func TestCreateReturnsCreatedSale(t *testing.T) {
	saleID := uuid.New()
	svc := &stubSales{result: &internalsales.Result{
		SaleID:        saleID,
		TicketNumber:  "TKT-20261018-ABCDEFGHJK",
		SubtotalCents: 2500,
		TaxCents:      400,
		TotalCents:    2900,
	}}
	productID := uuid.New()
	body := `{"lines":[{"barcode":"750100000001","quantity":2},{"product_id":"` + productID.String() + `","quantity":1}],"payment_method":"card"}`

	rec := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, cashierRequest(http.MethodPost, "/api/v1/sales", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data["sale_id"] != saleID.String() || envelope.Data["total"] != "29.00" {
		t.Fatalf("unexpected body %v", envelope.Data)
	}
	if envelope.Data["ticket_number"] != "TKT-20261018-ABCDEFGHJK" {
		t.Fatalf("unexpected ticket %v", envelope.Data["ticket_number"])
	}

	if len(svc.lastInput.Lines) != 2 || svc.lastInput.Lines[0].Barcode != "750100000001" || svc.lastInput.Lines[0].Quantity != 2 {
		t.Fatalf("lines not mapped: %+v", svc.lastInput.Lines)
	}
	if svc.lastInput.Lines[1].ProductID == nil || *svc.lastInput.Lines[1].ProductID != productID {
		t.Fatalf("product id not mapped")
	}
	if svc.lastInput.PaymentMethod != "card" {
		t.Fatalf("payment method not mapped")
	}
}

func TestCreateRequiresActor(t *testing.T) {
	svc := &stubSales{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewBufferString(`{"lines":[]}`))
	rec := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestCreateMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive"), http.StatusBadRequest},
		{"unknown product", pkgerrors.New(pkgerrors.CodeNotFound, "no product for code"), http.StatusNotFound},
		{"insufficient stock", pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(stock.InsufficientDetails{Requested: 3, Available: 1}), http.StatusConflict},
		{"internal", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique ticket number"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubSales{err: tc.err}
			rec := httptest.NewRecorder()
			Create(svc, nil).ServeHTTP(rec, cashierRequest(http.MethodPost, "/api/v1/sales", `{"lines":[{"barcode":"1","quantity":1}]}`))
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestCreateRejectsMalformedBody(t *testing.T) {
	svc := &stubSales{}
	for _, body := range []string{`{"lines":`, `{"lines":[{"product_id":"not-a-uuid","quantity":1}]}`, `{}`} {
		rec := httptest.NewRecorder()
		Create(svc, nil).ServeHTTP(rec, cashierRequest(http.MethodPost, "/api/v1/sales", body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400 got %d", body, rec.Code)
		}
	}
}

func TestGetUsesTicketParam(t *testing.T) {
	svc := &stubSales{sale: &internalsales.SaleDTO{TicketNumber: "TKT-1"}}
	router := chi.NewRouter()
	router.Get("/api/v1/sales/{ticket}", Get(svc, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, cashierRequest(http.MethodGet, "/api/v1/sales/TKT-1", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastTicket != "TKT-1" {
		t.Fatalf("expected ticket param, got %q", svc.lastTicket)
	}
}

func TestListParsesPagination(t *testing.T) {
	svc := &stubSales{page: &pagination.Page[internalsales.SaleDTO]{NextCursor: "next"}}
	rec := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(rec, cashierRequest(http.MethodGet, "/api/v1/sales?limit=10&cursor=abc", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastParams.Limit != 10 || svc.lastParams.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", svc.lastParams)
	}

	rec = httptest.NewRecorder()
	List(svc, nil).ServeHTTP(rec, cashierRequest(http.MethodGet, "/api/v1/sales?limit=0", ""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestVoidPassesTicketAndReason(t *testing.T) {
	svc := &stubSales{sale: &internalsales.SaleDTO{TicketNumber: "TKT-1", Status: enums.SaleStatusVoided}}
	router := chi.NewRouter()
	router.Post("/api/v1/sales/{ticket}/void", Void(svc, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, cashierRequest(http.MethodPost, "/api/v1/sales/TKT-1/void", `{"reason":"customer changed mind"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastTicket != "TKT-1" || svc.lastVoid.Reason != "customer changed mind" {
		t.Fatalf("unexpected call %q %+v", svc.lastTicket, svc.lastVoid)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, cashierRequest(http.MethodPost, "/api/v1/sales/TKT-1/void", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("empty body: expected 200 got %d", rec.Code)
	}
	if svc.lastVoid.Reason != "" {
		t.Fatalf("expected no reason, got %q", svc.lastVoid.Reason)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, cashierRequest(http.MethodPost, "/api/v1/sales/TKT-1/void", `{"why":"x"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400 got %d", rec.Code)
	}
}

func TestVoidMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"cashier", pkgerrors.New(pkgerrors.CodeForbidden, "only admins can void sales"), http.StatusForbidden},
		{"already voided", pkgerrors.New(pkgerrors.CodeConflict, "sale is already voided"), http.StatusConflict},
		{"unknown ticket", pkgerrors.New(pkgerrors.CodeNotFound, "sale not found"), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Void(&stubSales{err: tc.err}, nil).ServeHTTP(rec, cashierRequest(http.MethodPost, "/api/v1/sales/TKT-1/void", ""))
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestReportParsesWindow(t *testing.T) {
	locationID := uuid.New()
	svc := &stubSales{report: &internalsales.Report{CompletedCount: 2, Total: "58.00", TotalCents: 5800}}
	rec := httptest.NewRecorder()
	target := "/api/v1/reports/sales?from=2026-01-05&to=2026-01-06T00:00:00Z&location_id=" + locationID.String()
	Report(svc, nil).ServeHTTP(rec, cashierRequest(http.MethodGet, target, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	want := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if !svc.lastReport.From.Equal(want) || !svc.lastReport.To.Equal(want.Add(24*time.Hour)) {
		t.Fatalf("unexpected window %+v", svc.lastReport)
	}
	if svc.lastReport.LocationID == nil || *svc.lastReport.LocationID != locationID {
		t.Fatalf("location not mapped")
	}
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data["total"] != "58.00" {
		t.Fatalf("unexpected body %v", envelope.Data)
	}

	for _, bad := range []string{"?from=last-week", "?to=05/01/2026", "?location_id=main"} {
		rec = httptest.NewRecorder()
		Report(svc, nil).ServeHTTP(rec, cashierRequest(http.MethodGet, "/api/v1/reports/sales"+bad, ""))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", bad, rec.Code)
		}
	}
}
