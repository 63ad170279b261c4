package sales

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/catalog"
	"github.com/angelmondragon/pos-backend/internal/stock"
	"github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
)

const (
	DefaultTicketAttempts = 3
	MaxLines              = 200
	MaxLineQuantity       = 10000
	maxTicketLength       = 64
	maxVoidReasonLength   = 255
)

var errTicketCollision = errors.New("ticket number already used")

// Service turns a cart into a committed sale and serves sale history.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateSaleInput) (*Result, error)
	GetByTicket(ctx context.Context, actor auth.Actor, ticket string) (*SaleDTO, error)
	List(ctx context.Context, actor auth.Actor, params pagination.Params) (*pagination.Page[SaleDTO], error)
	Void(ctx context.Context, actor auth.Actor, ticket string, input VoidInput) (*SaleDTO, error)
	Report(ctx context.Context, actor auth.Actor, params ReportParams) (*Report, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type itemResolver interface {
	Lookup(ctx context.Context, code string) (*catalog.Item, error)
	GetByID(ctx context.Context, productID uuid.UUID) (*catalog.Item, error)
}

type salesRecorder interface {
	ObserveCompleted(totalCents, lines int, elapsed time.Duration)
	ObserveVoided(totalCents int)
	IncFailed(code string)
	IncTicketCollision()
}

type ServiceParams struct {
	DB             txRunner
	Repo           *Repository
	Catalog        itemResolver
	Ledger         *stock.Ledger
	Outbox         outbox.Emitter
	Tickets        TicketGenerator
	Metrics        salesRecorder
	Logger         *logger.Logger
	TaxRateBps     int
	TicketAttempts int
	Now            func() time.Time
}

type service struct {
	tx          txRunner
	repo        *Repository
	catalog     itemResolver
	ledger      *stock.Ledger
	outbox      outbox.Emitter
	tickets     TicketGenerator
	metrics     salesRecorder
	logg        *logger.Logger
	taxRateBps  int
	maxAttempts int
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sales repository required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock ledger required")
	}
	if params.TaxRateBps < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate must be non-negative")
	}
	tickets := params.Tickets
	if tickets == nil {
		tickets = NewTicketGenerator("")
	}
	attempts := params.TicketAttempts
	if attempts <= 0 {
		attempts = DefaultTicketAttempts
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:          params.DB,
		repo:        params.Repo,
		catalog:     params.Catalog,
		ledger:      params.Ledger,
		outbox:      params.Outbox,
		tickets:     tickets,
		metrics:     params.Metrics,
		logg:        logg,
		taxRateBps:  params.TaxRateBps,
		maxAttempts: attempts,
		now:         now,
	}, nil
}

// Create validates and prices the cart, then commits the sale, its items, the
// stock decrements and the sale_completed event in one transaction. Nothing is
// written unless every line resolves and every product has enough stock.
func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateSaleInput) (*Result, error) {
	start := time.Now()
	result, err := s.create(ctx, actor, input)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveCompleted(result.TotalCents, len(input.Lines), time.Since(start))
	}
	return result, nil
}

func (s *service) create(ctx context.Context, actor auth.Actor, input CreateSaleInput) (*Result, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	method, err := validateInput(input)
	if err != nil {
		return nil, err
	}
	locationID, err := s.resolveLocation(ctx, actor, input.LocationID)
	if err != nil {
		return nil, err
	}

	lines, err := s.resolveLines(ctx, input.Lines)
	if err != nil {
		return nil, err
	}
	totals, err := priceLines(lines, s.taxRateBps)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		now := s.now().UTC()
		ticket, err := s.tickets(now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate ticket number")
		}

		sale := &models.Sale{
			ActorID:       actor.UserID,
			LocationID:    locationID,
			TicketNumber:  ticket,
			SubtotalCents: totals.SubtotalCents,
			TaxCents:      totals.TaxCents,
			TotalCents:    totals.TotalCents,
			TaxRateBps:    totals.TaxRateBps,
			PaymentMethod: method,
			Status:        enums.SaleStatusCompleted,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.commit(ctx, tx, actor, sale, lines)
		})
		if errors.Is(err, errTicketCollision) {
			if s.metrics != nil {
				s.metrics.IncTicketCollision()
			}
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"ticket_number": ticket,
				"attempt":       attempt,
			}), "ticket number collision, retrying")
			continue
		}
		if err != nil {
			if pkgerrors.As(err) != nil {
				return nil, err
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commit sale")
		}

		logCtx := s.logg.WithFields(ctx, map[string]any{
			"sale_id":       sale.ID.String(),
			"ticket_number": sale.TicketNumber,
			"location_id":   locationID.String(),
			"total_cents":   sale.TotalCents,
			"lines":         len(lines),
		})
		s.logg.Info(logCtx, "sale completed")
		return &Result{
			SaleID:        sale.ID,
			TicketNumber:  sale.TicketNumber,
			SubtotalCents: sale.SubtotalCents,
			TaxCents:      sale.TaxCents,
			TotalCents:    sale.TotalCents,
		}, nil
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "could not allocate a unique ticket number after %d attempts", s.maxAttempts)
}

func (s *service) commit(ctx context.Context, tx *gorm.DB, actor auth.Actor, sale *models.Sale, lines []resolvedLine) error {
	repo := s.repo.WithTx(tx)
	if err := repo.CreateSale(ctx, sale); err != nil {
		if db.IsUniqueViolation(err, models.TicketNumberConstraint, models.TicketNumberColumn) {
			return errTicketCollision
		}
		return err
	}

	ledger := s.ledger.WithTx(tx)
	actorID := actor.UserID
	saleID := sale.ID
	for _, demand := range mergeDemand(lines) {
		newQty, err := ledger.Decrement(ctx, demand.productID, sale.LocationID, demand.quantity)
		if err != nil {
			return err
		}
		if err := ledger.RecordMovement(ctx, &models.StockMovement{
			ProductID:     demand.productID,
			LocationID:    sale.LocationID,
			Delta:         -demand.quantity,
			QuantityAfter: newQty,
			Reason:        enums.MovementReasonSale,
			ReferenceID:   &saleID,
			ActorID:       &actorID,
		}); err != nil {
			return err
		}
	}

	items := make([]models.SaleItem, 0, len(lines))
	eventLines := make([]payloads.SaleLine, 0, len(lines))
	for _, line := range lines {
		item := models.SaleItem{
			SaleID:         sale.ID,
			ProductID:      line.item.ProductID,
			ProductName:    line.item.Name,
			Barcode:        snapshotBarcode(line.item),
			Quantity:       line.quantity,
			UnitPriceCents: line.item.PriceCents,
			LineTotalCents: line.totalCents(),
		}
		items = append(items, item)
		eventLines = append(eventLines, payloads.SaleLine{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Barcode:        item.Barcode,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	if err := repo.CreateItems(ctx, items); err != nil {
		return err
	}

	if s.outbox == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSaleCompleted,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, LocationID: &sale.LocationID, Role: string(actor.Role)},
		OccurredAt:    sale.CreatedAt,
		Data: payloads.SaleCompletedEvent{
			SaleID:        sale.ID,
			TicketNumber:  sale.TicketNumber,
			ActorID:       sale.ActorID,
			LocationID:    sale.LocationID,
			PaymentMethod: sale.PaymentMethod,
			SubtotalCents: sale.SubtotalCents,
			TaxCents:      sale.TaxCents,
			TotalCents:    sale.TotalCents,
			TaxRateBps:    sale.TaxRateBps,
			Lines:         eventLines,
			CompletedAt:   sale.CreatedAt,
		},
	})
}

func validateInput(input CreateSaleInput) (enums.PaymentMethod, error) {
	if len(input.Lines) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "sale must contain at least one line")
	}
	if len(input.Lines) > MaxLines {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "sale cannot exceed %d lines", MaxLines)
	}
	for i, line := range input.Lines {
		hasID := line.ProductID != nil && *line.ProductID != uuid.Nil
		hasCode := strings.TrimSpace(line.Barcode) != ""
		if hasID == hasCode {
			return "", lineError(i, "line must carry exactly one of product_id or barcode")
		}
		if line.Quantity <= 0 {
			return "", lineError(i, "quantity must be positive")
		}
		if line.Quantity > MaxLineQuantity {
			return "", lineError(i, "quantity is too large")
		}
	}

	raw := strings.ToLower(strings.TrimSpace(input.PaymentMethod))
	if raw == "" {
		return enums.PaymentMethodCash, nil
	}
	method, err := enums.ParsePaymentMethod(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method")
	}
	return method, nil
}

func lineError(index int, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"line": index})
}

// resolveLocation prefers an explicit location, then the one bound to the actor's session.
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

func (s *service) resolveLines(ctx context.Context, inputs []LineInput) ([]resolvedLine, error) {
	lines := make([]resolvedLine, 0, len(inputs))
	for i, in := range inputs {
		var (
			item *catalog.Item
			err  error
		)
		if in.ProductID != nil && *in.ProductID != uuid.Nil {
			item, err = s.catalog.GetByID(ctx, *in.ProductID)
		} else {
			item, err = s.catalog.Lookup(ctx, in.Barcode)
		}
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, typed.Message()).WithDetails(map[string]any{"line": i})
			}
			return nil, err
		}
		lines = append(lines, resolvedLine{item: *item, quantity: in.Quantity})
	}
	return lines, nil
}

type demand struct {
	productID uuid.UUID
	quantity  int
}

// mergeDemand sums quantities per product and orders them by product id so
// concurrent sales lock stock rows in the same order.
func mergeDemand(lines []resolvedLine) []demand {
	totals := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		totals[line.item.ProductID] += line.quantity
	}
	return orderDemand(totals)
}

// returnedDemand is mergeDemand for the items of a committed sale.
func returnedDemand(items []models.SaleItem) []demand {
	totals := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		totals[item.ProductID] += item.Quantity
	}
	return orderDemand(totals)
}

func orderDemand(totals map[uuid.UUID]int) []demand {
	out := make([]demand, 0, len(totals))
	for id, qty := range totals {
		out = append(out, demand{productID: id, quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].productID[:], out[j].productID[:]) < 0
	})
	return out
}

func snapshotBarcode(item catalog.Item) *string {
	code := item.ScannedCode
	if code == "" {
		code = item.Barcode
	}
	if code == "" {
		return nil
	}
	return &code
}

func (s *service) recordFailure(ctx context.Context, err error) {
	code := pkgerrors.CodeOf(err)
	if s.metrics != nil {
		s.metrics.IncFailed(string(code))
	}
	logCtx := s.logg.WithField(ctx, "error_code", string(code))
	if code == pkgerrors.CodeInternal {
		s.logg.Error(logCtx, "sale failed", err)
		return
	}
	s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "sale rejected")
}

func normalizeTicket(raw string) (string, error) {
	ticket := strings.ToUpper(strings.TrimSpace(raw))
	if ticket == "" || len(ticket) > maxTicketLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "ticket number is invalid")
	}
	return ticket, nil
}

func (s *service) GetByTicket(ctx context.Context, actor auth.Actor, ticket string) (*SaleDTO, error) {
	ticket, err := normalizeTicket(ticket)
	if err != nil {
		return nil, err
	}
	sale, err := s.repo.FindByTicket(ctx, ticket)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "sale %s not found", ticket)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
	}
	// cashiers only see their own receipts
	if !actor.IsAdmin() && sale.ActorID != actor.UserID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "sale %s not found", ticket)
	}
	dto := saleFromModel(*sale)
	return &dto, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, params pagination.Params) (*pagination.Page[SaleDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var actorFilter *uuid.UUID
	if !actor.IsAdmin() {
		id := actor.UserID
		actorFilter = &id
	}
	rows, err := s.repo.List(ctx, actorFilter, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list sales")
	}
	page := pagination.Trim(rows, params.Limit, func(m models.Sale) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	out := &pagination.Page[SaleDTO]{Items: make([]SaleDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, row := range page.Items {
		out.Items = append(out.Items, saleFromModel(row))
	}
	return out, nil
}

// Void marks a completed sale voided and puts its units back on the shelf.
// The status change, the restock with its refund movements and the
// sale_voided event commit together; a sale is voided at most once.
func (s *service) Void(ctx context.Context, actor auth.Actor, ticket string, input VoidInput) (*SaleDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can void sales")
	}
	ticket, err := normalizeTicket(ticket)
	if err != nil {
		return nil, err
	}
	var reason *string
	if trimmed := strings.TrimSpace(input.Reason); trimmed != "" {
		if len(trimmed) > maxVoidReasonLength {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "reason cannot exceed %d characters", maxVoidReasonLength)
		}
		reason = &trimmed
	}

	var voided *models.Sale
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.FindByTicket(ctx, ticket)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "sale %s not found", ticket)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
		}

		now := s.now().UTC()
		ok, err := repo.MarkVoided(ctx, sale.ID, actor.UserID, reason, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "void sale")
		}
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "sale %s is already voided", ticket)
		}
		sale.Status = enums.SaleStatusVoided
		sale.VoidedAt = &now
		sale.VoidedBy = &actor.UserID
		sale.VoidReason = reason

		if err := s.restock(ctx, tx, actor, sale); err != nil {
			return err
		}
		voided = sale
		return s.emitVoided(ctx, tx, actor, sale)
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "void sale")
		}
		code := pkgerrors.CodeOf(err)
		logCtx := s.logg.WithFields(ctx, map[string]any{"ticket_number": ticket, "error_code": string(code)})
		if code == pkgerrors.CodeInternal {
			s.logg.Error(logCtx, "void failed", err)
		} else {
			s.logg.Warn(logCtx, "void rejected")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveVoided(voided.TotalCents)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"sale_id":       voided.ID.String(),
		"ticket_number": voided.TicketNumber,
		"total_cents":   voided.TotalCents,
	}), "sale voided")
	dto := saleFromModel(*voided)
	return &dto, nil
}

func (s *service) restock(ctx context.Context, tx *gorm.DB, actor auth.Actor, sale *models.Sale) error {
	ledger := s.ledger.WithTx(tx)
	actorID := actor.UserID
	saleID := sale.ID
	for _, returned := range returnedDemand(sale.Items) {
		newQty, err := ledger.Increment(ctx, returned.productID, sale.LocationID, returned.quantity)
		if err != nil {
			return err
		}
		if err := ledger.RecordMovement(ctx, &models.StockMovement{
			ProductID:     returned.productID,
			LocationID:    sale.LocationID,
			Delta:         returned.quantity,
			QuantityAfter: newQty,
			Reason:        enums.MovementReasonRefund,
			ReferenceID:   &saleID,
			ActorID:       &actorID,
			Note:          sale.VoidReason,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) emitVoided(ctx context.Context, tx *gorm.DB, actor auth.Actor, sale *models.Sale) error {
	if s.outbox == nil {
		return nil
	}
	lines := make([]payloads.SaleLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, payloads.SaleLine{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Barcode:        item.Barcode,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	event := payloads.SaleVoidedEvent{
		SaleID:        sale.ID,
		TicketNumber:  sale.TicketNumber,
		LocationID:    sale.LocationID,
		VoidedBy:      actor.UserID,
		PaymentMethod: sale.PaymentMethod,
		TotalCents:    sale.TotalCents,
		Lines:         lines,
		VoidedAt:      *sale.VoidedAt,
	}
	if sale.VoidReason != nil {
		event.Reason = *sale.VoidReason
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSaleVoided,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, LocationID: &sale.LocationID, Role: string(actor.Role)},
		OccurredAt:    *sale.VoidedAt,
		Data:          event,
	})
}
