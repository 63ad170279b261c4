package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	maxCodeLength      = 128
)

// Service resolves scanned codes and product ids into sellable items.
type Service interface {
	Lookup(ctx context.Context, code string) (*Item, error)
	GetByID(ctx context.Context, productID uuid.UUID) (*Item, error)
	Search(ctx context.Context, query string, limit int) ([]Item, error)
}

type productReader interface {
	FindByBarcode(ctx context.Context, code string) (*models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
}

type service struct {
	repo productReader
}

func NewService(repo productReader) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Lookup(ctx context.Context, code string) (*Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if len(code) > maxCodeLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is too long")
	}

	product, err := s.repo.FindByBarcode(ctx, code)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no product for code %q", code)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup barcode")
	}
	item := itemFromModel(product, code)
	return &item, nil
}

func (s *service) GetByID(ctx context.Context, productID uuid.UUID) (*Item, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", productID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	item := itemFromModel(product, "")
	return &item, nil
}

func (s *service) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query must be at least 2 characters")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	products, err := s.repo.Search(ctx, query, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search products")
	}
	items := make([]Item, 0, len(products))
	for i := range products {
		items = append(items, itemFromModel(&products[i], ""))
	}
	return items, nil
}
