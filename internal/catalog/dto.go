package catalog

import (
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/money"
)

// Item is a resolved, sellable product with its effective price.
type Item struct {
	ProductID   uuid.UUID
	Name        string
	PriceCents  int
	Barcode     string
	ScannedCode string
}

// ItemDTO is the lookup response body.
type ItemDTO struct {
	ProductID   uuid.UUID `json:"product_id"`
	Name        string    `json:"name"`
	Price       string    `json:"price"`
	PriceCents  int       `json:"price_cents"`
	Barcode     string    `json:"barcode"`
	ScannedCode string    `json:"scanned_code,omitempty"`
}

func (i Item) DTO() ItemDTO {
	return ItemDTO{
		ProductID:   i.ProductID,
		Name:        i.Name,
		Price:       money.Format(i.PriceCents),
		PriceCents:  i.PriceCents,
		Barcode:     i.Barcode,
		ScannedCode: i.ScannedCode,
	}
}

func itemFromModel(p *models.Product, scanned string) Item {
	return Item{
		ProductID:   p.ID,
		Name:        p.Name,
		PriceCents:  p.EffectivePriceCents(),
		Barcode:     primaryBarcode(p.Barcodes),
		ScannedCode: scanned,
	}
}

// primaryBarcode prefers the flagged code and otherwise the lowest code.
func primaryBarcode(codes []models.Barcode) string {
	if len(codes) == 0 {
		return ""
	}
	for _, c := range codes {
		if c.IsPrimary {
			return c.Code
		}
	}
	sorted := make([]string, 0, len(codes))
	for _, c := range codes {
		sorted = append(sorted, c.Code)
	}
	sort.Strings(sorted)
	return sorted[0]
}
