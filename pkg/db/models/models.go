package models

// All lists every persisted model; used by sqlite AutoMigrate in dev and tests.
func All() []any {
	return []any{
		&Category{},
		&Product{},
		&Barcode{},
		&Location{},
		&StockRecord{},
		&StockMovement{},
		&Sale{},
		&SaleItem{},
		&RegisterSession{},
		&User{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
