package enums

// SaleStatus is the only mutable field of a committed sale.
type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusVoided    SaleStatus = "voided"
)

var validSaleStatuses = []SaleStatus{SaleStatusCompleted, SaleStatusVoided}

func (s SaleStatus) IsValid() bool {
	return contains(validSaleStatuses, s)
}
