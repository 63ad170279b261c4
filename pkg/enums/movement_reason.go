package enums

// MovementReason tags each stock_movements row.
type MovementReason string

const (
	MovementReasonSale       MovementReason = "sale"
	MovementReasonAdjustment MovementReason = "adjustment"
	MovementReasonRestock    MovementReason = "restock"
	MovementReasonRefund     MovementReason = "refund"
)

var validMovementReasons = []MovementReason{
	MovementReasonSale,
	MovementReasonAdjustment,
	MovementReasonRestock,
	MovementReasonRefund,
}

func (m MovementReason) IsValid() bool {
	return contains(validMovementReasons, m)
}

func ParseMovementReason(value string) (MovementReason, error) {
	return parse(validMovementReasons, value, "movement reason")
}
