package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateSale        OutboxAggregateType = "sale"
	AggregateStockRecord OutboxAggregateType = "stock_record"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateSale,
	AggregateStockRecord,
}

func (a OutboxAggregateType) IsValid() bool {
	return contains(validAggregateTypes, a)
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, value, "aggregate type")
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventSaleCompleted    OutboxEventType = "sale_completed"
	EventSaleVoided       OutboxEventType = "sale_voided"
	EventStockAdjusted    OutboxEventType = "stock_adjusted"
	EventLowStockDetected OutboxEventType = "low_stock_detected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSaleCompleted,
	EventSaleVoided,
	EventStockAdjusted,
	EventLowStockDetected,
}

func (e OutboxEventType) IsValid() bool {
	return contains(validOutboxEventTypes, e)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validOutboxEventTypes, value, "event type")
}
