package enums

// OutboxDLQErrorReason is stored in outbox_dlq.error_reason.
type OutboxDLQErrorReason string

const (
	// publish kept failing with transient errors
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// the broker rejected the message outright
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// no topic or payload shape is registered for the row
	OutboxDLQReasonUnresolvable OutboxDLQErrorReason = "unresolvable"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonUnresolvable,
}

func (r OutboxDLQErrorReason) IsValid() bool {
	return contains(validOutboxDLQErrorReasons, r)
}

func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return parse(validOutboxDLQErrorReasons, value, "dlq error reason")
}
