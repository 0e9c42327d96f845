package enums

// OutboxAggregateType names the row an outbox event is about. Rows of one
// aggregate publish in order under a shared ordering key.
type OutboxAggregateType string

const (
	AggregateVerification OutboxAggregateType = "verification_record"
	AggregateAddOn        OutboxAggregateType = "addon_purchase"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = set[OutboxAggregateType]{
	AggregateVerification,
	AggregateAddOn,
	AggregateNotification,
}

func (a OutboxAggregateType) IsValid() bool {
	return validAggregateTypes.has(a)
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return validAggregateTypes.parse("aggregate type", value)
}

// OutboxEventType is also the registry key that picks topic and payload shape.
type OutboxEventType string

const (
	EventVerificationStatusChanged OutboxEventType = "verification_status_changed"
	EventVerificationRenewalDue    OutboxEventType = "verification_renewal_due"
	EventAddOnPurchased            OutboxEventType = "addon_purchased"
	EventAddOnExpired              OutboxEventType = "addon_expired"
	EventNotificationRequested     OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = set[OutboxEventType]{
	EventVerificationStatusChanged,
	EventVerificationRenewalDue,
	EventAddOnPurchased,
	EventAddOnExpired,
	EventNotificationRequested,
}

func (e OutboxEventType) IsValid() bool {
	return validOutboxEventTypes.has(e)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return validOutboxEventTypes.parse("event type", value)
}

// OutboxDLQErrorReason records why the publisher dead-lettered a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var validOutboxDLQErrorReasons = set[OutboxDLQErrorReason]{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return validOutboxDLQErrorReasons.has(r) }
