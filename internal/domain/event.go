package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEvent represents a webhook_events row. The primary key is the
// provider's event id; inserting it is the deduplication gate.
type WebhookEvent struct {
	ID               string          `json:"id"`
	EventType        string          `json:"event_type"`
	Payload          json.RawMessage `json:"payload"`
	ProcessedAt      time.Time       `json:"processed_at"`
	ProcessingResult *string         `json:"processing_result,omitempty"`
	ProcessingError  *string         `json:"processing_error,omitempty"`
}

// Handler result actions.
const (
	ActionProcessed = "processed"
	ActionIgnored   = "ignored"
	ActionDuplicate = "duplicate"
)

// Reasons attached to ignored results.
const (
	ReasonUnhandledEventType     = "unhandled_event_type"
	ReasonPaymentNotFound        = "payment_not_found"
	ReasonAlreadyCompleted       = "payment_already_completed"
	ReasonAlreadyFailed          = "payment_already_failed"
	ReasonAlreadyRefunded        = "payment_already_refunded"
	ReasonNoPaymentReference     = "no_payment_reference"
	ReasonDisputeAlreadyRecorded = "dispute_already_recorded"
	ReasonDisputeNotFound        = "dispute_not_found"
)

// HandlerResult is the outcome of routing one webhook event.
type HandlerResult struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

func Processed() *HandlerResult            { return &HandlerResult{Action: ActionProcessed} }
func Ignored(reason string) *HandlerResult { return &HandlerResult{Action: ActionIgnored, Reason: reason} }
func Duplicate() *HandlerResult            { return &HandlerResult{Action: ActionDuplicate} }

// EventType enumerates outbox event types.
type EventType string

const (
	EventTransactionPosted EventType = "transaction.posted"
	EventPaymentCompleted  EventType = "payment.completed"
	EventPaymentFailed     EventType = "payment.failed"
	EventPaymentRefunded   EventType = "payment.refunded"
	EventPaymentDisputed   EventType = "payment.disputed"
	EventDisputeClosed     EventType = "dispute.closed"
)

// AggregateType enumerates aggregate root types for outbox events.
type AggregateType string

const (
	AggregatePayment AggregateType = "payment"
	AggregateDispute AggregateType = "dispute"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// GuardResult is the outcome of an admission-control check.
type GuardResult struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason,omitempty"`
	Guard             string `json:"guard,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}
