package events

import (
	"context"
	"time"
)

const (
	EventOrderCreated             = "order.created"
	EventOrderStatusChanged       = "order.status_changed"
	EventTransactionStatusChanged = "transaction.status_changed"
	EventPaymentProcessed         = "payment.processed"
)

type Event struct {
	EventType     string      `json:"event_type"`
	UserID        int64       `json:"user_id"`
	OrderID       int64       `json:"order_id,omitempty"`
	TransactionID string      `json:"transaction_id,omitempty"`
	Status        string      `json:"status,omitempty"`
	PrevStatus    string      `json:"prev_status,omitempty"`
	Amount        string      `json:"amount,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          interface{} `json:"data,omitempty"`
}

// Publisher delivers domain events after the owning database transaction committed.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type nopPublisher struct{}

func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

func (nopPublisher) Close() error { return nil }
