package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	"storefront-system/internal/events"
)

type PaymentData struct {
	Reference string
}

type ChargeResult struct {
	ExternalTransactionID string
	PaymentReference      string
	Response              models.JSONMap
}

// PaymentGateway charges a pending transaction.
type PaymentGateway interface {
	Charge(ctx context.Context, txn models.Transaction, data PaymentData) (*ChargeResult, error)
}

// MockGateway approves every charge.
type MockGateway struct {
	now func() time.Time
}

func NewMockGateway(now func() time.Time) *MockGateway {
	if now == nil {
		now = time.Now
	}
	return &MockGateway{now: now}
}

func (g *MockGateway) Charge(_ context.Context, txn models.Transaction, data PaymentData) (*ChargeResult, error) {
	external := "ext_" + txn.TransactionID
	return &ChargeResult{
		ExternalTransactionID: external,
		PaymentReference:      data.Reference,
		Response: models.JSONMap{
			"status":                 "success",
			"gateway_transaction_id": external,
			"processed_at":           g.now().UTC().Format(time.RFC3339Nano),
		},
	}, nil
}

// charge calls the gateway and turns a panic into an error.
func (s *TransactionHandler) charge(ctx context.Context, txn models.Transaction, data PaymentData) (result *ChargeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%v", r)
		}
	}()
	return s.gateway.Charge(ctx, txn, data)
}

// ProcessPayment charges one of the actor's pending transactions. A gateway
// failure leaves the transaction failed with the error recorded in its notes.
func (s *TransactionHandler) ProcessPayment(ctx context.Context, actor domain.Actor, transactionID string, data PaymentData) (*models.Transaction, error) {
	owner := domain.Actor{UserID: actor.UserID, Role: domain.RoleUser}
	txn, err := s.GetByTransactionID(ctx, owner, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != domain.TransactionPending {
		return nil, domain.NewValidationf("Transaction is already %s", txn.Status)
	}

	result, chargeErr := s.charge(ctx, *txn, data)
	if chargeErr == nil && result == nil {
		chargeErr = errors.New("payment gateway returned no result")
	}
	if chargeErr != nil {
		s.logger.Warn("payment failed",
			zap.String("transaction_id", txn.TransactionID),
			zap.Error(chargeErr))
		if _, err := s.transition(ctx, txn, domain.TransactionFailed, chargeErr.Error(), nil); err != nil {
			return nil, err
		}
		return nil, domain.NewValidation(domain.MsgPaymentFailed).WithField("error", chargeErr.Error())
	}

	extra := map[string]interface{}{
		"external_transaction_id": result.ExternalTransactionID,
		"gateway_response":        result.Response,
	}
	if result.PaymentReference != "" {
		extra["payment_reference"] = result.PaymentReference
	}

	updated, err := s.transition(ctx, txn, domain.TransactionCompleted, "", extra)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventPaymentProcessed, updated, domain.TransactionPending)
	return updated, nil
}
