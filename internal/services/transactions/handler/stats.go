package handler

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
)

type Stats struct {
	TotalTransactions     int64           `json:"total_transactions"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	PendingTransactions   int64           `json:"pending_transactions"`
	CompletedTransactions int64           `json:"completed_transactions"`
	FailedTransactions    int64           `json:"failed_transactions"`
	CancelledTransactions int64           `json:"cancelled_transactions"`
	RefundedTransactions  int64           `json:"refunded_transactions"`
}

type AdminStats struct {
	Stats
	ByPaymentMethod map[domain.PaymentMethod]int64  `json:"transactions_by_payment_method"`
	ByGateway       map[domain.PaymentGateway]int64 `json:"transactions_by_gateway"`
}

type groupCount struct {
	GroupKey string
	Count    int64
}

func countBy(query *gorm.DB, column string) (map[string]int64, error) {
	var rows []groupCount
	if err := query.Select(column + " AS group_key, COUNT(*) AS count").Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.GroupKey] = row.Count
	}
	return out, nil
}

func (s *TransactionHandler) stats(ctx context.Context, userID *int64) (*Stats, error) {
	scoped := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&models.Transaction{})
		if userID != nil {
			query = query.Where("user_id = ?", *userID)
		}
		return query
	}

	byStatus, err := countBy(scoped(), "status")
	if err != nil {
		return nil, errors.Wrap(err, "count transactions by status")
	}

	var amounts []decimal.Decimal
	if err := scoped().Where("status = ?", domain.TransactionCompleted).Pluck("amount", &amounts).Error; err != nil {
		return nil, errors.Wrap(err, "sum completed transactions")
	}

	stats := Stats{
		TotalAmount:           decimal.Sum(decimal.Zero, amounts...),
		PendingTransactions:   byStatus[string(domain.TransactionPending)],
		CompletedTransactions: byStatus[string(domain.TransactionCompleted)],
		FailedTransactions:    byStatus[string(domain.TransactionFailed)],
		CancelledTransactions: byStatus[string(domain.TransactionCancelled)],
		RefundedTransactions:  byStatus[string(domain.TransactionRefunded)],
	}
	for _, n := range byStatus {
		stats.TotalTransactions += n
	}
	return &stats, nil
}

// Stats summarises the actor's own transactions.
func (s *TransactionHandler) Stats(ctx context.Context, actor domain.Actor) (*Stats, error) {
	return s.stats(ctx, &actor.UserID)
}

// AdminStats summarises every transaction with breakdowns per payment method and gateway.
func (s *TransactionHandler) AdminStats(ctx context.Context, actor domain.Actor) (*AdminStats, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	base, err := s.stats(ctx, nil)
	if err != nil {
		return nil, err
	}

	byMethod, err := countBy(s.db.WithContext(ctx).Model(&models.Transaction{}), "payment_method")
	if err != nil {
		return nil, errors.Wrap(err, "count transactions by payment method")
	}
	byGateway, err := countBy(s.db.WithContext(ctx).Model(&models.Transaction{}), "payment_gateway")
	if err != nil {
		return nil, errors.Wrap(err, "count transactions by gateway")
	}

	out := AdminStats{
		Stats:           *base,
		ByPaymentMethod: make(map[domain.PaymentMethod]int64, len(domain.PaymentMethods)),
		ByGateway:       make(map[domain.PaymentGateway]int64, len(domain.PaymentGateways)),
	}
	for _, method := range domain.PaymentMethods {
		out.ByPaymentMethod[method] = byMethod[string(method)]
	}
	for _, gateway := range domain.PaymentGateways {
		out.ByGateway[gateway] = byGateway[string(gateway)]
	}
	return &out, nil
}
