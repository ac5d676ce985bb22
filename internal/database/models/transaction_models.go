package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-system/internal/domain"
)

type Transaction struct {
	ID                    int64                    `gorm:"primaryKey;autoIncrement"`
	UserID                int64                    `gorm:"not null;index:idx_transactions_user_status"`
	OrderID               *int64                   `gorm:"index"`
	TransactionID         string                   `gorm:"type:varchar(100);uniqueIndex;not null"`
	ExternalTransactionID *string                  `gorm:"type:varchar(200)"`
	Amount                decimal.Decimal          `gorm:"type:numeric(10,2);not null"`
	Currency              string                   `gorm:"type:varchar(3);not null"`
	Status                domain.TransactionStatus `gorm:"type:varchar(20);not null;index:idx_transactions_user_status"`
	PaymentMethod         domain.PaymentMethod     `gorm:"type:varchar(20);not null"`
	PaymentGateway        domain.PaymentGateway    `gorm:"type:varchar(20);not null"`
	PaymentReference      *string                  `gorm:"type:varchar(200)"`
	GatewayResponse       JSONMap                  `gorm:"type:jsonb"`
	Description           *string                  `gorm:"type:text"`
	Notes                 *string                  `gorm:"type:text"`
	CreatedAt             time.Time                `gorm:"index"`
	UpdatedAt             time.Time
	CompletedAt           *time.Time
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.TransactionID == "" {
		t.TransactionID = uuid.NewString()
	}
	if t.Currency == "" {
		t.Currency = domain.DefaultCurrency
	}
	if t.PaymentGateway == "" {
		t.PaymentGateway = domain.GatewayManual
	}
	if t.Status == "" {
		t.Status = domain.TransactionPending
	}
	return nil
}

func (t Transaction) IsSuccessful() bool {
	return t.Status.IsSuccessful()
}

func (t Transaction) IsPending() bool {
	return t.Status == domain.TransactionPending
}

func (t Transaction) IsFailed() bool {
	return t.Status.IsFailed()
}
