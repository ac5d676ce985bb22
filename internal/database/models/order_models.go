package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-system/internal/domain"
)

type Order struct {
	ID              int64              `gorm:"primaryKey;autoIncrement"`
	UserID          int64              `gorm:"not null;index"`
	Status          domain.OrderStatus `gorm:"type:varchar(20);not null;index"`
	TotalAmount     decimal.Decimal    `gorm:"type:numeric(10,2);not null"`
	ShippingAddress string             `gorm:"type:text;not null"`
	BillingAddress  *string            `gorm:"type:text"`
	Notes           *string            `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Items        []OrderItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Transactions []Transaction `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

type OrderItem struct {
	ID            int64                `gorm:"primaryKey;autoIncrement"`
	OrderID       int64                `gorm:"not null;uniqueIndex:idx_order_items_order_catalog_item"`
	CatalogItemID int64                `gorm:"not null;uniqueIndex:idx_order_items_order_catalog_item"`
	Quantity      int32                `gorm:"not null"`
	UnitPrice     domain.SnapshotPrice `gorm:"type:numeric(10,2);not null"`
	Total         decimal.Decimal      `gorm:"type:numeric(10,2);not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	CatalogItem *CatalogItem `gorm:"foreignKey:CatalogItemID;constraint:OnDelete:RESTRICT"`
}

func (i *OrderItem) BeforeSave(tx *gorm.DB) error {
	if i.Quantity < 1 {
		return domain.NewValidation(domain.MsgQuantityPositive)
	}
	i.Total = i.UnitPrice.Total(i.Quantity)
	return nil
}
