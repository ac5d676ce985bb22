package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-system/internal/domain"
)

type Cart struct {
	ID        int64             `gorm:"primaryKey;autoIncrement"`
	UserID    int64             `gorm:"not null;index;uniqueIndex:idx_carts_active_user,where:status = 'active'"`
	Status    domain.CartStatus `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

func (c Cart) IsActive() bool {
	return c.Status == domain.CartActive
}

// Subtotal sums the live line totals. Items must be loaded with their CatalogItem.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LivePrice().Total())
	}
	return total
}

func (c Cart) ItemCount() int32 {
	var n int32
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

type CartItem struct {
	ID            int64 `gorm:"primaryKey;autoIncrement"`
	CartID        int64 `gorm:"not null;uniqueIndex:idx_cart_items_cart_catalog_item"`
	CatalogItemID int64 `gorm:"not null;uniqueIndex:idx_cart_items_cart_catalog_item"`
	Quantity      int32 `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	CatalogItem *CatalogItem `gorm:"foreignKey:CatalogItemID;constraint:OnDelete:CASCADE"`
}

func (i *CartItem) BeforeSave(tx *gorm.DB) error {
	if i.Quantity <= 0 {
		i.Quantity = 1
	}
	return nil
}

// LivePrice reads the current discounted price of the referenced item.
func (i CartItem) LivePrice() domain.LivePrice {
	p := domain.LivePrice{Quantity: i.Quantity}
	if i.CatalogItem != nil {
		p.Unit = i.CatalogItem.DiscountedPrice()
	}
	return p
}
