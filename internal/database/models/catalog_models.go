package models

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront-system/internal/domain"
)

type Category struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	Name      string  `gorm:"type:varchar(100);not null"`
	Slug      string  `gorm:"type:varchar(120);uniqueIndex;not null"`
	ImageURL  *string `gorm:"type:varchar(512)"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []CatalogItem `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
}

// CatalogItem is a book or a motopart, depending on Kind.
type CatalogItem struct {
	ID          int64             `gorm:"primaryKey;autoIncrement"`
	Kind        domain.ItemKind   `gorm:"type:varchar(20);not null;index"`
	Name        string            `gorm:"type:varchar(255);not null"`
	Slug        string            `gorm:"type:varchar(255);uniqueIndex;not null"`
	Price       decimal.Decimal   `gorm:"type:numeric(10,2);not null"`
	Discount    decimal.Decimal   `gorm:"type:numeric(5,2);not null"`
	Stock       int32             `gorm:"not null"`
	Status      domain.ItemStatus `gorm:"type:varchar(20);not null;index"`
	CategoryID  int64             `gorm:"not null;index"`
	Year        int32             `gorm:"not null"`
	Description *string           `gorm:"type:text"`
	Supplier    *string           `gorm:"type:varchar(255)"`
	ImageURL    *string           `gorm:"type:varchar(512)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Category *Category `gorm:"foreignKey:CategoryID"`
}

func (i CatalogItem) DiscountedPrice() decimal.Decimal {
	return domain.DiscountedPrice(i.Price, i.Discount)
}

func (i CatalogItem) IsAvailable() bool {
	return i.Status == domain.ItemActive && i.Stock > 0
}
