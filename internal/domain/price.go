package domain

import (
	"database/sql/driver"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountedPrice applies a percentage discount; a non-positive discount leaves price untouched.
func DiscountedPrice(price, discountPercent decimal.Decimal) decimal.Decimal {
	if !discountPercent.IsPositive() {
		return price
	}
	return price.Sub(price.Mul(discountPercent).Div(hundred))
}

// LivePrice is a unit price read from the current catalog state. It is
// recomputed on every read and never persisted.
type LivePrice struct {
	Unit     decimal.Decimal
	Quantity int32
}

func (p LivePrice) Total() decimal.Decimal {
	return p.Unit.Mul(decimal.NewFromInt32(p.Quantity))
}

// SnapshotPrice is a unit price frozen at order time. It has no setters; the
// only way to obtain one is Freeze or NewSnapshotPrice.
type SnapshotPrice struct {
	amount decimal.Decimal
}

func NewSnapshotPrice(amount decimal.Decimal) SnapshotPrice {
	return SnapshotPrice{amount: amount.Round(2)}
}

func Freeze(p LivePrice) SnapshotPrice {
	return NewSnapshotPrice(p.Unit)
}

func (p SnapshotPrice) Unit() decimal.Decimal {
	return p.amount
}

func (p SnapshotPrice) Total(quantity int32) decimal.Decimal {
	return p.amount.Mul(decimal.NewFromInt32(quantity))
}

func (p SnapshotPrice) Value() (driver.Value, error) {
	return p.amount.Value()
}

func (p *SnapshotPrice) Scan(value interface{}) error {
	return p.amount.Scan(value)
}

func (p SnapshotPrice) MarshalJSON() ([]byte, error) {
	return p.amount.MarshalJSON()
}

func (p *SnapshotPrice) UnmarshalJSON(data []byte) error {
	return p.amount.UnmarshalJSON(data)
}

func (p SnapshotPrice) String() string {
	return p.amount.StringFixed(2)
}
