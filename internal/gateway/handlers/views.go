package handlers

import (
	"time"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
)

// --- Conversion Helpers ---

type CategoryView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	ImageURL  *string   `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func categoryView(c models.Category) CategoryView {
	return CategoryView{
		ID:        c.ID,
		Name:      c.Name,
		Slug:      c.Slug,
		ImageURL:  c.ImageURL,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ItemView renders a catalog item with the field names of its kind: books
// carry title and published_year, motoparts name, manufacture_year and supplier.
type ItemView struct {
	ID              int64         `json:"id"`
	Kind            string        `json:"kind"`
	Name            string        `json:"name,omitempty"`
	Title           string        `json:"title,omitempty"`
	Slug            string        `json:"slug"`
	Price           string        `json:"price"`
	Discount        string        `json:"discount"`
	DiscountedPrice string        `json:"discounted_price"`
	Stock           int32         `json:"stock"`
	Status          string        `json:"status"`
	IsAvailable     bool          `json:"is_available"`
	PublishedYear   int32         `json:"published_year,omitempty"`
	ManufactureYear int32         `json:"manufacture_year,omitempty"`
	Supplier        *string       `json:"supplier,omitempty"`
	Description     *string       `json:"description,omitempty"`
	ImageURL        *string       `json:"image,omitempty"`
	CategoryID      int64         `json:"category_id"`
	Category        *CategoryView `json:"category,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func itemView(i models.CatalogItem) ItemView {
	v := ItemView{
		ID:              i.ID,
		Kind:            string(i.Kind),
		Slug:            i.Slug,
		Price:           i.Price.StringFixed(2),
		Discount:        i.Discount.StringFixed(2),
		DiscountedPrice: i.DiscountedPrice().StringFixed(2),
		Stock:           i.Stock,
		Status:          string(i.Status),
		IsAvailable:     i.IsAvailable(),
		Description:     i.Description,
		ImageURL:        i.ImageURL,
		CategoryID:      i.CategoryID,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}
	if i.Kind == domain.KindBook {
		v.Title = i.Name
		v.PublishedYear = i.Year
	} else {
		v.Name = i.Name
		v.ManufactureYear = i.Year
		v.Supplier = i.Supplier
	}
	if i.Category != nil {
		cv := categoryView(*i.Category)
		v.Category = &cv
	}
	return v
}

func itemViews(items []models.CatalogItem) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, i := range items {
		out = append(out, itemView(i))
	}
	return out
}

type CartItemView struct {
	ID        int64     `json:"id"`
	Quantity  int32     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Total     string    `json:"total_price"`
	Item      *ItemView `json:"item,omitempty"`
	ItemID    int64     `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}

func cartItemView(i models.CartItem) CartItemView {
	price := i.LivePrice()
	v := CartItemView{
		ID:        i.ID,
		Quantity:  i.Quantity,
		UnitPrice: price.Unit.StringFixed(2),
		Total:     price.Total().StringFixed(2),
		ItemID:    i.CatalogItemID,
		CreatedAt: i.CreatedAt,
	}
	if i.CatalogItem != nil {
		iv := itemView(*i.CatalogItem)
		v.Item = &iv
	}
	return v
}

type CartView struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Status    string         `json:"status"`
	Items     []CartItemView `json:"items"`
	Subtotal  string         `json:"subtotal"`
	ItemCount int32          `json:"item_count"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func cartView(c models.Cart) CartView {
	items := make([]CartItemView, 0, len(c.Items))
	for _, i := range c.Items {
		items = append(items, cartItemView(i))
	}
	return CartView{
		ID:        c.ID,
		UserID:    c.UserID,
		Status:    string(c.Status),
		Items:     items,
		Subtotal:  c.Subtotal().StringFixed(2),
		ItemCount: c.ItemCount(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type OrderItemView struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	ItemName  string    `json:"item_name,omitempty"`
	Quantity  int32     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Total     string    `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderView struct {
	ID              int64                 `json:"id"`
	UserID          int64                 `json:"user_id"`
	Status          string                `json:"status"`
	TotalAmount     string                `json:"total_amount"`
	ShippingAddress string                `json:"shipping_address"`
	BillingAddress  *string               `json:"billing_address"`
	Notes           *string               `json:"notes"`
	Items           []OrderItemView       `json:"items"`
	Transactions    []TransactionListView `json:"transactions,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func orderView(o models.Order) OrderView {
	items := make([]OrderItemView, 0, len(o.Items))
	for _, i := range o.Items {
		iv := OrderItemView{
			ID:        i.ID,
			ItemID:    i.CatalogItemID,
			Quantity:  i.Quantity,
			UnitPrice: i.UnitPrice.String(),
			Total:     i.Total.StringFixed(2),
			CreatedAt: i.CreatedAt,
		}
		if i.CatalogItem != nil {
			iv.ItemName = i.CatalogItem.Name
		}
		items = append(items, iv)
	}
	v := OrderView{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Notes:           o.Notes,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, t := range o.Transactions {
		v.Transactions = append(v.Transactions, transactionListView(t))
	}
	return v
}

func orderViews(orders []models.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderView(o))
	}
	return out
}

type TransactionView struct {
	ID                    int64          `json:"id"`
	UserID                int64          `json:"user_id"`
	OrderID               *int64         `json:"order"`
	TransactionID         string         `json:"transaction_id"`
	ExternalTransactionID *string        `json:"external_transaction_id"`
	Amount                string         `json:"amount"`
	Currency              string         `json:"currency"`
	Status                string         `json:"status"`
	PaymentMethod         string         `json:"payment_method"`
	PaymentGateway        string         `json:"payment_gateway"`
	PaymentReference      *string        `json:"payment_reference"`
	GatewayResponse       models.JSONMap `json:"gateway_response"`
	Description           *string        `json:"description"`
	Notes                 *string        `json:"notes"`
	IsSuccessful          bool           `json:"is_successful"`
	IsPending             bool           `json:"is_pending"`
	IsFailed              bool           `json:"is_failed"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	CompletedAt           *time.Time     `json:"completed_at"`
}

func transactionView(t models.Transaction) TransactionView {
	return TransactionView{
		ID:                    t.ID,
		UserID:                t.UserID,
		OrderID:               t.OrderID,
		TransactionID:         t.TransactionID,
		ExternalTransactionID: t.ExternalTransactionID,
		Amount:                t.Amount.StringFixed(2),
		Currency:              t.Currency,
		Status:                string(t.Status),
		PaymentMethod:         string(t.PaymentMethod),
		PaymentGateway:        string(t.PaymentGateway),
		PaymentReference:      t.PaymentReference,
		GatewayResponse:       t.GatewayResponse,
		Description:           t.Description,
		Notes:                 t.Notes,
		IsSuccessful:          t.IsSuccessful(),
		IsPending:             t.IsPending(),
		IsFailed:              t.IsFailed(),
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
		CompletedAt:           t.CompletedAt,
	}
}

type TransactionListView struct {
	ID            int64      `json:"id"`
	TransactionID string     `json:"transaction_id"`
	OrderID       *int64     `json:"order_id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

func transactionListView(t models.Transaction) TransactionListView {
	return TransactionListView{
		ID:            t.ID,
		TransactionID: t.TransactionID,
		OrderID:       t.OrderID,
		Amount:        t.Amount.StringFixed(2),
		Currency:      t.Currency,
		Status:        string(t.Status),
		PaymentMethod: string(t.PaymentMethod),
		CreatedAt:     t.CreatedAt,
		CompletedAt:   t.CompletedAt,
	}
}

func transactionListViews(ts []models.Transaction) []TransactionListView {
	out := make([]TransactionListView, 0, len(ts))
	for _, t := range ts {
		out = append(out, transactionListView(t))
	}
	return out
}

type UserView struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	IsActive   bool       `json:"is_active"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	DateJoined *time.Time `json:"date_joined,omitempty"`
}

func userView(u models.User) UserView {
	return UserView{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       string(u.Role),
		FirstName:  u.Firstname,
		LastName:   u.Lastname,
		IsActive:   u.IsActive,
		LastLogin:  u.LastLogin,
		DateJoined: u.CreatedAt,
	}
}
