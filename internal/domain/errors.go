package domain

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindPermission
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindPermission:
		return "PERMISSION_DENIED"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	default:
		return "INTERNAL"
	}
}

// Error messages surfaced to API clients.
const (
	MsgCartNotFound            = "Cart not found"
	MsgNoActiveCart            = "No active cart found"
	MsgActiveCartExists        = "User already has an active cart"
	MsgCartCheckedOut          = "Cart is already checked out"
	MsgCartEmpty               = "Cart is empty"
	MsgShippingAddressRequired = "shipping_address is required"
	MsgQuantityPositive        = "Quantity must be greater than 0"
	MsgQuantityTooLarge        = "Quantity is too large"
	MsgCartItemNotFound        = "Cart item not found"
	MsgCatalogItemNotFound     = "Catalog item not found"
	MsgCategoryNotFound        = "Category not found"
	MsgSlugTaken               = "Slug already exists"
	MsgSlugRequired            = "A slug is required when the name has no letters or digits"
	MsgCatalogItemReferenced   = "Catalog item is referenced by orders"
	MsgOrderNotFound           = "Order not found"
	MsgOrderStatusAdminOnly    = "Only admin can update order status"
	MsgOrderNotEditable        = "Only pending orders can be edited"
	MsgTransactionNotFound     = "Transaction not found"
	MsgAmountPositive          = "Amount must be greater than 0"
	MsgStatusChanged           = "Status was changed by another request, retry"
	MsgPaymentFailed           = "Payment processing failed"
	MsgAdminOnly               = "Admin privileges required"
	MsgPasswordsMismatch       = "Passwords don't match"
	MsgEmailExists             = "Email already exists"
	MsgInvalidCredentials      = "Invalid email or password"
	MsgUserInactive            = "User account is disabled"
	MsgUserNotFound            = "User not found"
)

type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]interface{}
}

func (e *Error) Error() string {
	return e.Message
}

// WithField returns a copy of e carrying an extra structured field.
func (e *Error) WithField(key string, value interface{}) *Error {
	fields := make(map[string]interface{}, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Fields: fields}
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func NewValidation(message string) *Error {
	return newError(KindValidation, message)
}

func NewValidationf(format string, args ...interface{}) *Error {
	return newError(KindValidation, fmt.Sprintf(format, args...))
}

func NewNotFound(message string) *Error {
	return newError(KindNotFound, message)
}

func NewConflict(message string) *Error {
	return newError(KindConflict, message)
}

func NewPermission(message string) *Error {
	return newError(KindPermission, message)
}

func NewUnauthorized(message string) *Error {
	return newError(KindUnauthorized, message)
}

// AsError unwraps err looking for a *Error.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if de, ok := AsError(err); ok {
		return de.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
