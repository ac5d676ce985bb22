package domain

import (
	"fmt"
	"strings"
)

// Transition is the outcome of checking a status change against a table.
type Transition struct {
	From    string
	To      string
	Allowed bool
}

func (t Transition) Err() error {
	if t.Allowed {
		return nil
	}
	return NewValidationf("Cannot change status from %s to %s", t.From, t.To).
		WithField("status", []string{fmt.Sprintf("Cannot change status from %s to %s", t.From, t.To)})
}

func invalidChoice(field, value string) *Error {
	msg := fmt.Sprintf("\"%s\" is not a valid choice.", value)
	return NewValidation(msg).WithField(field, []string{msg})
}

// -- Order --

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

var OrderStatuses = []OrderStatus{
	OrderPending, OrderConfirmed, OrderProcessing, OrderShipped,
	OrderDelivered, OrderCancelled, OrderRefunded,
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped,
		OrderDelivered, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	s := OrderStatus(strings.TrimSpace(value))
	if !s.IsValid() {
		return "", invalidChoice("status", value)
	}
	return s, nil
}

// OrderTransitions maps a current order status to the statuses it may move to.
type OrderTransitions map[OrderStatus][]OrderStatus

func DefaultOrderTransitions() OrderTransitions {
	return OrderTransitions{
		OrderPending:    {OrderConfirmed, OrderCancelled},
		OrderConfirmed:  {OrderProcessing, OrderCancelled},
		OrderProcessing: {OrderShipped, OrderCancelled},
		OrderShipped:    {OrderDelivered},
		OrderDelivered:  {},
		OrderCancelled:  {},
		OrderRefunded:   {},
	}
}

// WithRefunds returns a copy of t where delivered orders may be refunded.
func (t OrderTransitions) WithRefunds() OrderTransitions {
	out := make(OrderTransitions, len(t))
	for from, next := range t {
		out[from] = append([]OrderStatus(nil), next...)
	}
	out[OrderDelivered] = append(out[OrderDelivered], OrderRefunded)
	return out
}

func (t OrderTransitions) Allowed(from OrderStatus) []OrderStatus {
	return t[from]
}

func (t OrderTransitions) Transition(from, to OrderStatus) Transition {
	tr := Transition{From: string(from), To: string(to)}
	for _, next := range t[from] {
		if next == to {
			tr.Allowed = true
			break
		}
	}
	return tr
}

func (t OrderTransitions) IsTerminal(s OrderStatus) bool {
	return len(t[s]) == 0
}

// -- Transaction --

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionRefunded  TransactionStatus = "refunded"
)

var TransactionStatuses = []TransactionStatus{
	TransactionPending, TransactionCompleted, TransactionFailed,
	TransactionCancelled, TransactionRefunded,
}

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionPending, TransactionCompleted, TransactionFailed,
		TransactionCancelled, TransactionRefunded:
		return true
	}
	return false
}

func ParseTransactionStatus(value string) (TransactionStatus, error) {
	s := TransactionStatus(strings.TrimSpace(value))
	if !s.IsValid() {
		return "", invalidChoice("status", value)
	}
	return s, nil
}

func (s TransactionStatus) Allowed() []TransactionStatus {
	switch s {
	case TransactionPending:
		return []TransactionStatus{TransactionCompleted, TransactionFailed, TransactionCancelled}
	case TransactionCompleted:
		return []TransactionStatus{TransactionRefunded}
	case TransactionFailed, TransactionCancelled:
		return []TransactionStatus{TransactionPending}
	default:
		return nil
	}
}

func (s TransactionStatus) Transition(to TransactionStatus) Transition {
	tr := Transition{From: string(s), To: string(to)}
	for _, next := range s.Allowed() {
		if next == to {
			tr.Allowed = true
			break
		}
	}
	return tr
}

func (s TransactionStatus) IsSuccessful() bool {
	return s == TransactionCompleted
}

func (s TransactionStatus) IsFailed() bool {
	return s == TransactionFailed || s == TransactionCancelled
}

// Note formats the reason recorded in notes when entering s.
func (s TransactionStatus) Note(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ""
	}
	switch s {
	case TransactionFailed:
		return "Failed: " + reason
	case TransactionCancelled:
		return "Cancelled: " + reason
	case TransactionRefunded:
		return "Refunded: " + reason
	default:
		return reason
	}
}

// -- Cart --

type CartStatus string

const (
	CartActive     CartStatus = "active"
	CartCheckedOut CartStatus = "checked_out"
)

func (s CartStatus) IsValid() bool {
	return s == CartActive || s == CartCheckedOut
}

// -- Catalog --

type ItemStatus string

const (
	ItemActive     ItemStatus = "active"
	ItemInactive   ItemStatus = "inactive"
	ItemOutOfStock ItemStatus = "out_of_stock"
)

func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemActive, ItemInactive, ItemOutOfStock:
		return true
	}
	return false
}

func ParseItemStatus(value string) (ItemStatus, error) {
	s := ItemStatus(strings.TrimSpace(value))
	if !s.IsValid() {
		return "", invalidChoice("status", value)
	}
	return s, nil
}

type ItemKind string

const (
	KindBook     ItemKind = "book"
	KindMotopart ItemKind = "motopart"
)

func (k ItemKind) IsValid() bool {
	return k == KindBook || k == KindMotopart
}

// -- Payment --

type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "credit_card"
	PaymentDebitCard      PaymentMethod = "debit_card"
	PaymentPayPal         PaymentMethod = "paypal"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentDigitalWallet  PaymentMethod = "digital_wallet"
)

var PaymentMethods = []PaymentMethod{
	PaymentCreditCard, PaymentDebitCard, PaymentPayPal,
	PaymentBankTransfer, PaymentCashOnDelivery, PaymentDigitalWallet,
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	m := PaymentMethod(strings.TrimSpace(value))
	for _, known := range PaymentMethods {
		if m == known {
			return m, nil
		}
	}
	return "", invalidChoice("payment_method", value)
}

type PaymentGateway string

const (
	GatewayStripe   PaymentGateway = "stripe"
	GatewayPayPal   PaymentGateway = "paypal"
	GatewayRazorpay PaymentGateway = "razorpay"
	GatewaySquare   PaymentGateway = "square"
	GatewayManual   PaymentGateway = "manual"
)

var PaymentGateways = []PaymentGateway{
	GatewayStripe, GatewayPayPal, GatewayRazorpay, GatewaySquare, GatewayManual,
}

// ParsePaymentGateway defaults an empty value to the manual gateway.
func ParsePaymentGateway(value string) (PaymentGateway, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return GatewayManual, nil
	}
	g := PaymentGateway(value)
	for _, known := range PaymentGateways {
		if g == known {
			return g, nil
		}
	}
	return "", invalidChoice("payment_gateway", value)
}

const DefaultCurrency = "USD"

// NormalizeCurrency upper-cases a 3-letter code, defaulting to USD.
func NormalizeCurrency(value string) (string, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return DefaultCurrency, nil
	}
	if len(value) != 3 {
		return "", NewValidation("Currency must be a 3-letter code").
			WithField("currency", []string{"Ensure this field has exactly 3 characters."})
	}
	for _, r := range value {
		if r < 'A' || r > 'Z' {
			return "", NewValidation("Currency must be a 3-letter code").
				WithField("currency", []string{"Only letters are allowed."})
		}
	}
	return value, nil
}

// AppendNote joins reason onto existing notes with a newline.
func AppendNote(notes *string, reason string) *string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return notes
	}
	if notes == nil || *notes == "" {
		return &reason
	}
	joined := *notes + "\n" + reason
	return &joined
}
