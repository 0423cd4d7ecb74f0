package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency every catalog price is expressed in
const BaseCurrency = "USD"

// Product represents a catalog entry
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    Category        `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	InStock     bool            `json:"inStock"`
}

// CartItem is one line of the shopper's cart. JSON tags match the persisted cart array.
type CartItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Quantity int             `json:"quantity"`
}

// LineTotal returns price * quantity
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CheckoutSession is the provider-issued handle returned to the shopper
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// Customer holds the contact details collected by the hosted checkout
type Customer struct {
	Email string
	Name  string
	Phone string
}

// Address is a postal address from the checkout session
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// OrderItem is a purchased line, amounts in major units
type OrderItem struct {
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	Currency  string
}

// OrderDetails is derived per webhook call from the provider session; it is never stored
type OrderDetails struct {
	OrderID         string
	OrderNumber     string
	Customer        Customer
	ShippingAddress *Address
	BillingAddress  *Address
	Items           []OrderItem
	Subtotal        decimal.Decimal
	Total           decimal.Decimal
	Currency        string
	PaymentStatus   string
	OrderDate       time.Time
}

// NotificationRecord is a row of the notification dedup ledger
type NotificationRecord struct {
	SessionID string
	Kind      NotificationKind
	Status    NotificationStatus
	ClaimedAt time.Time
	SentAt    *time.Time
}
