package payments

import (
	"context"
	"time"

	"github.com/Mide008/Roothaus-1/internal/domain"
)

// EventCheckoutSessionCompleted is the only webhook event type that triggers order emails
const EventCheckoutSessionCompleted = "checkout.session.completed"

// Event is a verified webhook event. It is validated, used and discarded.
type Event struct {
	ID        string
	Type      string
	SessionID string
}

// Session is the provider's checkout session with line items and customer expanded.
// Amounts are in minor units of Currency.
type Session struct {
	ID                   string                `json:"id"`
	AmountSubtotal       int64                 `json:"amount_subtotal"`
	AmountTotal          int64                 `json:"amount_total"`
	Currency             string                `json:"currency"`
	PaymentStatus        string                `json:"payment_status"`
	Created              int64                 `json:"created"`
	CustomerDetails      *CustomerDetails      `json:"customer_details"`
	ShippingDetails      *ShippingDetails      `json:"shipping_details"`
	CollectedInformation *CollectedInformation `json:"collected_information"`
	LineItems            *LineItemList         `json:"line_items"`
	Metadata             map[string]string     `json:"metadata"`
}

type CustomerDetails struct {
	Email   string         `json:"email"`
	Name    string         `json:"name"`
	Phone   string         `json:"phone"`
	Address *PostalAddress `json:"address"`
}

type ShippingDetails struct {
	Name    string         `json:"name"`
	Address *PostalAddress `json:"address"`
}

// CollectedInformation carries the shipping details on newer API versions
type CollectedInformation struct {
	ShippingDetails *ShippingDetails `json:"shipping_details"`
}

type PostalAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type LineItemList struct {
	Data    []LineItem `json:"data"`
	HasMore bool       `json:"has_more"`
}

type LineItem struct {
	ID             string     `json:"id"`
	Description    string     `json:"description"`
	Quantity       int64      `json:"quantity"`
	AmountSubtotal int64      `json:"amount_subtotal"`
	AmountTotal    int64      `json:"amount_total"`
	Currency       string     `json:"currency"`
	Price          *LinePrice `json:"price"`
}

type LinePrice struct {
	UnitAmount *int64 `json:"unit_amount"`
}

// Shipping returns the shipping details wherever the API version put them
func (s *Session) Shipping() *ShippingDetails {
	if s.ShippingDetails != nil {
		return s.ShippingDetails
	}
	if s.CollectedInformation != nil {
		return s.CollectedInformation.ShippingDetails
	}
	return nil
}

// CreatedAt returns the session creation time, zero when unknown
func (s *Session) CreatedAt() time.Time {
	if s.Created == 0 {
		return time.Time{}
	}
	return time.Unix(s.Created, 0).UTC()
}

// SessionLine is one priced line of a new checkout session
type SessionLine struct {
	Name        string
	Description string
	Image       string
	UnitAmount  int64 // minor units of the settlement currency
	Quantity    int64
}

// CreateSessionRequest describes a hosted checkout session to create
type CreateSessionRequest struct {
	Lines           []SessionLine
	Currency        string
	SuccessURL      string
	CancelURL       string
	DisplayCurrency string
	IdempotencyKey  string
}

// ShippingCountries are the destinations the hosted checkout collects addresses for
var ShippingCountries = []string{
	"NG", "US", "GB", "CA", "AU", "ZA",
	"AT", "BE", "DE", "ES", "FI", "FR", "IE", "IT", "NL", "PT",
}

// EventVerifier authenticates raw webhook payloads
type EventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (Event, error)
}

// SessionFetcher re-reads a completed checkout session from the provider
type SessionFetcher interface {
	GetCheckoutSession(ctx context.Context, id string) (*Session, error)
}

// SessionCreator opens hosted checkout sessions
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req CreateSessionRequest) (domain.CheckoutSession, error)
}
