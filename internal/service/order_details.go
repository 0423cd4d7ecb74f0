package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Mide008/Roothaus-1/internal/currency"
	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/payments"
)

const (
	orderNumberLength = 16
	missingPhone      = "N/A"
)

// OrderNumber is the display order number: the first 16 characters of the
// session id, upper-cased. It is not guaranteed to be unique.
func OrderNumber(sessionID string) string {
	n := sessionID
	if len(n) > orderNumberLength {
		n = n[:orderNumberLength]
	}
	return strings.ToUpper(n)
}

// BuildOrderDetails maps a fetched checkout session into order details.
// Amounts are converted from minor to major units; receivedAt is the order
// date when the session carries no creation time.
func BuildOrderDetails(sess *payments.Session, receivedAt time.Time) (domain.OrderDetails, error) {
	if sess == nil || sess.ID == "" {
		return domain.OrderDetails{}, fmt.Errorf("checkout session is missing")
	}

	code := strings.ToUpper(sess.Currency)
	order := domain.OrderDetails{
		OrderID:       sess.ID,
		OrderNumber:   OrderNumber(sess.ID),
		Subtotal:      currency.FromMinorUnits(sess.AmountSubtotal, code),
		Total:         currency.FromMinorUnits(sess.AmountTotal, code),
		Currency:      code,
		PaymentStatus: sess.PaymentStatus,
		OrderDate:     sess.CreatedAt(),
		Customer:      domain.Customer{Phone: missingPhone},
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = receivedAt.UTC()
	}

	if cd := sess.CustomerDetails; cd != nil {
		order.Customer.Email = cd.Email
		order.Customer.Name = cd.Name
		if cd.Phone != "" {
			order.Customer.Phone = cd.Phone
		}
		order.BillingAddress = toAddress(cd.Name, cd.Address)
	}
	if shipping := sess.Shipping(); shipping != nil {
		order.ShippingAddress = toAddress(shipping.Name, shipping.Address)
	}

	if sess.LineItems != nil {
		for _, li := range sess.LineItems.Data {
			order.Items = append(order.Items, toOrderItem(li, code))
		}
	}
	return order, nil
}

func toAddress(name string, a *payments.PostalAddress) *domain.Address {
	if a == nil {
		return nil
	}
	return &domain.Address{
		Name:       name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func toOrderItem(li payments.LineItem, sessionCurrency string) domain.OrderItem {
	code := strings.ToUpper(li.Currency)
	if code == "" {
		code = sessionCurrency
	}

	lineTotal := currency.FromMinorUnits(li.AmountTotal, code)
	var unit decimal.Decimal
	switch {
	case li.Price != nil && li.Price.UnitAmount != nil:
		unit = currency.FromMinorUnits(*li.Price.UnitAmount, code)
	case li.Quantity > 0:
		unit = lineTotal.Div(decimal.NewFromInt(li.Quantity)).Round(currency.Digits(code))
	default:
		unit = lineTotal
	}

	return domain.OrderItem{
		Name:      li.Description,
		Quantity:  li.Quantity,
		UnitPrice: unit,
		LineTotal: lineTotal,
		Currency:  code,
	}
}
