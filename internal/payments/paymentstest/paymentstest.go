// Package paymentstest provides signed webhook payloads and an in-memory provider for tests.
package paymentstest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/payments"
	"github.com/Mide008/Roothaus-1/pkg/errors"
)

// SignPayload builds a Stripe-Signature header for payload
func SignPayload(payload []byte, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}

// EventPayload returns a minimal webhook event body for a checkout session
func EventPayload(eventID, eventType, sessionID string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","api_version":"2023-10-16","type":%q,"data":{"object":{"id":%q,"object":"checkout.session"}}}`,
		eventID, eventType, sessionID))
}

// Provider is an in-memory session store standing in for Stripe
type Provider struct {
	mu       sync.Mutex
	sessions map[string]*payments.Session
	created  []payments.CreateSessionRequest
	gets     int

	GetErr    error
	CreateErr error
}

func NewProvider() *Provider {
	return &Provider{sessions: make(map[string]*payments.Session)}
}

// AddSession makes a session retrievable by id
func (p *Provider) AddSession(s *payments.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[s.ID] = s
}

func (p *Provider) GetCheckoutSession(ctx context.Context, id string) (*payments.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets++
	if p.GetErr != nil {
		return nil, p.GetErr
	}
	s, ok := p.sessions[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "checkout session", ID: id}
	}
	cp := *s
	return &cp, nil
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, req payments.CreateSessionRequest) (domain.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return domain.CheckoutSession{}, p.CreateErr
	}
	p.created = append(p.created, req)
	id := fmt.Sprintf("cs_test_%d", len(p.created))
	return domain.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

// Created returns every session creation request received
func (p *Provider) Created() []payments.CreateSessionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]payments.CreateSessionRequest, len(p.created))
	copy(out, p.created)
	return out
}

// Gets is the number of session reads
func (p *Provider) Gets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gets
}

// OrderSession is the two-line order used across tests: one Executive Briefcase at
// $450 and two Classic Leather Wallets at $120, $690 in total.
func OrderSession(id string) *payments.Session {
	unit450, unit120 := int64(45000), int64(12000)
	return &payments.Session{
		ID:             id,
		AmountSubtotal: 69000,
		AmountTotal:    69000,
		Currency:       "usd",
		PaymentStatus:  "paid",
		Created:        time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC).Unix(),
		CustomerDetails: &payments.CustomerDetails{
			Email: "ada@example.com",
			Name:  "Ada Obi",
			Address: &payments.PostalAddress{
				Line1: "12 Marina Road", City: "Lagos", State: "Lagos", PostalCode: "100001", Country: "NG",
			},
		},
		ShippingDetails: &payments.ShippingDetails{
			Name: "Ada Obi",
			Address: &payments.PostalAddress{
				Line1: "12 Marina Road", City: "Lagos", State: "Lagos", PostalCode: "100001", Country: "NG",
			},
		},
		LineItems: &payments.LineItemList{Data: []payments.LineItem{
			{ID: "li_1", Description: "Executive Briefcase", Quantity: 1, AmountSubtotal: 45000, AmountTotal: 45000, Currency: "usd", Price: &payments.LinePrice{UnitAmount: &unit450}},
			{ID: "li_2", Description: "Classic Leather Wallet", Quantity: 2, AmountSubtotal: 24000, AmountTotal: 24000, Currency: "usd", Price: &payments.LinePrice{UnitAmount: &unit120}},
		}},
	}
}
