package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/domain"
	pkgerrors "github.com/Mide008/Roothaus-1/pkg/errors"
)

// StripeClient talks to Stripe: webhook verification, session reads and session creation
type StripeClient struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
	readBreaker   *gobreaker.CircuitBreaker[[]byte]
	createBreaker *gobreaker.CircuitBreaker[domain.CheckoutSession]
	logger        *zap.Logger
}

// NewStripeClient creates a Stripe client using the default API backends
func NewStripeClient(cfg config.StripeConfig, logger *zap.Logger) *StripeClient {
	return newStripeClient(cfg, nil, logger)
}

// NewStripeClientWithBackend points every Stripe call at backend (stripe-mock or a test server)
func NewStripeClientWithBackend(cfg config.StripeConfig, backend stripe.Backend, logger *zap.Logger) *StripeClient {
	return newStripeClient(cfg, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}, logger)
}

func newStripeClient(cfg config.StripeConfig, backends *stripe.Backends, logger *zap.Logger) *StripeClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeClient{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		tolerance:     webhook.DefaultTolerance,
		readBreaker:   gobreaker.NewCircuitBreaker[[]byte](breakerSettings("stripe-session-read", logger)),
		createBreaker: gobreaker.NewCircuitBreaker[domain.CheckoutSession](breakerSettings("stripe-session-create", logger)),
		logger:        logger,
	}
}

func breakerSettings(name string, logger *zap.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// client errors (bad id, invalid params) say nothing about Stripe's health
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var stripeErr *stripe.Error
			if errors.As(err, &stripeErr) {
				return stripeErr.HTTPStatusCode > 0 && stripeErr.HTTPStatusCode < 500
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
}

// VerifyEvent checks the Stripe-Signature header against the raw payload and decodes the event
func (c *StripeClient) VerifyEvent(payload []byte, signatureHeader string) (Event, error) {
	if c.webhookSecret == "" {
		return Event{}, &pkgerrors.ErrSignature{Err: fmt.Errorf("webhook secret not configured")}
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, c.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                c.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, &pkgerrors.ErrSignature{Err: err}
	}

	event := Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil && len(ev.Data.Raw) > 0 {
		var object struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.Data.Raw, &object); err == nil {
			event.SessionID = object.ID
		}
	}
	return event, nil
}

// GetCheckoutSession retrieves a session with its line items and customer expanded
func (c *StripeClient) GetCheckoutSession(ctx context.Context, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &pkgerrors.ErrValidation{Message: "checkout session id is required"}
	}

	raw, err := c.readBreaker.Execute(func() ([]byte, error) {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		params.AddExpand("line_items")
		params.AddExpand("customer")

		sess, err := c.api.CheckoutSessions.Get(id, params)
		if err != nil {
			return nil, err
		}
		if sess.LastResponse != nil && len(sess.LastResponse.RawJSON) > 0 {
			return sess.LastResponse.RawJSON, nil
		}
		return json.Marshal(sess)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session %s: %w", id, err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session %s: %w", id, err)
	}

	// the expansion only carries the first page of line items
	if session.LineItems != nil && session.LineItems.HasMore {
		items, err := c.listLineItems(ctx, id)
		if err != nil {
			return nil, err
		}
		session.LineItems = &LineItemList{Data: items}
	}
	return &session, nil
}

func (c *StripeClient) listLineItems(ctx context.Context, id string) ([]LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(id)}
	params.Context = ctx

	var items []LineItem
	iter := c.api.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		raw, err := json.Marshal(iter.LineItem())
		if err != nil {
			return nil, err
		}
		var item LineItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list line items of %s: %w", id, err)
	}
	return items, nil
}

// CreateCheckoutSession opens a hosted payment page for the given lines
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CreateSessionRequest) (domain.CheckoutSession, error) {
	if len(req.Lines) == 0 {
		return domain.CheckoutSession{}, &pkgerrors.ErrValidation{Message: "at least one line item is required"}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(ShippingCountries),
		},
		PhoneNumberCollection: &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for _, line := range req.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(line.Name),
		}
		if line.Description != "" {
			product.Description = stripe.String(line.Description)
		}
		if strings.HasPrefix(line.Image, "https://") {
			product.Images = stripe.StringSlice([]string{line.Image})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(strings.ToLower(req.Currency)),
				UnitAmount:  stripe.Int64(line.UnitAmount),
				ProductData: product,
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}
	if req.DisplayCurrency != "" {
		params.AddMetadata("display_currency", req.DisplayCurrency)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	session, err := c.createBreaker.Execute(func() (domain.CheckoutSession, error) {
		sess, err := c.api.CheckoutSessions.New(params)
		if err != nil {
			return domain.CheckoutSession{}, err
		}
		return domain.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeIdempotency {
			return domain.CheckoutSession{}, &pkgerrors.ErrConflict{Message: "idempotency key reused with a different cart"}
		}
		return domain.CheckoutSession{}, fmt.Errorf("failed to create checkout session: %w", err)
	}

	c.logger.Info("Created checkout session",
		zap.String("session_id", session.ID),
		zap.Int("lines", len(req.Lines)),
		zap.String("display_currency", req.DisplayCurrency),
	)
	return session, nil
}
