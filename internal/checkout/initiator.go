package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/notify"
	pkgerrors "github.com/Mide008/Roothaus-1/pkg/errors"
)

// FailureMessage is the only thing the shopper sees when checkout cannot start
const FailureMessage = "Checkout failed. Please try again."

const idempotencyKeyHeader = "Idempotency-Key"

// CartSource is the cart being checked out
type CartSource interface {
	Items() []domain.CartItem
}

// Redirector sends the shopper to the provider-hosted payment page
type Redirector interface {
	Redirect(ctx context.Context, session domain.CheckoutSession) error
}

// RedirectorFunc adapts a function to Redirector
type RedirectorFunc func(ctx context.Context, session domain.CheckoutSession) error

func (f RedirectorFunc) Redirect(ctx context.Context, session domain.CheckoutSession) error {
	return f(ctx, session)
}

type createSessionRequest struct {
	Items    []domain.CartItem `json:"items"`
	Currency string            `json:"currency"`
}

type createSessionResponse struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Initiator posts the cart to the session-creation endpoint and hands the
// resulting session to the redirector. It never clears the cart.
type Initiator struct {
	endpoint   string
	cart       CartSource
	redirector Redirector
	notifier   notify.Notifier
	httpClient *http.Client
	logger     *zap.Logger
	currency   string
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewInitiator creates a new checkout initiator
func NewInitiator(endpoint string, cart CartSource, redirector Redirector, notifier notify.Notifier, logger *zap.Logger) *Initiator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Initiator{
		endpoint:   endpoint,
		cart:       cart,
		redirector: redirector,
		notifier:   notifier,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		currency:   domain.BaseCurrency,
		maxRetries: 2,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			return b
		},
	}
}

// WithCurrency sets the display currency sent along with the cart
func (i *Initiator) WithCurrency(code string) *Initiator {
	if code != "" {
		i.currency = strings.ToUpper(code)
	}
	return i
}

// WithHTTPClient replaces the HTTP client
func (i *Initiator) WithHTTPClient(c *http.Client) *Initiator {
	i.httpClient = c
	return i
}

// WithBackOff replaces the retry policy for transport errors and 5xx responses
func (i *Initiator) WithBackOff(maxRetries uint64, newBackOff func() backoff.BackOff) *Initiator {
	i.maxRetries = maxRetries
	i.newBackOff = newBackOff
	return i
}

// Start creates a checkout session for the current cart and redirects to it.
// Any failure shows the generic error notification and leaves the cart untouched.
func (i *Initiator) Start(ctx context.Context) (domain.CheckoutSession, error) {
	session, err := i.start(ctx)
	if err != nil {
		i.logger.Error("Checkout error", zap.Error(err))
		i.notifier.Notify(notify.Notification{Message: FailureMessage, Level: notify.LevelError})
		return domain.CheckoutSession{}, err
	}
	return session, nil
}

func (i *Initiator) start(ctx context.Context) (domain.CheckoutSession, error) {
	items := i.cart.Items()
	if len(items) == 0 {
		return domain.CheckoutSession{}, &pkgerrors.ErrValidation{Message: "cart is empty"}
	}

	body, err := json.Marshal(createSessionRequest{Items: items, Currency: i.currency})
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("failed to encode checkout request: %w", err)
	}

	// one key per attempt to check out, shared by its retries
	key := uuid.NewString()
	var session domain.CheckoutSession
	post := func() error {
		s, err := i.post(ctx, body, key)
		if err != nil {
			return err
		}
		session = s
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(i.newBackOff(), i.maxRetries), ctx)
	if err := backoff.Retry(post, policy); err != nil {
		return domain.CheckoutSession{}, err
	}

	if err := i.redirector.Redirect(ctx, session); err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("failed to redirect to checkout: %w", err)
	}
	i.logger.Info("Redirecting to checkout", zap.String("session_id", session.ID))
	return session, nil
}

func (i *Initiator) post(ctx context.Context, body []byte, key string) (domain.CheckoutSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.CheckoutSession{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyKeyHeader, key)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("failed to read checkout response: %w", err)
	}

	var out createSessionResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode >= 500 {
		return domain.CheckoutSession{}, fmt.Errorf("checkout endpoint returned %d: %s", resp.StatusCode, out.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.CheckoutSession{}, backoff.Permanent(fmt.Errorf("checkout endpoint returned %d: %s", resp.StatusCode, out.Error))
	}
	if decodeErr != nil {
		return domain.CheckoutSession{}, backoff.Permanent(fmt.Errorf("failed to decode checkout response: %w", decodeErr))
	}
	if out.Error != "" {
		return domain.CheckoutSession{}, backoff.Permanent(fmt.Errorf("checkout endpoint error: %s", out.Error))
	}
	if out.ID == "" {
		return domain.CheckoutSession{}, backoff.Permanent(fmt.Errorf("checkout response carries no session id"))
	}
	return domain.CheckoutSession{ID: out.ID, URL: out.URL}, nil
}
