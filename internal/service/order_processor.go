package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/email"
	"github.com/Mide008/Roothaus-1/internal/metrics"
	"github.com/Mide008/Roothaus-1/internal/payments"
	"github.com/Mide008/Roothaus-1/internal/repository"
	pkgerrors "github.com/Mide008/Roothaus-1/pkg/errors"
)

// Result describes what one webhook delivery did
type Result struct {
	State     domain.ProcessingState
	EventID   string
	EventType string
	SessionID string
	Sent      []domain.NotificationKind
	Skipped   []domain.NotificationKind
}

// OrderProcessor turns verified checkout-completed events into order emails.
// Each order gets one customer receipt and one admin alert; the ledger makes
// redeliveries of the same event send only what is still missing.
type OrderProcessor struct {
	verifier   payments.EventVerifier
	sessions   payments.SessionFetcher
	renderer   *email.Renderer
	sender     email.Sender
	ledger     repository.NotificationRepository
	notify     config.NotifyConfig
	metrics    *metrics.ServerMetrics
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

// ProcessorDeps are the collaborators of the order processor
type ProcessorDeps struct {
	Verifier payments.EventVerifier
	Sessions payments.SessionFetcher
	Renderer *email.Renderer
	Sender   email.Sender
	Ledger   repository.NotificationRepository
	Metrics  *metrics.ServerMetrics
}

// NewOrderProcessor creates a new order processor
func NewOrderProcessor(deps ProcessorDeps, cfg config.NotifyConfig, logger *zap.Logger) *OrderProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderProcessor{
		verifier: deps.Verifier,
		sessions: deps.Sessions,
		renderer: deps.Renderer,
		sender:   deps.Sender,
		ledger:   deps.Ledger,
		notify:   cfg,
		metrics:  deps.Metrics,
		logger:   logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
		now: time.Now,
	}
}

// WithBackOff replaces the retry policy of notification sends
func (p *OrderProcessor) WithBackOff(newBackOff func() backoff.BackOff) *OrderProcessor {
	p.newBackOff = newBackOff
	return p
}

// delivery tracks the state of one webhook call
type delivery struct {
	result *Result
	logger *zap.Logger
}

func (d *delivery) transition(to domain.ProcessingState) error {
	from := d.result.State
	if !from.CanTransitionTo(to) {
		return &pkgerrors.ErrInvalidStateTransition{From: from, To: to}
	}
	d.result.State = to
	d.logger.Debug("Webhook state transition", zap.String("from", string(from)), zap.String("to", string(to)))
	return nil
}

// Process verifies a raw webhook payload and, for a completed checkout, sends the
// order emails. A *errors.ErrSignature means the payload was rejected untouched;
// any other error means processing failed and the provider should redeliver.
func (p *OrderProcessor) Process(ctx context.Context, payload []byte, signature string) (*Result, error) {
	d := &delivery{result: &Result{State: domain.StateReceived}, logger: p.logger}
	defer func() { p.observeDelivery(d.result.State) }()

	event, err := p.verifier.VerifyEvent(payload, signature)
	if err != nil {
		_ = d.transition(domain.StateFailed)
		p.logger.Warn("Webhook signature verification failed", zap.Error(err))
		var sigErr *pkgerrors.ErrSignature
		if !errors.As(err, &sigErr) {
			err = &pkgerrors.ErrSignature{Err: err}
		}
		return d.result, err
	}
	if err := d.transition(domain.StateVerified); err != nil {
		return d.result, err
	}
	d.result.EventID = event.ID
	d.result.EventType = event.Type
	d.result.SessionID = event.SessionID
	d.logger = p.logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	if event.Type != payments.EventCheckoutSessionCompleted {
		d.logger.Debug("Ignoring webhook event")
		return d.result, d.transition(domain.StateIgnored)
	}
	if err := d.transition(domain.StateProcessing); err != nil {
		return d.result, err
	}
	d.logger = d.logger.With(zap.String("session_id", event.SessionID))

	if err := p.processCompleted(ctx, d); err != nil {
		_ = d.transition(domain.StateFailed)
		d.logger.Error("Error processing webhook", zap.Error(err))
		return d.result, err
	}
	return d.result, d.transition(domain.StateCompleted)
}

type notificationTask struct {
	kind domain.NotificationKind
	msg  email.Message
}

func (p *OrderProcessor) processCompleted(ctx context.Context, d *delivery) error {
	sessionID := d.result.SessionID
	if sessionID == "" {
		return &pkgerrors.ErrValidation{Message: "checkout event carries no session id"}
	}

	// the event payload is not trusted for line items: re-read the session
	sess, err := p.sessions.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return err
	}
	order, err := BuildOrderDetails(sess, p.now())
	if err != nil {
		return err
	}

	// render both emails before sending anything
	customerHTML, err := p.renderer.RenderCustomer(order)
	if err != nil {
		return fmt.Errorf("failed to render customer email: %w", err)
	}
	adminHTML, err := p.renderer.RenderAdmin(order)
	if err != nil {
		return fmt.Errorf("failed to render admin email: %w", err)
	}

	tasks := []notificationTask{
		{
			kind: domain.NotificationCustomer,
			msg: email.Message{
				FromName: p.notify.FromName,
				To:       order.Customer.Email,
				Subject:  email.CustomerSubject(order),
				HTML:     customerHTML,
			},
		},
		{
			kind: domain.NotificationAdmin,
			msg: email.Message{
				FromName: p.notify.AdminFromName,
				To:       p.notify.BusinessEmail,
				Subject:  email.AdminSubject(order),
				HTML:     adminHTML,
			},
		},
	}

	// tasks are independent: a failed receipt does not suppress the admin alert
	var errs []error
	for _, task := range tasks {
		sent, err := p.runTask(ctx, d.logger, sessionID, task)
		switch {
		case err != nil:
			errs = append(errs, err)
		case sent:
			d.result.Sent = append(d.result.Sent, task.kind)
		default:
			d.result.Skipped = append(d.result.Skipped, task.kind)
		}
	}
	return errors.Join(errs...)
}

// runTask claims, sends and records one notification. It reports false when the
// notification was already sent by an earlier delivery.
func (p *OrderProcessor) runTask(ctx context.Context, logger *zap.Logger, sessionID string, task notificationTask) (bool, error) {
	logger = logger.With(zap.String("notification", string(task.kind)))

	if task.msg.To == "" {
		p.observeNotification(task.kind, "failed")
		return false, fmt.Errorf("%s notification has no recipient", task.kind)
	}

	claim, err := p.ledger.Claim(ctx, sessionID, task.kind)
	if err != nil {
		p.observeNotification(task.kind, "failed")
		return false, fmt.Errorf("failed to claim %s notification: %w", task.kind, err)
	}
	if !claim.Acquired {
		if claim.Status == domain.NotificationSent {
			logger.Info("Notification already sent, skipping")
			p.observeNotification(task.kind, "skipped")
			return false, nil
		}
		// another delivery holds the claim and may still fail: do not acknowledge
		logger.Warn("Notification is being sent by another delivery")
		p.observeNotification(task.kind, "in_flight")
		return false, &pkgerrors.ErrNotificationInFlight{SessionID: sessionID, Kind: task.kind}
	}

	attempt := 0
	send := func() error {
		attempt++
		err := p.sender.Send(ctx, task.msg)
		if err != nil {
			logger.Warn("Notification send failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), p.notify.MaxRetries), ctx)
	if err := backoff.Retry(send, policy); err != nil {
		// let a redelivery try again
		if rerr := p.ledger.Release(context.WithoutCancel(ctx), sessionID, task.kind, claim.ClaimedAt); rerr != nil {
			logger.Error("Failed to release notification claim", zap.Error(rerr))
		}
		p.observeNotification(task.kind, "failed")
		return false, fmt.Errorf("failed to send %s notification: %w", task.kind, err)
	}

	if err := p.ledger.MarkSent(context.WithoutCancel(ctx), sessionID, task.kind); err != nil {
		// the email is out; the pending claim expires after the claim TTL
		logger.Error("Failed to record sent notification", zap.Error(err))
	}
	logger.Info("Notification sent", zap.String("to", task.msg.To), zap.Int("attempts", attempt))
	p.observeNotification(task.kind, "sent")
	return true, nil
}

func (p *OrderProcessor) observeDelivery(state domain.ProcessingState) {
	if p.metrics != nil {
		p.metrics.Webhooks.WithLabelValues(string(state)).Inc()
	}
}

func (p *OrderProcessor) observeNotification(kind domain.NotificationKind, result string) {
	if p.metrics != nil {
		p.metrics.Notifications.WithLabelValues(string(kind), result).Inc()
	}
}
