package errors

import (
	"fmt"

	"github.com/Mide008/Roothaus-1/internal/domain"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrSignature is returned when a webhook payload fails signature verification
type ErrSignature struct {
	Err error
}

func (e *ErrSignature) Error() string {
	if e.Err != nil {
		return "webhook signature verification failed: " + e.Err.Error()
	}
	return "webhook signature verification failed"
}

func (e *ErrSignature) Unwrap() error {
	return e.Err
}

// ErrConflict is returned when there's a conflict (e.g., a notification already claimed)
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrValidation is returned when validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrInvalidStateTransition is returned when a webhook delivery moves to a state it cannot reach
type ErrInvalidStateTransition struct {
	From domain.ProcessingState
	To   domain.ProcessingState
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ErrNotificationInFlight means a concurrent delivery holds the notification
// claim and has not finished sending it
type ErrNotificationInFlight struct {
	SessionID string
	Kind      domain.NotificationKind
}

func (e *ErrNotificationInFlight) Error() string {
	return fmt.Sprintf("%s notification for %s is still being sent by another delivery", e.Kind, e.SessionID)
}
