package domain

// Category is the catalog department of a product
type Category string

const (
	CategoryMen         Category = "men"
	CategoryWomen       Category = "women"
	CategoryPets        Category = "pets"
	CategoryAccessories Category = "accessories"
)

// IsValid checks if the category is one of the storefront departments
func (c Category) IsValid() bool {
	switch c {
	case CategoryMen, CategoryWomen, CategoryPets, CategoryAccessories:
		return true
	default:
		return false
	}
}

// NotificationKind identifies which email of an order a ledger row covers
type NotificationKind string

const (
	NotificationCustomer NotificationKind = "customer"
	NotificationAdmin    NotificationKind = "admin"
)

// NotificationStatus is the ledger state of one notification
type NotificationStatus string

const (
	// NotificationPending - claimed by a webhook delivery, send in flight
	NotificationPending NotificationStatus = "pending"
	// NotificationSent - delivered to the mail transport
	NotificationSent NotificationStatus = "sent"
)

// ProcessingState is the state of one webhook delivery
type ProcessingState string

const (
	StateReceived   ProcessingState = "RECEIVED"
	StateVerified   ProcessingState = "VERIFIED"
	StateIgnored    ProcessingState = "IGNORED"
	StateProcessing ProcessingState = "PROCESSING"
	StateCompleted  ProcessingState = "COMPLETED"
	StateFailed     ProcessingState = "FAILED"
)

// CanTransitionTo checks if a webhook state transition is valid
func (s ProcessingState) CanTransitionTo(next ProcessingState) bool {
	switch s {
	case StateReceived:
		return next == StateVerified || next == StateFailed
	case StateVerified:
		return next == StateIgnored || next == StateProcessing
	case StateProcessing:
		return next == StateCompleted || next == StateFailed
	case StateIgnored, StateCompleted, StateFailed:
		return false // Terminal states
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible
func (s ProcessingState) IsTerminal() bool {
	return s == StateIgnored || s == StateCompleted || s == StateFailed
}
