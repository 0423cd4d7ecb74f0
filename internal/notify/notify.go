package notify

import (
	"sync"
)

// Level is the color-coded kind of a shopper notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Color returns the storefront background color for the level
func (l Level) Color() string {
	if l == LevelError {
		return "#e74c3c"
	}
	return "#8f613c"
}

// Notification is a short-lived message shown to the shopper.
// Messages never carry configuration or error details.
type Notification struct {
	Message string
	Level   Level
}

// Notifier displays notifications to the shopper
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Discard drops every notification
var Discard Notifier = NotifierFunc(func(Notification) {})

// Recorder keeps notifications in memory
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
