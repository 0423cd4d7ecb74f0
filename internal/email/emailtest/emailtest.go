// Package emailtest provides an in-memory email.Sender.
package emailtest

import (
	"context"
	"sync"

	"github.com/Mide008/Roothaus-1/internal/email"
)

// Outbox records sent messages. FailFor makes sends to a recipient fail.
type Outbox struct {
	mu       sync.Mutex
	sent     []email.Message
	attempts map[string]int
	failFor  map[string]error
}

func NewOutbox() *Outbox {
	return &Outbox{
		attempts: make(map[string]int),
		failFor:  make(map[string]error),
	}
}

// FailFor makes every send to recipient return err until Recover is called
func (o *Outbox) FailFor(recipient string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failFor[recipient] = err
}

// Recover clears the failure set for recipient
func (o *Outbox) Recover(recipient string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.failFor, recipient)
}

func (o *Outbox) Send(ctx context.Context, msg email.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts[msg.To]++
	if err, ok := o.failFor[msg.To]; ok {
		return err
	}
	o.sent = append(o.sent, msg)
	return nil
}

// Sent returns delivered messages in order
func (o *Outbox) Sent() []email.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]email.Message, len(o.sent))
	copy(out, o.sent)
	return out
}

// SentTo returns delivered messages for one recipient
func (o *Outbox) SentTo(recipient string) []email.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []email.Message
	for _, m := range o.sent {
		if m.To == recipient {
			out = append(out, m)
		}
	}
	return out
}

// Attempts counts send calls for recipient, failed ones included
func (o *Outbox) Attempts(recipient string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts[recipient]
}
