package testinfra

import (
	"context"
	"docflow/notify"
	"sync"
	"time"
)

type Notification struct {
	Recipient string
	Kind      notify.Kind
	Message   notify.Message
}

// RecordingDispatcher keeps every notification it is handed.
type RecordingDispatcher struct {
	lock sync.Mutex
	sent []Notification
}

func (d *RecordingDispatcher) Notify(ctx context.Context, recipient string, kind notify.Kind, msg notify.Message) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.sent = append(d.sent, Notification{Recipient: recipient, Kind: kind, Message: msg})
}

func (d *RecordingDispatcher) Sent() []Notification {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]Notification(nil), d.sent...)
}

// Recipients lists who received notifications of kind, in sending order.
func (d *RecordingDispatcher) Recipients(kind notify.Kind) []string {
	var recipients []string
	for _, n := range d.Sent() {
		if n.Kind == kind {
			recipients = append(recipients, n.Recipient)
		}
	}
	return recipients
}

func (d *RecordingDispatcher) Reset() {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.sent = nil
}

// Clock is a manually advanced time source.
type Clock struct {
	lock    sync.Mutex
	current time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{current: start}
}

func (c *Clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.current
}

func (c *Clock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.current = c.current.Add(d)
}
