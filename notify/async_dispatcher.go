package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

type job struct {
	recipient string
	kind      Kind
	msg       Message
}

// AsyncDispatcher queues notifications and delivers them from worker goroutines,
// so callers never wait for delivery.
type AsyncDispatcher struct {
	next  Dispatcher
	queue chan job

	closeOnce sync.Once
	workers   sync.WaitGroup
}

func NewAsyncDispatcher(next Dispatcher, workers, queueSize int) *AsyncDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &AsyncDispatcher{next: next, queue: make(chan job, queueSize)}
	for i := 0; i < workers; i++ {
		d.workers.Add(1)
		go d.work()
	}
	return d
}

// Notify enqueues without blocking; a full queue drops the notification.
func (d *AsyncDispatcher) Notify(ctx context.Context, recipient string, kind Kind, msg Message) {
	defer func() {
		if recover() != nil {
			logrus.Warnf("notification %s to %s dropped: dispatcher closed", kind, recipient)
		}
	}()
	select {
	case d.queue <- job{recipient: recipient, kind: kind, msg: msg}:
	default:
		logrus.Warnf("notification %s to %s dropped: queue full", kind, recipient)
	}
}

// Close stops accepting notifications and waits until queued ones are delivered.
func (d *AsyncDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.workers.Wait()
}

func (d *AsyncDispatcher) work() {
	defer d.workers.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *AsyncDispatcher) deliver(j job) {
	defer func() {
		if ret := recover(); ret != nil {
			logrus.Errorf("notification %s to %s panicked: %v", j.kind, j.recipient, ret)
		}
	}()
	d.next.Notify(context.Background(), j.recipient, j.kind, j.msg)
}
