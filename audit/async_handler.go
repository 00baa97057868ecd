package audit

import (
	"context"
	"docflow/domain/approval"
	"sync"

	"github.com/sirupsen/logrus"
)

// AsyncHandler runs a slow handler, such as the search indexer, from a worker
// goroutine so Append returns as soon as the entry is stored.
type AsyncHandler struct {
	next  Handler
	queue chan approval.AuditEntry

	closeOnce sync.Once
	done      sync.WaitGroup
}

func NewAsyncHandler(next Handler, queueSize int) *AsyncHandler {
	if queueSize < 1 {
		queueSize = 1
	}
	h := &AsyncHandler{next: next, queue: make(chan approval.AuditEntry, queueSize)}
	h.done.Add(1)
	go h.work()
	return h
}

// Handle enqueues a copy of e without blocking. A full queue drops the entry;
// the periodic full reindex picks it up again.
func (h *AsyncHandler) Handle(ctx context.Context, e *approval.AuditEntry) (r *HandleResult) {
	if e == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			logrus.Warnf("audit entry %d not handed over: handler closed", e.ID)
			r = nil
		}
	}()
	select {
	case h.queue <- *e:
	default:
		logrus.Warnf("audit entry %d not handed over: queue full", e.ID)
	}
	return nil
}

// Close stops accepting entries and waits until queued ones are handled.
func (h *AsyncHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.queue)
	})
	h.done.Wait()
}

func (h *AsyncHandler) work() {
	defer h.done.Done()
	for entry := range h.queue {
		entry := entry
		invokeHandlers(context.Background(), []Handler{h.next}, &entry)
	}
}
