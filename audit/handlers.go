package audit

import (
	"context"
	"docflow/domain/approval"

	"github.com/sirupsen/logrus"
)

/*
return nil if not support
*/
type Handler func(ctx context.Context, e *approval.AuditEntry) *HandleResult

type HandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

func (l *Logger) AddHandler(h Handler) {
	l.handlers = append(l.handlers, h)
}

func invokeHandlers(ctx context.Context, handlers []Handler, entry *approval.AuditEntry) []HandleResult {
	results := []HandleResult{}
	for _, handler := range handlers {
		r := safeHandle(ctx, handler, entry)
		if r == nil {
			continue
		}

		results = append(results, *r)

		if r.Success {
			logrus.Debug("post handle audit entry. ", r)
		} else {
			logrus.Error("post handle audit entry error. ", r)
		}
	}
	return results
}

func safeHandle(ctx context.Context, handler Handler, entry *approval.AuditEntry) (r *HandleResult) {
	defer func() {
		if ret := recover(); ret != nil {
			logrus.Errorf("audit handler panicked on entry %d: %v", entry.ID, ret)
			r = nil
		}
	}()
	return handler(ctx, entry)
}
