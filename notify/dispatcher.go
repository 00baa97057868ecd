package notify

import (
	"context"
	"time"
)

type Kind string

const (
	KindSubmitted Kind = "Submitted"
	KindApproved  Kind = "Approved"
	KindRejected  Kind = "Rejected"
	KindDelegated Kind = "Delegated"
	KindEscalated Kind = "Escalated"
	KindRecalled  Kind = "Recalled"
	KindCompleted Kind = "Completed"
)

// Message carries the template data of a notification.
type Message struct {
	RunID        string     `json:"runId"`
	DocumentRef  string     `json:"documentRef"`
	DocumentName string     `json:"documentName"`
	WorkflowName string     `json:"workflowName"`
	Actor        string     `json:"actor"`
	Stage        int        `json:"stage"`
	TotalStages  int        `json:"totalStages"`
	Comment      string     `json:"comment"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
}

// Dispatcher delivers notifications. Implementations log failures and never
// report them to the caller.
type Dispatcher interface {
	Notify(ctx context.Context, recipient string, kind Kind, msg Message)
}

type DispatcherFunc func(ctx context.Context, recipient string, kind Kind, msg Message)

func (f DispatcherFunc) Notify(ctx context.Context, recipient string, kind Kind, msg Message) {
	f(ctx, recipient, kind, msg)
}

type multiDispatcher []Dispatcher

// Multi fans a notification out to every dispatcher in order.
func Multi(dispatchers ...Dispatcher) Dispatcher {
	return multiDispatcher(dispatchers)
}

func (m multiDispatcher) Notify(ctx context.Context, recipient string, kind Kind, msg Message) {
	for _, d := range m {
		d.Notify(ctx, recipient, kind, msg)
	}
}
