package audit

import (
	"context"
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/itemstore"
	"time"

	"github.com/sirupsen/logrus"
)

const Collection = "workflow_audit_log"

const (
	documentLogLimit = 5000
	runLogLimit      = 500
)

type Logger struct {
	store    itemstore.Store
	handlers []Handler
}

func NewLogger(store itemstore.Store, handlers ...Handler) *Logger {
	return &Logger{store: store, handlers: handlers}
}

// Append persists entry and then runs the post-append handlers. Failures are
// logged and never reported to the caller.
func (l *Logger) Append(ctx context.Context, entry approval.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.DocumentKey == "" {
		entry.DocumentKey = approval.NormalizeRef(entry.DocumentRef)
	}
	id, err := l.store.Insert(ctx, Collection, EntryFields(&entry))
	if err != nil {
		logrus.Errorf("audit entry %s of run %s at stage %d lost: %v", entry.Action, entry.RunID, entry.Stage, err)
		return
	}
	entry.ID = id
	invokeHandlers(ctx, l.handlers, &entry)
}

// ForDocument returns the history of a document, newest first.
func (l *Logger) ForDocument(ctx context.Context, documentRef string) ([]approval.AuditEntry, error) {
	return l.query(ctx, itemstore.Query{
		Where:      []itemstore.Predicate{itemstore.Eq("document_key", approval.NormalizeRef(documentRef))},
		OrderBy:    "id",
		Descending: true,
		Limit:      documentLogLimit,
	})
}

// ForRun returns the history of a run in the order it happened.
func (l *Logger) ForRun(ctx context.Context, runID string) ([]approval.AuditEntry, error) {
	return l.query(ctx, itemstore.Query{
		Where:   []itemstore.Predicate{itemstore.Eq("run_id", runID)},
		OrderBy: "id",
		Limit:   runLogLimit,
	})
}

func (l *Logger) query(ctx context.Context, q itemstore.Query) ([]approval.AuditEntry, error) {
	items, err := l.store.Query(ctx, Collection, q)
	if err != nil {
		return nil, bizerror.NewStoreFailure("query audit log", err)
	}
	entries := make([]approval.AuditEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, EntryFromItem(item))
	}
	return entries, nil
}

func EntryFields(e *approval.AuditEntry) itemstore.Fields {
	return itemstore.Fields{
		"run_id":        e.RunID,
		"document_ref":  e.DocumentRef,
		"document_key":  e.DocumentKey,
		"workflow_name": e.WorkflowName,
		"actor":         e.Actor,
		"action":        string(e.Action),
		"stage":         e.Stage,
		"comment":       e.Comment,
		"timestamp":     e.Timestamp,
	}
}

func EntryFromItem(item itemstore.Item) approval.AuditEntry {
	f := item.Fields
	e := approval.AuditEntry{
		ID:           item.ID,
		RunID:        f.String("run_id"),
		DocumentRef:  f.String("document_ref"),
		DocumentKey:  f.String("document_key"),
		WorkflowName: f.String("workflow_name"),
		Actor:        f.String("actor"),
		Action:       approval.AuditAction(f.String("action")),
		Stage:        f.Int("stage"),
		Comment:      f.String("comment"),
	}
	if ts := f.Time("timestamp"); ts != nil {
		e.Timestamp = *ts
	}
	return e
}
