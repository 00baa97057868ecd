package indices

import (
	"context"
	"docflow/audit"
	"docflow/domain/approval"
	"docflow/es"
	"fmt"
	"sync"
)

const (
	AuditIndexName        = "docflow-audit"
	AuditIndexHandlerName = "auditIndexer"
)

// Backend is the part of the search engine client the audit index needs.
type Backend interface {
	Index(ctx context.Context, index string, id string, doc interface{}) error
	Search(ctx context.Context, index string, query interface{}) (*es.SearchResult, error)
}

// AuditIndex mirrors the audit log into a search index.
type AuditIndex struct {
	backend   Backend
	store     auditSource
	batchSize int

	lock     sync.Mutex
	running  bool
	fullSync func(ctx context.Context) error
}

func NewAuditIndex(backend Backend, store auditSource) *AuditIndex {
	x := &AuditIndex{backend: backend, store: store, batchSize: 500}
	x.fullSync = x.FullSync
	return x
}

type auditDocument struct {
	approval.AuditEntry
	DocumentKey string `json:"documentKey"`
}

func (x *AuditIndex) indexEntries(ctx context.Context, entries []approval.AuditEntry) error {
	for i := range entries {
		e := &entries[i]
		if err := x.backend.Index(ctx, AuditIndexName, e.ID.String(), auditDocument{AuditEntry: *e, DocumentKey: e.DocumentKey}); err != nil {
			return err
		}
	}
	return nil
}

// Handle is registered as an audit.Handler so appended entries become searchable.
func (x *AuditIndex) Handle(ctx context.Context, e *approval.AuditEntry) *audit.HandleResult {
	if e == nil || e.ID == 0 {
		return nil
	}
	if err := x.indexEntries(ctx, []approval.AuditEntry{*e}); err != nil {
		return &audit.HandleResult{
			Message:           fmt.Sprintf("index audit entry %d, %v", e.ID, err),
			HandlerIdentifier: AuditIndexHandlerName,
		}
	}
	return &audit.HandleResult{Success: true, HandlerIdentifier: AuditIndexHandlerName}
}
