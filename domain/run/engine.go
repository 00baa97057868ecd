package run

import (
	"context"
	"docflow/audit"
	"docflow/bizerror"
	"docflow/directory"
	"docflow/domain/approval"
	"docflow/itemstore"
	"docflow/notify"
	"docflow/session"
	"errors"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/google/uuid"
)

// ConfigSource is the part of the config repository the engine reads.
type ConfigSource interface {
	ConfigForCollection(s *session.Session, collectionRef string) (*approval.WorkflowConfig, error)
	DetailConfig(s *session.Session, id types.ID) (*approval.WorkflowConfig, error)
}

// EngineTraits lists the operations offered to callers.
type EngineTraits interface {
	CreateRun(s *session.Session, sub Submission) (string, error)
	ProcessTrigger(s *session.Session, event, documentRef, documentName string) (string, bool, error)
	Approve(s *session.Session, instanceID types.ID, comment string) error
	Reject(s *session.Session, instanceID types.ID, comment string) error
	Delegate(s *session.Session, instanceID types.ID, toApprover, reason string) error
	Recall(s *session.Session, runID string) error
	EscalateOverdueInstances(s *session.Session) (int, error)

	GetPendingForUser(s *session.Session) ([]approval.ApprovalInstance, error)
	GetSubmittedByUser(s *session.Session) ([]RunSummary, error)
	GetAuditLog(s *session.Session, documentRef string) ([]approval.AuditEntry, error)
	GetStatusForCollection(s *session.Session, collectionRef string) (map[string]string, error)
	DeriveStatus(s *session.Session, documentRef string) (string, error)
	DetailRun(s *session.Session, runID string) (*RunDetail, error)
}

// Engine orchestrates approval runs. It keeps no state between calls: every
// operation reads what it needs from the store and the caller's session.
type Engine struct {
	store    itemstore.Store
	configs  ConfigSource
	audit    *audit.Logger
	notifier notify.Dispatcher
	resolver directory.EmailResolver

	now      func() time.Time
	newRunID func() string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithRunIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newRunID = gen }
}

func NewEngine(store itemstore.Store, configs ConfigSource, auditLog *audit.Logger,
	notifier notify.Dispatcher, resolver directory.EmailResolver, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		configs:  configs,
		audit:    auditLog,
		notifier: notifier,
		resolver: resolver,
		now:      time.Now,
		newRunID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func callerOf(s *session.Session) (string, error) {
	if s == nil {
		return "", bizerror.ErrUnauthenticated
	}
	name := s.NormalizedName()
	if name == "" {
		return "", bizerror.ErrUnauthenticated
	}
	return name, nil
}

// configOf returns the config a row was created from, or nil when it has
// been deleted since.
func (e *Engine) configOf(s *session.Session, row *approval.ApprovalInstance) (*approval.WorkflowConfig, error) {
	config, err := e.configs.DetailConfig(s, row.WorkflowID)
	if errors.Is(err, bizerror.ErrNotFound) {
		return nil, nil
	}
	return config, err
}

// dueDate returns nil when escalation is disabled for the stage.
func dueDate(config *approval.WorkflowConfig, level int, from time.Time) *time.Time {
	days := approval.DefaultDueInDays
	if config != nil {
		if stage, ok := config.StageAt(level); ok {
			days = stage.DueInDays
		}
	}
	if days <= 0 {
		return nil
	}
	due := from.AddDate(0, 0, days)
	return &due
}

func (e *Engine) appendAudit(ctx context.Context, row *approval.ApprovalInstance, actor string, action approval.AuditAction, stage int, comment string) {
	e.audit.Append(ctx, approval.AuditEntry{
		RunID:        row.RunID,
		DocumentRef:  row.DocumentRef,
		DocumentKey:  row.DocumentKey,
		WorkflowName: row.WorkflowName,
		Actor:        actor,
		Action:       action,
		Stage:        stage,
		Comment:      comment,
		Timestamp:    e.now(),
	})
}

func (e *Engine) send(ctx context.Context, recipient string, kind notify.Kind, row *approval.ApprovalInstance, actor, comment string, stage int, due *time.Time) {
	address := e.resolver.ResolveEmail(ctx, recipient)
	if address == "" {
		return
	}
	e.notifier.Notify(ctx, address, kind, notify.Message{
		RunID:        row.RunID,
		DocumentRef:  row.DocumentRef,
		DocumentName: row.DocumentName,
		WorkflowName: row.WorkflowName,
		Actor:        actor,
		Stage:        stage,
		TotalStages:  row.TotalStages,
		Comment:      comment,
		DueDate:      due,
	})
}

// notifyApprovers tells freshly pending approvers that a document waits for them.
func (e *Engine) notifyApprovers(ctx context.Context, rows []approval.ApprovalInstance, actor string) {
	for i := range rows {
		r := &rows[i]
		e.send(ctx, r.Approver, notify.KindSubmitted, r, actor, "", r.Stage, r.DueDate)
	}
}
