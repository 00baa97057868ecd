package run

import (
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/itemstore"
	"docflow/session"
	"sort"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
)

type RunSummary struct {
	RunID        string    `json:"runId"`
	DocumentRef  string    `json:"documentRef"`
	DocumentName string    `json:"documentName"`
	WorkflowID   types.ID  `json:"workflowId"`
	WorkflowName string    `json:"workflowName"`
	SubmittedBy  string    `json:"submittedBy"`
	SubmittedAt  time.Time `json:"submittedAt"`
	Status       string    `json:"status"`
}

type RunDetail struct {
	RunSummary
	Instances []approval.ApprovalInstance `json:"instances"`
	Audit     []approval.AuditEntry       `json:"audit"`
}

func summarize(run []approval.ApprovalInstance) RunSummary {
	first := run[0]
	return RunSummary{
		RunID:        first.RunID,
		DocumentRef:  first.DocumentRef,
		DocumentName: first.DocumentName,
		WorkflowID:   first.WorkflowID,
		WorkflowName: first.WorkflowName,
		SubmittedBy:  first.SubmittedBy,
		SubmittedAt:  first.SubmittedAt,
		Status:       approval.DeriveRunStatus(run),
	}
}

// GetPendingForUser lists the rows waiting for the caller's decision.
func (e *Engine) GetPendingForUser(s *session.Session) ([]approval.ApprovalInstance, error) {
	caller, err := callerOf(s)
	if err != nil {
		return nil, err
	}
	return e.queryInstances(s.Ctx(), "query pending instances", itemstore.Query{
		Where: []itemstore.Predicate{
			itemstore.Eq("approver", caller),
			itemstore.Eq("status", string(approval.StatusPending)),
		},
		OrderBy: "id",
		Limit:   userListLimit,
	})
}

// GetSubmittedByUser lists the caller's runs, newest first. The newest rows
// only pick the runs; each run is then read whole so its status is derived
// from all of its rows.
func (e *Engine) GetSubmittedByUser(s *session.Session) ([]RunSummary, error) {
	caller, err := callerOf(s)
	if err != nil {
		return nil, err
	}
	ctx := s.Ctx()
	recent, err := e.queryInstances(ctx, "query submitted instances", itemstore.Query{
		Where:      []itemstore.Predicate{itemstore.Eq("submitted_by", caller)},
		OrderBy:    "id",
		Descending: true,
		Limit:      userListLimit,
	})
	if err != nil {
		return nil, err
	}
	summaries := []RunSummary{}
	for _, picked := range approval.RunsOf(recent) {
		run, err := e.runRows(ctx, picked[0].RunID)
		if err != nil {
			return nil, err
		}
		if len(run) == 0 {
			continue
		}
		summaries = append(summaries, summarize(run))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].SubmittedAt.After(summaries[j].SubmittedAt)
	})
	return summaries, nil
}

func (e *Engine) GetAuditLog(s *session.Session, documentRef string) ([]approval.AuditEntry, error) {
	if strings.TrimSpace(documentRef) == "" {
		return nil, &bizerror.ErrBadParam{Cause: errRefRequired}
	}
	return e.audit.ForDocument(s.Ctx(), documentRef)
}

// GetStatusForCollection maps every document of a collection to its status.
func (e *Engine) GetStatusForCollection(s *session.Session, collectionRef string) (map[string]string, error) {
	key := approval.NormalizeRef(collectionRef)
	if key == "" {
		return nil, &bizerror.ErrBadParam{Cause: errRefRequired}
	}
	prefix := key
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	rows, err := e.queryInstances(s.Ctx(), "query collection instances", itemstore.Query{
		Where:   []itemstore.Predicate{itemstore.BeginsWith("document_key", prefix)},
		OrderBy: "id",
		Limit:   documentRowLimit,
	})
	if err != nil {
		return nil, err
	}

	byDocument := map[string][]approval.ApprovalInstance{}
	for _, r := range rows {
		byDocument[r.DocumentKey] = append(byDocument[r.DocumentKey], r)
	}
	statuses := make(map[string]string, len(byDocument))
	for _, documentRows := range byDocument {
		run := approval.ChooseRun(documentRows)
		statuses[run[0].DocumentRef] = approval.DeriveRunStatus(run)
	}
	return statuses, nil
}

func (e *Engine) DeriveStatus(s *session.Session, documentRef string) (string, error) {
	key := approval.NormalizeRef(documentRef)
	if key == "" {
		return "", &bizerror.ErrBadParam{Cause: errRefRequired}
	}
	rows, err := e.documentRows(s.Ctx(), key)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", bizerror.ErrNotFound
	}
	return approval.DeriveDocumentStatus(rows), nil
}

func (e *Engine) DetailRun(s *session.Session, runID string) (*RunDetail, error) {
	ctx := s.Ctx()
	rows, err := e.runRows(ctx, strings.TrimSpace(runID))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, bizerror.ErrNotFound
	}
	entries, err := e.audit.ForRun(ctx, rows[0].RunID)
	if err != nil {
		return nil, err
	}
	return &RunDetail{RunSummary: summarize(rows), Instances: rows, Audit: entries}, nil
}
