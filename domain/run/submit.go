package run

import (
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/itemstore"
	"docflow/session"
	"errors"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
)

var errRefRequired = errors.New("document reference is required")

type Submission struct {
	DocumentRef  string                `json:"documentRef" validate:"required"`
	DocumentName string                `json:"documentName"`
	Trigger      approval.TriggerEvent `json:"trigger"`
}

// CreateRun starts a run for a document. The active-run check and the row
// inserts are not atomic: two concurrent submissions of one document may
// both succeed.
func (e *Engine) CreateRun(s *session.Session, sub Submission) (string, error) {
	submitter, err := callerOf(s)
	if err != nil {
		return "", err
	}
	ref := strings.TrimSpace(sub.DocumentRef)
	if ref == "" {
		return "", &bizerror.ErrBadParam{Cause: errRefRequired}
	}
	trigger := approval.TriggerManual
	if strings.TrimSpace(string(sub.Trigger)) != "" {
		trigger = approval.CanonicalTrigger(string(sub.Trigger))
	}

	config, err := e.configForDocument(s, ref)
	if err != nil {
		return "", err
	}
	if config == nil {
		return "", bizerror.ErrConfigMissing
	}
	if trigger != approval.TriggerManual && !config.AcceptsTrigger(trigger) {
		return "", bizerror.ErrTriggerNotEnabled
	}

	ctx := s.Ctx()
	key := approval.NormalizeRef(ref)
	active, err := e.queryInstances(ctx, "query active runs", itemstore.Query{
		Where: []itemstore.Predicate{
			itemstore.Eq("document_key", key),
			itemstore.In("status", string(approval.StatusPending), string(approval.StatusWaiting)),
		},
		Limit: 1,
	})
	if err != nil {
		return "", err
	}
	if len(active) > 0 {
		return "", bizerror.ErrActiveRunExists
	}

	name := strings.TrimSpace(sub.DocumentName)
	if name == "" {
		name = path.Base(ref)
	}
	now := e.now()
	template := approval.ApprovalInstance{
		RunID:        e.newRunID(),
		DocumentRef:  ref,
		DocumentKey:  key,
		DocumentName: name,
		WorkflowID:   config.ID,
		WorkflowName: config.Name,
		TotalStages:  len(config.Stages),
		Round:        1,
		SubmittedBy:  submitter,
		SubmittedAt:  now,
	}

	var inserted, firstStage []approval.ApprovalInstance
	for _, stage := range config.Stages {
		for _, approver := range stage.Approvers {
			row := template
			row.Stage = stage.Level
			row.ApprovalMode = stage.ApprovalMode
			row.Approver = approval.NormalizeIdentity(approver)
			row.Status = approval.StatusWaiting
			if stage.Level == 1 {
				row.Status = approval.StatusPending
				row.DueDate = dueDate(config, 1, now)
			}
			id, err := e.store.Insert(ctx, approval.InstanceCollection, InstanceFields(&row))
			if err != nil {
				e.abandon(s, inserted)
				return "", bizerror.NewStoreFailure("insert approval instance", err)
			}
			row.ID = id
			inserted = append(inserted, row)
			if stage.Level == 1 {
				firstStage = append(firstStage, row)
			}
		}
	}

	e.appendAudit(ctx, &template, submitter, approval.ActionSubmitted, 1, "Submitted via "+string(trigger))
	if config.NotifyOnSubmit {
		e.notifyApprovers(ctx, firstStage, submitter)
	}
	logrus.Infof("run %s started for %s by %s with %d rows", template.RunID, key, submitter, len(inserted))
	return template.RunID, nil
}

// ProcessTrigger starts a run on behalf of an automatic event such as an
// upload. It reports false when no active workflow listens for the event.
func (e *Engine) ProcessTrigger(s *session.Session, event, documentRef, documentName string) (string, bool, error) {
	trigger := approval.CanonicalTrigger(event)
	config, err := e.configForDocument(s, documentRef)
	if err != nil {
		return "", false, err
	}
	if config == nil || !config.AcceptsTrigger(trigger) {
		return "", false, nil
	}
	runID, err := e.CreateRun(s, Submission{DocumentRef: documentRef, DocumentName: documentName, Trigger: trigger})
	if err != nil {
		return "", false, err
	}
	return runID, true, nil
}

// configForDocument walks up the parents of documentRef until a collection
// with an active workflow is found.
func (e *Engine) configForDocument(s *session.Session, documentRef string) (*approval.WorkflowConfig, error) {
	for _, parent := range parentRefs(approval.NormalizeRef(documentRef)) {
		config, err := e.configs.ConfigForCollection(s, parent)
		if err != nil || config != nil {
			return config, err
		}
	}
	return nil, nil
}

func parentRefs(key string) []string {
	var parents []string
	for {
		i := strings.LastIndex(key, "/")
		switch {
		case i < 0:
			return parents
		case i == 0:
			return append(parents, "/")
		}
		key = key[:i]
		parents = append(parents, key)
	}
}

// abandon cancels the rows of a run whose creation failed halfway.
func (e *Engine) abandon(s *session.Session, rows []approval.ApprovalInstance) {
	if len(rows) == 0 {
		return
	}
	if _, err := e.cancelRows(s.Ctx(), rows); err != nil {
		logrus.Errorf("failed to cancel partial run %s: %v", rows[0].RunID, err)
		return
	}
	logrus.Warnf("partial run %s cancelled", rows[0].RunID)
}
