package run

import (
	"context"
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/itemstore"
	"errors"

	"github.com/fundwit/go-commons/types"
)

const (
	runRowLimit      = 1000
	userListLimit    = 500
	documentRowLimit = 5000
	sweepBatchLimit  = 5000
)

func InstanceFields(i *approval.ApprovalInstance) itemstore.Fields {
	return itemstore.Fields{
		"run_id":            i.RunID,
		"document_ref":      i.DocumentRef,
		"document_key":      i.DocumentKey,
		"document_name":     i.DocumentName,
		"workflow_id":       i.WorkflowID,
		"workflow_name":     i.WorkflowName,
		"stage":             i.Stage,
		"total_stages":      i.TotalStages,
		"round":             i.Round,
		"approval_mode":     string(i.ApprovalMode),
		"approver":          i.Approver,
		"original_approver": i.OriginalApprover,
		"status":            string(i.Status),
		"submitted_by":      i.SubmittedBy,
		"submitted_at":      i.SubmittedAt,
		"action_at":         i.ActionAt,
		"due_date":          i.DueDate,
		"comment":           i.Comment,
		"is_escalated":      i.IsEscalated,
	}
}

func InstanceFromItem(item itemstore.Item) approval.ApprovalInstance {
	f := item.Fields
	i := approval.ApprovalInstance{
		ID:               item.ID,
		RunID:            f.String("run_id"),
		DocumentRef:      f.String("document_ref"),
		DocumentKey:      f.String("document_key"),
		DocumentName:     f.String("document_name"),
		WorkflowID:       f.ID("workflow_id"),
		WorkflowName:     f.String("workflow_name"),
		Stage:            f.Int("stage"),
		TotalStages:      f.Int("total_stages"),
		Round:            f.Int("round"),
		ApprovalMode:     approval.ApprovalMode(f.String("approval_mode")),
		Approver:         f.String("approver"),
		OriginalApprover: f.String("original_approver"),
		Status:           approval.Status(f.String("status")),
		SubmittedBy:      f.String("submitted_by"),
		ActionAt:         f.Time("action_at"),
		DueDate:          f.Time("due_date"),
		Comment:          f.String("comment"),
		IsEscalated:      f.Bool("is_escalated"),
	}
	if t := f.Time("submitted_at"); t != nil {
		i.SubmittedAt = *t
	}
	return i
}

func (e *Engine) loadInstance(ctx context.Context, id types.ID) (*approval.ApprovalInstance, error) {
	item, err := e.store.GetByID(ctx, approval.InstanceCollection, id)
	if errors.Is(err, itemstore.ErrItemNotFound) {
		return nil, bizerror.ErrNotFound
	}
	if err != nil {
		return nil, bizerror.NewStoreFailure("load approval instance", err)
	}
	instance := InstanceFromItem(*item)
	return &instance, nil
}

func (e *Engine) queryInstances(ctx context.Context, op string, q itemstore.Query) ([]approval.ApprovalInstance, error) {
	items, err := e.store.Query(ctx, approval.InstanceCollection, q)
	if err != nil {
		return nil, bizerror.NewStoreFailure(op, err)
	}
	rows := make([]approval.ApprovalInstance, 0, len(items))
	for _, item := range items {
		rows = append(rows, InstanceFromItem(item))
	}
	return rows, nil
}

// runRows returns every row of a run in insertion order.
func (e *Engine) runRows(ctx context.Context, runID string) ([]approval.ApprovalInstance, error) {
	return e.queryInstances(ctx, "query run rows", itemstore.Query{
		Where:   []itemstore.Predicate{itemstore.Eq("run_id", runID)},
		OrderBy: "id",
		Limit:   runRowLimit,
	})
}

func (e *Engine) documentRows(ctx context.Context, documentKey string) ([]approval.ApprovalInstance, error) {
	return e.queryInstances(ctx, "query document rows", itemstore.Query{
		Where:   []itemstore.Predicate{itemstore.Eq("document_key", documentKey)},
		OrderBy: "id",
		Limit:   documentRowLimit,
	})
}

// updateInstance applies fields while the row still has one of the expected
// statuses. A row that moved on in the meantime yields itemstore.ErrGuardFailed.
func (e *Engine) updateInstance(ctx context.Context, id types.ID, fields itemstore.Fields, expected ...approval.Status) error {
	values := make([]interface{}, 0, len(expected))
	for _, s := range expected {
		values = append(values, string(s))
	}
	err := e.store.Update(ctx, approval.InstanceCollection, id, fields, itemstore.In("status", values...))
	if err == nil || errors.Is(err, itemstore.ErrGuardFailed) {
		return err
	}
	if errors.Is(err, itemstore.ErrItemNotFound) {
		return bizerror.ErrNotFound
	}
	return bizerror.NewStoreFailure("update approval instance", err)
}

// cancelRows moves the active rows among rows to Cancelled. Rows another
// caller already settled are skipped.
func (e *Engine) cancelRows(ctx context.Context, rows []approval.ApprovalInstance) ([]approval.ApprovalInstance, error) {
	now := e.now()
	var cancelled []approval.ApprovalInstance
	for _, r := range rows {
		if !r.Status.IsActive() {
			continue
		}
		err := e.updateInstance(ctx, r.ID, itemstore.Fields{
			"status":    string(approval.StatusCancelled),
			"action_at": now,
		}, approval.StatusPending, approval.StatusWaiting)
		if errors.Is(err, itemstore.ErrGuardFailed) {
			continue
		}
		if err != nil {
			return cancelled, err
		}
		r.Status = approval.StatusCancelled
		r.ActionAt = &now
		cancelled = append(cancelled, r)
	}
	return cancelled, nil
}
