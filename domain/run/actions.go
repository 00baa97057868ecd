package run

import (
	"context"
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/itemstore"
	"docflow/notify"
	"docflow/session"
	"errors"
	"fmt"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

const systemActor = session.SystemIdentityName

// actionable loads a row the caller is about to act on as its approver. The
// row is either still pending or already carries the caller's decision from
// an earlier call that failed halfway.
func (e *Engine) actionable(s *session.Session, instanceID types.ID, decided approval.Status) (string, *approval.ApprovalInstance, error) {
	caller, err := callerOf(s)
	if err != nil {
		return "", nil, err
	}
	row, err := e.loadInstance(s.Ctx(), instanceID)
	if err != nil {
		return "", nil, err
	}
	if !approval.SameIdentity(row.Approver, caller) {
		return "", nil, bizerror.ErrUnauthorized
	}
	if row.Status != approval.StatusPending && row.Status != decided {
		return "", nil, bizerror.ErrInvalidState
	}
	return caller, row, nil
}

// settle moves the caller's own row out of Pending. Losing the race against
// another writer is reported as an invalid state.
func (e *Engine) settle(ctx context.Context, row *approval.ApprovalInstance, status approval.Status, comment string) error {
	now := e.now()
	err := e.updateInstance(ctx, row.ID, itemstore.Fields{
		"status":    string(status),
		"action_at": now,
		"comment":   comment,
	}, approval.StatusPending)
	if errors.Is(err, itemstore.ErrGuardFailed) {
		return bizerror.ErrInvalidState
	}
	if err != nil {
		return err
	}
	row.Status = status
	row.ActionAt = &now
	row.Comment = comment
	return nil
}

func (e *Engine) Approve(s *session.Session, instanceID types.ID, comment string) error {
	caller, row, err := e.actionable(s, instanceID, approval.StatusApproved)
	if err != nil {
		return err
	}
	ctx := s.Ctx()
	if row.Status == approval.StatusApproved {
		unfinished, err := e.advanceUnfinished(ctx, row)
		if err != nil {
			return err
		}
		if !unfinished {
			return bizerror.ErrInvalidState
		}
		logrus.Infof("resuming stage completion of run %s after approval of %s", row.RunID, row.ID)
	}
	config, err := e.configOf(s, row)
	if err != nil {
		return err
	}
	if row.Status == approval.StatusPending {
		if err := e.settle(ctx, row, approval.StatusApproved, comment); err != nil {
			return err
		}
		e.appendAudit(ctx, row, caller, approval.ActionApproved, row.Stage, comment)
	}
	return e.completeStage(s, row, config, caller)
}

// completeStage evaluates the round of an approved row and moves the run on
// when the round is complete. Running it again over the same rows converges.
func (e *Engine) completeStage(s *session.Session, row *approval.ApprovalInstance, config *approval.WorkflowConfig, caller string) error {
	ctx := s.Ctx()
	rows, err := e.runRows(ctx, row.RunID)
	if err != nil {
		return err
	}
	peers := rowsInRound(rows, row.Stage, row.Round)
	for i := range peers {
		if peers[i].ID == row.ID {
			peers[i].Status = approval.StatusApproved
		}
	}
	notifyApprove := config != nil && config.NotifyOnApprove

	if !stageComplete(row.ApprovalMode, peers) {
		if notifyApprove {
			approved := 0
			for _, p := range peers {
				if p.Status == approval.StatusApproved {
					approved++
				}
			}
			e.send(ctx, row.SubmittedBy, notify.KindApproved, row, caller,
				fmt.Sprintf("Approved by %s (%d of %d at Level %d)", caller, approved, len(peers), row.Stage), row.Stage, nil)
		}
		return nil
	}

	if row.ApprovalMode != approval.ModeAll {
		if err := e.supersede(ctx, peers, row); err != nil {
			return err
		}
	}

	if row.Stage < row.TotalStages {
		next := row.Stage + 1
		activated, err := e.activateStage(ctx, row, config, next)
		if err != nil {
			return err
		}
		if len(activated) > 0 {
			e.appendAudit(ctx, row, systemActor, approval.ActionStageAdvanced, next,
				fmt.Sprintf("Advanced from Level %d to Level %d", row.Stage, next))
		}
		if notifyApprove {
			e.send(ctx, row.SubmittedBy, notify.KindApproved, row, caller, row.Comment, row.Stage, nil)
			e.notifyApprovers(ctx, activated, row.SubmittedBy)
		}
		return nil
	}

	// the last approvals of an All stage may race to this point
	completed, err := e.runCompleted(ctx, row.RunID)
	if err != nil {
		logrus.Warnf("check completion of run %s: %v", row.RunID, err)
	}
	if completed {
		return nil
	}
	e.appendAudit(ctx, row, systemActor, approval.ActionCompleted, row.Stage, "All approval levels satisfied.")
	if config != nil && config.NotifyOnComplete {
		e.send(ctx, row.SubmittedBy, notify.KindCompleted, row, caller, row.Comment, row.Stage, nil)
	}
	logrus.Infof("run %s of %s completed", row.RunID, row.DocumentKey)
	return nil
}

func (e *Engine) Reject(s *session.Session, instanceID types.ID, comment string) error {
	caller, row, err := e.actionable(s, instanceID, approval.StatusRejected)
	if err != nil {
		return err
	}
	config, err := e.configOf(s, row)
	if err != nil {
		return err
	}
	behavior := approval.ReturnToSubmitter
	if config != nil {
		behavior = config.RejectionBehavior
	}

	ctx := s.Ctx()
	if row.Status == approval.StatusRejected {
		unfinished, err := e.rejectionUnfinished(ctx, row, behavior)
		if err != nil {
			return err
		}
		if !unfinished {
			return bizerror.ErrInvalidState
		}
		logrus.Infof("resuming rejection handling of run %s after rejection of %s", row.RunID, row.ID)
		comment = row.Comment
	} else {
		if err := e.settle(ctx, row, approval.StatusRejected, comment); err != nil {
			return err
		}
		e.appendAudit(ctx, row, caller, approval.ActionRejected, row.Stage, comment)
	}

	if err := e.applyRejection(s, row, config, behavior); err != nil {
		return err
	}

	if config != nil && config.NotifyOnReject {
		e.send(ctx, row.SubmittedBy, notify.KindRejected, row, caller, comment, row.Stage, nil)
	}
	return nil
}

func (e *Engine) applyRejection(s *session.Session, row *approval.ApprovalInstance, config *approval.WorkflowConfig, behavior approval.RejectionBehavior) error {
	ctx := s.Ctx()
	rows, err := e.runRows(ctx, row.RunID)
	if err != nil {
		return err
	}
	notifySubmit := config != nil && config.NotifyOnSubmit

	switch {
	case behavior == approval.ReturnToPreviousLevel && row.Stage > 1:
		if _, err := e.cancelRows(ctx, rowsAt(rows, row.Stage)); err != nil {
			return err
		}
		previous := row.Stage - 1
		activated, err := e.activateStage(ctx, row, config, previous)
		if err != nil {
			return err
		}
		if len(activated) > 0 {
			e.appendAudit(ctx, row, systemActor, approval.ActionStageAdvanced, previous,
				fmt.Sprintf("Returned to Level %d after rejection at Level %d", previous, row.Stage))
		}
		if notifySubmit {
			e.notifyApprovers(ctx, activated, row.SubmittedBy)
		}

	case behavior == approval.RestartWorkflow:
		if _, err := e.cancelRows(ctx, rows); err != nil {
			return err
		}
		activated, err := e.activateStage(ctx, row, config, 1)
		if err != nil {
			return err
		}
		if len(activated) > 0 {
			e.appendAudit(ctx, row, systemActor, approval.ActionRestarted, 1,
				fmt.Sprintf("Restarted from Level 1 after rejection at Level %d.", row.Stage))
		}
		if notifySubmit {
			e.notifyApprovers(ctx, activated, row.SubmittedBy)
		}

	default:
		if _, err := e.cancelRows(ctx, rows); err != nil {
			return err
		}
		message := "Cancelled - returned to submitter."
		if behavior == approval.ReturnToPreviousLevel {
			message = "Rejected at Level 1 - cancelled."
		}
		e.appendAudit(ctx, row, systemActor, approval.ActionCancelled, row.Stage, message)
	}
	return nil
}

// Delegate hands a pending row over to another approver. The status and due
// date stay as they are; only the first delegator is kept as original approver.
func (e *Engine) Delegate(s *session.Session, instanceID types.ID, toApprover, reason string) error {
	caller, err := callerOf(s)
	if err != nil {
		return err
	}
	row, err := e.loadInstance(s.Ctx(), instanceID)
	if err != nil {
		return err
	}
	if !approval.SameIdentity(row.Approver, caller) {
		return bizerror.ErrUnauthorized
	}
	target := approval.NormalizeIdentity(toApprover)
	if target == "" {
		return &bizerror.ErrBadParam{Cause: errors.New("delegation target is required")}
	}
	if target == caller {
		return &bizerror.ErrBadParam{Cause: errors.New("cannot delegate to the current approver")}
	}
	if row.Status != approval.StatusPending {
		return bizerror.ErrInvalidState
	}
	config, err := e.configOf(s, row)
	if err != nil {
		return err
	}
	if config != nil {
		stage, ok := config.StageAt(row.Stage)
		if !ok || !stage.AllowDelegation {
			return bizerror.ErrDelegationNotAllowed
		}
	}

	reason = strings.TrimSpace(reason)
	fields := itemstore.Fields{
		"approver": target,
		"comment":  fmt.Sprintf("Delegated from %s: %s", caller, reason),
	}
	if row.OriginalApprover == "" {
		fields["original_approver"] = caller
	}
	ctx := s.Ctx()
	err = e.store.Update(ctx, approval.InstanceCollection, row.ID, fields,
		itemstore.Eq("status", string(approval.StatusPending)), itemstore.Eq("approver", row.Approver))
	switch {
	case errors.Is(err, itemstore.ErrGuardFailed):
		return bizerror.ErrInvalidState
	case errors.Is(err, itemstore.ErrItemNotFound):
		return bizerror.ErrNotFound
	case err != nil:
		return bizerror.NewStoreFailure("delegate approval instance", err)
	}
	row.Approver = target

	e.appendAudit(ctx, row, caller, approval.ActionDelegated, row.Stage, fmt.Sprintf("Delegated to %s. Reason: %s", target, reason))
	if config != nil && config.NotifyOnDelegate {
		e.send(ctx, target, notify.KindDelegated, row, caller, reason, row.Stage, row.DueDate)
	}
	return nil
}

// Recall lets the submitter withdraw a run that is still in flight.
func (e *Engine) Recall(s *session.Session, runID string) error {
	caller, err := callerOf(s)
	if err != nil {
		return err
	}
	ctx := s.Ctx()
	rows, err := e.runRows(ctx, strings.TrimSpace(runID))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return bizerror.ErrNotFound
	}
	if !approval.SameIdentity(rows[0].SubmittedBy, caller) {
		return bizerror.ErrUnauthorized
	}
	cancelled, err := e.cancelRows(ctx, rows)
	if err != nil {
		return err
	}
	if len(cancelled) == 0 {
		return bizerror.ErrInvalidState
	}

	e.appendAudit(ctx, &rows[0], caller, approval.ActionRecalled, 0, "Recalled by submitter.")
	notified := map[string]bool{}
	for i := range cancelled {
		r := &cancelled[i]
		if notified[r.Approver] {
			continue
		}
		notified[r.Approver] = true
		e.send(ctx, r.Approver, notify.KindRecalled, r, caller, "Recalled by submitter.", r.Stage, nil)
	}
	return nil
}
