package run

import (
	"context"
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/itemstore"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// stageComplete evaluates one round of a stage.
func stageComplete(mode approval.ApprovalMode, round []approval.ApprovalInstance) bool {
	if len(round) == 0 {
		return false
	}
	if mode == approval.ModeAll {
		for _, r := range round {
			if r.Status != approval.StatusApproved && r.Status != approval.StatusSuperseded {
				return false
			}
		}
		return true
	}
	for _, r := range round {
		if r.Status == approval.StatusApproved {
			return true
		}
	}
	return false
}

func rowsAt(rows []approval.ApprovalInstance, stage int) []approval.ApprovalInstance {
	var out []approval.ApprovalInstance
	for _, r := range rows {
		if r.Stage == stage {
			out = append(out, r)
		}
	}
	return out
}

func rowsInRound(rows []approval.ApprovalInstance, stage, round int) []approval.ApprovalInstance {
	var out []approval.ApprovalInstance
	for _, r := range rows {
		if r.Stage == stage && r.Round == round {
			out = append(out, r)
		}
	}
	return out
}

// supersede settles the pending peers of an Any-mode stage. Peers that
// another caller settled first are left alone.
func (e *Engine) supersede(ctx context.Context, peers []approval.ApprovalInstance, winner *approval.ApprovalInstance) error {
	now := e.now()
	for _, p := range peers {
		if p.ID == winner.ID || p.Status != approval.StatusPending {
			continue
		}
		err := e.updateInstance(ctx, p.ID, itemstore.Fields{
			"status":    string(approval.StatusSuperseded),
			"action_at": now,
			"comment":   "Superseded by " + winner.Approver,
		}, approval.StatusPending)
		if err != nil && !errors.Is(err, itemstore.ErrGuardFailed) {
			return err
		}
	}
	return nil
}

// activateStage makes a stage of the run pending and returns the rows that
// became pending. Waiting rows are flipped in place; a stage that was already
// settled gets a fresh round of rows. A stage that already has pending rows
// is left untouched, so repeating an activation changes nothing.
func (e *Engine) activateStage(ctx context.Context, run *approval.ApprovalInstance, config *approval.WorkflowConfig, stage int) ([]approval.ApprovalInstance, error) {
	rows, err := e.runRows(ctx, run.RunID)
	if err != nil {
		return nil, err
	}
	atStage := rowsAt(rows, stage)
	now := e.now()
	due := dueDate(config, stage, now)

	var activated []approval.ApprovalInstance
	hasPending := false
	for _, r := range atStage {
		switch r.Status {
		case approval.StatusPending:
			hasPending = true
		case approval.StatusWaiting:
			err := e.updateInstance(ctx, r.ID, itemstore.Fields{
				"status":       string(approval.StatusPending),
				"due_date":     due,
				"is_escalated": false,
			}, approval.StatusWaiting)
			if errors.Is(err, itemstore.ErrGuardFailed) {
				continue
			}
			if err != nil {
				return activated, err
			}
			r.Status = approval.StatusPending
			r.DueDate = due
			r.IsEscalated = false
			activated = append(activated, r)
		}
	}
	if len(activated) > 0 || hasPending {
		return activated, nil
	}
	return e.insertRound(ctx, run, config, stage, atStage, due)
}

func (e *Engine) insertRound(ctx context.Context, run *approval.ApprovalInstance, config *approval.WorkflowConfig,
	stage int, history []approval.ApprovalInstance, due *time.Time) ([]approval.ApprovalInstance, error) {
	round := 0
	for _, r := range history {
		if r.Round > round {
			round = r.Round
		}
	}

	var approvers []string
	mode := approval.ModeAny
	if config != nil {
		if s, ok := config.StageAt(stage); ok {
			approvers = s.Approvers
			mode = s.ApprovalMode
		}
	}
	if len(approvers) == 0 {
		// the stage left the config, ask whoever was assigned last time
		for _, r := range rowsInRound(history, stage, round) {
			assigned := r.Approver
			if r.OriginalApprover != "" {
				assigned = r.OriginalApprover
			}
			approvers = appendDistinct(approvers, assigned)
			mode = r.ApprovalMode
		}
	}
	if len(approvers) == 0 {
		logrus.Warnf("run %s has no approvers for stage %d", run.RunID, stage)
		return nil, nil
	}

	var inserted []approval.ApprovalInstance
	for _, approver := range approvers {
		row := approval.ApprovalInstance{
			RunID:        run.RunID,
			DocumentRef:  run.DocumentRef,
			DocumentKey:  run.DocumentKey,
			DocumentName: run.DocumentName,
			WorkflowID:   run.WorkflowID,
			WorkflowName: run.WorkflowName,
			Stage:        stage,
			TotalStages:  run.TotalStages,
			Round:        round + 1,
			ApprovalMode: mode,
			Approver:     approval.NormalizeIdentity(approver),
			Status:       approval.StatusPending,
			SubmittedBy:  run.SubmittedBy,
			SubmittedAt:  run.SubmittedAt,
			DueDate:      due,
		}
		id, err := e.store.Insert(ctx, approval.InstanceCollection, InstanceFields(&row))
		if err != nil {
			return inserted, bizerror.NewStoreFailure("insert approval instance", err)
		}
		row.ID = id
		inserted = append(inserted, row)
	}
	logrus.Infof("run %s stage %d reactivated as round %d", run.RunID, stage, round+1)
	return inserted, nil
}

func appendDistinct(list []string, v string) []string {
	for _, existing := range list {
		if approval.SameIdentity(existing, v) {
			return list
		}
	}
	return append(list, v)
}
