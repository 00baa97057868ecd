package run

import (
	"context"
	"docflow/domain/approval"
)

// A decision is stored before the run moves on, and moving on touches several
// rows. When one of those writes fails the caller's row already carries the
// decision. Repeating the call finds the run in one of the states below and
// finishes the move; every write involved is guarded, so finishing twice
// leaves the run as finishing once.

// advanceUnfinished reports whether row completed its round while the run
// never moved past its stage.
func (e *Engine) advanceUnfinished(ctx context.Context, row *approval.ApprovalInstance) (bool, error) {
	rows, err := e.runRows(ctx, row.RunID)
	if err != nil {
		return false, err
	}
	if !stageComplete(row.ApprovalMode, rowsInRound(rows, row.Stage, row.Round)) {
		return false, nil
	}
	if reopened(rows, row) {
		return false, nil
	}
	if row.Stage >= row.TotalStages {
		completed, err := e.runCompleted(ctx, row.RunID)
		return !completed, err
	}

	next := row.Stage + 1
	pendingNext, waitingNext := false, false
	for _, r := range rows {
		if r.Stage <= row.Stage {
			continue
		}
		switch {
		case r.Status == approval.StatusWaiting:
			waitingNext = waitingNext || r.Stage == next
		case r.Status == approval.StatusPending && r.Stage == next:
			pendingNext = true
		case !r.Status.IsActive() && r.ID < row.ID:
			// settled in a round before this one
		default:
			return false, nil
		}
	}
	return waitingNext || !pendingNext, nil
}

// rejectionUnfinished reports whether the rejection behavior was cut short
// after row was rejected.
func (e *Engine) rejectionUnfinished(ctx context.Context, row *approval.ApprovalInstance, behavior approval.RejectionBehavior) (bool, error) {
	rows, err := e.runRows(ctx, row.RunID)
	if err != nil {
		return false, err
	}
	if reopened(rows, row) {
		return false, nil
	}
	for _, r := range rows {
		// an earlier stage got rows after this one, the run was sent back already
		if r.Stage < row.Stage && r.ID > row.ID {
			return false, nil
		}
	}
	if behavior == approval.RestartWorkflow || (behavior == approval.ReturnToPreviousLevel && row.Stage > 1) {
		return true, nil
	}
	for _, r := range rows {
		if r.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

// reopened reports whether the stage of row was activated again later, or an
// earlier stage is back in flight.
func reopened(rows []approval.ApprovalInstance, row *approval.ApprovalInstance) bool {
	for _, r := range rows {
		if r.Stage == row.Stage && r.Round > row.Round {
			return true
		}
		if r.Stage < row.Stage && r.Status.IsActive() {
			return true
		}
	}
	return false
}

func (e *Engine) runCompleted(ctx context.Context, runID string) (bool, error) {
	entries, err := e.audit.ForRun(ctx, runID)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.Action == approval.ActionCompleted {
			return true, nil
		}
	}
	return false, nil
}
