package approval

import (
	"fmt"
)

const (
	DocumentStatusPending  = "Pending"
	DocumentStatusApproved = "Approved"
	DocumentStatusRejected = "Rejected"
	DocumentStatusRecalled = "Recalled"
)

// RunsOf groups rows by run id, keeping the first-seen order of runs.
func RunsOf(rows []ApprovalInstance) [][]ApprovalInstance {
	index := map[string]int{}
	var runs [][]ApprovalInstance
	for _, r := range rows {
		i, ok := index[r.RunID]
		if !ok {
			i = len(runs)
			index[r.RunID] = i
			runs = append(runs, nil)
		}
		runs[i] = append(runs[i], r)
	}
	return runs
}

// ChooseRun picks the active run of a document, else its most recently submitted run.
func ChooseRun(rows []ApprovalInstance) []ApprovalInstance {
	var chosen []ApprovalInstance
	for _, run := range RunsOf(rows) {
		if runIsActive(run) {
			return run
		}
		if chosen == nil || run[0].SubmittedAt.After(chosen[0].SubmittedAt) {
			chosen = run
		}
	}
	return chosen
}

// DeriveRunStatus projects the rows of one run onto a display status. A
// rejected row marks the whole run as rejected, even when a rejection
// behavior has put the run back in flight.
func DeriveRunStatus(run []ApprovalInstance) string {
	if len(run) == 0 {
		return DocumentStatusPending
	}
	allCancelled := true
	allSettled := true
	maxPendingStage := 0
	total := 0
	for _, r := range run {
		if r.Status == StatusRejected {
			return DocumentStatusRejected
		}
		if r.Status != StatusCancelled {
			allCancelled = false
		}
		switch r.Status {
		case StatusApproved, StatusSuperseded, StatusCancelled:
		default:
			allSettled = false
		}
		if r.Status == StatusPending && r.Stage > maxPendingStage {
			maxPendingStage = r.Stage
		}
		if r.TotalStages > total {
			total = r.TotalStages
		}
	}
	switch {
	case allCancelled:
		return DocumentStatusRecalled
	case allSettled:
		return DocumentStatusApproved
	case maxPendingStage > 0:
		if maxPendingStage == 1 && total <= 1 {
			return DocumentStatusPending
		}
		return fmt.Sprintf("In Progress - Level %d of %d", maxPendingStage, total)
	}
	return DocumentStatusPending
}

// DeriveDocumentStatus combines ChooseRun and DeriveRunStatus over all rows of a document.
func DeriveDocumentStatus(rows []ApprovalInstance) string {
	return DeriveRunStatus(ChooseRun(rows))
}

func runIsActive(run []ApprovalInstance) bool {
	for _, r := range run {
		if r.Status.IsActive() {
			return true
		}
	}
	return false
}
