package run

import (
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/itemstore"
	"docflow/notify"
	"docflow/session"
	"errors"
	"fmt"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

// EscalateOverdueInstances flags every pending row past its due date and
// notifies the escalation contact of its stage. The flag write decides which
// sweep owns a row, so overlapping sweeps escalate each row once.
func (e *Engine) EscalateOverdueInstances(s *session.Session) (int, error) {
	if s == nil || !s.Perms.IsWorkflowAdmin() {
		return 0, bizerror.ErrForbidden
	}
	ctx := s.Ctx()
	now := e.now()
	overdue, err := e.queryInstances(ctx, "query overdue instances", itemstore.Query{
		Where: []itemstore.Predicate{
			itemstore.Eq("status", string(approval.StatusPending)),
			itemstore.Eq("is_escalated", false),
			itemstore.Lt("due_date", now),
		},
		OrderBy: "id",
		Limit:   sweepBatchLimit,
	})
	if err != nil {
		return 0, err
	}

	configs := map[types.ID]*approval.WorkflowConfig{}
	count := 0
	for i := range overdue {
		row := &overdue[i]
		if !row.IsOverdue(now) {
			continue
		}
		err := e.store.Update(ctx, approval.InstanceCollection, row.ID, itemstore.Fields{"is_escalated": true},
			itemstore.Eq("status", string(approval.StatusPending)), itemstore.Eq("is_escalated", false))
		if errors.Is(err, itemstore.ErrGuardFailed) || errors.Is(err, itemstore.ErrItemNotFound) {
			continue
		}
		if err != nil {
			logrus.Warnf("failed to escalate approval instance %s: %v", row.ID, err)
			continue
		}
		row.IsEscalated = true
		count++

		config, found := configs[row.WorkflowID]
		if !found {
			if config, err = e.configOf(s, row); err != nil {
				logrus.Warnf("escalation of %s without config: %v", row.ID, err)
			}
			configs[row.WorkflowID] = config
		}
		contact := ""
		if config != nil {
			if stage, ok := config.StageAt(row.Stage); ok {
				contact = stage.EscalateTo
			}
		}

		if contact != "" && config.NotifyOnEscalate {
			e.send(ctx, contact, notify.KindEscalated, row, row.Approver,
				fmt.Sprintf("Overdue since %s, assigned to %s", row.DueDate.Format("2006-01-02"), row.Approver), row.Stage, row.DueDate)
		}
		if contact == "" {
			contact = "N/A"
		}
		e.appendAudit(ctx, row, systemActor, approval.ActionEscalated, row.Stage, "Overdue - escalated to "+contact)
	}
	if count > 0 {
		logrus.Infof("escalated %d overdue approval instances", count)
	}
	return count, nil
}
