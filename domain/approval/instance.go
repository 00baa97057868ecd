package approval

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

// InstanceCollection holds one record per ApprovalInstance.
const InstanceCollection = "approval_instances"

type Status string

const (
	StatusWaiting    Status = "Waiting"
	StatusPending    Status = "Pending"
	StatusApproved   Status = "Approved"
	StatusRejected   Status = "Rejected"
	StatusDelegated  Status = "Delegated"
	StatusSuperseded Status = "Superseded"
	StatusCancelled  Status = "Cancelled"
)

// IsActive reports whether a row still takes part in its run.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusWaiting
}

// ApprovalInstance is one (run, stage, approver) row.
type ApprovalInstance struct {
	ID               types.ID     `json:"id" gorm:"column:id;primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	RunID            string       `json:"runId" gorm:"column:run_id;type:varchar(64);index"`
	DocumentRef      string       `json:"documentRef" gorm:"column:document_ref;type:varchar(1024)"`
	DocumentKey      string       `json:"-" gorm:"column:document_key;type:varchar(768);index"`
	DocumentName     string       `json:"documentName" gorm:"column:document_name;type:varchar(255)"`
	WorkflowID       types.ID     `json:"workflowId" gorm:"column:workflow_id" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkflowName     string       `json:"workflowName" gorm:"column:workflow_name;type:varchar(255)"`
	Stage            int          `json:"stage" gorm:"column:stage"`
	TotalStages      int          `json:"totalStages" gorm:"column:total_stages"`
	Round            int          `json:"round" gorm:"column:round"`
	ApprovalMode     ApprovalMode `json:"approvalMode" gorm:"column:approval_mode;type:varchar(16)"`
	Approver         string       `json:"approver" gorm:"column:approver;type:varchar(255);index"`
	OriginalApprover string       `json:"originalApprover" gorm:"column:original_approver;type:varchar(255)"`
	Status           Status       `json:"status" gorm:"column:status;type:varchar(16);index"`
	SubmittedBy      string       `json:"submittedBy" gorm:"column:submitted_by;type:varchar(255);index"`
	SubmittedAt      time.Time    `json:"submittedAt" gorm:"column:submitted_at"`
	ActionAt         *time.Time   `json:"actionAt" gorm:"column:action_at"`
	DueDate          *time.Time   `json:"dueDate" gorm:"column:due_date"`
	Comment          string       `json:"comment" gorm:"column:comment;type:text"`
	IsEscalated      bool         `json:"isEscalated" gorm:"column:is_escalated"`
}

// IsOverdue reports whether a pending, not yet escalated row has passed its due date.
func (i *ApprovalInstance) IsOverdue(now time.Time) bool {
	return i.Status == StatusPending && !i.IsEscalated && i.DueDate != nil && i.DueDate.Before(now)
}
