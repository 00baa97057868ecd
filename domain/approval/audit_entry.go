package approval

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

type AuditAction string

const (
	ActionSubmitted     AuditAction = "Submitted"
	ActionApproved      AuditAction = "Approved"
	ActionRejected      AuditAction = "Rejected"
	ActionDelegated     AuditAction = "Delegated"
	ActionEscalated     AuditAction = "Escalated"
	ActionRecalled      AuditAction = "Recalled"
	ActionCompleted     AuditAction = "Completed"
	ActionStageAdvanced AuditAction = "StageAdvanced"
	ActionCancelled     AuditAction = "Cancelled"
	ActionRestarted     AuditAction = "Restarted"
)

// AuditEntry is immutable once appended.
type AuditEntry struct {
	ID           types.ID    `json:"id" gorm:"column:id;primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	RunID        string      `json:"runId" gorm:"column:run_id;type:varchar(64);index"`
	DocumentRef  string      `json:"documentRef" gorm:"column:document_ref;type:varchar(1024)"`
	DocumentKey  string      `json:"-" gorm:"column:document_key;type:varchar(768);index"`
	WorkflowName string      `json:"workflowName" gorm:"column:workflow_name;type:varchar(255)"`
	Actor        string      `json:"actor" gorm:"column:actor;type:varchar(255)"`
	Action       AuditAction `json:"action" gorm:"column:action;type:varchar(32)"`
	Stage        int         `json:"stage" gorm:"column:stage"`
	Comment      string      `json:"comment" gorm:"column:comment;type:text"`
	Timestamp    time.Time   `json:"timestamp" gorm:"column:timestamp;index"`
}
