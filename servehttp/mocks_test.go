package servehttp

import (
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/domain/run"
	"docflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

type call struct {
	Op     string
	ID     types.ID
	Ref    string
	Args   []string
	Caller string
}

// mockEngine records calls and answers with err when it is set.
type mockEngine struct {
	calls []call
	err   error

	runID     string
	triggered bool
	pending   []approval.ApprovalInstance
	summaries []run.RunSummary
	entries   []approval.AuditEntry
	statuses  map[string]string
	status    string
	detail    *run.RunDetail
	escalated int
}

func (m *mockEngine) record(s *session.Session, c call) {
	c.Caller = s.Identity.Name
	m.calls = append(m.calls, c)
}

func (m *mockEngine) CreateRun(s *session.Session, sub run.Submission) (string, error) {
	m.record(s, call{Op: "CreateRun", Ref: sub.DocumentRef, Args: []string{sub.DocumentName, string(sub.Trigger)}})
	return m.runID, m.err
}
func (m *mockEngine) ProcessTrigger(s *session.Session, event, documentRef, documentName string) (string, bool, error) {
	m.record(s, call{Op: "ProcessTrigger", Ref: documentRef, Args: []string{event, documentName}})
	return m.runID, m.triggered, m.err
}
func (m *mockEngine) Approve(s *session.Session, instanceID types.ID, comment string) error {
	m.record(s, call{Op: "Approve", ID: instanceID, Args: []string{comment}})
	return m.err
}
func (m *mockEngine) Reject(s *session.Session, instanceID types.ID, comment string) error {
	m.record(s, call{Op: "Reject", ID: instanceID, Args: []string{comment}})
	return m.err
}
func (m *mockEngine) Delegate(s *session.Session, instanceID types.ID, toApprover, reason string) error {
	m.record(s, call{Op: "Delegate", ID: instanceID, Args: []string{toApprover, reason}})
	return m.err
}
func (m *mockEngine) Recall(s *session.Session, runID string) error {
	m.record(s, call{Op: "Recall", Ref: runID})
	return m.err
}
func (m *mockEngine) EscalateOverdueInstances(s *session.Session) (int, error) {
	m.record(s, call{Op: "EscalateOverdueInstances"})
	return m.escalated, m.err
}
func (m *mockEngine) GetPendingForUser(s *session.Session) ([]approval.ApprovalInstance, error) {
	m.record(s, call{Op: "GetPendingForUser"})
	return m.pending, m.err
}
func (m *mockEngine) GetSubmittedByUser(s *session.Session) ([]run.RunSummary, error) {
	m.record(s, call{Op: "GetSubmittedByUser"})
	return m.summaries, m.err
}
func (m *mockEngine) GetAuditLog(s *session.Session, documentRef string) ([]approval.AuditEntry, error) {
	m.record(s, call{Op: "GetAuditLog", Ref: documentRef})
	return m.entries, m.err
}
func (m *mockEngine) GetStatusForCollection(s *session.Session, collectionRef string) (map[string]string, error) {
	m.record(s, call{Op: "GetStatusForCollection", Ref: collectionRef})
	return m.statuses, m.err
}
func (m *mockEngine) DeriveStatus(s *session.Session, documentRef string) (string, error) {
	m.record(s, call{Op: "DeriveStatus", Ref: documentRef})
	return m.status, m.err
}
func (m *mockEngine) DetailRun(s *session.Session, runID string) (*run.RunDetail, error) {
	m.record(s, call{Op: "DetailRun", Ref: runID})
	if m.err != nil {
		return nil, m.err
	}
	if m.detail == nil {
		return nil, bizerror.ErrNotFound
	}
	return m.detail, nil
}

func (m *mockEngine) reset() {
	*m = mockEngine{}
}

// withCaller stands in for the auth filter.
func withCaller(name string, perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := session.NewSession(c.Request.Context(), name, perms...)
		s.Token = "token-" + name
		session.InjectSessionIntoGinContext(c, s)
		c.Next()
	}
}
