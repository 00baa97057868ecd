package servehttp

import (
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/domain/run"
	"docflow/testinfra"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestRunRestAPI(t *testing.T) {
	RegisterTestingT(t)

	engine := &mockEngine{}
	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	RegisterRunHandler(router, engine, withCaller("alice"))

	t.Run("should submit a document", func(t *testing.T) {
		engine.reset()
		engine.runID = "run-1"
		req := httptest.NewRequest(http.MethodPost, PathRuns,
			strings.NewReader(`{"documentRef": "/sites/legal/a.pdf", "documentName": "a.pdf"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(MatchJSON(`{"success": true, "message": "Submitted for approval", "runId": "run-1"}`))
		Expect(engine.calls).To(Equal([]call{{Op: "CreateRun", Ref: "/sites/legal/a.pdf", Args: []string{"a.pdf", ""}, Caller: "alice"}}))
	})

	t.Run("should require a document ref", func(t *testing.T) {
		engine.reset()
		req := httptest.NewRequest(http.MethodPost, PathRuns, strings.NewReader(`{"documentName": "a.pdf"}`))
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(engine.calls).To(BeEmpty())
	})

	t.Run("should report an active run as conflict", func(t *testing.T) {
		engine.reset()
		engine.err = bizerror.ErrActiveRunExists
		req := httptest.NewRequest(http.MethodPost, PathRuns, strings.NewReader(`{"documentRef": "/sites/legal/a.pdf"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body).To(MatchJSON(`{"success":false,"code":"workflow.conflict","message":"conflict: an active workflow run already exists for the document","data":null}`))
	})

	t.Run("should report a missing workflow", func(t *testing.T) {
		engine.reset()
		engine.err = bizerror.ErrConfigMissing
		req := httptest.NewRequest(http.MethodPost, PathRuns, strings.NewReader(`{"documentRef": "/elsewhere/a.pdf"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(body).To(MatchJSON(`{"success":false,"code":"workflow.config_missing","message":"no active workflow for the collection","data":null}`))
	})

	t.Run("should list runs submitted by the caller", func(t *testing.T) {
		engine.reset()
		engine.summaries = []run.RunSummary{{
			RunID: "run-1", DocumentRef: "/sites/legal/a.pdf", DocumentName: "a.pdf", WorkflowID: 7, WorkflowName: "Contracts",
			SubmittedBy: "alice", SubmittedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), Status: "In Progress - Level 1 of 2",
		}}
		req := httptest.NewRequest(http.MethodGet, PathRuns, nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[{"runId":"run-1","documentRef":"/sites/legal/a.pdf","documentName":"a.pdf","workflowId":"7",
			"workflowName":"Contracts","submittedBy":"alice","submittedAt":"2026-03-02T09:00:00Z","status":"In Progress - Level 1 of 2"}]`))
	})

	t.Run("should detail a run", func(t *testing.T) {
		engine.reset()
		req := httptest.NewRequest(http.MethodGet, PathRuns+"/run-404", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNotFound))

		engine.detail = &run.RunDetail{
			RunSummary: run.RunSummary{RunID: "run-1", Status: "Pending"},
			Instances:  []approval.ApprovalInstance{},
			Audit:      []approval.AuditEntry{},
		}
		req = httptest.NewRequest(http.MethodGet, PathRuns+"/run-1", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"runId":"run-1"`))
		Expect(body).To(ContainSubstring(`"instances":[]`))
		Expect(engine.calls[1]).To(Equal(call{Op: "DetailRun", Ref: "run-1", Caller: "alice"}))
	})

	t.Run("should recall a run", func(t *testing.T) {
		engine.reset()
		req := httptest.NewRequest(http.MethodPost, PathRuns+"/run-1/recall", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"success": true, "message": "Recalled", "runId": "run-1"}`))

		engine.err = bizerror.ErrUnauthorized
		req = httptest.NewRequest(http.MethodPost, PathRuns+"/run-1/recall", nil)
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body).To(MatchJSON(`{"success":false,"code":"approval.unauthorized","message":"not permitted to act on this item","data":null}`))
	})
}

func TestTriggerRestAPI(t *testing.T) {
	RegisterTestingT(t)

	engine := &mockEngine{}
	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	RegisterRunHandler(router, engine, withCaller("uploader"))

	t.Run("should start a run for an enabled event", func(t *testing.T) {
		engine.reset()
		engine.runID, engine.triggered = "run-9", true
		req := httptest.NewRequest(http.MethodPost, PathTriggers,
			strings.NewReader(`{"event": "Upload", "documentRef": "/sites/legal/b.pdf", "documentName": "b.pdf"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(MatchJSON(`{"success": true, "message": "Submitted for approval", "runId": "run-9"}`))
		Expect(engine.calls).To(Equal([]call{{Op: "ProcessTrigger", Ref: "/sites/legal/b.pdf", Args: []string{"Upload", "b.pdf"}, Caller: "uploader"}}))
	})

	t.Run("should answer when nothing is triggered", func(t *testing.T) {
		engine.reset()
		req := httptest.NewRequest(http.MethodPost, PathTriggers, strings.NewReader(`{"event": "Update", "documentRef": "/x/b.pdf"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"success": false, "message": "No workflow is triggered by Update"}`))
	})

	t.Run("should require the event", func(t *testing.T) {
		engine.reset()
		req := httptest.NewRequest(http.MethodPost, PathTriggers, strings.NewReader(`{"documentRef": "/x/b.pdf"}`))
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})
}
