package servehttp

import (
	"docflow/domain/run"
	"docflow/session"
	"net/http"

	"github.com/gin-gonic/gin"
)

const PathApprovals = "/v1/approvals"

type Decision struct {
	Comment string `json:"comment"`
}

type Delegation struct {
	ToApprover string `json:"toApprover" validate:"required"`
	Reason     string `json:"reason"`
}

func RegisterApprovalHandler(r *gin.Engine, engine run.EngineTraits, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathApprovals, middleWares...)

	handler := &approvalHandler{engine: engine}
	g.GET("", handler.handlePending)
	g.POST(":id/approve", handler.handleApprove)
	g.POST(":id/reject", handler.handleReject)
	g.POST(":id/delegate", handler.handleDelegate)
}

type approvalHandler struct {
	engine run.EngineTraits
}

func (h *approvalHandler) handlePending(c *gin.Context) {
	pending, err := h.engine.GetPendingForUser(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, pending)
}

func (h *approvalHandler) handleApprove(c *gin.Context) {
	id := pathID(c, "id")
	decision := Decision{}
	bindOptionalBody(c, &decision)
	if err := h.engine.Approve(session.ExtractSessionFromGinContext(c), id, decision.Comment); err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &ActionResult{Success: true, Message: "Approved"})
}

func (h *approvalHandler) handleReject(c *gin.Context) {
	id := pathID(c, "id")
	decision := Decision{}
	bindOptionalBody(c, &decision)
	if err := h.engine.Reject(session.ExtractSessionFromGinContext(c), id, decision.Comment); err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &ActionResult{Success: true, Message: "Rejected"})
}

func (h *approvalHandler) handleDelegate(c *gin.Context) {
	id := pathID(c, "id")
	delegation := Delegation{}
	bindBody(c, &delegation)
	if err := h.engine.Delegate(session.ExtractSessionFromGinContext(c), id, delegation.ToApprover, delegation.Reason); err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &ActionResult{Success: true, Message: "Delegated to " + delegation.ToApprover})
}
