package servehttp

import (
	"docflow/domain/run"
	"docflow/session"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	PathRuns     = "/v1/runs"
	PathTriggers = "/v1/triggers"
)

type TriggerRequest struct {
	Event        string `json:"event" validate:"required"`
	DocumentRef  string `json:"documentRef" validate:"required"`
	DocumentName string `json:"documentName"`
}

func RegisterRunHandler(r *gin.Engine, engine run.EngineTraits, middleWares ...gin.HandlerFunc) {
	handler := &runHandler{engine: engine}

	g := r.Group(PathRuns, middleWares...)
	g.POST("", handler.handleSubmit)
	g.GET("", handler.handleSubmittedByMe)
	g.GET(":runId", handler.handleDetailRun)
	g.POST(":runId/recall", handler.handleRecall)

	r.Group(PathTriggers, middleWares...).POST("", handler.handleTrigger)
}

type runHandler struct {
	engine run.EngineTraits
}

func (h *runHandler) handleSubmit(c *gin.Context) {
	submission := run.Submission{}
	bindBody(c, &submission)
	runID, err := h.engine.CreateRun(session.ExtractSessionFromGinContext(c), submission)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, &ActionResult{Success: true, Message: "Submitted for approval", RunID: runID})
}

func (h *runHandler) handleSubmittedByMe(c *gin.Context) {
	runs, err := h.engine.GetSubmittedByUser(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, runs)
}

func (h *runHandler) handleDetailRun(c *gin.Context) {
	detail, err := h.engine.DetailRun(session.ExtractSessionFromGinContext(c), c.Param("runId"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *runHandler) handleRecall(c *gin.Context) {
	runID := c.Param("runId")
	if err := h.engine.Recall(session.ExtractSessionFromGinContext(c), runID); err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &ActionResult{Success: true, Message: "Recalled", RunID: runID})
}

func (h *runHandler) handleTrigger(c *gin.Context) {
	req := TriggerRequest{}
	bindBody(c, &req)
	runID, triggered, err := h.engine.ProcessTrigger(session.ExtractSessionFromGinContext(c), req.Event, req.DocumentRef, req.DocumentName)
	if err != nil {
		panic(err)
	}
	if !triggered {
		c.JSON(http.StatusOK, &ActionResult{Success: false, Message: "No workflow is triggered by " + req.Event})
		return
	}
	c.JSON(http.StatusCreated, &ActionResult{Success: true, Message: "Submitted for approval", RunID: runID})
}
