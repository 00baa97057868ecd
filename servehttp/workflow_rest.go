package servehttp

import (
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/domain/flow"
	"docflow/session"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const PathWorkflows = "/v1/workflows"

type ActiveSwitch struct {
	Active *bool `json:"active" validate:"required"`
}

func RegisterWorkflowHandler(r *gin.Engine, repo flow.ConfigRepositoryTraits, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathWorkflows, middleWares...)

	handler := &workflowHandler{repo: repo}
	g.GET("", handler.handleListWorkflows)
	g.POST("", handler.handleCreateWorkflow)
	g.GET(":id", handler.handleDetailWorkflow)
	g.PUT(":id", handler.handleUpdateWorkflow)
	g.DELETE(":id", handler.handleDeleteWorkflow)
	g.PUT(":id/active", handler.handleToggleWorkflow)
}

type workflowHandler struct {
	repo flow.ConfigRepositoryTraits
}

func (h *workflowHandler) handleListWorkflows(c *gin.Context) {
	configs, err := h.repo.ListConfigs(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, configs)
}

// config payloads are validated by the repository after normalization.
func bindConfig(c *gin.Context) *approval.WorkflowConfig {
	config := approval.WorkflowConfig{}
	if err := c.ShouldBindBodyWith(&config, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return &config
}

func (h *workflowHandler) handleCreateWorkflow(c *gin.Context) {
	config := bindConfig(c)
	created, err := h.repo.CreateConfig(session.ExtractSessionFromGinContext(c), config)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, created)
}

func (h *workflowHandler) handleDetailWorkflow(c *gin.Context) {
	config, err := h.repo.DetailConfig(session.ExtractSessionFromGinContext(c), pathID(c, "id"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, config)
}

func (h *workflowHandler) handleUpdateWorkflow(c *gin.Context) {
	id := pathID(c, "id")
	config := bindConfig(c)
	updated, err := h.repo.UpdateConfig(session.ExtractSessionFromGinContext(c), id, config)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, updated)
}

func (h *workflowHandler) handleDeleteWorkflow(c *gin.Context) {
	if err := h.repo.DeleteConfig(session.ExtractSessionFromGinContext(c), pathID(c, "id")); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (h *workflowHandler) handleToggleWorkflow(c *gin.Context) {
	id := pathID(c, "id")
	payload := ActiveSwitch{}
	bindBody(c, &payload)
	config, err := h.repo.ToggleConfig(session.ExtractSessionFromGinContext(c), id, *payload.Active)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, config)
}
