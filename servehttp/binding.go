package servehttp

import (
	"docflow/bizerror"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ActionResult answers every state-changing approval operation.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RunID   string `json:"runId,omitempty"`
}

var validate = validator.New()

func pathID(c *gin.Context, name string) types.ID {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return id
}

func bindBody(c *gin.Context, payload interface{}) {
	if err := c.ShouldBindBodyWith(payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := validate.Struct(payload); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
}

// bindOptionalBody accepts requests without a body.
func bindOptionalBody(c *gin.Context, payload interface{}) {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return
	}
	bindBody(c, payload)
}
