package indices

import (
	"docflow/bizerror"
	"docflow/domain/approval"
	"docflow/session"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var (
	PathAuditSearch        = "/v1/audit-search"
	PathAuditIndexRequests = "/v1/audit-index-requests"

	validate = validator.New()
)

type AuditIndexTraits interface {
	SearchAudit(s *session.Session, q AuditQuery) ([]approval.AuditEntry, error)
	ScheduleReindex(s *session.Session) (bool, error)
}

func RegisterIndicesRestAPI(r *gin.Engine, index AuditIndexTraits, middleWares ...gin.HandlerFunc) {
	r.Group(PathAuditSearch, middleWares...).GET("", func(c *gin.Context) {
		q := AuditQuery{}
		if err := c.ShouldBindQuery(&q); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
		if err := validate.Struct(q); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
		entries, err := index.SearchAudit(session.ExtractSessionFromGinContext(c), q)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, entries)
	})

	r.Group(PathAuditIndexRequests, middleWares...).POST("", func(c *gin.Context) {
		success, err := index.ScheduleReindex(session.ExtractSessionFromGinContext(c))
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, gin.H{"result": success})
	})
}
