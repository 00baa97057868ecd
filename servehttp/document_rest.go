package servehttp

import (
	"docflow/bizerror"
	"docflow/domain/run"
	"docflow/session"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	PathDocuments   = "/v1/documents"
	PathCollections = "/v1/collections"
	PathEscalations = "/v1/escalations"
)

var errRefMissing = errors.New("query parameter 'ref' is required")

type DocumentStatus struct {
	DocumentRef string `json:"documentRef"`
	Status      string `json:"status"`
}

func RegisterDocumentHandler(r *gin.Engine, engine run.EngineTraits, middleWares ...gin.HandlerFunc) {
	handler := &documentHandler{engine: engine}

	documents := r.Group(PathDocuments, middleWares...)
	documents.GET("audit", handler.handleAuditLog)
	documents.GET("status", handler.handleDocumentStatus)

	r.Group(PathCollections, middleWares...).GET("status", handler.handleCollectionStatus)
	r.Group(PathEscalations, middleWares...).POST("", handler.handleEscalate)
}

type documentHandler struct {
	engine run.EngineTraits
}

func refParam(c *gin.Context) string {
	ref := strings.TrimSpace(c.Query("ref"))
	if ref == "" {
		panic(&bizerror.ErrBadParam{Cause: errRefMissing})
	}
	return ref
}

func (h *documentHandler) handleAuditLog(c *gin.Context) {
	entries, err := h.engine.GetAuditLog(session.ExtractSessionFromGinContext(c), refParam(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, entries)
}

func (h *documentHandler) handleDocumentStatus(c *gin.Context) {
	ref := refParam(c)
	status, err := h.engine.DeriveStatus(session.ExtractSessionFromGinContext(c), ref)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &DocumentStatus{DocumentRef: ref, Status: status})
}

func (h *documentHandler) handleCollectionStatus(c *gin.Context) {
	statuses, err := h.engine.GetStatusForCollection(session.ExtractSessionFromGinContext(c), refParam(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, statuses)
}

func (h *documentHandler) handleEscalate(c *gin.Context) {
	count, err := h.engine.EscalateOverdueInstances(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"escalated": count})
}
