package bizerror

import (
	"docflow/common"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

func ErrorHandling() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handle(c)
		c.Next()
	}
}

func handle(c *gin.Context) {
	if ret := recover(); ret != nil {
		err, ok := ret.(error)
		if !ok {
			err = errors.New(fmt.Sprintf("%s", ret))
		}
		HandleError(c, err)
	} else {
		if err := c.Errors.Last(); err != nil {
			HandleError(c, err)
		}
	}
}

type kindResponse struct {
	status int
	code   string
}

var kindResponses = map[Kind]kindResponse{
	KindNotFound:        {http.StatusNotFound, "common.record_not_found"},
	KindConfigMissing:   {http.StatusNotFound, "workflow.config_missing"},
	KindConflict:        {http.StatusConflict, "workflow.conflict"},
	KindUnauthorized:    {http.StatusForbidden, "approval.unauthorized"},
	KindInvalidState:    {http.StatusBadRequest, "approval.invalid_state"},
	KindUnauthenticated: {http.StatusUnauthorized, "common.unauthenticated"},
	KindForbidden:       {http.StatusForbidden, "security.forbidden"},
}

func HandleError(c *gin.Context, err error) {
	genericErr := err
	var ginErr *gin.Error
	if errors.As(err, &ginErr) {
		genericErr = ginErr.Err
	}

	if bizErr, ok := genericErr.(BizError); ok {
		respond := bizErr.Respond()
		if respond.Status >= http.StatusInternalServerError {
			logrus.Error(err)
		} else {
			logrus.Warn(err)
		}
		c.JSON(respond.Status, &common.ErrorBody{Code: respond.Code, Message: respond.Message, Data: respond.Data})
		c.Abort()
		return
	}

	// bad request:  io.EOF (no body).
	if errors.Is(genericErr, io.EOF) {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.body_not_found", Message: "body not found"})
		c.Abort()
		return
	}
	// bad request: json syntax Error
	if syntaxErr, ok := genericErr.(*json.SyntaxError); ok {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.invalid_body_format", Message: "invalid body format", Data: syntaxErr.Error()})
		c.Abort()
		return
	}
	// validation failed
	if validationErr, ok := genericErr.(validator.ValidationErrors); ok {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.validation_failed", Message: "validation failed", Data: validationErr.Error()})
		c.Abort()
		return
	}

	if resp, ok := kindResponses[KindOf(genericErr)]; ok {
		logrus.Warn(err)
		c.JSON(resp.status, &common.ErrorBody{Code: resp.code, Message: genericErr.Error()})
		c.Abort()
		return
	}

	logrus.Error(err)
	c.JSON(http.StatusInternalServerError, &common.ErrorBody{Code: "common.internal_server_error", Message: genericErr.Error()})
	c.Abort()
}
