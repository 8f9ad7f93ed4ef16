package shared

import (
	"errors"

	"github.com/mis-sentinel/internal/http/response"
	"github.com/mis-sentinel/internal/logger"
	"github.com/mis-sentinel/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get(response.RequestIDKey); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondServiceError 将账本错误映射为 HTTP 状态码；存储错误只记录日志，不向调用方暴露细节。
func RespondServiceError(c *gin.Context, err error) {
	if appErr, ok := response.AsAppError(err); ok {
		RespondError(c, appErr.Code, appErr.Message, appErr.Err)
		return
	}
	switch {
	case err == nil:
		return
	case errors.Is(err, service.ErrValidation):
		response.Error(c, response.CodeBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.Error(c, response.CodeNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrConflict):
		response.Error(c, response.CodeConflict, err.Error())
	default:
		RespondError(c, response.CodeInternal, "internal storage error", err)
	}
}
