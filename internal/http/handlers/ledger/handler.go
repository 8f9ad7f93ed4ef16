package ledger

import (
	"strings"
	"time"

	handlershared "github.com/mis-sentinel/internal/http/handlers/shared"
	"github.com/mis-sentinel/internal/http/response"
	"github.com/mis-sentinel/internal/provider"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 佣金账本接口处理器
type Handler struct {
	*provider.Container
}

// New 创建账本处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondServiceError(c *gin.Context, err error) {
	handlershared.RespondServiceError(c, err)
}

func respondBindError(c *gin.Context, err error) {
	response.Error(c, response.CodeBadRequest, "invalid request body: "+err.Error())
}

func respondServiceUnavailable(c *gin.Context) {
	respondError(c, response.CodeUnavailable, "ledger service is not initialized", nil)
}

// parseOptionalTime 解析 YYYY-MM-DD 或 RFC3339 时间，空串返回 nil
func parseOptionalTime(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, true
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return &parsed, true
	}
	return nil, false
}
