package shared

import (
	"strconv"
	"strings"

	"github.com/mis-sentinel/internal/http/response"

	"github.com/gin-gonic/gin"
)

// OperatorHeader 调用方标识请求头，写入审计记录
const OperatorHeader = "X-Operator"

// ParamUint 读取路径中的正整数ID，非法时直接返回 400。
func ParamUint(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		RespondError(c, response.CodeBadRequest, name+" must be a positive integer", nil)
		return 0, false
	}
	return uint(id), true
}

// QueryUint 读取可选的正整数查询参数。
func QueryUint(c *gin.Context, name string) (*uint, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		RespondError(c, response.CodeBadRequest, name+" must be a positive integer", nil)
		return nil, false
	}
	value := uint(id)
	return &value, true
}

// QueryInt 读取整数查询参数，缺省时使用 fallback。
func QueryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		RespondError(c, response.CodeBadRequest, name+" must be an integer", nil)
		return 0, false
	}
	return value, true
}

// Operator 读取调用方标识。
func Operator(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(OperatorHeader))
}
