// Package handle 提供请求处理器的实现，处理制品、版本与分享解析的 HTTP 请求.
package handle

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clintagossett/artvault/pkg/internal/service"
	"github.com/clintagossett/artvault/pkg/rule"
)

func DefaultHandler(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"message": "Not Implemented"})
}

func checkUser(c *gin.Context) (string, error) {
	// 提取用户名：Header 优先 -> query 参数 -> 默认 test-user（便于测试）
	user := c.GetHeader("X-User")
	if user == "" {
		user = c.Query("user")
	}
	// 测试默认值，不为 Release 模式时
	if user == "" && gin.Mode() != gin.ReleaseMode {
		user = "test-user@example.com"
	}

	user = strings.TrimSpace(user)

	// 使用 validator 验证用户名格式为 email
	if err := rule.ValidateVar(user, "required,email"); err != nil {
		return "", err
	}

	return user, nil
}

// abortWithServiceError 把服务层错误翻译成 HTTP 响应.
func abortWithServiceError(c *gin.Context, err error) {
	c.JSON(service.HTTPStatus(err), gin.H{"error": err.Error()})
}
