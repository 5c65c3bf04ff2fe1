// Package middleware 提供角色相关的中间件和辅助方法。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Role 表示请求方的角色（数值越大权限越高）。
type Role int

const (
	RoleUser Role = iota + 1
	RoleOperator
	RoleAdmin
)

// String 返回角色的字符串表示。
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleOperator:
		return "operator"
	case RoleUser:
		fallthrough
	default:
		return "user"
	}
}

// parseRole 从字符串解析角色，未知值降级为 user。
func parseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "operator":
		return RoleOperator
	default:
		return RoleUser
	}
}

// RoleMiddleware 解析 X-Role 并注入到 gin.Context。缺省角色为 user。
func RoleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("role", parseRole(c.GetHeader("X-Role")))
		c.Next()
	}
}

// GetRole 从 gin.Context 获取当前请求角色。
func GetRole(c *gin.Context) Role {
	if v, ok := c.Get("role"); ok {
		if r, ok2 := v.(Role); ok2 {
			return r
		}
	}

	return RoleUser
}

// RequireMinRole 要求最小角色，不满足则返回 403。
// 迁移运维接口挂 operator 以上.
func RequireMinRole(minRole Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) < minRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: insufficient role"})
			return
		}

		c.Next()
	}
}
