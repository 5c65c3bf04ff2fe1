package service

import (
	"errors"
	"net/http"
)

// 业务错误分类. 所有写操作在检测点直接返回这些错误，
// 不做吞错处理；迁移批次的行级错误是唯一例外（收集进报告继续执行）.
var (
	// ErrUnauthenticated 请求缺少身份.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden 身份存在但不是制品拥有者.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound 制品/版本/文件缺失或已软删除.
	ErrNotFound = errors.New("not found")
	// ErrLastActiveVersion 拒绝删除制品仅存的活跃版本.
	ErrLastActiveVersion = errors.New("cannot delete the last active version")
	// ErrValidation 名称/大小/路径等约束校验失败.
	ErrValidation = errors.New("validation error")
	// ErrStorage 块存储 I/O 失败.
	ErrStorage = errors.New("storage error")
)

// HTTPStatus 把业务错误映射为 HTTP 状态码.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrLastActiveVersion):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrStorage):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
