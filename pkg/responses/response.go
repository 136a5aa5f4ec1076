package responses

import (
	"net/http"

	"github.com/gin-gonic/gin"

	pkgErrors "gitbridge/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"` // 详细错误信息（可选）
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    pkgErrors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    pkgErrors.CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Created 创建成功响应（201）
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    pkgErrors.CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应，业务错误码映射为真实HTTP状态码
func Error(c *gin.Context, err error) {
	code := pkgErrors.Code(err)
	message := err.Error()
	if appErr, ok := err.(*pkgErrors.AppError); ok {
		message = appErr.Message
	}

	c.JSON(httpStatus(code), Response{
		Code:    code,
		Message: message,
	})
}

// ErrorWithCode 自定义错误响应
func ErrorWithCode(c *gin.Context, code int, message string) {
	c.JSON(httpStatus(code), Response{
		Code:    code,
		Message: message,
	})
}

// ErrorWithDetail 带详细信息的错误响应
func ErrorWithDetail(c *gin.Context, code int, message, detail string) {
	c.JSON(httpStatus(code), Response{
		Code:    code,
		Message: message,
		Detail:  detail,
	})
}

// httpStatus 业务错误码到HTTP状态码的映射
// 冲突与校验错误按约定返回400，凭据校验失败返回401，远端资源缺失与本地记录缺失都返回404
func httpStatus(code int) int {
	switch code {
	case pkgErrors.CodeSuccess:
		return http.StatusOK
	case pkgErrors.CodeBadRequest, pkgErrors.CodeConflict, pkgErrors.CodeValidation:
		return http.StatusBadRequest
	case pkgErrors.CodeUnauthorized, pkgErrors.CodeAuthError:
		return http.StatusUnauthorized
	case pkgErrors.CodeForbidden:
		return http.StatusForbidden
	case pkgErrors.CodeNotFound, pkgErrors.CodeRemoteGone:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
