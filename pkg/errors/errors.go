package errors

import (
	"errors"
	"fmt"
)

// 错误码
const (
	CodeSuccess       = 200
	CodeBadRequest    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeConflict      = 409 // 标识符冲突（集成ID/密钥名重复）
	CodeInternalError = 500
	CodeDatabaseError = 501
	CodeAuthError     = 502 // 凭据被远端平台拒绝
	CodeValidation    = 503 // 客户端提供的值未通过校验
	CodeRemoteGone    = 504 // 远端资源不存在
	CodeUnknown       = 505 // 未分类的传输/平台错误
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`

	// Status 远端返回的HTTP状态码（仅未分类错误携带）
	Status int `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewDuplicateID 标识符冲突错误，消息中带上冲突的ID
func NewDuplicateID(id string) *AppError {
	return New(CodeConflict, fmt.Sprintf("集成 ID %q 已存在", id))
}

// NewNotFound 本地记录不存在错误
func NewNotFound(message string) *AppError {
	return New(CodeNotFound, message)
}

// NewValidation 客户端输入校验错误
func NewValidation(message string) *AppError {
	return New(CodeValidation, message)
}

// NewAuthentication 凭据被远端平台拒绝
func NewAuthentication(message string) *AppError {
	return New(CodeAuthError, message)
}

// NewRemoteNotFound 远端资源不存在
func NewRemoteNotFound(message string) *AppError {
	return New(CodeRemoteGone, message)
}

// NewUnknown 未分类的传输/平台错误，保留原始状态码与消息
func NewUnknown(status int, message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnknown,
		Message: message,
		Err:     err,
		Status:  status,
	}
}

// Code 提取业务错误码，非AppError一律视为内部错误
func Code(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// IsDuplicateID 是否为标识符冲突
func IsDuplicateID(err error) bool {
	return Code(err) == CodeConflict
}

// IsNotFound 是否为本地记录不存在
func IsNotFound(err error) bool {
	return Code(err) == CodeNotFound
}

// IsAuthentication 是否为远端认证失败
func IsAuthentication(err error) bool {
	return Code(err) == CodeAuthError
}

// IsRemoteNotFound 是否为远端资源不存在
func IsRemoteNotFound(err error) bool {
	return Code(err) == CodeRemoteGone
}

// 预定义错误
var (
	ErrBadRequest    = New(CodeBadRequest, "请求参数错误")
	ErrUnauthorized  = New(CodeUnauthorized, "未授权")
	ErrForbidden     = New(CodeForbidden, "禁止访问")
	ErrNotFound      = New(CodeNotFound, "资源不存在")
	ErrInternalError = New(CodeInternalError, "内部服务器错误")
	ErrDatabaseError = New(CodeDatabaseError, "数据库错误")
)
