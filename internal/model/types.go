package model

import (
	"encoding/json"
	"fmt"
)

// ProviderType Git平台类型
type ProviderType string

const (
	ProviderGitHub        ProviderType = "github"
	ProviderGitLab        ProviderType = "gitlab"
	ProviderGitea         ProviderType = "gitea"
	ProviderForgejo       ProviderType = "forgejo"
	ProviderEnterpriseSSO ProviderType = "enterprise_sso"
)

// ParseProviderType 解析平台类型字符串
func ParseProviderType(s string) (ProviderType, error) {
	switch ProviderType(s) {
	case ProviderGitHub, ProviderGitLab, ProviderGitea, ProviderForgejo, ProviderEnterpriseSSO:
		return ProviderType(s), nil
	default:
		return "", fmt.Errorf("不支持的平台类型: %s", s)
	}
}

const maskedSecret = "**********"

// SecretString 敏感字符串。默认JSON序列化与String()只输出掩码，
// 明文仅通过Value()显式获取（存储编码时使用）
type SecretString string

// Value 返回明文
func (s SecretString) Value() string {
	return string(s)
}

// IsEmpty 是否为空
func (s SecretString) IsEmpty() bool {
	return s == ""
}

// String 实现fmt.Stringer，防止日志泄露
func (s SecretString) String() string {
	if s == "" {
		return ""
	}
	return maskedSecret
}

// MarshalJSON 默认掩码输出，防止意外泄露
func (s SecretString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON 接受明文输入
func (s *SecretString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = SecretString(v)
	return nil
}

// ProviderToken 旧版单平台凭据（每个平台类型至多一条）
type ProviderToken struct {
	Token  SecretString
	Host   string
	UserID string
}

// CustomSecret 用户自定义密钥（环境变量形式注入，与Git平台无关）
type CustomSecret struct {
	Secret      SecretString
	Description string
}

// Integration 命名集成凭据，取代ProviderToken，允许同一平台配置多个账号
// ID在单个用户的集成列表内唯一
type Integration struct {
	ID           string
	ProviderType ProviderType
	Name         string
	Host         string
	Token        SecretString
	UserID       string
}
