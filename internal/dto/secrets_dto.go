package dto

// ProviderTokenRequest 单个平台Token。token可省略，
// 省略时保留已存储的Token（防止回显掩码被原样提交导致凭据清空）
type ProviderTokenRequest struct {
	Token  string `json:"token"`
	Host   string `json:"host"`
	UserID string `json:"user_id"`
}

// AddGitProvidersRequest 旧版平台Token批量合并请求
type AddGitProvidersRequest struct {
	ProviderTokens map[string]ProviderTokenRequest `json:"provider_tokens" binding:"required"`
}

// IntegrationRequest 创建/更新集成请求。
// 创建时id可省略，由服务端按name生成；更新时token省略保留原Token
type IntegrationRequest struct {
	ID           string `json:"id" binding:"max=128"`
	ProviderType string `json:"provider_type" binding:"required,oneof=github gitlab gitea forgejo enterprise_sso"`
	Name         string `json:"name" binding:"required,max=128"`
	Host         string `json:"host" binding:"max=256"`
	Token        string `json:"token"`
	UserID       string `json:"user_id" binding:"max=128"`
}

// IntegrationResponse 集成展示信息，绝不携带Token明文
type IntegrationResponse struct {
	ID           string `json:"id"`
	ProviderType string `json:"provider_type"`
	Name         string `json:"name"`
	Host         string `json:"host,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	HasToken     bool   `json:"has_token"`
}

// IntegrationListResponse 集成列表响应
type IntegrationListResponse struct {
	Integrations []IntegrationResponse `json:"integrations"`
}

// CreateIntegrationResponse 创建集成响应，携带最终写入的ID
type CreateIntegrationResponse struct {
	ID string `json:"id"`
}

// CreateCustomSecretRequest 创建自定义密钥请求
type CreateCustomSecretRequest struct {
	Name        string `json:"name" binding:"required,max=128"`
	Value       string `json:"value" binding:"required"`
	Description string `json:"description" binding:"max=256"`
}

// UpdateCustomSecretRequest 更新自定义密钥请求。只改名称与描述，
// 密钥值保持不变
type UpdateCustomSecretRequest struct {
	Name        string `json:"name" binding:"required,max=128"`
	Description string `json:"description" binding:"max=256"`
}

// CustomSecretResponse 自定义密钥展示信息，绝不携带密钥明文
type CustomSecretResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CustomSecretListResponse 自定义密钥列表响应
type CustomSecretListResponse struct {
	CustomSecrets []CustomSecretResponse `json:"custom_secrets"`
}
