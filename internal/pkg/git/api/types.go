package api

import (
	"context"

	"gitbridge/internal/model"
)

// Repository 仓库信息（各平台归一化后的形态）
type Repository struct {
	ID              string             `json:"id"`
	FullName        string             `json:"full_name"`
	GitProvider     model.ProviderType `json:"git_provider"`
	IsPublic        bool               `json:"is_public"`
	StargazersCount int                `json:"stargazers_count"`
	PushedAt        string             `json:"pushed_at,omitempty"`
	OwnerType       string             `json:"owner_type"` // user, organization
	MainBranch      string             `json:"main_branch,omitempty"`
	Description     string             `json:"description,omitempty"`
	HTMLURL         string             `json:"html_url,omitempty"`
}

// Branch 分支信息
type Branch struct {
	Name         string `json:"name"`
	CommitSHA    string `json:"commit_sha"`
	Protected    bool   `json:"protected"`
	LastPushDate string `json:"last_push_date,omitempty"`
}

// PaginatedBranches 分页分支响应，统一 (page, per_page) 契约
type PaginatedBranches struct {
	Branches    []Branch `json:"branches"`
	HasNextPage bool     `json:"has_next_page"`
	CurrentPage int      `json:"current_page"`
	PerPage     int      `json:"per_page"`
	TotalCount  int      `json:"total_count"`
}

// User 平台用户信息
type User struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Company   string `json:"company,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// TaskType 建议任务类型
type TaskType string

const (
	TaskOpenIssue TaskType = "open_issue"
	TaskOpenPR    TaskType = "open_pr"
)

// SuggestedTask 从用户仓库的开放Issue/PR派生的建议任务
type SuggestedTask struct {
	GitProvider model.ProviderType `json:"git_provider"`
	TaskType    TaskType           `json:"task_type"`
	Repo        string             `json:"repo"`
	IssueNumber int                `json:"issue_number"`
	Title       string             `json:"title"`
}

// MicroagentFile 仓库内发现的微代理文件
type MicroagentFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// MicroagentContent 微代理文件内容（front-matter已解析）
type MicroagentContent struct {
	Content  string   `json:"content"`
	Path     string   `json:"path"`
	Triggers []string `json:"triggers,omitempty"`
}

// TokenSource 凭据来源。适配器在Token缺失或过期时通过它获取最新Token
type TokenSource interface {
	LatestToken(ctx context.Context) (string, error)
}

// StaticTokenSource 固定Token来源
type StaticTokenSource string

func (s StaticTokenSource) LatestToken(context.Context) (string, error) {
	return string(s), nil
}

// ProviderConfig 适配器构造参数。凭据逐实例传入，不存在进程级默认值
type ProviderConfig struct {
	Host        string      // 平台地址，可带或不带scheme，空则用平台默认实例
	Token       string      // 访问Token
	TokenSource TokenSource // 可选，Token缺失/过期时的刷新来源
	UserID      string      // 平台侧用户标识（可选）
}
