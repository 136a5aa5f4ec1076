package api

import (
	"context"

	"gitbridge/internal/model"
)

// GitService Git平台适配器统一能力接口。
// 所有方法在适配器边界完成错误归类（401→认证失败、404→远端资源不存在、
// 其余→未分类错误并携带原始状态码），调用方不感知平台差异
type GitService interface {
	// ProviderType 平台类型
	ProviderType() model.ProviderType

	// GetUser 获取当前认证用户信息
	GetUser(ctx context.Context) (*User, error)

	// VerifyAccess 验证Token有效性
	VerifyAccess(ctx context.Context) error

	// SearchRepositories 搜索仓库，perPage受平台上限约束
	SearchRepositories(ctx context.Context, query string, perPage int, sort, order string, public bool) ([]Repository, error)

	// GetPaginatedRepos 分页获取当前用户可访问的仓库
	GetPaginatedRepos(ctx context.Context, page, perPage int, sort string) ([]Repository, error)

	// GetRepositoryDetails 按 owner/repo 获取仓库详情
	GetRepositoryDetails(ctx context.Context, repository string) (*Repository, error)

	// GetBranches 获取仓库全部分支
	GetBranches(ctx context.Context, repository string) ([]Branch, error)

	// GetPaginatedBranches 分页获取分支。平台原生不支持分支分页时
	// 适配器整取后在客户端切片，仍然遵守统一分页契约
	GetPaginatedBranches(ctx context.Context, repository string, page, perPage int) (*PaginatedBranches, error)

	// SearchBranches 按名称子串搜索分支
	SearchBranches(ctx context.Context, repository, query string, perPage int) ([]Branch, error)

	// GetSuggestedTasks 扫描用户仓库的开放Issue/PR派生建议任务，
	// 单仓库失败记录日志后跳过，不中断整体扫描
	GetSuggestedTasks(ctx context.Context) ([]SuggestedTask, error)

	// GetMicroagents 发现仓库内的微代理文件
	GetMicroagents(ctx context.Context, repository string) ([]MicroagentFile, error)

	// GetMicroagentContent 获取并解析单个微代理文件
	GetMicroagentContent(ctx context.Context, repository, filePath string) (*MicroagentContent, error)

	// GetPRDetails 获取PR原始详情（调用方显式要求平台细节透传的唯一出口）
	GetPRDetails(ctx context.Context, repository string, prNumber int) (map[string]interface{}, error)

	// IsPROpen PR是否仍处于开放状态，无法判定时返回true
	IsPROpen(ctx context.Context, repository string, prNumber int) bool
}
