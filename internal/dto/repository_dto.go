package dto

import "gitbridge/internal/pkg/git/api"

// ListReposQuery 仓库分页查询参数
type ListReposQuery struct {
	Page    int    `form:"page,default=1" binding:"min=1"`
	PerPage int    `form:"per_page,default=30" binding:"min=1"`
	Sort    string `form:"sort"`
	// Provider 指定集成ID或平台类型，空则取第一个可用凭据
	Provider string `form:"provider"`
}

// SearchReposQuery 仓库搜索查询参数
type SearchReposQuery struct {
	Query    string `form:"query" binding:"required"`
	PerPage  int    `form:"per_page,default=30" binding:"min=1"`
	Sort     string `form:"sort"`
	Order    string `form:"order"`
	Public   bool   `form:"public"`
	Provider string `form:"provider"`
}

// ListBranchesQuery 分支分页查询参数
type ListBranchesQuery struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	PerPage  int    `form:"per_page,default=30" binding:"min=1"`
	Search   string `form:"search"`
	Provider string `form:"provider"`
}

// MicroagentContentQuery 微代理文件内容查询参数
type MicroagentContentQuery struct {
	Path     string `form:"path" binding:"required"`
	Provider string `form:"provider"`
}

// SuggestedTasksQuery 建议任务查询参数
type SuggestedTasksQuery struct {
	Provider string `form:"provider"`
}

// RepositoryListResponse 仓库列表响应
type RepositoryListResponse struct {
	Repositories []api.Repository `json:"repositories"`
}

// SuggestedTaskListResponse 建议任务列表响应
type SuggestedTaskListResponse struct {
	Tasks []api.SuggestedTask `json:"tasks"`
}

// MicroagentListResponse 微代理文件列表响应
type MicroagentListResponse struct {
	Microagents []api.MicroagentFile `json:"microagents"`
}
