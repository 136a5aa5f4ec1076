package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"gitbridge/internal/api/middleware"
	"gitbridge/internal/dto"
	"gitbridge/internal/service"
	"gitbridge/pkg/responses"
	"gitbridge/pkg/utils"
)

type RepositoryHandler struct {
	svc service.RepoService
}

func NewRepositoryHandler(svc service.RepoService) *RepositoryHandler {
	return &RepositoryHandler{svc: svc}
}

// repoParam 拼接 owner/repo 路径参数
func repoParam(c *gin.Context) string {
	return fmt.Sprintf("%s/%s", c.Param("owner"), c.Param("repo"))
}

// List 仓库分页列表
// @Summary 当前用户可访问的仓库（分页）
// @Tags Repository
// @Produce json
// @Param page query int false "页码"
// @Param per_page query int false "每页数量（上限100）"
// @Param sort query string false "排序字段"
// @Param provider query string false "集成ID或平台类型"
// @Success 200 {object} responses.Response{data=dto.RepositoryListResponse}
// @Router /api/repositories [get]
func (h *RepositoryHandler) List(c *gin.Context) {
	var q dto.ListReposQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	userID := middleware.CurrentUserID(c)
	resp, err := h.svc.ListRepositories(c.Request.Context(), userID, &q)
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, resp)
}

// Search 仓库搜索
// @Summary 搜索仓库
// @Tags Repository
// @Produce json
// @Param query query string true "搜索词"
// @Param per_page query int false "数量上限"
// @Param public query bool false "只搜公开仓库"
// @Param provider query string false "集成ID或平台类型"
// @Success 200 {object} responses.Response{data=dto.RepositoryListResponse}
// @Router /api/repositories/search [get]
func (h *RepositoryHandler) Search(c *gin.Context) {
	var q dto.SearchReposQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	userID := middleware.CurrentUserID(c)
	resp, err := h.svc.SearchRepositories(c.Request.Context(), userID, &q)
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, resp)
}

// Branches 分支分页列表
// @Summary 仓库分支（分页，支持search过滤）
// @Tags Repository
// @Produce json
// @Param owner path string true "仓库属主"
// @Param repo path string true "仓库名"
// @Param page query int false "页码"
// @Param per_page query int false "每页数量（上限100）"
// @Param search query string false "分支名过滤"
// @Param provider query string false "集成ID或平台类型"
// @Success 200 {object} responses.Response{data=api.PaginatedBranches}
// @Router /api/repositories/{owner}/{repo}/branches [get]
func (h *RepositoryHandler) Branches(c *gin.Context) {
	var q dto.ListBranchesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	userID := middleware.CurrentUserID(c)
	resp, err := h.svc.ListBranches(c.Request.Context(), userID, repoParam(c), &q)
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, resp)
}

// SuggestedTasks 建议任务
// @Summary 扫描用户仓库的开放Issue/PR派生建议任务
// @Tags Repository
// @Produce json
// @Param provider query string false "集成ID或平台类型"
// @Success 200 {object} responses.Response{data=dto.SuggestedTaskListResponse}
// @Router /api/suggested-tasks [get]
func (h *RepositoryHandler) SuggestedTasks(c *gin.Context) {
	var q dto.SuggestedTasksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	userID := middleware.CurrentUserID(c)
	resp, err := h.svc.SuggestedTasks(c.Request.Context(), userID, &q)
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, resp)
}

// Microagents 微代理文件列表
// @Summary 发现仓库内的微代理文件
// @Tags Repository
// @Produce json
// @Param owner path string true "仓库属主"
// @Param repo path string true "仓库名"
// @Param provider query string false "集成ID或平台类型"
// @Success 200 {object} responses.Response{data=dto.MicroagentListResponse}
// @Router /api/repositories/{owner}/{repo}/microagents [get]
func (h *RepositoryHandler) Microagents(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	resp, err := h.svc.ListMicroagents(c.Request.Context(), userID, repoParam(c), c.Query("provider"))
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, resp)
}

// MicroagentContent 微代理文件内容
// @Summary 获取并解析单个微代理文件
// @Tags Repository
// @Produce json
// @Param owner path string true "仓库属主"
// @Param repo path string true "仓库名"
// @Param path query string true "文件路径"
// @Param provider query string false "集成ID或平台类型"
// @Success 200 {object} responses.Response{data=api.MicroagentContent}
// @Router /api/repositories/{owner}/{repo}/microagents/content [get]
func (h *RepositoryHandler) MicroagentContent(c *gin.Context) {
	var q dto.MicroagentContentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	userID := middleware.CurrentUserID(c)
	resp, err := h.svc.MicroagentContent(c.Request.Context(), userID, repoParam(c), &q)
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, resp)
}
