package giteafamily

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"gitbridge/internal/pkg/git/api"
	pkgErrors "gitbridge/pkg/errors"
)

// 建议任务扫描范围上限
const (
	taskScanRepoLimit  = 10
	taskScanItemLimit  = 5
	branchFetchPageCap = 50
)

type giteaUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type giteaRepo struct {
	ID            int64      `json:"id"`
	FullName      string     `json:"full_name"`
	Private       bool       `json:"private"`
	StarsCount    int        `json:"stars_count"`
	UpdatedAt     string     `json:"updated_at"`
	DefaultBranch string     `json:"default_branch"`
	Description   string     `json:"description"`
	HTMLURL       string     `json:"html_url"`
	Owner         *giteaUser `json:"owner"`
}

type giteaBranch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	Commit    struct {
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
	} `json:"commit"`
}

type giteaIssue struct {
	Number int64  `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
}

type giteaContentsEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"` // file, dir
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (c *Client) toRepository(r *giteaRepo) api.Repository {
	ownerType := "user"
	return api.Repository{
		ID:              strconv.FormatInt(r.ID, 10),
		FullName:        r.FullName,
		GitProvider:     c.provider,
		IsPublic:        !r.Private,
		StargazersCount: r.StarsCount,
		PushedAt:        r.UpdatedAt,
		OwnerType:       ownerType,
		MainBranch:      r.DefaultBranch,
		Description:     r.Description,
		HTMLURL:         r.HTMLURL,
	}
}

func toBranch(b *giteaBranch) api.Branch {
	return api.Branch{
		Name:         b.Name,
		CommitSHA:    b.Commit.ID,
		Protected:    b.Protected,
		LastPushDate: b.Commit.Timestamp,
	}
}

// GetUser 获取当前认证用户信息
func (c *Client) GetUser(ctx context.Context) (*api.User, error) {
	body, _, err := c.doRequest(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, err
	}

	var u giteaUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析用户信息失败", err)
	}

	return &api.User{
		ID:        strconv.FormatInt(u.ID, 10),
		Login:     u.Login,
		Name:      u.FullName,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}, nil
}

// VerifyAccess 验证Token有效性（能取到当前用户即视为有效）
func (c *Client) VerifyAccess(ctx context.Context) error {
	_, err := c.GetUser(ctx)
	return err
}

// decodeRepoList 兼容两种响应形态：搜索接口返回 {"data": [...]}，
// 列表接口返回裸数组
func decodeRepoList(body []byte) ([]giteaRepo, error) {
	var wrapped struct {
		Data []giteaRepo `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, nil
	}

	var repos []giteaRepo
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析仓库列表失败", err)
	}
	return repos, nil
}

// SearchRepositories 搜索仓库
func (c *Client) SearchRepositories(ctx context.Context, query string, perPage int, sort, order string, public bool) ([]api.Repository, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(clampPerPage(perPage)))
	if sort != "" {
		params.Set("sort", sort)
	}
	if order != "" {
		params.Set("order", order)
	}
	if public {
		params.Set("private", "false")
	}

	body, _, err := c.doRequest(ctx, http.MethodGet, "/repos/search", params)
	if err != nil {
		return nil, err
	}

	repos, err := decodeRepoList(body)
	if err != nil {
		return nil, err
	}

	result := make([]api.Repository, 0, len(repos))
	for i := range repos {
		result = append(result, c.toRepository(&repos[i]))
	}
	return result, nil
}

// GetPaginatedRepos 分页获取当前用户可访问的仓库
func (c *Client) GetPaginatedRepos(ctx context.Context, page, perPage int, sort string) ([]api.Repository, error) {
	if page <= 0 {
		page = 1
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(clampPerPage(perPage)))
	if sort != "" {
		params.Set("order_by", sort)
	}

	body, _, err := c.doRequest(ctx, http.MethodGet, "/user/repos", params)
	if err != nil {
		return nil, err
	}

	repos, err := decodeRepoList(body)
	if err != nil {
		return nil, err
	}

	result := make([]api.Repository, 0, len(repos))
	for i := range repos {
		result = append(result, c.toRepository(&repos[i]))
	}
	return result, nil
}

// GetRepositoryDetails 按 owner/repo 获取仓库详情
func (c *Client) GetRepositoryDetails(ctx context.Context, repository string) (*api.Repository, error) {
	body, _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s", repository), nil)
	if err != nil {
		return nil, err
	}

	var r giteaRepo
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析仓库详情失败", err)
	}

	repo := c.toRepository(&r)
	return &repo, nil
}

// fetchAllBranches 逐页整取仓库全部分支（Gitea系分支接口不提供总数，
// 整取后由调用方决定切片）
func (c *Client) fetchAllBranches(ctx context.Context, repository string) ([]api.Branch, error) {
	var all []api.Branch
	for page := 1; page <= branchFetchPageCap; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(maxPerPage))

		body, _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/branches", repository), params)
		if err != nil {
			return nil, err
		}

		var branches []giteaBranch
		if err := json.Unmarshal(body, &branches); err != nil {
			return nil, pkgErrors.NewUnknown(0, "解析分支列表失败", err)
		}
		for i := range branches {
			all = append(all, toBranch(&branches[i]))
		}
		if len(branches) < maxPerPage {
			break
		}
	}
	return all, nil
}

// GetBranches 获取仓库全部分支
func (c *Client) GetBranches(ctx context.Context, repository string) ([]api.Branch, error) {
	return c.fetchAllBranches(ctx, repository)
}

// GetPaginatedBranches 分页获取分支。平台分支接口不返回总数，
// 整取后在客户端切片以满足统一分页契约
func (c *Client) GetPaginatedBranches(ctx context.Context, repository string, page, perPage int) (*api.PaginatedBranches, error) {
	if page <= 0 {
		page = 1
	}
	perPage = clampPerPage(perPage)

	all, err := c.fetchAllBranches(ctx, repository)
	if err != nil {
		return nil, err
	}

	total := len(all)
	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &api.PaginatedBranches{
		Branches:    all[start:end],
		HasNextPage: end < total,
		CurrentPage: page,
		PerPage:     perPage,
		TotalCount:  total,
	}, nil
}

// SearchBranches 按名称子串搜索分支（不区分大小写）
func (c *Client) SearchBranches(ctx context.Context, repository, query string, perPage int) ([]api.Branch, error) {
	perPage = clampPerPage(perPage)

	all, err := c.fetchAllBranches(ctx, repository)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	matched := make([]api.Branch, 0, perPage)
	for _, b := range all {
		if strings.Contains(strings.ToLower(b.Name), query) {
			matched = append(matched, b)
			if len(matched) >= perPage {
				break
			}
		}
	}
	return matched, nil
}

// GetSuggestedTasks 扫描用户最近活跃仓库的开放Issue/PR派生建议任务。
// 单仓库请求失败只记录日志并跳过，保证部分失败不拖垮整体扫描
func (c *Client) GetSuggestedTasks(ctx context.Context) ([]api.SuggestedTask, error) {
	user, err := c.GetUser(ctx)
	if err != nil {
		return nil, err
	}

	repos, err := c.GetPaginatedRepos(ctx, 1, taskScanRepoLimit, "recently_pushed")
	if err != nil {
		return nil, err
	}
	if len(repos) > taskScanRepoLimit {
		repos = repos[:taskScanRepoLimit]
	}

	var tasks []api.SuggestedTask
	for _, repo := range repos {
		issues, err := c.listOpenIssues(ctx, repo.FullName, "issues", user.Login)
		if err != nil {
			c.logger.Warn("扫描仓库Issue失败，跳过",
				zap.String("repo", repo.FullName), zap.Error(err))
		} else {
			for _, issue := range issues {
				tasks = append(tasks, api.SuggestedTask{
					GitProvider: c.provider,
					TaskType:    api.TaskOpenIssue,
					Repo:        repo.FullName,
					IssueNumber: int(issue.Number),
					Title:       issue.Title,
				})
			}
		}

		pulls, err := c.listOpenIssues(ctx, repo.FullName, "pulls", user.Login)
		if err != nil {
			c.logger.Warn("扫描仓库PR失败，跳过",
				zap.String("repo", repo.FullName), zap.Error(err))
			continue
		}
		for _, pr := range pulls {
			tasks = append(tasks, api.SuggestedTask{
				GitProvider: c.provider,
				TaskType:    api.TaskOpenPR,
				Repo:        repo.FullName,
				IssueNumber: int(pr.Number),
				Title:       pr.Title,
			})
		}
	}
	return tasks, nil
}

func (c *Client) listOpenIssues(ctx context.Context, repository, issueType, login string) ([]giteaIssue, error) {
	params := url.Values{}
	params.Set("state", "open")
	params.Set("type", issueType)
	params.Set("limit", strconv.Itoa(taskScanItemLimit))
	if login != "" {
		params.Set("created_by", login)
	}

	body, _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/issues", repository), params)
	if err != nil {
		return nil, err
	}

	var issues []giteaIssue
	if err := json.Unmarshal(body, &issues); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析Issue列表失败", err)
	}
	return issues, nil
}

// GetMicroagents 发现仓库内的微代理文件。约定目录不存在视为无微代理
func (c *Client) GetMicroagents(ctx context.Context, repository string) ([]api.MicroagentFile, error) {
	path := fmt.Sprintf("/repos/%s/contents/%s", repository, api.MicroagentsDir)
	body, _, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		if pkgErrors.IsRemoteNotFound(err) {
			return []api.MicroagentFile{}, nil
		}
		return nil, err
	}

	var entries []giteaContentsEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析目录内容失败", err)
	}

	files := make([]api.MicroagentFile, 0, len(entries))
	for _, e := range entries {
		if e.Type == "file" && api.IsMicroagentFile(e.Name) {
			files = append(files, api.MicroagentFile{
				Name: e.Name,
				Path: e.Path,
			})
		}
	}
	return files, nil
}

// GetMicroagentContent 获取并解析单个微代理文件
func (c *Client) GetMicroagentContent(ctx context.Context, repository, filePath string) (*api.MicroagentContent, error) {
	body, _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/contents/%s", repository, filePath), nil)
	if err != nil {
		return nil, err
	}

	var entry giteaContentsEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析文件内容失败", err)
	}

	raw := entry.Content
	if entry.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(entry.Content, "\n", ""))
		if err != nil {
			return nil, pkgErrors.NewUnknown(0, "解码文件内容失败", err)
		}
		raw = string(decoded)
	}

	return api.ParseMicroagentContent(raw, filePath), nil
}

// GetPRDetails 获取PR原始详情透传
func (c *Client) GetPRDetails(ctx context.Context, repository string, prNumber int) (map[string]interface{}, error) {
	body, _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/pulls/%d", repository, prNumber), nil)
	if err != nil {
		return nil, err
	}

	var details map[string]interface{}
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析PR详情失败", err)
	}
	return details, nil
}

// IsPROpen PR是否仍处于开放状态。取不到详情或状态字段时保守返回true
func (c *Client) IsPROpen(ctx context.Context, repository string, prNumber int) bool {
	details, err := c.GetPRDetails(ctx, repository, prNumber)
	if err != nil {
		c.logger.Warn("获取PR状态失败，默认视为开放",
			zap.String("repo", repository), zap.Int("pr", prNumber), zap.Error(err))
		return true
	}
	state, ok := details["state"].(string)
	if !ok {
		return true
	}
	return state == "open"
}
