package gitlab

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitbridge/internal/model"
	"gitbridge/internal/pkg/git/api"
	"gitbridge/internal/pkg/logger"
	pkgErrors "gitbridge/pkg/errors"
)

const (
	// DefaultHost GitLab默认公共实例
	DefaultHost = "gitlab.com"

	maxPerPage = 100

	taskScanRepoLimit = 10
	taskScanItemLimit = 5

	requestTimeout = 30 * time.Second
)

// Client GitLab适配器。分支列表走平台原生分页
// （x-total / x-next-page 响应头），仓库用 owner/path 编码为项目ID
type Client struct {
	baseURL     string
	token       string
	tokenSource api.TokenSource
	userID      string
	httpClient  *http.Client
	logger      *zap.Logger
}

// New 创建GitLab适配器
func New(cfg *api.ProviderConfig) (api.GitService, error) {
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}

	log := logger.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		baseURL:     resolveBaseURL(host),
		token:       cfg.Token,
		tokenSource: cfg.TokenSource,
		userID:      cfg.UserID,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: log,
	}, nil
}

func resolveBaseURL(host string) string {
	host = strings.TrimSuffix(host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host + "/api/v4"
	}
	return "https://" + host + "/api/v4"
}

// ProviderType 获取平台类型
func (c *Client) ProviderType() model.ProviderType {
	return model.ProviderGitLab
}

// projectID 将 owner/repo 编码为GitLab项目标识
func projectID(repository string) string {
	return url.PathEscape(repository)
}

func clampPerPage(perPage int) int {
	if perPage <= 0 {
		return 30
	}
	if perPage > maxPerPage {
		return maxPerPage
	}
	return perPage
}

// doRequest 执行一次API请求并完成错误归类。
// 收到401且刷新拿到新Token时重试恰好一次，仍为401则归类为认证失败
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values) ([]byte, http.Header, error) {
	if c.token == "" && c.tokenSource != nil {
		if latest, err := c.tokenSource.LatestToken(ctx); err == nil && latest != "" {
			c.token = latest
		}
	}

	body, header, status, err := c.execute(ctx, method, path, params)
	if err != nil {
		return nil, nil, err
	}

	if status == http.StatusUnauthorized && c.refreshToken(ctx) {
		body, header, status, err = c.execute(ctx, method, path, params)
		if err != nil {
			return nil, nil, err
		}
	}

	switch {
	case status == http.StatusUnauthorized:
		return nil, nil, pkgErrors.NewAuthentication("无效的 Token")
	case status == http.StatusNotFound:
		return nil, nil, pkgErrors.NewRemoteNotFound("远端资源不存在")
	case status < 200 || status >= 300:
		return nil, nil, pkgErrors.NewUnknown(status, fmt.Sprintf("请求失败 (状态码: %d)", status), nil)
	}

	return body, header, nil
}

// refreshToken 向TokenSource取最新Token，仅在拿到不同Token时返回true。
// 静态Token没有新值可取，重发同一请求必然再次401，直接放弃
func (c *Client) refreshToken(ctx context.Context) bool {
	if c.tokenSource == nil {
		return false
	}
	latest, err := c.tokenSource.LatestToken(ctx)
	if err != nil || latest == "" || latest == c.token {
		return false
	}
	c.token = latest
	return true
}

func (c *Client) execute(ctx context.Context, method, path string, params url.Values) ([]byte, http.Header, int, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, nil, 0, pkgErrors.NewUnknown(0, "构造请求失败", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("PRIVATE-TOKEN", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, 0, pkgErrors.NewUnknown(0, "请求失败", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, 0, pkgErrors.NewUnknown(0, "读取响应失败", err)
	}

	return body, resp.Header, resp.StatusCode, nil
}

type gitlabUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type gitlabProject struct {
	ID                int64  `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	Visibility        string `json:"visibility"`
	StarCount         int    `json:"star_count"`
	LastActivityAt    string `json:"last_activity_at"`
	DefaultBranch     string `json:"default_branch"`
	Description       string `json:"description"`
	WebURL            string `json:"web_url"`
	Namespace         struct {
		Kind string `json:"kind"` // user, group
	} `json:"namespace"`
}

type gitlabBranch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	Commit    struct {
		ID          string `json:"id"`
		CommittedAt string `json:"committed_date"`
	} `json:"commit"`
}

type gitlabIssue struct {
	IID   int64  `json:"iid"`
	Title string `json:"title"`
	State string `json:"state"`
}

func toRepository(p *gitlabProject) api.Repository {
	ownerType := "user"
	if p.Namespace.Kind == "group" {
		ownerType = "organization"
	}
	return api.Repository{
		ID:              strconv.FormatInt(p.ID, 10),
		FullName:        p.PathWithNamespace,
		GitProvider:     model.ProviderGitLab,
		IsPublic:        p.Visibility == "public",
		StargazersCount: p.StarCount,
		PushedAt:        p.LastActivityAt,
		OwnerType:       ownerType,
		MainBranch:      p.DefaultBranch,
		Description:     p.Description,
		HTMLURL:         p.WebURL,
	}
}

func toBranch(b *gitlabBranch) api.Branch {
	return api.Branch{
		Name:         b.Name,
		CommitSHA:    b.Commit.ID,
		Protected:    b.Protected,
		LastPushDate: b.Commit.CommittedAt,
	}
}

// GetUser 获取当前认证用户信息
func (c *Client) GetUser(ctx context.Context) (*api.User, error) {
	body, _, err := c.doRequest(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, err
	}

	var u gitlabUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析用户信息失败", err)
	}

	return &api.User{
		ID:        strconv.FormatInt(u.ID, 10),
		Login:     u.Username,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}, nil
}

// VerifyAccess 验证Token有效性
func (c *Client) VerifyAccess(ctx context.Context) error {
	_, err := c.GetUser(ctx)
	return err
}

func (c *Client) listProjects(ctx context.Context, params url.Values) ([]api.Repository, error) {
	body, _, err := c.doRequest(ctx, http.MethodGet, "/projects", params)
	if err != nil {
		return nil, err
	}

	var projects []gitlabProject
	if err := json.Unmarshal(body, &projects); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析项目列表失败", err)
	}

	repos := make([]api.Repository, 0, len(projects))
	for i := range projects {
		repos = append(repos, toRepository(&projects[i]))
	}
	return repos, nil
}

// SearchRepositories 搜索仓库
func (c *Client) SearchRepositories(ctx context.Context, query string, perPage int, sort, order string, public bool) ([]api.Repository, error) {
	params := url.Values{}
	params.Set("search", query)
	params.Set("per_page", strconv.Itoa(clampPerPage(perPage)))
	if sort != "" {
		params.Set("order_by", sort)
	}
	if order != "" {
		params.Set("sort", order)
	}
	if public {
		params.Set("visibility", "public")
	} else {
		params.Set("membership", "true")
	}
	return c.listProjects(ctx, params)
}

// GetPaginatedRepos 分页获取当前用户可访问的仓库
func (c *Client) GetPaginatedRepos(ctx context.Context, page, perPage int, sort string) ([]api.Repository, error) {
	if page <= 0 {
		page = 1
	}
	if sort == "" {
		sort = "last_activity_at"
	}
	params := url.Values{}
	params.Set("membership", "true")
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(clampPerPage(perPage)))
	params.Set("order_by", sort)
	return c.listProjects(ctx, params)
}

// GetRepositoryDetails 按 owner/repo 获取仓库详情
func (c *Client) GetRepositoryDetails(ctx context.Context, repository string) (*api.Repository, error) {
	body, _, err := c.doRequest(ctx, http.MethodGet, "/projects/"+projectID(repository), nil)
	if err != nil {
		return nil, err
	}

	var p gitlabProject
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析项目详情失败", err)
	}

	repo := toRepository(&p)
	return &repo, nil
}

func (c *Client) listBranchPage(ctx context.Context, repository string, page, perPage int, search string) ([]api.Branch, http.Header, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	if search != "" {
		params.Set("search", search)
	}

	body, header, err := c.doRequest(ctx, http.MethodGet, "/projects/"+projectID(repository)+"/repository/branches", params)
	if err != nil {
		return nil, nil, err
	}

	var branches []gitlabBranch
	if err := json.Unmarshal(body, &branches); err != nil {
		return nil, nil, pkgErrors.NewUnknown(0, "解析分支列表失败", err)
	}

	result := make([]api.Branch, 0, len(branches))
	for i := range branches {
		result = append(result, toBranch(&branches[i]))
	}
	return result, header, nil
}

// GetBranches 获取仓库全部分支
func (c *Client) GetBranches(ctx context.Context, repository string) ([]api.Branch, error) {
	var all []api.Branch
	page := 1
	for {
		branches, header, err := c.listBranchPage(ctx, repository, page, maxPerPage, "")
		if err != nil {
			return nil, err
		}
		all = append(all, branches...)

		next, _ := strconv.Atoi(header.Get("x-next-page"))
		if next <= page {
			break
		}
		page = next
	}
	return all, nil
}

// GetPaginatedBranches 分页获取分支（平台原生分页，总数取自 x-total 响应头）
func (c *Client) GetPaginatedBranches(ctx context.Context, repository string, page, perPage int) (*api.PaginatedBranches, error) {
	if page <= 0 {
		page = 1
	}
	perPage = clampPerPage(perPage)

	branches, header, err := c.listBranchPage(ctx, repository, page, perPage, "")
	if err != nil {
		return nil, err
	}

	total, _ := strconv.Atoi(header.Get("x-total"))
	next, _ := strconv.Atoi(header.Get("x-next-page"))

	return &api.PaginatedBranches{
		Branches:    branches,
		HasNextPage: next > page,
		CurrentPage: page,
		PerPage:     perPage,
		TotalCount:  total,
	}, nil
}

// SearchBranches 按名称子串搜索分支（平台原生搜索）
func (c *Client) SearchBranches(ctx context.Context, repository, query string, perPage int) ([]api.Branch, error) {
	branches, _, err := c.listBranchPage(ctx, repository, 1, clampPerPage(perPage), query)
	return branches, err
}

// GetSuggestedTasks 扫描用户最近活跃仓库的开放Issue/MR派生建议任务，
// 单仓库失败记录日志后跳过
func (c *Client) GetSuggestedTasks(ctx context.Context) ([]api.SuggestedTask, error) {
	repos, err := c.GetPaginatedRepos(ctx, 1, taskScanRepoLimit, "last_activity_at")
	if err != nil {
		return nil, err
	}
	if len(repos) > taskScanRepoLimit {
		repos = repos[:taskScanRepoLimit]
	}

	var tasks []api.SuggestedTask
	for _, repo := range repos {
		issues, err := c.listOpenItems(ctx, repo.FullName, "issues")
		if err != nil {
			c.logger.Warn("扫描仓库Issue失败，跳过",
				zap.String("repo", repo.FullName), zap.Error(err))
		} else {
			for _, issue := range issues {
				tasks = append(tasks, api.SuggestedTask{
					GitProvider: model.ProviderGitLab,
					TaskType:    api.TaskOpenIssue,
					Repo:        repo.FullName,
					IssueNumber: int(issue.IID),
					Title:       issue.Title,
				})
			}
		}

		mrs, err := c.listOpenItems(ctx, repo.FullName, "merge_requests")
		if err != nil {
			c.logger.Warn("扫描仓库MR失败，跳过",
				zap.String("repo", repo.FullName), zap.Error(err))
			continue
		}
		for _, mr := range mrs {
			tasks = append(tasks, api.SuggestedTask{
				GitProvider: model.ProviderGitLab,
				TaskType:    api.TaskOpenPR,
				Repo:        repo.FullName,
				IssueNumber: int(mr.IID),
				Title:       mr.Title,
			})
		}
	}
	return tasks, nil
}

func (c *Client) listOpenItems(ctx context.Context, repository, itemType string) ([]gitlabIssue, error) {
	params := url.Values{}
	params.Set("state", "opened")
	params.Set("scope", "created_by_me")
	params.Set("per_page", strconv.Itoa(taskScanItemLimit))

	body, _, err := c.doRequest(ctx, http.MethodGet, "/projects/"+projectID(repository)+"/"+itemType, params)
	if err != nil {
		return nil, err
	}

	var items []gitlabIssue
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析列表失败", err)
	}
	return items, nil
}

type gitlabTreeEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // blob, tree
}

// GetMicroagents 发现仓库内的微代理文件。约定目录不存在视为无微代理
func (c *Client) GetMicroagents(ctx context.Context, repository string) ([]api.MicroagentFile, error) {
	params := url.Values{}
	params.Set("path", api.MicroagentsDir)
	params.Set("per_page", strconv.Itoa(maxPerPage))

	body, _, err := c.doRequest(ctx, http.MethodGet, "/projects/"+projectID(repository)+"/repository/tree", params)
	if err != nil {
		if pkgErrors.IsRemoteNotFound(err) {
			return []api.MicroagentFile{}, nil
		}
		return nil, err
	}

	var entries []gitlabTreeEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析目录内容失败", err)
	}

	files := make([]api.MicroagentFile, 0, len(entries))
	for _, e := range entries {
		if e.Type == "blob" && api.IsMicroagentFile(e.Name) {
			files = append(files, api.MicroagentFile{
				Name: e.Name,
				Path: e.Path,
			})
		}
	}
	return files, nil
}

// GetMicroagentContent 获取并解析单个微代理文件（取默认分支上的版本）
func (c *Client) GetMicroagentContent(ctx context.Context, repository, filePath string) (*api.MicroagentContent, error) {
	repo, err := c.GetRepositoryDetails(ctx, repository)
	if err != nil {
		return nil, err
	}
	ref := repo.MainBranch
	if ref == "" {
		ref = "main"
	}

	params := url.Values{}
	params.Set("ref", ref)

	body, _, err := c.doRequest(ctx, http.MethodGet,
		"/projects/"+projectID(repository)+"/repository/files/"+url.PathEscape(filePath), params)
	if err != nil {
		return nil, err
	}

	var file struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal(body, &file); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析文件内容失败", err)
	}

	raw := file.Content
	if file.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
		if err != nil {
			return nil, pkgErrors.NewUnknown(0, "解码文件内容失败", err)
		}
		raw = string(decoded)
	}

	return api.ParseMicroagentContent(raw, filePath), nil
}

// GetPRDetails 获取MR原始详情透传
func (c *Client) GetPRDetails(ctx context.Context, repository string, prNumber int) (map[string]interface{}, error) {
	body, _, err := c.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("/projects/%s/merge_requests/%d", projectID(repository), prNumber), nil)
	if err != nil {
		return nil, err
	}

	var details map[string]interface{}
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析MR详情失败", err)
	}
	return details, nil
}

// IsPROpen MR是否仍处于开放状态，无法判定时返回true
func (c *Client) IsPROpen(ctx context.Context, repository string, prNumber int) bool {
	details, err := c.GetPRDetails(ctx, repository, prNumber)
	if err != nil {
		c.logger.Warn("获取MR状态失败，默认视为开放",
			zap.String("repo", repository), zap.Int("pr", prNumber), zap.Error(err))
		return true
	}
	state, ok := details["state"].(string)
	if !ok {
		return true
	}
	return state == "opened"
}
