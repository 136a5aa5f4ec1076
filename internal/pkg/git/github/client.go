package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v80/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"gitbridge/internal/model"
	"gitbridge/internal/pkg/git/api"
	"gitbridge/internal/pkg/logger"
	pkgErrors "gitbridge/pkg/errors"
)

const (
	maxPerPage = 100

	taskScanRepoLimit = 10
	taskScanItemLimit = 5
)

// Client GitHub适配器，基于官方REST客户端。
// 企业SSO模式复用同一实现：SSO网关透出的是GitHub风格API，
// 仅平台类型标识与实例地址不同
type Client struct {
	provider    model.ProviderType
	host        string
	token       string
	tokenSource api.TokenSource
	userID      string
	client      *gh.Client
	logger      *zap.Logger
}

// NewGitHub 创建GitHub适配器
func NewGitHub(cfg *api.ProviderConfig) (api.GitService, error) {
	return newClient(model.ProviderGitHub, cfg)
}

// NewEnterpriseSSO 创建企业SSO适配器（GitHub风格API网关）
func NewEnterpriseSSO(cfg *api.ProviderConfig) (api.GitService, error) {
	if cfg.Host == "" {
		return nil, pkgErrors.NewValidation("企业SSO模式必须配置实例地址")
	}
	return newClient(model.ProviderEnterpriseSSO, cfg)
}

func newClient(provider model.ProviderType, cfg *api.ProviderConfig) (api.GitService, error) {
	log := logger.Log
	if log == nil {
		log = zap.NewNop()
	}

	c := &Client{
		provider:    provider,
		host:        cfg.Host,
		token:       cfg.Token,
		tokenSource: cfg.TokenSource,
		userID:      cfg.UserID,
		logger:      log,
	}
	if err := c.rebuild(); err != nil {
		return nil, err
	}
	return c, nil
}

// rebuild 按当前Token重建底层客户端（Token刷新后调用）
func (c *Client) rebuild() error {
	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: c.token},
	))

	client := gh.NewClient(httpClient)
	if c.host != "" && c.host != "github.com" {
		base := c.host
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			base = "https://" + base
		}
		var err error
		client, err = client.WithEnterpriseURLs(base, base)
		if err != nil {
			return pkgErrors.NewValidation(fmt.Sprintf("无效的实例地址: %s", c.host))
		}
	}
	c.client = client
	return nil
}

func isUnauthorized(err error) bool {
	var resp *gh.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		return resp.Response.StatusCode == http.StatusUnauthorized
	}
	return false
}

// translateError 将底层客户端错误归类为统一错误类型
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var resp *gh.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		switch resp.Response.StatusCode {
		case http.StatusUnauthorized:
			return pkgErrors.NewAuthentication("无效的 Token")
		case http.StatusNotFound:
			return pkgErrors.NewRemoteNotFound("远端资源不存在")
		default:
			return pkgErrors.NewUnknown(resp.Response.StatusCode,
				fmt.Sprintf("请求失败 (状态码: %d)", resp.Response.StatusCode), err)
		}
	}
	return pkgErrors.NewUnknown(0, "请求失败", err)
}

// withRetry 执行请求；遇401且刷新拿到新Token时重试恰好一次，
// 仍失败归类为认证失败。无新Token可取时不做徒劳的重复请求
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if !isUnauthorized(err) {
		return translateError(err)
	}

	refreshed := false
	if c.tokenSource != nil {
		if latest, terr := c.tokenSource.LatestToken(ctx); terr == nil && latest != "" && latest != c.token {
			c.token = latest
			if rerr := c.rebuild(); rerr != nil {
				return rerr
			}
			refreshed = true
		}
	}
	if !refreshed {
		return pkgErrors.NewAuthentication("无效的 Token")
	}

	err = fn()
	if isUnauthorized(err) {
		return pkgErrors.NewAuthentication("无效的 Token")
	}
	return translateError(err)
}

// ProviderType 获取平台类型
func (c *Client) ProviderType() model.ProviderType {
	return c.provider
}

func splitRepository(repository string) (string, string, error) {
	parts := strings.SplitN(repository, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", pkgErrors.NewValidation(fmt.Sprintf("无效的仓库名: %s", repository))
	}
	return parts[0], parts[1], nil
}

func (c *Client) toRepository(r *gh.Repository) api.Repository {
	ownerType := "user"
	if r.GetOwner().GetType() == "Organization" {
		ownerType = "organization"
	}
	pushedAt := ""
	if ts := r.GetPushedAt(); !ts.IsZero() {
		pushedAt = ts.Format("2006-01-02T15:04:05Z")
	}
	return api.Repository{
		ID:              fmt.Sprintf("%d", r.GetID()),
		FullName:        r.GetFullName(),
		GitProvider:     c.provider,
		IsPublic:        !r.GetPrivate(),
		StargazersCount: r.GetStargazersCount(),
		PushedAt:        pushedAt,
		OwnerType:       ownerType,
		MainBranch:      r.GetDefaultBranch(),
		Description:     r.GetDescription(),
		HTMLURL:         r.GetHTMLURL(),
	}
}

func toBranch(b *gh.Branch) api.Branch {
	return api.Branch{
		Name:      b.GetName(),
		CommitSHA: b.GetCommit().GetSHA(),
		Protected: b.GetProtected(),
	}
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

// GetUser 获取当前认证用户信息
func (c *Client) GetUser(ctx context.Context) (*api.User, error) {
	var user *gh.User
	err := c.withRetry(ctx, func() error {
		u, _, err := c.client.Users.Get(ctx, "")
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &api.User{
		ID:        fmt.Sprintf("%d", user.GetID()),
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		Email:     user.GetEmail(),
		Company:   user.GetCompany(),
		AvatarURL: user.GetAvatarURL(),
	}, nil
}

// VerifyAccess 验证Token有效性
func (c *Client) VerifyAccess(ctx context.Context) error {
	_, err := c.GetUser(ctx)
	return err
}

// SearchRepositories 搜索仓库
func (c *Client) SearchRepositories(ctx context.Context, query string, perPage int, sort, order string, public bool) ([]api.Repository, error) {
	q := query
	if !public {
		// 非公开搜索限定为当前用户可见范围
		q = fmt.Sprintf("%s in:name", query)
	}

	opts := &gh.SearchOptions{
		Sort:        sort,
		Order:       order,
		ListOptions: gh.ListOptions{PerPage: clampPerPage(perPage)},
	}

	var result *gh.RepositoriesSearchResult
	err := c.withRetry(ctx, func() error {
		r, _, err := c.client.Search.Repositories(ctx, q, opts)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	repos := make([]api.Repository, 0, len(result.Repositories))
	for _, r := range result.Repositories {
		repos = append(repos, c.toRepository(r))
	}
	return repos, nil
}

// GetPaginatedRepos 分页获取当前用户可访问的仓库
func (c *Client) GetPaginatedRepos(ctx context.Context, page, perPage int, sort string) ([]api.Repository, error) {
	if page <= 0 {
		page = 1
	}
	if sort == "" {
		sort = "pushed"
	}
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Sort: sort,
		ListOptions: gh.ListOptions{
			Page:    page,
			PerPage: clampPerPage(perPage),
		},
	}

	var list []*gh.Repository
	err := c.withRetry(ctx, func() error {
		l, _, err := c.client.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return err
		}
		list = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	repos := make([]api.Repository, 0, len(list))
	for _, r := range list {
		repos = append(repos, c.toRepository(r))
	}
	return repos, nil
}

// GetRepositoryDetails 按 owner/repo 获取仓库详情
func (c *Client) GetRepositoryDetails(ctx context.Context, repository string) (*api.Repository, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	var repo *gh.Repository
	err = c.withRetry(ctx, func() error {
		r, _, err := c.client.Repositories.Get(ctx, owner, name)
		if err != nil {
			return err
		}
		repo = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := c.toRepository(repo)
	return &result, nil
}

// GetBranches 获取仓库全部分支（逐页整取）
func (c *Client) GetBranches(ctx context.Context, repository string) ([]api.Branch, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	var all []api.Branch
	opts := &gh.BranchListOptions{
		ListOptions: gh.ListOptions{Page: 1, PerPage: maxPerPage},
	}
	for {
		var branches []*gh.Branch
		var nextPage int
		err := c.withRetry(ctx, func() error {
			b, resp, err := c.client.Repositories.ListBranches(ctx, owner, name, opts)
			if err != nil {
				return err
			}
			branches = b
			nextPage = resp.NextPage
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, b := range branches {
			all = append(all, toBranch(b))
		}
		if nextPage == 0 {
			break
		}
		opts.Page = nextPage
	}
	return all, nil
}

// GetPaginatedBranches 分页获取分支（平台原生分页）。
// 平台不提供分支总数，total_count 为当前已知下界
func (c *Client) GetPaginatedBranches(ctx context.Context, repository string, page, perPage int) (*api.PaginatedBranches, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}
	if page <= 0 {
		page = 1
	}
	perPage = clampPerPage(perPage)

	opts := &gh.BranchListOptions{
		ListOptions: gh.ListOptions{Page: page, PerPage: perPage},
	}

	var branches []*gh.Branch
	var nextPage int
	err = c.withRetry(ctx, func() error {
		b, resp, err := c.client.Repositories.ListBranches(ctx, owner, name, opts)
		if err != nil {
			return err
		}
		branches = b
		nextPage = resp.NextPage
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]api.Branch, 0, len(branches))
	for _, b := range branches {
		result = append(result, toBranch(b))
	}

	return &api.PaginatedBranches{
		Branches:    result,
		HasNextPage: nextPage != 0,
		CurrentPage: page,
		PerPage:     perPage,
		TotalCount:  (page-1)*perPage + len(result),
	}, nil
}

// SearchBranches 按名称子串搜索分支（平台无分支搜索接口，整取后过滤）
func (c *Client) SearchBranches(ctx context.Context, repository, query string, perPage int) ([]api.Branch, error) {
	perPage = clampPerPage(perPage)

	all, err := c.GetBranches(ctx, repository)
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

// GetSuggestedTasks 扫描用户最近活跃仓库的开放Issue/PR派生建议任务，
// 单仓库失败记录日志后跳过
func (c *Client) GetSuggestedTasks(ctx context.Context) ([]api.SuggestedTask, error) {
	user, err := c.GetUser(ctx)
	if err != nil {
		return nil, err
	}

	repos, err := c.GetPaginatedRepos(ctx, 1, taskScanRepoLimit, "pushed")
	if err != nil {
		return nil, err
	}
	if len(repos) > taskScanRepoLimit {
		repos = repos[:taskScanRepoLimit]
	}

	var tasks []api.SuggestedTask
	for _, repo := range repos {
		owner, name, err := splitRepository(repo.FullName)
		if err != nil {
			continue
		}

		issues, err := c.listOpenIssues(ctx, owner, name, user.Login)
		if err != nil {
			c.logger.Warn("扫描仓库Issue失败，跳过",
				zap.String("repo", repo.FullName), zap.Error(err))
		} else {
			for _, issue := range issues {
				tasks = append(tasks, api.SuggestedTask{
					GitProvider: c.provider,
					TaskType:    api.TaskOpenIssue,
					Repo:        repo.FullName,
					IssueNumber: issue.GetNumber(),
					Title:       issue.GetTitle(),
				})
			}
		}

		pulls, err := c.listOpenPulls(ctx, owner, name, user.Login)
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
				IssueNumber: pr.GetNumber(),
				Title:       pr.GetTitle(),
			})
		}
	}
	return tasks, nil
}

func (c *Client) listOpenIssues(ctx context.Context, owner, name, login string) ([]*gh.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "open",
		Creator:     login,
		ListOptions: gh.ListOptions{PerPage: maxPerPage},
	}

	var list []*gh.Issue
	err := c.withRetry(ctx, func() error {
		l, _, err := c.client.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return err
		}
		list = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Issue接口会混入PR，过滤后截断
	issues := make([]*gh.Issue, 0, taskScanItemLimit)
	for _, issue := range list {
		if issue.IsPullRequest() {
			continue
		}
		issues = append(issues, issue)
		if len(issues) >= taskScanItemLimit {
			break
		}
	}
	return issues, nil
}

func (c *Client) listOpenPulls(ctx context.Context, owner, name, login string) ([]*gh.PullRequest, error) {
	opts := &gh.PullRequestListOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: maxPerPage},
	}

	var list []*gh.PullRequest
	err := c.withRetry(ctx, func() error {
		l, _, err := c.client.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return err
		}
		list = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	pulls := make([]*gh.PullRequest, 0, taskScanItemLimit)
	for _, pr := range list {
		if login != "" && pr.GetUser().GetLogin() != login {
			continue
		}
		pulls = append(pulls, pr)
		if len(pulls) >= taskScanItemLimit {
			break
		}
	}
	return pulls, nil
}

// GetMicroagents 发现仓库内的微代理文件。约定目录不存在视为无微代理
func (c *Client) GetMicroagents(ctx context.Context, repository string) ([]api.MicroagentFile, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	var entries []*gh.RepositoryContent
	err = c.withRetry(ctx, func() error {
		_, dir, _, err := c.client.Repositories.GetContents(ctx, owner, name, api.MicroagentsDir, nil)
		if err != nil {
			return err
		}
		entries = dir
		return nil
	})
	if err != nil {
		if pkgErrors.IsRemoteNotFound(err) {
			return []api.MicroagentFile{}, nil
		}
		return nil, err
	}

	files := make([]api.MicroagentFile, 0, len(entries))
	for _, e := range entries {
		if e.GetType() == "file" && api.IsMicroagentFile(e.GetName()) {
			files = append(files, api.MicroagentFile{
				Name: e.GetName(),
				Path: e.GetPath(),
			})
		}
	}
	return files, nil
}

// GetMicroagentContent 获取并解析单个微代理文件
func (c *Client) GetMicroagentContent(ctx context.Context, repository, filePath string) (*api.MicroagentContent, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	var file *gh.RepositoryContent
	err = c.withRetry(ctx, func() error {
		f, _, _, err := c.client.Repositories.GetContents(ctx, owner, name, filePath, nil)
		if err != nil {
			return err
		}
		file = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, pkgErrors.NewRemoteNotFound(fmt.Sprintf("文件不存在: %s", filePath))
	}

	raw, err := file.GetContent()
	if err != nil {
		return nil, pkgErrors.NewUnknown(0, "解码文件内容失败", err)
	}

	return api.ParseMicroagentContent(raw, filePath), nil
}

// GetPRDetails 获取PR原始详情透传
func (c *Client) GetPRDetails(ctx context.Context, repository string, prNumber int) (map[string]interface{}, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	var pr *gh.PullRequest
	err = c.withRetry(ctx, func() error {
		p, _, err := c.client.PullRequests.Get(ctx, owner, name, prNumber)
		if err != nil {
			return err
		}
		pr = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(pr)
	if err != nil {
		return nil, pkgErrors.NewUnknown(0, "序列化PR详情失败", err)
	}
	var details map[string]interface{}
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, pkgErrors.NewUnknown(0, "解析PR详情失败", err)
	}
	return details, nil
}

// IsPROpen PR是否仍处于开放状态，无法判定时返回true
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
