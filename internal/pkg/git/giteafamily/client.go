package giteafamily

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitbridge/internal/model"
	"gitbridge/internal/pkg/git/api"
	"gitbridge/internal/pkg/logger"
	pkgErrors "gitbridge/pkg/errors"
)

const (
	// DefaultGiteaHost Gitea默认公共实例
	DefaultGiteaHost = "gitea.com"
	// DefaultForgejoHost Forgejo默认公共实例（Codeberg）
	DefaultForgejoHost = "codeberg.org"

	// maxPerPage Gitea系API单页上限
	maxPerPage = 100

	requestTimeout = 30 * time.Second
)

// Client Gitea/Forgejo共用适配器。两者API兼容（Forgejo是Gitea分支），
// 差异仅在平台类型标识与默认实例地址
type Client struct {
	provider    model.ProviderType
	baseURL     string
	token       string
	tokenSource api.TokenSource
	userID      string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewGitea 创建Gitea适配器
func NewGitea(cfg *api.ProviderConfig) (api.GitService, error) {
	return newClient(model.ProviderGitea, DefaultGiteaHost, cfg)
}

// NewForgejo 创建Forgejo适配器
func NewForgejo(cfg *api.ProviderConfig) (api.GitService, error) {
	return newClient(model.ProviderForgejo, DefaultForgejoHost, cfg)
}

func newClient(provider model.ProviderType, defaultHost string, cfg *api.ProviderConfig) (api.GitService, error) {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}

	log := logger.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		provider:    provider,
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

// resolveBaseURL 规范化实例地址：支持带或不带scheme的自建实例，
// 未指定scheme时默认https
func resolveBaseURL(host string) string {
	host = strings.TrimSuffix(host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host + "/api/v1"
	}
	return "https://" + host + "/api/v1"
}

// ProviderType 获取平台类型
func (c *Client) ProviderType() model.ProviderType {
	return c.provider
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	if c.token != "" {
		h.Set("Authorization", fmt.Sprintf("token %s", c.token))
	}
	return h
}

// doRequest 执行一次API请求并完成错误归类。
// Token缺失时先向TokenSource取一次；收到401且刷新拿到新Token时
// 重试恰好一次，仍为401则归类为认证失败，绝不无限重试
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values) ([]byte, http.Header, error) {
	if c.token == "" && c.tokenSource != nil {
		latest, err := c.tokenSource.LatestToken(ctx)
		if err == nil && latest != "" {
			c.token = latest
		}
	}

	body, header, status, err := c.execute(ctx, method, path, params)
	if err != nil {
		return nil, nil, err
	}

	if status == http.StatusUnauthorized && c.refreshToken(ctx) {
		// Token过期且刷新拿到了新Token: 重试同一请求恰好一次
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
		return nil, nil, pkgErrors.NewUnknown(status, fmt.Sprintf("请求失败 (状态码: %d): %s", status, truncate(string(body), 512)), nil)
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

// execute 单次HTTP往返，传输层错误归类为未分类错误（与超时同等对待）
func (c *Client) execute(ctx context.Context, method, path string, params url.Values) ([]byte, http.Header, int, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, nil, 0, pkgErrors.NewUnknown(0, "构造请求失败", err)
	}
	req.Header = c.headers()

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

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
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
