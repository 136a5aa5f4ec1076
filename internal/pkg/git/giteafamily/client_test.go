package giteafamily

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitbridge/internal/model"
	"gitbridge/internal/pkg/git/api"
	pkgErrors "gitbridge/pkg/errors"
)

func newTestClient(t *testing.T, provider model.ProviderType, cfg *api.ProviderConfig) *Client {
	t.Helper()
	var (
		svc api.GitService
		err error
	)
	if provider == model.ProviderForgejo {
		svc, err = NewForgejo(cfg)
	} else {
		svc, err = NewGitea(cfg)
	}
	require.NoError(t, err)
	return svc.(*Client)
}

func TestResolveBaseURL(t *testing.T) {
	assert.Equal(t, "https://gitea.com/api/v1", resolveBaseURL("gitea.com"))
	assert.Equal(t, "https://gitea.example.com/api/v1", resolveBaseURL("gitea.example.com/"))
	assert.Equal(t, "http://localhost:3000/api/v1", resolveBaseURL("http://localhost:3000"))
	assert.Equal(t, "https://codeberg.org/api/v1", resolveBaseURL("https://codeberg.org"))
}

func TestDefaultHosts(t *testing.T) {
	gitea := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Token: "t"})
	assert.Equal(t, "https://gitea.com/api/v1", gitea.baseURL)
	assert.Equal(t, model.ProviderGitea, gitea.ProviderType())

	forgejo := newTestClient(t, model.ProviderForgejo, &api.ProviderConfig{Token: "t"})
	assert.Equal(t, "https://codeberg.org/api/v1", forgejo.baseURL)
	assert.Equal(t, model.ProviderForgejo, forgejo.ProviderType())
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"id": 1, "login": "alice"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Host: srv.URL, Token: "my-token"})
	_, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token my-token", gotAuth)
}

func TestGetPaginatedBranchesClientSideSlicing(t *testing.T) {
	// 45个分支: page=2 per_page=20 应得20条，有下一页，总数45
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		branches := make([]map[string]interface{}, 0, 45)
		for i := 0; i < 45; i++ {
			branches = append(branches, map[string]interface{}{
				"name":   fmt.Sprintf("branch-%02d", i),
				"commit": map[string]string{"id": fmt.Sprintf("sha-%d", i)},
			})
		}
		_ = json.NewEncoder(w).Encode(branches)
	}))
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	page, err := c.GetPaginatedBranches(context.Background(), "owner/repo", 2, 20)
	require.NoError(t, err)
	assert.Len(t, page.Branches, 20)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 20, page.PerPage)
	assert.Equal(t, 45, page.TotalCount)
	assert.Equal(t, "branch-20", page.Branches[0].Name)

	// 末页: 5条，无下一页
	last, err := c.GetPaginatedBranches(context.Background(), "owner/repo", 3, 20)
	require.NoError(t, err)
	assert.Len(t, last.Branches, 5)
	assert.False(t, last.HasNextPage)

	// 越界页: 空列表不报错
	beyond, err := c.GetPaginatedBranches(context.Background(), "owner/repo", 9, 20)
	require.NoError(t, err)
	assert.Empty(t, beyond.Branches)
	assert.False(t, beyond.HasNextPage)
}

func TestUnauthorizedRetriesExactlyOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{
		Host:        srv.URL,
		Token:       "expired",
		TokenSource: api.StaticTokenSource("still-bad"),
	})

	_, err := c.GetUser(context.Background())
	require.Error(t, err)
	assert.True(t, pkgErrors.IsAuthentication(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "401后应重试恰好一次")
}

func TestUnauthorizedStaticTokenDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	// 无TokenSource: 没有新Token可取，不重发同一请求
	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Host: srv.URL, Token: "expired"})
	_, err := c.GetUser(context.Background())
	require.Error(t, err)
	assert.True(t, pkgErrors.IsAuthentication(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// TokenSource返回同一Token: 同样不重试
	atomic.StoreInt32(&calls, 0)
	c = newTestClient(t, model.ProviderGitea, &api.ProviderConfig{
		Host:        srv.URL,
		Token:       "expired",
		TokenSource: api.StaticTokenSource("expired"),
	})
	_, err = c.GetUser(context.Background())
	require.Error(t, err)
	assert.True(t, pkgErrors.IsAuthentication(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUnauthorizedRefreshSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "token fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id": 1, "login": "alice"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{
		Host:        srv.URL,
		Token:       "expired",
		TokenSource: api.StaticTokenSource("fresh"),
	})

	user, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Login)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNotFoundTranslation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	_, err := c.GetRepositoryDetails(context.Background(), "owner/missing")
	require.Error(t, err)
	assert.True(t, pkgErrors.IsRemoteNotFound(err))
}

func TestUnknownErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	_, err := c.GetUser(context.Background())
	require.Error(t, err)
	assert.Equal(t, pkgErrors.CodeUnknown, pkgErrors.Code(err))

	var appErr *pkgErrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
}

func TestSearchRepositoriesClampsLimit(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		fmt.Fprint(w, `{"ok": true, "data": [{"id": 1, "full_name": "o/r"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	repos, err := c.SearchRepositories(context.Background(), "demo", 500, "", "", false)
	require.NoError(t, err)
	assert.Equal(t, "100", gotLimit)
	require.Len(t, repos, 1)
	assert.Equal(t, "o/r", repos[0].FullName)
	assert.Equal(t, model.ProviderGitea, repos[0].GitProvider)
}

func TestGetSuggestedTasksPerRepoFailureIsolation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 1, "login": "alice"}`)
	})
	mux.HandleFunc("/api/v1/user/repos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "full_name": "alice/broken"}, {"id": 2, "full_name": "alice/healthy"}]`)
	})
	mux.HandleFunc("/api/v1/repos/alice/broken/issues", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/v1/repos/alice/healthy/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "pulls" {
			fmt.Fprint(w, `[{"number": 7, "title": "修复构建", "state": "open"}]`)
			return
		}
		fmt.Fprint(w, `[{"number": 3, "title": "文档缺失", "state": "open"}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	tasks, err := c.GetSuggestedTasks(context.Background())
	require.NoError(t, err, "单仓库失败不应中断扫描")
	require.Len(t, tasks, 2)

	assert.Equal(t, api.TaskOpenIssue, tasks[0].TaskType)
	assert.Equal(t, "alice/healthy", tasks[0].Repo)
	assert.Equal(t, 3, tasks[0].IssueNumber)
	assert.Equal(t, api.TaskOpenPR, tasks[1].TaskType)
	assert.Equal(t, 7, tasks[1].IssueNumber)
}

func TestGetMicroagents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/repos/o/r/contents/.openhands/microagents", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"name": "docker.md", "path": ".openhands/microagents/docker.md", "type": "file"},
			{"name": "README.md", "path": ".openhands/microagents/README.md", "type": "file"},
			{"name": "sub", "path": ".openhands/microagents/sub", "type": "dir"}
		]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	files, err := c.GetMicroagents(context.Background(), "o/r")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "docker.md", files[0].Name)
}

func TestGetMicroagentsMissingDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	files, err := c.GetMicroagents(context.Background(), "o/r")
	require.NoError(t, err, "约定目录不存在视为无微代理")
	assert.Empty(t, files)
}

func TestGetMicroagentContentDecodesBase64(t *testing.T) {
	raw := "---\ntriggers:\n  - deploy\n---\n# 部署须知\n"
	encoded := base64.StdEncoding.EncodeToString([]byte(raw))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"name":     "deploy.md",
			"path":     ".openhands/microagents/deploy.md",
			"type":     "file",
			"content":  encoded,
			"encoding": "base64",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	content, err := c.GetMicroagentContent(context.Background(), "o/r", ".openhands/microagents/deploy.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy"}, content.Triggers)
	assert.Contains(t, content.Content, "# 部署须知")
}

func TestIsPROpen(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/repos/o/r/pulls/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number": 1, "state": "open"}`)
	})
	mux.HandleFunc("/api/v1/repos/o/r/pulls/2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number": 2, "state": "closed"}`)
	})
	mux.HandleFunc("/api/v1/repos/o/r/pulls/3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, model.ProviderGitea, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	assert.True(t, c.IsPROpen(context.Background(), "o/r", 1))
	assert.False(t, c.IsPROpen(context.Background(), "o/r", 2))
	assert.True(t, c.IsPROpen(context.Background(), "o/r", 3), "无法判定时保守视为开放")
}
