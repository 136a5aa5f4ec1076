package gitlab

import (
	"context"
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

func newTestClient(t *testing.T, cfg *api.ProviderConfig) *Client {
	t.Helper()
	svc, err := New(cfg)
	require.NoError(t, err)
	return svc.(*Client)
}

func TestResolveBaseURL(t *testing.T) {
	assert.Equal(t, "https://gitlab.com/api/v4", resolveBaseURL("gitlab.com"))
	assert.Equal(t, "http://localhost:8929/api/v4", resolveBaseURL("http://localhost:8929/"))
}

func TestPrivateTokenHeader(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("PRIVATE-TOKEN")
		fmt.Fprint(w, `{"id": 1, "username": "alice"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, &api.ProviderConfig{Host: srv.URL, Token: "glpat-x"})
	user, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "glpat-x", gotToken)
	assert.Equal(t, "alice", user.Login)
}

func TestGetPaginatedBranchesNativePagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("per_page"))
		w.Header().Set("x-total", "45")
		w.Header().Set("x-next-page", "3")
		fmt.Fprint(w, `[{"name": "feat/a", "commit": {"id": "sha1"}}, {"name": "feat/b", "commit": {"id": "sha2"}}]`)
	}))
	defer srv.Close()

	c := newTestClient(t, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	page, err := c.GetPaginatedBranches(context.Background(), "group/project", 2, 20)
	require.NoError(t, err)
	assert.Len(t, page.Branches, 2)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, 45, page.TotalCount)
	assert.Equal(t, 2, page.CurrentPage)
}

func TestProjectIDEncoding(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		fmt.Fprint(w, `{"id": 9, "path_with_namespace": "group/project"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	repo, err := c.GetRepositoryDetails(context.Background(), "group/project")
	require.NoError(t, err)
	assert.Equal(t, "/api/v4/projects/group%2Fproject", gotPath)
	assert.Equal(t, "group/project", repo.FullName)
	assert.Equal(t, model.ProviderGitLab, repo.GitProvider)
}

func TestUnauthorizedRetriesOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, &api.ProviderConfig{
		Host:        srv.URL,
		Token:       "expired",
		TokenSource: api.StaticTokenSource("also-bad"),
	})

	_, err := c.GetUser(context.Background())
	require.Error(t, err)
	assert.True(t, pkgErrors.IsAuthentication(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestUnauthorizedStaticTokenDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	// 无TokenSource: 没有新Token可取，不重发同一请求
	c := newTestClient(t, &api.ProviderConfig{Host: srv.URL, Token: "expired"})
	_, err := c.GetUser(context.Background())
	require.Error(t, err)
	assert.True(t, pkgErrors.IsAuthentication(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNotFoundTranslation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, &api.ProviderConfig{Host: srv.URL, Token: "t"})

	_, err := c.GetRepositoryDetails(context.Background(), "group/missing")
	require.Error(t, err)
	assert.True(t, pkgErrors.IsRemoteNotFound(err))
}
