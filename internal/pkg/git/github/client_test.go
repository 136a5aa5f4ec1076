package github

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

// newTestClient 指向本地服务的客户端（企业地址模式，API前缀 /api/v3）
func newTestClient(t *testing.T, srv *httptest.Server, cfg *api.ProviderConfig) *Client {
	t.Helper()
	cfg.Host = srv.URL
	svc, err := NewGitHub(cfg)
	require.NoError(t, err)
	return svc.(*Client)
}

func TestGetUser(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"id": 7, "login": "alice", "name": "Alice", "email": "alice@example.com"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, &api.ProviderConfig{Token: "ghp_x"})

	user, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer ghp_x", gotAuth)
	assert.Equal(t, "7", user.ID)
	assert.Equal(t, "alice", user.Login)
	assert.Equal(t, model.ProviderGitHub, c.ProviderType())
}

func TestUnauthorizedRetriesExactlyOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "Bad credentials"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &api.ProviderConfig{
		Token:       "expired",
		TokenSource: api.StaticTokenSource("also-bad"),
	})

	err := c.VerifyAccess(context.Background())
	require.Error(t, err)
	assert.True(t, pkgErrors.IsAuthentication(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestUnauthorizedStaticTokenDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "Bad credentials"}`)
	}))
	defer srv.Close()

	// 无TokenSource: 没有新Token可取，不重发同一请求
	c := newTestClient(t, srv, &api.ProviderConfig{Token: "expired"})
	err := c.VerifyAccess(context.Background())
	require.Error(t, err)
	assert.True(t, pkgErrors.IsAuthentication(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRefreshedTokenSucceeds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message": "Bad credentials"}`)
			return
		}
		fmt.Fprint(w, `{"id": 7, "login": "alice"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, &api.ProviderConfig{
		Token:       "expired",
		TokenSource: api.StaticTokenSource("fresh"),
	})

	user, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Login)
}

func TestRepositoryNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &api.ProviderConfig{Token: "t"})

	_, err := c.GetRepositoryDetails(context.Background(), "alice/missing")
	require.Error(t, err)
	assert.True(t, pkgErrors.IsRemoteNotFound(err))
}

func TestSplitRepositoryValidation(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newTestClient(t, srv, &api.ProviderConfig{Token: "t"})

	for _, repo := range []string{"", "no-slash", "/repo", "owner/"} {
		_, err := c.GetRepositoryDetails(context.Background(), repo)
		require.Error(t, err, repo)
		assert.Equal(t, pkgErrors.CodeValidation, pkgErrors.Code(err), repo)
	}
}

func TestGetMicroagentsMissingDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &api.ProviderConfig{Token: "t"})

	files, err := c.GetMicroagents(context.Background(), "alice/demo")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestIsPROpen(t *testing.T) {
	state := "open"
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/alice/demo/pulls/3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"number": 3, "state": %q}`, state)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, &api.ProviderConfig{Token: "t"})

	assert.True(t, c.IsPROpen(context.Background(), "alice/demo", 3))

	state = "closed"
	assert.False(t, c.IsPROpen(context.Background(), "alice/demo", 3))

	// 状态不可判定时保守视为开放
	assert.True(t, c.IsPROpen(context.Background(), "alice/demo", 99))
}

func TestEnterpriseSSOProviderType(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	svc, err := NewEnterpriseSSO(&api.ProviderConfig{Host: srv.URL, Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, model.ProviderEnterpriseSSO, svc.ProviderType())

	_, err = NewEnterpriseSSO(&api.ProviderConfig{Token: "t"})
	require.Error(t, err)
	assert.Equal(t, pkgErrors.CodeValidation, pkgErrors.Code(err))
}
