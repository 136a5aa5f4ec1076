package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"gitbridge/internal/pkg/config"
)

func setupAuthRouter(cfg *config.AuthConfig) (*gin.Engine, *map[string]string) {
	gin.SetMode(gin.TestMode)
	captured := make(map[string]string)

	r := gin.New()
	r.Use(ForwardAuthMiddleware(cfg))
	r.GET("/whoami", func(c *gin.Context) {
		captured["user_id"] = c.GetString(ContextUserID)
		captured["email"] = c.GetString(ContextUserEmail)
		captured["token"] = c.GetString(ContextAccessToken)
		c.Status(http.StatusOK)
	})
	return r, &captured
}

func defaultAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		UserHeaders:  []string{"X-Forwarded-User", "Remote-User", "X-Remote-User", "X-Auth-Request-User"},
		EmailHeaders: []string{"X-Forwarded-Email"},
		TokenHeaders: []string{"X-Forwarded-Access-Token"},
	}
}

func TestForwardAuthMissingIdentity(t *testing.T) {
	r, _ := setupAuthRouter(defaultAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForwardAuthHeaderPrecedence(t *testing.T) {
	r, captured := setupAuthRouter(defaultAuthConfig())

	// 候选头按序取第一个非空值
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Remote-User", "bob")
	req.Header.Set("X-Forwarded-User", "alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", (*captured)["user_id"])
}

func TestForwardAuthFallbackHeader(t *testing.T) {
	r, captured := setupAuthRouter(defaultAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Auth-Request-User", "carol")
	req.Header.Set("X-Forwarded-Email", "carol@example.com")
	req.Header.Set("X-Forwarded-Access-Token", "sso-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "carol", (*captured)["user_id"])
	assert.Equal(t, "carol@example.com", (*captured)["email"])
	assert.Equal(t, "sso-token", (*captured)["token"])
}

func TestForwardAuthCustomHeaders(t *testing.T) {
	cfg := &config.AuthConfig{UserHeaders: []string{"X-Custom-Identity"}}
	r, captured := setupAuthRouter(cfg)

	// 默认候选头不再生效
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Forwarded-User", "alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Custom-Identity", "dave")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dave", (*captured)["user_id"])
}
