package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgErrors "gitbridge/pkg/errors"
)

func TestSecretStringMasking(t *testing.T) {
	s := SecretString("ghp_supersecret")

	assert.Equal(t, "**********", s.String())
	assert.Equal(t, "ghp_supersecret", s.Value())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"**********"`, string(data))
	assert.NotContains(t, string(data), "supersecret")

	assert.Equal(t, "", SecretString("").String())
}

func TestMergeProviderTokensOmissionPreservesToken(t *testing.T) {
	set := NewSecretSet(map[ProviderType]ProviderToken{
		ProviderGitHub: {Token: "old-token", Host: "github.com"},
	}, nil, nil)

	// 入参未携带Token: 保留原Token，Host以入参为准
	next := set.MergeProviderTokens(map[ProviderType]ProviderToken{
		ProviderGitHub: {Token: "", Host: "ghe.example.com"},
	})

	token, ok := next.ProviderToken(ProviderGitHub)
	require.True(t, ok)
	assert.Equal(t, "old-token", token.Token.Value())
	assert.Equal(t, "ghe.example.com", token.Host)

	// 原聚合不受影响
	orig, _ := set.ProviderToken(ProviderGitHub)
	assert.Equal(t, "github.com", orig.Host)
}

func TestMergeProviderTokensReplaceAndAdd(t *testing.T) {
	set := NewSecretSet(map[ProviderType]ProviderToken{
		ProviderGitHub: {Token: "old-token"},
	}, nil, nil)

	next := set.MergeProviderTokens(map[ProviderType]ProviderToken{
		ProviderGitHub: {Token: "new-token"},
		ProviderGitLab: {Token: "glpat-x", Host: "gitlab.example.com"},
	})

	gh, _ := next.ProviderToken(ProviderGitHub)
	assert.Equal(t, "new-token", gh.Token.Value())

	gl, ok := next.ProviderToken(ProviderGitLab)
	require.True(t, ok)
	assert.Equal(t, "glpat-x", gl.Token.Value())
}

func TestWithoutProviderTokens(t *testing.T) {
	set := NewSecretSet(map[ProviderType]ProviderToken{
		ProviderGitHub: {Token: "tok"},
	}, map[string]CustomSecret{
		"API_KEY": {Secret: "v"},
	}, []Integration{
		{ID: "gh", ProviderType: ProviderGitHub, Name: "gh", Token: "tok"},
	})

	next := set.WithoutProviderTokens()
	assert.Empty(t, next.ProviderTokens())
	assert.Len(t, next.CustomSecrets(), 1)
	assert.Len(t, next.Integrations(), 1)
}

func TestAddIntegrationGeneratesSlugID(t *testing.T) {
	set := EmptySecretSet()

	next, id, err := set.AddIntegration(Integration{
		ProviderType: ProviderGitHub,
		Name:         "My GitHub!!",
		Token:        "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "my-github", id)

	// 同名再加: 追加 -1
	next2, id2, err := next.AddIntegration(Integration{
		ProviderType: ProviderGitHub,
		Name:         "My GitHub",
		Token:        "tok2",
	})
	require.NoError(t, err)
	assert.Equal(t, "my-github-1", id2)

	// 再来一个: -2
	_, id3, err := next2.AddIntegration(Integration{
		ProviderType: ProviderGitHub,
		Name:         "my github",
		Token:        "tok3",
	})
	require.NoError(t, err)
	assert.Equal(t, "my-github-2", id3)
}

func TestAddIntegrationEmptyNameFallsBackToProviderType(t *testing.T) {
	set := EmptySecretSet()
	_, id, err := set.AddIntegration(Integration{
		ProviderType: ProviderGitea,
		Name:         "!!!",
		Token:        "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "gitea", id)
}

func TestAddIntegrationDuplicateIDRejectedSetUnchanged(t *testing.T) {
	set, _, err := EmptySecretSet().AddIntegration(Integration{
		ID:           "work",
		ProviderType: ProviderGitHub,
		Name:         "work",
		Token:        "tok",
	})
	require.NoError(t, err)

	next, _, err := set.AddIntegration(Integration{
		ID:           "work",
		ProviderType: ProviderGitLab,
		Name:         "other",
		Token:        "tok2",
	})
	require.Error(t, err)
	assert.True(t, pkgErrors.IsDuplicateID(err))
	assert.Nil(t, next)

	// 聚合保持不变
	assert.Len(t, set.Integrations(), 1)
	it, _ := set.FindIntegration("work")
	assert.Equal(t, ProviderGitHub, it.ProviderType)
}

func TestUpdateIntegrationNotFound(t *testing.T) {
	_, err := EmptySecretSet().UpdateIntegration("missing", Integration{Name: "x"})
	require.Error(t, err)
	assert.True(t, pkgErrors.IsNotFound(err))
}

func TestUpdateIntegrationEmptyTokenPreservesStored(t *testing.T) {
	set, _, err := EmptySecretSet().AddIntegration(Integration{
		ID:           "gh",
		ProviderType: ProviderGitHub,
		Name:         "gh",
		Token:        "stored-token",
	})
	require.NoError(t, err)

	next, err := set.UpdateIntegration("gh", Integration{
		ProviderType: ProviderGitHub,
		Name:         "renamed",
		Token:        "",
	})
	require.NoError(t, err)

	it, ok := next.FindIntegration("gh")
	require.True(t, ok)
	assert.Equal(t, "renamed", it.Name)
	assert.Equal(t, "stored-token", it.Token.Value())
}

func TestUpdateIntegrationNewTokenReplaces(t *testing.T) {
	set, _, _ := EmptySecretSet().AddIntegration(Integration{
		ID: "gh", ProviderType: ProviderGitHub, Name: "gh", Token: "old",
	})

	next, err := set.UpdateIntegration("gh", Integration{
		ProviderType: ProviderGitHub,
		Name:         "gh",
		Token:        "new",
	})
	require.NoError(t, err)

	it, _ := next.FindIntegration("gh")
	assert.Equal(t, "new", it.Token.Value())
}

func TestUpdateIntegrationIDCollisionPreflight(t *testing.T) {
	set, _, _ := EmptySecretSet().AddIntegration(Integration{
		ID: "a", ProviderType: ProviderGitHub, Name: "a", Token: "t1",
	})
	set, _, _ = set.AddIntegration(Integration{
		ID: "b", ProviderType: ProviderGitLab, Name: "b", Token: "t2",
	})

	// 改ID撞上既有集成: 预检失败，无任何修改
	next, err := set.UpdateIntegration("a", Integration{
		ID:           "b",
		ProviderType: ProviderGitHub,
		Name:         "a-renamed",
		Token:        "t3",
	})
	require.Error(t, err)
	assert.True(t, pkgErrors.IsDuplicateID(err))
	assert.Nil(t, next)

	it, _ := set.FindIntegration("a")
	assert.Equal(t, "a", it.Name)
	assert.Equal(t, "t1", it.Token.Value())
}

func TestDeleteIntegration(t *testing.T) {
	set, _, _ := EmptySecretSet().AddIntegration(Integration{
		ID: "gh", ProviderType: ProviderGitHub, Name: "gh", Token: "t",
	})

	next, err := set.DeleteIntegration("gh")
	require.NoError(t, err)
	assert.Empty(t, next.Integrations())
	assert.Len(t, set.Integrations(), 1)

	_, err = set.DeleteIntegration("missing")
	require.Error(t, err)
	assert.True(t, pkgErrors.IsNotFound(err))
}

func TestCustomSecretCRUD(t *testing.T) {
	set, err := EmptySecretSet().AddCustomSecret("API_KEY", CustomSecret{
		Secret:      "secret-value",
		Description: "第三方API密钥",
	})
	require.NoError(t, err)

	// 重名冲突
	_, err = set.AddCustomSecret("API_KEY", CustomSecret{Secret: "other"})
	require.Error(t, err)
	assert.True(t, pkgErrors.IsDuplicateID(err))

	// 改名保留密钥值
	renamed, err := set.UpdateCustomSecret("API_KEY", "API_KEY_V2", "新描述")
	require.NoError(t, err)
	secrets := renamed.CustomSecrets()
	require.Contains(t, secrets, "API_KEY_V2")
	assert.NotContains(t, secrets, "API_KEY")
	assert.Equal(t, "secret-value", secrets["API_KEY_V2"].Secret.Value())
	assert.Equal(t, "新描述", secrets["API_KEY_V2"].Description)

	// 删除
	deleted, err := renamed.DeleteCustomSecret("API_KEY_V2")
	require.NoError(t, err)
	assert.Empty(t, deleted.CustomSecrets())

	_, err = renamed.DeleteCustomSecret("missing")
	assert.True(t, pkgErrors.IsNotFound(err))
}

func TestEnvVars(t *testing.T) {
	set, _ := EmptySecretSet().AddCustomSecret("TOKEN_A", CustomSecret{Secret: "va"})
	set, _ = set.AddCustomSecret("TOKEN_B", CustomSecret{Secret: "vb"})

	env := set.EnvVars()
	assert.Equal(t, map[string]string{"TOKEN_A": "va", "TOKEN_B": "vb"}, env)
}

func TestAccessorsReturnCopies(t *testing.T) {
	set := NewSecretSet(map[ProviderType]ProviderToken{
		ProviderGitHub: {Token: "t"},
	}, nil, []Integration{{ID: "gh", ProviderType: ProviderGitHub, Name: "gh"}})

	tokens := set.ProviderTokens()
	tokens[ProviderGitLab] = ProviderToken{Token: "injected"}
	_, ok := set.ProviderToken(ProviderGitLab)
	assert.False(t, ok, "外部修改副本不应影响聚合")

	integrations := set.Integrations()
	integrations[0].Name = "mutated"
	it, _ := set.FindIntegration("gh")
	assert.Equal(t, "gh", it.Name)
}
