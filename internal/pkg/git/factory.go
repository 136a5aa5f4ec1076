package git

import (
	"fmt"

	"gitbridge/internal/model"
	"gitbridge/internal/pkg/git/api"
	"gitbridge/internal/pkg/git/giteafamily"
	"gitbridge/internal/pkg/git/github"
	"gitbridge/internal/pkg/git/gitlab"
	pkgErrors "gitbridge/pkg/errors"
)

// Constructor 适配器构造函数。凭据逐实例通过ProviderConfig传入
type Constructor func(cfg *api.ProviderConfig) (api.GitService, error)

// constructors 平台类型到构造函数的显式映射。
// 新平台在此注册，调度一律查表，不做反射
var constructors = map[model.ProviderType]Constructor{
	model.ProviderGitHub:        github.NewGitHub,
	model.ProviderGitLab:        gitlab.New,
	model.ProviderGitea:         giteafamily.NewGitea,
	model.ProviderForgejo:       giteafamily.NewForgejo,
	model.ProviderEnterpriseSSO: github.NewEnterpriseSSO,
}

// NewService 按平台类型创建适配器
func NewService(provider model.ProviderType, cfg *api.ProviderConfig) (api.GitService, error) {
	ctor, ok := constructors[provider]
	if !ok {
		return nil, pkgErrors.NewValidation(fmt.Sprintf("不支持的平台类型: %s", provider))
	}
	return ctor(cfg)
}

// SupportedProviders 已注册的平台类型列表
func SupportedProviders() []model.ProviderType {
	providers := make([]model.ProviderType, 0, len(constructors))
	for p := range constructors {
		providers = append(providers, p)
	}
	return providers
}
