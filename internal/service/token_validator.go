package service

import (
	"context"
	"fmt"

	"gitbridge/internal/model"
	"gitbridge/internal/pkg/git"
	"gitbridge/internal/pkg/git/api"
	pkgErrors "gitbridge/pkg/errors"
)

// TokenValidator 凭据校验器。Validate校验Token对声称的平台是否有效；
// Detect在平台未知时按固定顺序探测归属
type TokenValidator interface {
	Validate(ctx context.Context, provider model.ProviderType, token, host string) error
	Detect(ctx context.Context, token, host string) (model.ProviderType, error)
}

// detectOrder 平台探测顺序，先命中先得
var detectOrder = []model.ProviderType{
	model.ProviderGitHub,
	model.ProviderGitLab,
	model.ProviderGitea,
}

type tokenValidator struct {
	ssoHost string
}

// NewTokenValidator 创建凭据校验器。ssoHost供enterprise_sso平台校验使用
func NewTokenValidator(ssoHost string) TokenValidator {
	return &tokenValidator{ssoHost: ssoHost}
}

func (v *tokenValidator) Validate(ctx context.Context, provider model.ProviderType, token, host string) error {
	if provider == model.ProviderEnterpriseSSO && host == "" {
		host = v.ssoHost
	}

	svc, err := git.NewService(provider, &api.ProviderConfig{
		Host:  host,
		Token: token,
	})
	if err != nil {
		return err
	}

	if err := svc.VerifyAccess(ctx); err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeAuthError,
			fmt.Sprintf("无效的 Token，请确认是有效的 %s Token", provider), err)
	}
	return nil
}

func (v *tokenValidator) Detect(ctx context.Context, token, host string) (model.ProviderType, error) {
	for _, provider := range detectOrder {
		svc, err := git.NewService(provider, &api.ProviderConfig{
			Host:  host,
			Token: token,
		})
		if err != nil {
			continue
		}
		if err := svc.VerifyAccess(ctx); err == nil {
			return provider, nil
		}
	}
	return "", pkgErrors.NewAuthentication("无法识别 Token 所属的平台")
}
