package service

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"gitbridge/internal/dto"
	"gitbridge/internal/model"
	"gitbridge/internal/repository"
	pkgErrors "gitbridge/pkg/errors"
)

// SecretsService 用户凭据聚合的编排服务。
// 所有写操作遵循 加载-合并-落库 循环：读取当前聚合、
// 在纯函数上产生新值、整体写回。并发写为后写覆盖
type SecretsService interface {
	// StoreProviderTokens 合并旧版平台Token（入库前逐个校验Token有效性）
	StoreProviderTokens(ctx context.Context, userID string, req *dto.AddGitProvidersRequest) error
	// UnsetProviderTokens 清空旧版平台Token
	UnsetProviderTokens(ctx context.Context, userID string) error

	// ListIntegrations 列出集成（只含has_token，绝不回传Token）
	ListIntegrations(ctx context.Context, userID string) (*dto.IntegrationListResponse, error)
	// AddIntegration 新增集成，返回最终写入的ID
	AddIntegration(ctx context.Context, userID string, req *dto.IntegrationRequest) (string, error)
	// UpdateIntegration 更新集成
	UpdateIntegration(ctx context.Context, userID, id string, req *dto.IntegrationRequest) error
	// DeleteIntegration 删除集成
	DeleteIntegration(ctx context.Context, userID, id string) error

	// ListCustomSecrets 列出自定义密钥（名称与描述，绝不回传值）
	ListCustomSecrets(ctx context.Context, userID string) (*dto.CustomSecretListResponse, error)
	// AddCustomSecret 新增自定义密钥
	AddCustomSecret(ctx context.Context, userID string, req *dto.CreateCustomSecretRequest) error
	// UpdateCustomSecret 更新自定义密钥（改名/改描述，值不变）
	UpdateCustomSecret(ctx context.Context, userID, name string, req *dto.UpdateCustomSecretRequest) error
	// DeleteCustomSecret 删除自定义密钥
	DeleteCustomSecret(ctx context.Context, userID, name string) error
}

type secretsService struct {
	repo      repository.SecretsRepository
	validator TokenValidator
}

func NewSecretsService(repo repository.SecretsRepository, validator TokenValidator) SecretsService {
	return &secretsService{repo: repo, validator: validator}
}

// load 读取用户聚合，不存在时返回空聚合
func (s *secretsService) load(ctx context.Context, userID string) (*model.SecretSet, error) {
	set, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		set = model.EmptySecretSet()
	}
	return set, nil
}

func (s *secretsService) StoreProviderTokens(ctx context.Context, userID string, req *dto.AddGitProvidersRequest) error {
	incoming := make(map[model.ProviderType]model.ProviderToken, len(req.ProviderTokens))
	for key, v := range req.ProviderTokens {
		pt, err := model.ParseProviderType(key)
		if err != nil {
			return pkgErrors.NewValidation(err.Error())
		}
		incoming[pt] = model.ProviderToken{
			Token:  model.SecretString(v.Token),
			Host:   v.Host,
			UserID: v.UserID,
		}
	}

	set, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	// 携带Token的条目先过有效性校验；Host变更而Token省略时，
	// 用已存Token对新Host复验，防止凭据与不再匹配的实例静默配对
	for pt, token := range incoming {
		if !token.Token.IsEmpty() {
			if err := s.validator.Validate(ctx, pt, token.Token.Value(), token.Host); err != nil {
				return err
			}
		}
		existing, ok := set.ProviderToken(pt)
		if ok && existing.Host != token.Host && !existing.Token.IsEmpty() {
			if err := s.validator.Validate(ctx, pt, existing.Token.Value(), token.Host); err != nil {
				return err
			}
		}
	}

	return s.repo.Store(ctx, userID, set.MergeProviderTokens(incoming))
}

func (s *secretsService) UnsetProviderTokens(ctx context.Context, userID string) error {
	set, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.Store(ctx, userID, set.WithoutProviderTokens())
}

func (s *secretsService) ListIntegrations(ctx context.Context, userID string) (*dto.IntegrationListResponse, error) {
	set, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	integrations := lo.Map(set.Integrations(), func(it model.Integration, _ int) dto.IntegrationResponse {
		return dto.IntegrationResponse{
			ID:           it.ID,
			ProviderType: string(it.ProviderType),
			Name:         it.Name,
			Host:         it.Host,
			UserID:       it.UserID,
			HasToken:     !it.Token.IsEmpty(),
		}
	})
	return &dto.IntegrationListResponse{Integrations: integrations}, nil
}

func toIntegration(req *dto.IntegrationRequest) (model.Integration, error) {
	pt, err := model.ParseProviderType(req.ProviderType)
	if err != nil {
		return model.Integration{}, pkgErrors.NewValidation(err.Error())
	}
	return model.Integration{
		ID:           req.ID,
		ProviderType: pt,
		Name:         req.Name,
		Host:         req.Host,
		Token:        model.SecretString(req.Token),
		UserID:       req.UserID,
	}, nil
}

func (s *secretsService) AddIntegration(ctx context.Context, userID string, req *dto.IntegrationRequest) (string, error) {
	candidate, err := toIntegration(req)
	if err != nil {
		return "", err
	}

	// Token可省略（无Token集成列表中has_token=false）；携带时先校验再入库
	if !candidate.Token.IsEmpty() {
		if err := s.validator.Validate(ctx, candidate.ProviderType, candidate.Token.Value(), candidate.Host); err != nil {
			return "", err
		}
	}

	set, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}

	next, id, err := set.AddIntegration(candidate)
	if err != nil {
		return "", err
	}
	if err := s.repo.Store(ctx, userID, next); err != nil {
		return "", err
	}
	return id, nil
}

func (s *secretsService) UpdateIntegration(ctx context.Context, userID, id string, req *dto.IntegrationRequest) error {
	candidate, err := toIntegration(req)
	if err != nil {
		return err
	}

	// Token省略时保留原值，无需重新校验；携带新Token则校验后替换
	if !candidate.Token.IsEmpty() {
		if err := s.validator.Validate(ctx, candidate.ProviderType, candidate.Token.Value(), candidate.Host); err != nil {
			return err
		}
	}

	set, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	next, err := set.UpdateIntegration(id, candidate)
	if err != nil {
		return err
	}
	return s.repo.Store(ctx, userID, next)
}

func (s *secretsService) DeleteIntegration(ctx context.Context, userID, id string) error {
	set, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	next, err := set.DeleteIntegration(id)
	if err != nil {
		return err
	}
	return s.repo.Store(ctx, userID, next)
}

func (s *secretsService) ListCustomSecrets(ctx context.Context, userID string) (*dto.CustomSecretListResponse, error) {
	set, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	secrets := set.CustomSecrets()
	names := lo.Keys(secrets)
	// map遍历无序，列表输出按名称排序保证稳定
	result := make([]dto.CustomSecretResponse, 0, len(names))
	for _, name := range sortedStrings(names) {
		result = append(result, dto.CustomSecretResponse{
			Name:        name,
			Description: secrets[name].Description,
		})
	}
	return &dto.CustomSecretListResponse{CustomSecrets: result}, nil
}

func (s *secretsService) AddCustomSecret(ctx context.Context, userID string, req *dto.CreateCustomSecretRequest) error {
	set, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	next, err := set.AddCustomSecret(req.Name, model.CustomSecret{
		Secret:      model.SecretString(req.Value),
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return s.repo.Store(ctx, userID, next)
}

func (s *secretsService) UpdateCustomSecret(ctx context.Context, userID, name string, req *dto.UpdateCustomSecretRequest) error {
	set, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	next, err := set.UpdateCustomSecret(name, req.Name, req.Description)
	if err != nil {
		return err
	}
	return s.repo.Store(ctx, userID, next)
}

func (s *secretsService) DeleteCustomSecret(ctx context.Context, userID, name string) error {
	set, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	next, err := set.DeleteCustomSecret(name)
	if err != nil {
		return err
	}
	return s.repo.Store(ctx, userID, next)
}

func sortedStrings(in []string) []string {
	sort.Strings(in)
	return in
}
