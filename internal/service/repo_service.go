package service

import (
	"context"
	"fmt"

	"gitbridge/internal/dto"
	"gitbridge/internal/model"
	"gitbridge/internal/pkg/git"
	"gitbridge/internal/pkg/git/api"
	"gitbridge/internal/repository"
	pkgErrors "gitbridge/pkg/errors"
)

// RepoService 仓库读取编排服务：按请求解析用户凭据并绑定平台适配器。
// 适配器逐请求创建，不存在进程级共享的凭据状态
type RepoService interface {
	ListRepositories(ctx context.Context, userID string, q *dto.ListReposQuery) (*dto.RepositoryListResponse, error)
	SearchRepositories(ctx context.Context, userID string, q *dto.SearchReposQuery) (*dto.RepositoryListResponse, error)
	ListBranches(ctx context.Context, userID, repository string, q *dto.ListBranchesQuery) (*api.PaginatedBranches, error)
	SuggestedTasks(ctx context.Context, userID string, q *dto.SuggestedTasksQuery) (*dto.SuggestedTaskListResponse, error)
	ListMicroagents(ctx context.Context, userID, repository, provider string) (*dto.MicroagentListResponse, error)
	MicroagentContent(ctx context.Context, userID, repository string, q *dto.MicroagentContentQuery) (*api.MicroagentContent, error)
}

type repoService struct {
	repo    repository.SecretsRepository
	ssoHost string
}

func NewRepoService(repo repository.SecretsRepository, ssoHost string) RepoService {
	return &repoService{repo: repo, ssoHost: ssoHost}
}

// legacyFallbackOrder 未指定凭据时旧版Token映射的取用顺序
var legacyFallbackOrder = []model.ProviderType{
	model.ProviderGitHub,
	model.ProviderGitLab,
	model.ProviderGitea,
	model.ProviderForgejo,
	model.ProviderEnterpriseSSO,
}

// resolve 按凭据标识绑定平台适配器。
// 标识解析顺序：集成ID → 平台类型（先查集成列表，迁移后以集成为准，
// 旧版Token映射仅作回退）。标识为空时取第一个可用凭据
func (s *repoService) resolve(ctx context.Context, userID, provider string) (api.GitService, error) {
	set, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, pkgErrors.NewNotFound("未配置任何Git凭据")
	}

	if provider != "" {
		// 先按集成ID精确匹配
		if it, ok := set.FindIntegration(provider); ok {
			return s.fromIntegration(it)
		}

		pt, perr := model.ParseProviderType(provider)
		if perr != nil {
			return nil, pkgErrors.NewNotFound(fmt.Sprintf("凭据 %q 不存在", provider))
		}
		if it, ok := set.FindIntegrationByProvider(pt); ok {
			return s.fromIntegration(it)
		}
		if token, ok := set.ProviderToken(pt); ok && !token.Token.IsEmpty() {
			return s.fromLegacy(pt, token)
		}
		return nil, pkgErrors.NewNotFound(fmt.Sprintf("未配置 %s 平台的凭据", pt))
	}

	// 未指定凭据：优先集成列表首条，其次旧版映射按固定顺序
	if integrations := set.Integrations(); len(integrations) > 0 {
		return s.fromIntegration(integrations[0])
	}
	for _, pt := range legacyFallbackOrder {
		if token, ok := set.ProviderToken(pt); ok && !token.Token.IsEmpty() {
			return s.fromLegacy(pt, token)
		}
	}
	return nil, pkgErrors.NewNotFound("未配置任何Git凭据")
}

func (s *repoService) fromIntegration(it model.Integration) (api.GitService, error) {
	host := it.Host
	if it.ProviderType == model.ProviderEnterpriseSSO && host == "" {
		host = s.ssoHost
	}
	return git.NewService(it.ProviderType, &api.ProviderConfig{
		Host:   host,
		Token:  it.Token.Value(),
		UserID: it.UserID,
	})
}

func (s *repoService) fromLegacy(pt model.ProviderType, token model.ProviderToken) (api.GitService, error) {
	host := token.Host
	if pt == model.ProviderEnterpriseSSO && host == "" {
		host = s.ssoHost
	}
	return git.NewService(pt, &api.ProviderConfig{
		Host:   host,
		Token:  token.Token.Value(),
		UserID: token.UserID,
	})
}

func (s *repoService) ListRepositories(ctx context.Context, userID string, q *dto.ListReposQuery) (*dto.RepositoryListResponse, error) {
	svc, err := s.resolve(ctx, userID, q.Provider)
	if err != nil {
		return nil, err
	}

	repos, err := svc.GetPaginatedRepos(ctx, q.Page, q.PerPage, q.Sort)
	if err != nil {
		return nil, err
	}
	return &dto.RepositoryListResponse{Repositories: repos}, nil
}

func (s *repoService) SearchRepositories(ctx context.Context, userID string, q *dto.SearchReposQuery) (*dto.RepositoryListResponse, error) {
	svc, err := s.resolve(ctx, userID, q.Provider)
	if err != nil {
		return nil, err
	}

	repos, err := svc.SearchRepositories(ctx, q.Query, q.PerPage, q.Sort, q.Order, q.Public)
	if err != nil {
		return nil, err
	}
	return &dto.RepositoryListResponse{Repositories: repos}, nil
}

func (s *repoService) ListBranches(ctx context.Context, userID, repository string, q *dto.ListBranchesQuery) (*api.PaginatedBranches, error) {
	svc, err := s.resolve(ctx, userID, q.Provider)
	if err != nil {
		return nil, err
	}

	if q.Search != "" {
		branches, err := svc.SearchBranches(ctx, repository, q.Search, q.PerPage)
		if err != nil {
			return nil, err
		}
		return &api.PaginatedBranches{
			Branches:    branches,
			HasNextPage: false,
			CurrentPage: 1,
			PerPage:     q.PerPage,
			TotalCount:  len(branches),
		}, nil
	}
	return svc.GetPaginatedBranches(ctx, repository, q.Page, q.PerPage)
}

func (s *repoService) SuggestedTasks(ctx context.Context, userID string, q *dto.SuggestedTasksQuery) (*dto.SuggestedTaskListResponse, error) {
	svc, err := s.resolve(ctx, userID, q.Provider)
	if err != nil {
		return nil, err
	}

	tasks, err := svc.GetSuggestedTasks(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.SuggestedTaskListResponse{Tasks: tasks}, nil
}

func (s *repoService) ListMicroagents(ctx context.Context, userID, repository, provider string) (*dto.MicroagentListResponse, error) {
	svc, err := s.resolve(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	files, err := svc.GetMicroagents(ctx, repository)
	if err != nil {
		return nil, err
	}
	return &dto.MicroagentListResponse{Microagents: files}, nil
}

func (s *repoService) MicroagentContent(ctx context.Context, userID, repository string, q *dto.MicroagentContentQuery) (*api.MicroagentContent, error) {
	svc, err := s.resolve(ctx, userID, q.Provider)
	if err != nil {
		return nil, err
	}
	return svc.GetMicroagentContent(ctx, repository, q.Path)
}
