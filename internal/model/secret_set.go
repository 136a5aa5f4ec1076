package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	pkgErrors "gitbridge/pkg/errors"
)

// SecretSet 单个用户的凭据聚合：旧版平台Token映射、自定义密钥、集成列表。
// 逻辑上不可变：所有修改操作返回新值，内部字段对外只暴露副本，
// 调用方持有的map/slice与聚合内部永不共享底层存储
type SecretSet struct {
	providerTokens map[ProviderType]ProviderToken
	customSecrets  map[string]CustomSecret
	integrations   []Integration
}

// NewSecretSet 创建凭据聚合，所有入参均做防御性拷贝
func NewSecretSet(tokens map[ProviderType]ProviderToken, secrets map[string]CustomSecret, integrations []Integration) *SecretSet {
	return &SecretSet{
		providerTokens: copyTokens(tokens),
		customSecrets:  copySecrets(secrets),
		integrations:   copyIntegrations(integrations),
	}
}

// EmptySecretSet 创建空聚合（用户首次访问时）
func EmptySecretSet() *SecretSet {
	return NewSecretSet(nil, nil, nil)
}

func copyTokens(in map[ProviderType]ProviderToken) map[ProviderType]ProviderToken {
	out := make(map[ProviderType]ProviderToken, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copySecrets(in map[string]CustomSecret) map[string]CustomSecret {
	out := make(map[string]CustomSecret, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyIntegrations(in []Integration) []Integration {
	out := make([]Integration, len(in))
	copy(out, in)
	return out
}

// ProviderTokens 返回旧版Token映射的副本
func (s *SecretSet) ProviderTokens() map[ProviderType]ProviderToken {
	return copyTokens(s.providerTokens)
}

// ProviderToken 按平台类型查找旧版Token
func (s *SecretSet) ProviderToken(pt ProviderType) (ProviderToken, bool) {
	t, ok := s.providerTokens[pt]
	return t, ok
}

// CustomSecrets 返回自定义密钥映射的副本
func (s *SecretSet) CustomSecrets() map[string]CustomSecret {
	return copySecrets(s.customSecrets)
}

// Integrations 返回集成列表的副本（保持存储顺序）
func (s *SecretSet) Integrations() []Integration {
	return copyIntegrations(s.integrations)
}

// FindIntegration 按ID查找集成
func (s *SecretSet) FindIntegration(id string) (Integration, bool) {
	for _, it := range s.integrations {
		if it.ID == id {
			return it, true
		}
	}
	return Integration{}, false
}

// FindIntegrationByProvider 按平台类型查找第一个集成。
// 迁移完成后读路径以集成列表为准，旧版Token映射仅作回退
func (s *SecretSet) FindIntegrationByProvider(pt ProviderType) (Integration, bool) {
	for _, it := range s.integrations {
		if it.ProviderType == pt {
			return it, true
		}
	}
	return Integration{}, false
}

// EnvVars 导出自定义密钥为环境变量映射（注入运行环境用）
func (s *SecretSet) EnvVars() map[string]string {
	out := make(map[string]string, len(s.customSecrets))
	for name, cs := range s.customSecrets {
		out[name] = cs.Secret.Value()
	}
	return out
}

// MergeProviderTokens 合并旧版平台Token。对incoming中的每个平台：
// 入参未携带Token且已有记录时保留原Token（防止省略Token的更新清空凭据），
// Host始终以入参为准；入参携带Token时整体替换
func (s *SecretSet) MergeProviderTokens(incoming map[ProviderType]ProviderToken) *SecretSet {
	merged := copyTokens(s.providerTokens)
	for pt, in := range incoming {
		if in.Token.IsEmpty() {
			if existing, ok := merged[pt]; ok && !existing.Token.IsEmpty() {
				existing.Host = in.Host
				merged[pt] = existing
				continue
			}
		}
		merged[pt] = in
	}
	return &SecretSet{
		providerTokens: merged,
		customSecrets:  s.customSecrets,
		integrations:   s.integrations,
	}
}

// WithoutProviderTokens 清空旧版Token映射，其余字段不变
func (s *SecretSet) WithoutProviderTokens() *SecretSet {
	return &SecretSet{
		providerTokens: map[ProviderType]ProviderToken{},
		customSecrets:  s.customSecrets,
		integrations:   s.integrations,
	}
}

// AddIntegration 新增集成。候选ID为空时按名称生成确定性ID并自动消除冲突；
// 候选ID非空且已存在时返回冲突错误，聚合保持不变。
// 返回值包含最终写入的ID
func (s *SecretSet) AddIntegration(candidate Integration) (*SecretSet, string, error) {
	if candidate.ID == "" {
		candidate.ID = s.generateIntegrationID(candidate)
	} else if _, ok := s.FindIntegration(candidate.ID); ok {
		return nil, "", pkgErrors.NewDuplicateID(candidate.ID)
	}

	next := &SecretSet{
		providerTokens: s.providerTokens,
		customSecrets:  s.customSecrets,
		integrations:   append(copyIntegrations(s.integrations), candidate),
	}
	return next, candidate.ID, nil
}

// UpdateIntegration 更新集成。目标ID不存在返回未找到错误；
// 候选Token为空时保留原Token；候选ID变更且与其它集成冲突时
// 在任何修改发生前返回冲突错误（预检，不产生部分提交）
func (s *SecretSet) UpdateIntegration(id string, candidate Integration) (*SecretSet, error) {
	current, ok := s.FindIntegration(id)
	if !ok {
		return nil, pkgErrors.NewNotFound(fmt.Sprintf("集成 ID %q 不存在", id))
	}

	if candidate.ID == "" {
		candidate.ID = id
	}
	if candidate.ID != id {
		if _, clash := s.FindIntegration(candidate.ID); clash {
			return nil, pkgErrors.NewDuplicateID(candidate.ID)
		}
	}
	if candidate.Token.IsEmpty() {
		candidate.Token = current.Token
	}

	next := lo.Map(s.integrations, func(it Integration, _ int) Integration {
		if it.ID == id {
			return candidate
		}
		return it
	})
	return &SecretSet{
		providerTokens: s.providerTokens,
		customSecrets:  s.customSecrets,
		integrations:   next,
	}, nil
}

// DeleteIntegration 删除集成，目标ID不存在返回未找到错误
func (s *SecretSet) DeleteIntegration(id string) (*SecretSet, error) {
	if _, ok := s.FindIntegration(id); !ok {
		return nil, pkgErrors.NewNotFound(fmt.Sprintf("集成 ID %q 不存在", id))
	}
	next := lo.Filter(s.integrations, func(it Integration, _ int) bool {
		return it.ID != id
	})
	return &SecretSet{
		providerTokens: s.providerTokens,
		customSecrets:  s.customSecrets,
		integrations:   next,
	}, nil
}

// AddCustomSecret 新增自定义密钥，名称重复返回冲突错误
func (s *SecretSet) AddCustomSecret(name string, secret CustomSecret) (*SecretSet, error) {
	if _, ok := s.customSecrets[name]; ok {
		return nil, pkgErrors.New(pkgErrors.CodeConflict, fmt.Sprintf("密钥 %q 已存在", name))
	}
	next := copySecrets(s.customSecrets)
	next[name] = secret
	return &SecretSet{
		providerTokens: s.providerTokens,
		customSecrets:  next,
		integrations:   s.integrations,
	}, nil
}

// UpdateCustomSecret 更新自定义密钥的名称与描述，密钥值保持不变。
// 原名称不存在返回未找到错误；改名与既有密钥冲突返回冲突错误
func (s *SecretSet) UpdateCustomSecret(name, newName, description string) (*SecretSet, error) {
	existing, ok := s.customSecrets[name]
	if !ok {
		return nil, pkgErrors.NewNotFound(fmt.Sprintf("密钥 %q 不存在", name))
	}
	if newName != name {
		if _, clash := s.customSecrets[newName]; clash {
			return nil, pkgErrors.New(pkgErrors.CodeConflict, fmt.Sprintf("密钥 %q 已存在", newName))
		}
	}
	next := copySecrets(s.customSecrets)
	delete(next, name)
	next[newName] = CustomSecret{
		Secret:      existing.Secret,
		Description: description,
	}
	return &SecretSet{
		providerTokens: s.providerTokens,
		customSecrets:  next,
		integrations:   s.integrations,
	}, nil
}

// DeleteCustomSecret 删除自定义密钥，名称不存在返回未找到错误
func (s *SecretSet) DeleteCustomSecret(name string) (*SecretSet, error) {
	if _, ok := s.customSecrets[name]; !ok {
		return nil, pkgErrors.NewNotFound(fmt.Sprintf("密钥 %q 不存在", name))
	}
	next := copySecrets(s.customSecrets)
	delete(next, name)
	return &SecretSet{
		providerTokens: s.providerTokens,
		customSecrets:  next,
		integrations:   s.integrations,
	}, nil
}

var nonAlnumRuns = regexp.MustCompile(`[^a-z0-9]+`)

// generateIntegrationID 根据名称生成确定性ID：小写、非字母数字段替换为单个连字符、
// 去首尾连字符；结果为空回退到平台类型名；与既有ID冲突时追加 -1、-2 …直至唯一
func (s *SecretSet) generateIntegrationID(candidate Integration) string {
	base := strings.Trim(nonAlnumRuns.ReplaceAllString(strings.ToLower(candidate.Name), "-"), "-")
	if base == "" {
		base = string(candidate.ProviderType)
	}

	id := base
	for i := 1; ; i++ {
		if _, ok := s.FindIntegration(id); !ok {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
}
