package repository

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitbridge/internal/model"
	pkgErrors "gitbridge/pkg/errors"
	"gitbridge/pkg/utils"
)

// SecretsRepository 用户凭据聚合的持久化接口。
// 并发写采用后写覆盖（按 user_id 整条记录Upsert）
type SecretsRepository interface {
	// Load 加载用户凭据聚合，记录不存在时返回 (nil, nil)
	Load(ctx context.Context, userID string) (*model.SecretSet, error)
	// Store 整体持久化用户凭据聚合
	Store(ctx context.Context, userID string, set *model.SecretSet) error
	// Delete 删除用户凭据记录
	Delete(ctx context.Context, userID string) error
	// ListUserIDs 列出所有存有凭据的用户（定期巡检用）
	ListUserIDs(ctx context.Context) ([]string, error)
}

type secretsRepository struct {
	db     *gorm.DB
	aesKey string
}

func NewSecretsRepository(db *gorm.DB, aesKey string) SecretsRepository {
	return &secretsRepository{db: db, aesKey: aesKey}
}

// recordMeta 落库的非敏感摘要，便于运维排查（不含任何明文凭据）
type recordMeta struct {
	Providers        []string `json:"providers"`
	IntegrationCount int      `json:"integration_count"`
	CustomSecretKeys []string `json:"custom_secret_keys"`
}

func (r *secretsRepository) Load(ctx context.Context, userID string) (*model.SecretSet, error) {
	var record model.UserSecretsRecord
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询用户凭据失败", err)
	}

	plaintext, err := utils.DecryptSecret(r.aesKey, record.EncryptedData)
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeInternalError, "解密用户凭据失败", err)
	}

	set, err := model.DecodeSecretSet([]byte(plaintext))
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeInternalError, "解析用户凭据失败", err)
	}
	return set, nil
}

func (r *secretsRepository) Store(ctx context.Context, userID string, set *model.SecretSet) error {
	data, err := model.EncodeSecretSet(set)
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeInternalError, "编码用户凭据失败", err)
	}

	encrypted, err := utils.EncryptSecret(r.aesKey, string(data))
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeInternalError, "加密用户凭据失败", err)
	}

	meta := buildMeta(set)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeInternalError, "编码凭据摘要失败", err)
	}

	record := model.UserSecretsRecord{
		UserID:        userID,
		EncryptedData: encrypted,
		MetaJSON:      datatypes.JSON(metaJSON),
	}

	// 按user_id整条Upsert，后写覆盖
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_data", "meta_json", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "保存用户凭据失败", err)
	}
	return nil
}

func (r *secretsRepository) Delete(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Delete(&model.UserSecretsRecord{}).Error; err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "删除用户凭据失败", err)
	}
	return nil
}

func (r *secretsRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	var userIDs []string
	if err := r.db.WithContext(ctx).Model(&model.UserSecretsRecord{}).
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询用户列表失败", err)
	}
	return userIDs, nil
}

func buildMeta(set *model.SecretSet) *recordMeta {
	meta := &recordMeta{
		Providers:        []string{},
		CustomSecretKeys: []string{},
	}
	for pt := range set.ProviderTokens() {
		meta.Providers = append(meta.Providers, string(pt))
	}
	for name := range set.CustomSecrets() {
		meta.CustomSecretKeys = append(meta.CustomSecretKeys, name)
	}
	meta.IntegrationCount = len(set.Integrations())
	return meta
}
