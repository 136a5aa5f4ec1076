package model

import (
	"time"

	"gorm.io/datatypes"
)

const UserSecretsTableName = "user_secrets"

// UserSecretsRecord 用户凭据聚合的落库记录（敏感字段加密存储）
//
// 说明：
// - encrypted_data: AES-GCM(base64) 密文，内容为 SecretSet 的存储模式JSON（nonce 已包含在密文中）
// - meta_json: 非敏感摘要（平台列表、集成数量，用于运维排查）
type UserSecretsRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"size:190;not null;uniqueIndex" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	EncryptedData string         `gorm:"column:encrypted_data;type:longtext;not null" json:"-"`
	MetaJSON      datatypes.JSON `gorm:"column:meta_json;type:json" json:"meta_json,omitempty"`
}

func (UserSecretsRecord) TableName() string {
	return UserSecretsTableName
}
