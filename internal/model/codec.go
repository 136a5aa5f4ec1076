package model

import (
	"encoding/json"
)

// 存储编码专用结构。字段使用裸string承载明文，
// 仅在存储路径（落库前整体加密）使用，绝不进入HTTP响应
type providerTokenJSON struct {
	Token  string `json:"token,omitempty"`
	Host   string `json:"host,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

type customSecretJSON struct {
	Secret      string `json:"secret"`
	Description string `json:"description,omitempty"`
}

type integrationJSON struct {
	ID           string `json:"id"`
	ProviderType string `json:"provider_type"`
	Name         string `json:"name"`
	Host         string `json:"host,omitempty"`
	Token        string `json:"token,omitempty"`
	UserID       string `json:"user_id,omitempty"`
}

type secretSetJSON struct {
	ProviderTokens map[string]providerTokenJSON `json:"provider_tokens,omitempty"`
	CustomSecrets  map[string]customSecretJSON  `json:"custom_secrets,omitempty"`
	Integrations   []integrationJSON            `json:"integrations,omitempty"`
}

// EncodeSecretSet 存储模式序列化（含明文密钥），输出交由存储层加密落盘
func EncodeSecretSet(s *SecretSet) ([]byte, error) {
	doc := secretSetJSON{
		ProviderTokens: make(map[string]providerTokenJSON, len(s.providerTokens)),
		CustomSecrets:  make(map[string]customSecretJSON, len(s.customSecrets)),
		Integrations:   make([]integrationJSON, 0, len(s.integrations)),
	}

	for pt, token := range s.providerTokens {
		if token.Token.IsEmpty() {
			continue
		}
		doc.ProviderTokens[string(pt)] = providerTokenJSON{
			Token:  token.Token.Value(),
			Host:   token.Host,
			UserID: token.UserID,
		}
	}
	for name, cs := range s.customSecrets {
		doc.CustomSecrets[name] = customSecretJSON{
			Secret:      cs.Secret.Value(),
			Description: cs.Description,
		}
	}
	for _, it := range s.integrations {
		doc.Integrations = append(doc.Integrations, integrationJSON{
			ID:           it.ID,
			ProviderType: string(it.ProviderType),
			Name:         it.Name,
			Host:         it.Host,
			Token:        it.Token.Value(),
			UserID:       it.UserID,
		})
	}

	return json.Marshal(doc)
}

// DecodeSecretSet 存储模式反序列化。非法平台类型的条目跳过不报错；
// 旧版Token映射到集成列表的单向迁移在此一次性执行（版本化加载步骤），
// 不散落到各调用点
func DecodeSecretSet(data []byte) (*SecretSet, error) {
	var doc secretSetJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	tokens := make(map[ProviderType]ProviderToken, len(doc.ProviderTokens))
	for key, v := range doc.ProviderTokens {
		pt, err := ParseProviderType(key)
		if err != nil {
			continue
		}
		tokens[pt] = ProviderToken{
			Token:  SecretString(v.Token),
			Host:   v.Host,
			UserID: v.UserID,
		}
	}

	secrets := make(map[string]CustomSecret, len(doc.CustomSecrets))
	for name, v := range doc.CustomSecrets {
		secrets[name] = CustomSecret{
			Secret:      SecretString(v.Secret),
			Description: v.Description,
		}
	}

	integrations := make([]Integration, 0, len(doc.Integrations))
	for _, v := range doc.Integrations {
		pt, err := ParseProviderType(v.ProviderType)
		if err != nil {
			continue
		}
		integrations = append(integrations, Integration{
			ID:           v.ID,
			ProviderType: pt,
			Name:         v.Name,
			Host:         v.Host,
			Token:        SecretString(v.Token),
			UserID:       v.UserID,
		})
	}

	integrations = migrateLegacyTokens(tokens, integrations)

	return &SecretSet{
		providerTokens: tokens,
		customSecrets:  secrets,
		integrations:   integrations,
	}, nil
}

// migrateLegacyTokens 旧版Token映射到集成列表的单向迁移。
// 集成列表已非空时整体跳过，保证幂等：迁移过一次后守卫条件不再成立。
// 迁移不反向派生，旧版映射保留原值以便过渡期共存
func migrateLegacyTokens(tokens map[ProviderType]ProviderToken, integrations []Integration) []Integration {
	if len(integrations) > 0 || len(tokens) == 0 {
		return integrations
	}

	migrated := make([]Integration, 0, len(tokens))
	for _, pt := range []ProviderType{ProviderGitHub, ProviderGitLab, ProviderGitea, ProviderForgejo, ProviderEnterpriseSSO} {
		token, ok := tokens[pt]
		if !ok {
			continue
		}
		migrated = append(migrated, Integration{
			ID:           string(pt),
			ProviderType: pt,
			Name:         string(pt),
			Host:         token.Host,
			Token:        token.Token,
			UserID:       token.UserID,
		})
	}
	return migrated
}
