package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// aesKeyLen AES-256要求的密钥字节数
const aesKeyLen = 32

func newGCM(key string) (cipher.AEAD, error) {
	if key == "" {
		return nil, fmt.Errorf("未配置 AES Key")
	}
	keyBytes := []byte(key)
	if len(keyBytes) != aesKeyLen {
		return nil, fmt.Errorf("AES Key 长度必须为%d字节", aesKeyLen)
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptSecret 使用 AES-256-GCM 加密用户凭据聚合，
// 输出base64(nonce || 密文)，nonce每次随机生成
func EncryptSecret(key, plaintext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptSecret 解密用户凭据聚合。密文被篡改时GCM校验失败返回错误
func DecryptSecret(key, ciphertext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("密文长度非法")
	}

	nonce := raw[:gcm.NonceSize()]
	data := raw[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, data, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
