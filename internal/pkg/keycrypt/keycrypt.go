// Package keycrypt 对持久化的 API 密钥做固定密钥的 XOR+hex 混淆。
// 注意：这不是加密，只是防止密钥以明文出现在数据库中。
// 与既有存量数据保持位兼容，不要修改混淆密钥。
package keycrypt

import (
	"encoding/hex"
)

// 固定混淆密钥（存量数据兼容，禁止变更）
const obfuscationKey = "bolt-chat-app-2025-fixed-key-32"

// Encode 混淆明文密钥，输出 hex 字符串
func Encode(plain string) string {
	if plain == "" {
		return ""
	}

	key := []byte(obfuscationKey)
	src := []byte(plain)
	out := make([]byte, len(src))
	for i, b := range src {
		out[i] = b ^ key[i%len(key)]
	}
	return hex.EncodeToString(out)
}

// Decode 还原混淆后的密钥
// 输入不是合法 hex 时原样返回，兼容历史上未混淆的记录
func Decode(encoded string) string {
	if encoded == "" {
		return ""
	}

	src, err := hex.DecodeString(encoded)
	if err != nil {
		return encoded
	}

	key := []byte(obfuscationKey)
	out := make([]byte, len(src))
	for i, b := range src {
		out[i] = b ^ key[i%len(key)]
	}
	return string(out)
}
