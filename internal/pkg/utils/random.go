/*
 * @Description: 随机字符串
 * @Author: 安知鱼
 * @Date: 2026-09-18 12:25:50
 * @LastEditTime: 2026-09-18 12:25:56
 * @LastEditors: 安知鱼
 */
package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateRandomString 生成指定长度的 URL 安全随机字符串，用于本地生成的密钥
func GenerateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("无效的长度: %d", length)
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:length], nil
}
