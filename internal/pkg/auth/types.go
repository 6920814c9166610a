/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2026-09-12 18:38:27
 * @LastEditTime: 2026-09-12 18:38:34
 * @LastEditors: 安知鱼
 */
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
)

// ClaimsKey 是用于在 gin.Context 中存储和检索调用方身份的键。
const ClaimsKey = "user_claims"

// Issuer 令牌签发方
const Issuer = "anheyu-hr"

// CustomClaims 定义了 JWT 的自定义 Claims 结构体，令牌由 HR 门户签发
type CustomClaims struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Role        string `json:"role"`
	WorkplaceID string `json:"workplace_id"`
	jwt.RegisteredClaims
}

// Identity 转换为文件分发子系统使用的身份
func (c *CustomClaims) Identity() model.Identity {
	return model.Identity{
		UserID:      c.UserID,
		UserName:    c.UserName,
		Role:        constant.Role(c.Role),
		WorkplaceID: c.WorkplaceID,
	}
}
