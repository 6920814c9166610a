/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2026-09-12 00:21:55
 * @LastEditTime: 2026-09-20 18:39:11
 * @LastEditors: 安知鱼
 */
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
)

// GenerateToken 为身份签发访问令牌，正式环境由 HR 门户签发，这里主要用于测试与运维工具
func GenerateToken(id model.Identity, ttl time.Duration, secretKey []byte) (string, error) {
	if len(secretKey) == 0 {
		return "", fmt.Errorf("JWT Secret 不能为空")
	}

	now := time.Now()
	claims := CustomClaims{
		UserID:      id.UserID,
		UserName:    id.UserName,
		Role:        string(id.Role),
		WorkplaceID: id.WorkplaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// ParseToken 解析 JWT Token，并拒绝缺少用户或角色不受支持的令牌
func ParseToken(tokenStr string, secretKey []byte) (*CustomClaims, error) {
	if len(secretKey) == 0 {
		return nil, fmt.Errorf("JWT Secret 不能为空")
	}

	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", constant.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, constant.ErrInvalidToken
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: 缺少 user_id", constant.ErrInvalidToken)
	}
	role := constant.Role(claims.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: 角色 %q 无权访问文件分发", constant.ErrForbidden, claims.Role)
	}
	if role == constant.RoleMember && claims.WorkplaceID == "" {
		return nil, fmt.Errorf("%w: 组织成员令牌缺少 workplace_id", constant.ErrInvalidToken)
	}
	return claims, nil
}
