/*
 * @Description: 组织目录服务，提供组织名称查询与存储目录名生成
 * @Author: 安知鱼
 * @Date: 2026-09-10 15:33:08
 * @LastEditTime: 2026-09-24 10:12:57
 * @LastEditors: 安知鱼
 */
package workplace

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/repository"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 10 * time.Minute
	maxFolderRunes   = 64
)

// Service 组织目录
type Service interface {
	// Name 返回组织名称，不存在时返回 constant.ErrNotFound
	Name(ctx context.Context, workplaceID string) (string, error)
	// FolderName 返回适合作为存储目录的名称，查询失败时退回原始 ID
	FolderName(ctx context.Context, workplaceID string) string
}

type serviceImpl struct {
	repo  repository.WorkplaceRepository
	cache *expirable.LRU[string, string]
}

// NewService 创建带缓存的组织目录服务
func NewService(repo repository.WorkplaceRepository) Service {
	return NewServiceWithCache(repo, defaultCacheSize, defaultCacheTTL)
}

func NewServiceWithCache(repo repository.WorkplaceRepository, size int, ttl time.Duration) Service {
	return &serviceImpl{
		repo:  repo,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (s *serviceImpl) Name(ctx context.Context, workplaceID string) (string, error) {
	if name, ok := s.cache.Get(workplaceID); ok {
		return name, nil
	}
	name, err := s.repo.FindNameByID(ctx, workplaceID)
	if err != nil {
		return "", err
	}
	s.cache.Add(workplaceID, name)
	return name, nil
}

func (s *serviceImpl) FolderName(ctx context.Context, workplaceID string) string {
	fallback := SanitizeFolder(workplaceID)
	if fallback == "" {
		fallback = constant.DefaultSharedFolder
	}
	name, err := s.Name(ctx, workplaceID)
	if err != nil {
		if !errors.Is(err, constant.ErrNotFound) {
			log.Warn().Err(err).Str("workplace_id", workplaceID).Msg("查询组织名称失败，使用组织ID作为目录名")
		}
		return fallback
	}
	if folder := SanitizeFolder(name); folder != "" {
		return folder
	}
	return fallback
}

// SanitizeFolder 只保留字母、数字、'-' 和 '_'，空白替换为 '_'
func SanitizeFolder(name string) string {
	var b strings.Builder
	count := 0
	lastUnderscore := false
	for _, r := range strings.TrimSpace(name) {
		if count >= maxFolderRunes {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || unicode.IsSpace(r):
			if lastUnderscore {
				continue
			}
			b.WriteRune('_')
			lastUnderscore = true
		default:
			continue
		}
		count++
	}
	return strings.Trim(b.String(), "_")
}
