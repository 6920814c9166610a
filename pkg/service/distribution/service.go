/*
 * @Description: 文件分发服务：发布、可见性查询、已读确认与引用计数回收
 * @Author: 安知鱼
 * @Date: 2026-09-11 09:12:40
 * @LastEditTime: 2026-09-27 16:20:31
 * @LastEditors: 安知鱼
 */
package distribution

import (
	"context"
	"strings"
	"time"

	"github.com/anzhiyu-c/anheyu-filehub/internal/infra/storage"
	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/event"
	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/metrics"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/config"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/repository"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/service/ratelimit"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/service/workplace"
)

// Service 定义了文件分发子系统的全部业务操作。
// 所有操作都需要已认证的调用方身份，角色不符时返回 constant.ErrForbidden。
type Service interface {
	// Publish 校验、去重并保存一个新文件，返回新建的分发记录
	Publish(ctx context.Context, req *PublishRequest, caller model.Identity) (*model.DistributionRecord, error)
	// ListForPublisher 发布者视角的分页列表
	ListForPublisher(ctx context.Context, caller model.Identity, opts repository.PublisherListOptions) (*PageResult, error)
	// ListForRecipient 组织视角的分页列表，附带全量未读数
	ListForRecipient(ctx context.Context, caller model.Identity, opts RecipientListOptions) (*RecipientPageResult, error)
	// Get 按可见性规则获取单条记录
	Get(ctx context.Context, recordID uint, caller model.Identity) (*model.DistributionRecord, error)
	// Download 打开文件内容；组织成员下载时会同时确认已读
	Download(ctx context.Context, recordID uint, caller model.Identity) (*DownloadResult, error)
	// AcknowledgeRead 为调用方所在组织确认已读，重复调用无副作用
	AcknowledgeRead(ctx context.Context, recordID uint, caller model.Identity) (*model.DistributionRecord, error)
	// DeleteOne 逻辑删除单条记录，最后一个引用消失时回收物理对象
	DeleteOne(ctx context.Context, recordID uint, caller model.Identity) (*model.DistributionRecord, error)
	// DeleteAll 逻辑删除全部有效记录，每个物理对象最多回收一次
	DeleteAll(ctx context.Context, caller model.Identity) (*model.DeleteAllResult, error)
	// Stats 发布者视角的统计
	Stats(ctx context.Context, caller model.Identity) (*model.DistributionStats, error)
}

// ProviderRegistry 按存储类型查找存储提供者，由 storage.Manager 实现
type ProviderRegistry interface {
	Active() (storage.IStorageProvider, error)
	For(t constant.StorageBackendType) (storage.IStorageProvider, error)
}

// Options 上传与下载相关的限制
type Options struct {
	MaxUploadSize    int64
	AllowedMimeTypes []string
	// DownloadBytesPerSecond 为 0 表示下载不限速
	DownloadBytesPerSecond int64
}

// OptionsFromConfig 从配置读取限制，未配置的项使用默认值
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		MaxUploadSize:          cfg.GetInt64(config.KeyMaxUploadSize),
		AllowedMimeTypes:       cfg.GetStringSlice(config.KeyAllowedMimeTypes),
		DownloadBytesPerSecond: cfg.GetInt64(config.KeyDownloadBytesPerSecond),
	}
	return opts.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.MaxUploadSize <= 0 {
		o.MaxUploadSize = constant.DefaultMaxUploadSize
	}
	if len(o.AllowedMimeTypes) == 0 {
		o.AllowedMimeTypes = constant.DefaultAllowedMimeTypes
	}
	normalized := make([]string, 0, len(o.AllowedMimeTypes))
	for _, m := range o.AllowedMimeTypes {
		if m = normalizeMimeType(m); m != "" {
			normalized = append(normalized, m)
		}
	}
	o.AllowedMimeTypes = normalized
	return o
}

// serviceImpl 是 Service 接口的实现。
type serviceImpl struct {
	repo       repository.DistributionRepository
	txManager  repository.TransactionManager
	providers  ProviderRegistry
	limiter    ratelimit.Limiter
	workplaces workplace.Service
	eventBus   *event.EventBus
	metrics    *metrics.FileHubMetrics
	opts       Options
	now        func() time.Time
}

// NewService 是 serviceImpl 的构造函数。eventBus 与 m 可以为 nil。
func NewService(
	repo repository.DistributionRepository,
	txManager repository.TransactionManager,
	providers ProviderRegistry,
	limiter ratelimit.Limiter,
	workplaces workplace.Service,
	eventBus *event.EventBus,
	m *metrics.FileHubMetrics,
	opts Options,
) Service {
	return &serviceImpl{
		repo:       repo,
		txManager:  txManager,
		providers:  providers,
		limiter:    limiter,
		workplaces: workplaces,
		eventBus:   eventBus,
		metrics:    m,
		opts:       opts.withDefaults(),
		now:        time.Now,
	}
}

func (s *serviceImpl) publishEvent(topic event.Topic, payload any) {
	if s.eventBus != nil {
		s.eventBus.Publish(topic, payload)
	}
}

func (s *serviceImpl) countPublish(result string) {
	if s.metrics != nil {
		s.metrics.Publishes.WithLabelValues(result).Inc()
	}
}

func normalizeMimeType(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}
