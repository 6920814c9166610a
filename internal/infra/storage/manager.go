/*
 * @Description: 存储提供者注册表，按 storage_type 路由读写
 * @Author: 安知鱼
 * @Date: 2026-09-09 09:41:17
 * @LastEditTime: 2026-09-26 18:44:51
 * @LastEditors: 安知鱼
 */
package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/metrics"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/config"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// Options 云存储后端的连接参数，各后端只使用自己需要的字段
type Options struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	BasePath  string
	// Domain 七牛云下载域名
	Domain string
}

// Manager 管理所有已注册的存储提供者。
// 新上传写入 active 后端，读取和删除按记录上的 storage_type 找回原后端。
type Manager struct {
	mu        sync.RWMutex
	providers map[constant.StorageBackendType]IStorageProvider
	active    constant.StorageBackendType
	metrics   *metrics.FileHubMetrics
}

// NewManager 创建空的注册表，m 为 nil 时不记录指标
func NewManager(m *metrics.FileHubMetrics) *Manager {
	return &Manager{
		providers: make(map[constant.StorageBackendType]IStorageProvider),
		metrics:   m,
	}
}

// Register 注册提供者，同类型重复注册会覆盖。第一个注册的提供者自动成为 active。
func (m *Manager) Register(p IStorageProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metrics != nil {
		p = &instrumentedProvider{inner: p, m: m.metrics}
	}
	m.providers[p.Type()] = p
	if m.active == "" {
		m.active = p.Type()
	}
}

// SetActive 切换新上传使用的后端
func (m *Manager) SetActive(t constant.StorageBackendType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[t]; !ok {
		return fmt.Errorf("%w: %s", constant.ErrStorageNotFound, t)
	}
	m.active = t
	return nil
}

// Active 返回当前用于上传的提供者
func (m *Manager) Active() (IStorageProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[m.active]
	if !ok {
		return nil, fmt.Errorf("%w: 未配置任何存储后端", constant.ErrStorageNotFound)
	}
	return p, nil
}

// For 按类型查找提供者
func (m *Manager) For(t constant.StorageBackendType) (IStorageProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", constant.ErrStorageNotFound, t)
	}
	return p, nil
}

// NewManagerFromConfig 根据配置构建注册表。
// 本地存储总是注册，以便读取切换后端之前写入的对象。
func NewManagerFromConfig(ctx context.Context, cfg *config.Config, m *metrics.FileHubMetrics) (*Manager, error) {
	manager := NewManager(m)

	local, err := NewLocalProvider(cfg.GetString(config.KeyStorageLocalRoot))
	if err != nil {
		return nil, err
	}
	manager.Register(local)

	backend := constant.StorageBackendType(cfg.GetString(config.KeyStorageBackend))
	if backend == "" || backend == constant.StorageTypeLocal {
		return manager, nil
	}
	if !backend.IsValid() {
		return nil, fmt.Errorf("%w: %s", constant.ErrStorageNotFound, backend)
	}

	opts := Options{
		Bucket:    cfg.GetString(config.KeyStorageBucket),
		Endpoint:  cfg.GetString(config.KeyStorageEndpoint),
		Region:    cfg.GetString(config.KeyStorageRegion),
		AccessKey: cfg.GetString(config.KeyStorageAccessKey),
		SecretKey: cfg.GetString(config.KeyStorageSecretKey),
		BasePath:  cfg.GetString(config.KeyStorageBasePath),
		Domain:    cfg.GetString(config.KeyStorageDomain),
	}

	var provider IStorageProvider
	switch backend {
	case constant.StorageTypeS3:
		provider, err = NewAWSS3Provider(ctx, opts)
	case constant.StorageTypeAliOSS:
		provider, err = NewAliyunOSSProvider(opts)
	case constant.StorageTypeTencentCOS:
		provider, err = NewTencentCOSProvider(opts)
	case constant.StorageTypeQiniu:
		provider, err = NewQiniuKodoProvider(opts)
	}
	if err != nil {
		return nil, fmt.Errorf("初始化存储后端 %s 失败: %w", backend, err)
	}
	manager.Register(provider)
	if err := manager.SetActive(backend); err != nil {
		return nil, err
	}
	log.Info().Str("backend", string(backend)).Msg("存储后端已启用")
	return manager, nil
}

// instrumentedProvider 为每次后端调用记录耗时与结果，并把错误包装为 BackendError
type instrumentedProvider struct {
	inner IStorageProvider
	m     *metrics.FileHubMetrics
}

func (p *instrumentedProvider) Type() constant.StorageBackendType {
	return p.inner.Type()
}

func (p *instrumentedProvider) Put(ctx context.Context, r io.Reader, name string, opts PutOptions) (*PutResult, error) {
	start := time.Now()
	res, err := p.inner.Put(ctx, r, name, opts)
	return res, p.observe("put", start, err)
}

func (p *instrumentedProvider) Open(ctx context.Context, fileID string) (io.ReadCloser, *ObjectInfo, error) {
	start := time.Now()
	rc, info, err := p.inner.Open(ctx, fileID)
	return rc, info, p.observe("open", start, err)
}

func (p *instrumentedProvider) Remove(ctx context.Context, fileID string) error {
	start := time.Now()
	return p.observe("remove", start, p.inner.Remove(ctx, fileID))
}

func (p *instrumentedProvider) observe(op string, start time.Time, err error) error {
	backend := string(p.inner.Type())
	p.m.StorageOpSeconds.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.m.StorageOps.WithLabelValues(backend, op, result).Inc()
	if err == nil {
		return nil
	}
	return &constant.BackendError{Backend: backend, Op: op, Err: err}
}
