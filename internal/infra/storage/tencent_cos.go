/*
 * @Description: 腾讯云COS存储提供者实现
 * @Author: 安知鱼
 * @Date: 2026-09-08 12:00:00
 * @LastEditTime: 2026-09-23 18:52:10
 * @LastEditors: 安知鱼
 */
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tencentyun/cos-go-sdk-v5"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// TencentCOSProvider 实现了 IStorageProvider，FileID 即对象键
type TencentCOSProvider struct {
	client   *cos.Client
	basePath string
}

// NewTencentCOSProvider 创建COS客户端。
// Endpoint 为存储桶访问域名，例如 https://examplebucket-1250000000.cos.ap-guangzhou.myqcloud.com
func NewTencentCOSProvider(opts Options) (*TencentCOSProvider, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("腾讯云COS配置缺少访问域名")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("腾讯云COS配置缺少 SecretID 或 SecretKey")
	}
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("解析存储桶URL失败: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Timeout: 100 * time.Second,
		Transport: &cos.AuthorizationTransport{
			SecretID:  opts.AccessKey,
			SecretKey: opts.SecretKey,
		},
	})

	log.Info().Str("endpoint", opts.Endpoint).Msg("[腾讯云COS] 客户端已创建")
	return &TencentCOSProvider{client: client, basePath: opts.BasePath}, nil
}

func (p *TencentCOSProvider) Type() constant.StorageBackendType {
	return constant.StorageTypeTencentCOS
}

func (p *TencentCOSProvider) Put(ctx context.Context, r io.Reader, name string, opts PutOptions) (*PutResult, error) {
	key, err := buildObjectKey(p.basePath, opts.FolderPath, name)
	if err != nil {
		return nil, err
	}
	counter := &countingReader{r: r}
	var putOpts *cos.ObjectPutOptions
	if opts.MimeType != "" {
		putOpts = &cos.ObjectPutOptions{
			ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: opts.MimeType},
		}
	}
	if _, err := p.client.Object.Put(ctx, key, counter, putOpts); err != nil {
		return nil, fmt.Errorf("上传文件到腾讯云COS失败: %w", err)
	}
	return &PutResult{FileID: key, Path: key, Size: counter.n}, nil
}

func (p *TencentCOSProvider) Open(ctx context.Context, fileID string) (io.ReadCloser, *ObjectInfo, error) {
	if err := validateKey(fileID); err != nil {
		return nil, nil, err
	}
	resp, err := p.client.Object.Get(ctx, fileID, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrObjectNotFound, fileID)
		}
		return nil, nil, fmt.Errorf("从腾讯云COS获取文件失败: %w", err)
	}
	return resp.Body, &ObjectInfo{
		MimeType: resp.Header.Get("Content-Type"),
		Filename: path.Base(fileID),
		Size:     resp.ContentLength,
	}, nil
}

func (p *TencentCOSProvider) Remove(ctx context.Context, fileID string) error {
	if err := validateKey(fileID); err != nil {
		return err
	}
	if _, err := p.client.Object.Delete(ctx, fileID); err != nil && !cos.IsNotFoundError(err) {
		return fmt.Errorf("删除腾讯云COS对象 %s 失败: %w", fileID, err)
	}
	return nil
}
