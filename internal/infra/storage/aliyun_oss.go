/*
 * @Description: 阿里云 OSS 存储提供者实现
 * @Author: 安知鱼
 * @Date: 2026-09-08 10:12:31
 * @LastEditTime: 2026-09-23 18:41:02
 * @LastEditors: 安知鱼
 */
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// AliyunOSSProvider 实现了 IStorageProvider，FileID 即对象键
type AliyunOSSProvider struct {
	bucket   *oss.Bucket
	basePath string
}

// NewAliyunOSSProvider 创建 OSS 客户端，Endpoint 形如 https://oss-cn-hangzhou.aliyuncs.com
func NewAliyunOSSProvider(opts Options) (*AliyunOSSProvider, error) {
	if opts.Bucket == "" || opts.Endpoint == "" {
		return nil, fmt.Errorf("阿里云OSS配置缺少存储桶名称或Endpoint")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("阿里云OSS配置缺少 AccessKey 或 SecretKey")
	}

	client, err := oss.New(opts.Endpoint, opts.AccessKey, opts.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("创建阿里云OSS客户端失败: %w", err)
	}
	bucket, err := client.Bucket(opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("获取阿里云OSS存储桶失败: %w", err)
	}

	log.Info().Str("bucket", opts.Bucket).Str("endpoint", opts.Endpoint).Msg("[阿里云OSS] 客户端已创建")
	return &AliyunOSSProvider{bucket: bucket, basePath: opts.BasePath}, nil
}

func (p *AliyunOSSProvider) Type() constant.StorageBackendType {
	return constant.StorageTypeAliOSS
}

func (p *AliyunOSSProvider) Put(ctx context.Context, r io.Reader, name string, opts PutOptions) (*PutResult, error) {
	key, err := buildObjectKey(p.basePath, opts.FolderPath, name)
	if err != nil {
		return nil, err
	}
	counter := &countingReader{r: r}
	options := []oss.Option{oss.WithContext(ctx)}
	if opts.MimeType != "" {
		options = append(options, oss.ContentType(opts.MimeType))
	}
	if err := p.bucket.PutObject(key, counter, options...); err != nil {
		return nil, fmt.Errorf("上传文件到阿里云OSS失败: %w", err)
	}
	return &PutResult{FileID: key, Path: key, Size: counter.n}, nil
}

func (p *AliyunOSSProvider) Open(ctx context.Context, fileID string) (io.ReadCloser, *ObjectInfo, error) {
	if err := validateKey(fileID); err != nil {
		return nil, nil, err
	}
	var header http.Header
	body, err := p.bucket.GetObject(fileID, oss.WithContext(ctx), oss.GetResponseHeader(&header))
	if err != nil {
		var svcErr oss.ServiceError
		if errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusNotFound {
			return nil, nil, fmt.Errorf("%w: %s", ErrObjectNotFound, fileID)
		}
		return nil, nil, fmt.Errorf("从阿里云OSS获取文件失败: %w", err)
	}
	info := &ObjectInfo{Filename: path.Base(fileID)}
	if header != nil {
		info.MimeType = header.Get("Content-Type")
		info.Size, _ = strconv.ParseInt(header.Get("Content-Length"), 10, 64)
	}
	return body, info, nil
}

func (p *AliyunOSSProvider) Remove(ctx context.Context, fileID string) error {
	if err := validateKey(fileID); err != nil {
		return err
	}
	if err := p.bucket.DeleteObject(fileID, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("从阿里云OSS删除文件失败: %w", err)
	}
	return nil
}

// countingReader 记录实际读取的字节数
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}
