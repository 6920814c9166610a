/*
 * @Description: 七牛云Kodo存储提供者实现
 * @Author: 安知鱼
 * @Date: 2026-09-08 14:20:00
 * @LastEditTime: 2026-09-23 19:05:44
 * @LastEditors: 安知鱼
 */
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/auth"
	qstorage "github.com/qiniu/go-sdk/v7/storage"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// 七牛云下载链接签名有效期
const qiniuURLExpiry = time.Hour

// QiniuKodoProvider 实现了 IStorageProvider。
// 七牛云没有直接的对象读取接口，Open 通过私有下载链接获取。
type QiniuKodoProvider struct {
	mac        *auth.Credentials
	bucket     string
	domain     string
	basePath   string
	cfg        *qstorage.Config
	httpClient *http.Client
}

// NewQiniuKodoProvider 创建七牛云客户端。
// Region 取值 z0=华东, z1=华北, z2=华南, na0=北美, as0=东南亚，默认华东。
func NewQiniuKodoProvider(opts Options) (*QiniuKodoProvider, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("七牛云配置缺少存储空间名称")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("七牛云配置缺少 AccessKey 或 SecretKey")
	}
	if opts.Domain == "" {
		return nil, fmt.Errorf("七牛云配置缺少下载域名")
	}

	cfg := &qstorage.Config{UseHTTPS: true, UseCdnDomains: false}
	switch strings.ToLower(opts.Region) {
	case "z1":
		cfg.Region = &qstorage.ZoneHuabei
	case "z2":
		cfg.Region = &qstorage.ZoneHuanan
	case "na0":
		cfg.Region = &qstorage.ZoneBeimei
	case "as0":
		cfg.Region = &qstorage.ZoneXinjiapo
	default:
		cfg.Region = &qstorage.ZoneHuadong
	}

	domain := strings.TrimSuffix(opts.Domain, "/")
	if !strings.HasPrefix(domain, "http") {
		domain = "https://" + domain
	}

	log.Info().Str("bucket", opts.Bucket).Str("region", opts.Region).Msg("[七牛云] 客户端已创建")
	return &QiniuKodoProvider{
		mac:        auth.New(opts.AccessKey, opts.SecretKey),
		bucket:     opts.Bucket,
		domain:     domain,
		basePath:   opts.BasePath,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 100 * time.Second},
	}, nil
}

func (p *QiniuKodoProvider) Type() constant.StorageBackendType {
	return constant.StorageTypeQiniu
}

func (p *QiniuKodoProvider) Put(ctx context.Context, r io.Reader, name string, opts PutOptions) (*PutResult, error) {
	key, err := buildObjectKey(p.basePath, opts.FolderPath, name)
	if err != nil {
		return nil, err
	}
	// 七牛云SDK需要知道文件大小
	data, err := readAllSized(r)
	if err != nil {
		return nil, err
	}

	putPolicy := qstorage.PutPolicy{Scope: fmt.Sprintf("%s:%s", p.bucket, key)}
	upToken := putPolicy.UploadToken(p.mac)

	ret := qstorage.PutRet{}
	putExtra := qstorage.PutExtra{MimeType: opts.MimeType}
	uploader := qstorage.NewFormUploader(p.cfg)
	if err := uploader.Put(ctx, &ret, upToken, key, bytes.NewReader(data), int64(len(data)), &putExtra); err != nil {
		return nil, fmt.Errorf("上传文件到七牛云失败: %w", err)
	}
	return &PutResult{FileID: key, Path: key, Size: int64(len(data))}, nil
}

func (p *QiniuKodoProvider) Open(ctx context.Context, fileID string) (io.ReadCloser, *ObjectInfo, error) {
	if err := validateKey(fileID); err != nil {
		return nil, nil, err
	}
	deadline := time.Now().Add(qiniuURLExpiry).Unix()
	privateURL := qstorage.MakePrivateURL(p.mac, p.domain, fileID, deadline)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, privateURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("从七牛云获取文件失败: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrObjectNotFound, fileID)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, nil, fmt.Errorf("从七牛云获取文件失败: HTTP %d", resp.StatusCode)
	}
	return resp.Body, &ObjectInfo{
		MimeType: resp.Header.Get("Content-Type"),
		Filename: path.Base(fileID),
		Size:     resp.ContentLength,
	}, nil
}

func (p *QiniuKodoProvider) Remove(_ context.Context, fileID string) error {
	if err := validateKey(fileID); err != nil {
		return err
	}
	manager := qstorage.NewBucketManager(p.mac, p.cfg)
	if err := manager.Delete(p.bucket, fileID); err != nil {
		if strings.Contains(err.Error(), "no such file or directory") {
			return nil
		}
		return fmt.Errorf("删除七牛云对象 %s 失败: %w", fileID, err)
	}
	return nil
}
