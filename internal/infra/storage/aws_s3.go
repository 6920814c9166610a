/*
 * @Description: AWS S3 及兼容 S3 协议的存储提供者实现（使用aws-sdk-go-v2）
 * @Author: 安知鱼
 * @Date: 2026-09-07 19:00:00
 * @LastEditTime: 2026-09-23 18:30:00
 * @LastEditors: 安知鱼
 */
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// AWSS3Provider 实现了 IStorageProvider，FileID 即对象键
type AWSS3Provider struct {
	client   *s3.Client
	bucket   string
	basePath string
}

// NewAWSS3Provider 创建 S3 客户端。
// Endpoint 为完整 URL 时视为自定义 S3 兼容服务，使用 path-style 访问。
func NewAWSS3Provider(ctx context.Context, opts Options) (*AWSS3Provider, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("AWS S3 配置缺少存储桶名称")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("AWS S3 配置缺少 AccessKey 或 SecretKey")
	}

	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	var customEndpoint *string
	if strings.HasPrefix(opts.Endpoint, "http") {
		if _, err := url.Parse(opts.Endpoint); err != nil {
			return nil, fmt.Errorf("解析 S3 Endpoint 失败: %w", err)
		}
		customEndpoint = aws.String(opts.Endpoint)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("创建AWS S3配置失败: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if customEndpoint != nil {
			o.BaseEndpoint = customEndpoint
			o.UsePathStyle = true
		}
	})

	log.Info().Str("bucket", opts.Bucket).Str("region", region).Msg("[AWS S3] 客户端已创建")
	return &AWSS3Provider{client: client, bucket: opts.Bucket, basePath: opts.BasePath}, nil
}

func (p *AWSS3Provider) Type() constant.StorageBackendType {
	return constant.StorageTypeS3
}

func (p *AWSS3Provider) Put(ctx context.Context, r io.Reader, name string, opts PutOptions) (*PutResult, error) {
	key, err := buildObjectKey(p.basePath, opts.FolderPath, name)
	if err != nil {
		return nil, err
	}
	data, err := readAllSized(r)
	if err != nil {
		return nil, err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if opts.MimeType != "" {
		input.ContentType = aws.String(opts.MimeType)
	}
	if _, err := p.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("上传文件到AWS S3失败: %w", err)
	}
	return &PutResult{FileID: key, Path: key, Size: int64(len(data))}, nil
}

func (p *AWSS3Provider) Open(ctx context.Context, fileID string) (io.ReadCloser, *ObjectInfo, error) {
	if err := validateKey(fileID); err != nil {
		return nil, nil, err
	}
	output, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil, fmt.Errorf("%w: %s", ErrObjectNotFound, fileID)
		}
		return nil, nil, fmt.Errorf("从AWS S3获取文件失败: %w", err)
	}
	return output.Body, &ObjectInfo{
		MimeType: aws.ToString(output.ContentType),
		Filename: path.Base(fileID),
		Size:     aws.ToInt64(output.ContentLength),
	}, nil
}

// Remove 删除对象，S3 对不存在的键删除也会返回成功
func (p *AWSS3Provider) Remove(ctx context.Context, fileID string) error {
	if err := validateKey(fileID); err != nil {
		return err
	}
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return fmt.Errorf("从AWS S3删除文件失败: %w", err)
	}
	return nil
}
