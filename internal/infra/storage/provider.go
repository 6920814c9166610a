/*
 * @Description: 定义了所有存储驱动需要遵守的接口和公共结构
 * @Author: 安知鱼
 * @Date: 2026-09-07 00:21:55
 * @LastEditTime: 2026-09-23 11:26:38
 * @LastEditors: 安知鱼
 */
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// ErrObjectNotFound 表示物理对象不存在
var ErrObjectNotFound = errors.New("storage object not found")

// ErrInvalidFileID 表示文件标识非法（例如包含路径穿越）
var ErrInvalidFileID = errors.New("invalid storage file id")

// PutOptions 上传时的附加参数
type PutOptions struct {
	// FolderPath 仅用于组织对象路径，不参与去重
	FolderPath string
	MimeType   string
}

// PutResult 封装了上传成功后的对象信息
type PutResult struct {
	// FileID 是后续 Open / Remove 使用的唯一标识
	FileID string
	// Path 是便于人工查看的存储路径
	Path string
	Size int64
}

// ObjectInfo 读取对象时返回的元信息，Size 为 0 表示后端未提供
type ObjectInfo struct {
	MimeType string
	Filename string
	Size     int64
}

// IStorageProvider 定义了所有存储提供者必须实现的接口。
// 实现必须可以对不同的 FileID 并发调用。
type IStorageProvider interface {
	// Type 返回写入分发记录的 storage_type 标签
	Type() constant.StorageBackendType
	// Put 将内容写入存储，name 是最终的文件名
	Put(ctx context.Context, r io.Reader, name string, opts PutOptions) (*PutResult, error)
	// Open 返回对象的读取流，调用方负责关闭
	Open(ctx context.Context, fileID string) (io.ReadCloser, *ObjectInfo, error)
	// Remove 删除对象，对象不存在时返回 nil
	Remove(ctx context.Context, fileID string) error
}

// buildObjectKey 拼接对象键：basePath/folder/name，统一使用正斜杠
func buildObjectKey(basePath, folder, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileID, name)
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{basePath, folder} {
		p = strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/")
		if p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, name)
	key := path.Clean(strings.Join(parts, "/"))
	if err := validateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// validateKey 拒绝绝对路径与路径穿越
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidFileID, key)
		}
	}
	return nil
}

// readAllSized 部分云端 SDK 需要预先知道内容长度
func readAllSized(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取上传内容失败: %w", err)
	}
	return data, nil
}
