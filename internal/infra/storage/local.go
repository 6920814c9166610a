// internal/infra/storage/local.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// LocalProvider 实现了 IStorageProvider 接口，用于处理与本机磁盘文件系统的所有交互。
// FileID 是相对于 root 的正斜杠路径。
type LocalProvider struct {
	root string
}

// NewLocalProvider 是 LocalProvider 的构造函数。
func NewLocalProvider(root string) (*LocalProvider, error) {
	if root == "" {
		root = constant.DefaultLocalStorageRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("解析本地存储根目录 '%s' 失败: %w", root, err)
	}
	if err := os.MkdirAll(abs, os.ModePerm); err != nil {
		return nil, fmt.Errorf("无法创建本地存储根目录 '%s': %w", abs, err)
	}
	return &LocalProvider{root: abs}, nil
}

func (p *LocalProvider) Type() constant.StorageBackendType {
	return constant.StorageTypeLocal
}

// copyFile 复制文件从 src 到 dst，用于跨文件系统的文件移动
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("无法打开源文件: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("无法创建目标文件: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("复制文件内容失败: %w", err)
	}
	return destFile.Sync()
}

func (p *LocalProvider) absPath(fileID string) (string, error) {
	if err := validateKey(fileID); err != nil {
		return "", err
	}
	return filepath.Join(p.root, filepath.FromSlash(fileID)), nil
}

// Put 先写入临时文件，完成后再移动到最终位置，读者不会看到写了一半的文件。
func (p *LocalProvider) Put(ctx context.Context, r io.Reader, name string, opts PutOptions) (*PutResult, error) {
	key, err := buildObjectKey("", opts.FolderPath, name)
	if err != nil {
		return nil, err
	}
	finalPath, err := p.absPath(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tempDir := filepath.Join(p.root, ".tmp")
	if err := os.MkdirAll(tempDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("无法创建临时目录 '%s': %w", tempDir, err)
	}
	tempFile, err := os.CreateTemp(tempDir, "filehub-upload-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("无法在 '%s' 目录创建临时文件: %w", tempDir, err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	size, err := io.Copy(tempFile, r)
	if err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return nil, fmt.Errorf("关闭临时文件失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("无法创建目录 '%s': %w", filepath.Dir(finalPath), err)
	}

	// 尝试使用 os.Rename，失败则使用 copy（兼容跨文件系统）
	if err := os.Rename(tempFileName, finalPath); err != nil {
		if err := copyFile(tempFileName, finalPath); err != nil {
			return nil, fmt.Errorf("复制文件到最终存储位置 '%s' 失败: %w", finalPath, err)
		}
	}

	return &PutResult{FileID: key, Path: key, Size: size}, nil
}

func (p *LocalProvider) Open(ctx context.Context, fileID string) (io.ReadCloser, *ObjectInfo, error) {
	absPath, err := p.absPath(fileID)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrObjectNotFound, fileID)
		}
		return nil, nil, fmt.Errorf("打开本地文件失败: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("获取本地文件信息失败: %w", err)
	}
	return f, &ObjectInfo{
		MimeType: mime.TypeByExtension(path.Ext(fileID)),
		Filename: path.Base(fileID),
		Size:     stat.Size(),
	}, nil
}

// Remove 删除本地文件，文件已经不存在时静默处理
func (p *LocalProvider) Remove(ctx context.Context, fileID string) error {
	absPath, err := p.absPath(fileID)
	if err != nil {
		return err
	}
	if err := os.Remove(absPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("删除本地文件 '%s' 失败: %w", fileID, err)
	}
	return nil
}
