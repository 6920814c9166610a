package distribution

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/infra/storage"
	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/utils"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
)

// DownloadResult 封装了下载所需的内容流与元数据，调用方负责关闭 Reader
type DownloadResult struct {
	Reader   io.ReadCloser
	Filename string
	MimeType string
	Size     int64
	Record   *model.DistributionRecord

	bytesPerSecond int64
}

// Stream 将内容写入 w，按配置限速
func (d *DownloadResult) Stream(ctx context.Context, w io.Writer) (int64, error) {
	return io.Copy(utils.NewThrottledWriter(ctx, w, d.bytesPerSecond), d.Reader)
}

// Download 先打开内容流，成功后才为组织成员写入已读确认；确认失败时关闭内容流并返回错误
func (s *serviceImpl) Download(ctx context.Context, recordID uint, caller model.Identity) (*DownloadResult, error) {
	record, err := s.visibleRecord(ctx, recordID, caller)
	if err != nil {
		return nil, err
	}

	provider, err := s.providers.For(record.StorageType)
	if err != nil {
		return nil, err
	}
	rc, info, err := provider.Open(ctx, record.StorageFileID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Error().
				Uint("record_id", record.ID).
				Str("file_id", record.StorageFileID).
				Msg("有效记录引用的物理对象不存在")
		}
		return nil, asBackendError(provider, "open", err)
	}

	if !caller.IsPublisher() {
		updated, err := s.acknowledge(ctx, record.ID, caller)
		if err != nil {
			rc.Close()
			return nil, err
		}
		record = updated
	}

	mimeType := record.MimeType
	if mimeType == "" && info != nil {
		mimeType = info.MimeType
	}
	return &DownloadResult{
		Reader:         rc,
		Filename:       record.Filename,
		MimeType:       mimeType,
		Size:           record.Size,
		Record:         record,
		bytesPerSecond: s.opts.DownloadBytesPerSecond,
	}, nil
}
