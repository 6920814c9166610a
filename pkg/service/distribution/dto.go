package distribution

import (
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/idgen"
)

// ToItemDTO 将记录转换为调用方视角的响应结构。
// IsRead 按调用方视角计算；已读明细与接收组织列表只返回给发布者。
func ToItemDTO(record *model.DistributionRecord, viewer model.Identity) (*model.DistributionItemDTO, error) {
	publicID, err := idgen.GeneratePublicID(record.ID, idgen.EntityTypeDistributionRecord)
	if err != nil {
		return nil, err
	}

	dto := &model.DistributionItemDTO{
		ID:             publicID,
		Filename:       record.Filename,
		MimeType:       record.MimeType,
		Size:           record.Size,
		Hash:           record.Hash,
		StorageType:    string(record.StorageType),
		UploadedBy:     record.UploadedBy,
		UploadedByName: record.UploadedByName,
		WorkplaceIDs:   []string{},
		Category:       string(record.Category),
		Description:    record.Description,
		ExpiresAt:      record.ExpiresAt,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}

	if viewer.IsPublisher() {
		dto.IsRead = record.IsRead
		dto.StoragePath = record.StoragePath
		dto.ReadBy = record.ReadBy
		if len(record.WorkplaceIDs) > 0 {
			dto.WorkplaceIDs = record.WorkplaceIDs
		}
		if id := record.WorkplaceID(); id != "" {
			dto.WorkplaceID = &id
		}
		return dto, nil
	}

	dto.IsRead = record.ReadFor(viewer.WorkplaceID)
	if !record.IsGlobal() {
		id := viewer.WorkplaceID
		dto.WorkplaceID = &id
		dto.WorkplaceIDs = []string{id}
	}
	return dto, nil
}

// ToItemDTOs 批量转换
func ToItemDTOs(records []*model.DistributionRecord, viewer model.Identity) ([]*model.DistributionItemDTO, error) {
	list := make([]*model.DistributionItemDTO, 0, len(records))
	for _, r := range records {
		dto, err := ToItemDTO(r, viewer)
		if err != nil {
			return nil, err
		}
		list = append(list, dto)
	}
	return list, nil
}

// ToListResponse 构建分页响应，unread 为 nil 时不返回未读数
func ToListResponse(page PageResult, viewer model.Identity, unread *int64) (*model.DistributionListResponse, error) {
	list, err := ToItemDTOs(page.Records, viewer)
	if err != nil {
		return nil, err
	}
	return &model.DistributionListResponse{
		List:        list,
		Total:       page.Total,
		Page:        page.Page,
		PageSize:    page.PageSize,
		TotalPages:  page.TotalPages,
		UnreadCount: unread,
	}, nil
}
