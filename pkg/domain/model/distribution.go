/*
 * @Description: 文件分发记录领域模型
 * @Author: 安知鱼
 * @Date: 2026-09-03 14:02:19
 * @LastEditTime: 2026-09-26 20:15:44
 * @LastEditors: 安知鱼
 */
package model

import (
	"time"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// ReadReceipt 某个组织对文件的已读确认，每个组织最多一条
type ReadReceipt struct {
	WorkplaceID string    `json:"workplaceId"`
	ReaderID    string    `json:"readerId"`
	ReadAt      time.Time `json:"readAt"`
}

// PhysicalRef 标识一个物理存储对象，多个分发记录可以引用同一个对象
type PhysicalRef struct {
	StorageType constant.StorageBackendType
	FileID      string
}

// DistributionRecord 描述一个逻辑文件：内容、物理引用、接收方、已读状态与生命周期
type DistributionRecord struct {
	ID uint

	Filename string
	MimeType string
	Size     int64
	Hash     string

	StorageType   constant.StorageBackendType
	StorageFileID string
	StoragePath   string

	UploadedBy string
	// UploadedByName 是创建时的快照，发布者改名后不会同步
	UploadedByName string

	// WorkplaceIDs 为空表示全局可见
	WorkplaceIDs []string
	Category     constant.Category
	Description  string

	IsActive  bool
	IsRead    bool
	ExpiresAt *time.Time

	ReadBy []ReadReceipt

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsGlobal 没有指定接收组织的记录对所有组织可见
func (r *DistributionRecord) IsGlobal() bool {
	return len(r.WorkplaceIDs) == 0
}

// WorkplaceID 仅当接收方恰好为一个组织时返回该组织，否则返回空字符串
func (r *DistributionRecord) WorkplaceID() string {
	if len(r.WorkplaceIDs) == 1 {
		return r.WorkplaceIDs[0]
	}
	return ""
}

// PhysicalRef 返回记录引用的物理对象
func (r *DistributionRecord) PhysicalRef() PhysicalRef {
	return PhysicalRef{StorageType: r.StorageType, FileID: r.StorageFileID}
}

// Identity 是调用文件分发子系统的已认证身份
type Identity struct {
	UserID      string
	UserName    string
	Role        constant.Role
	WorkplaceID string
}

// IsPublisher 判断调用方是否为发布者
func (i Identity) IsPublisher() bool {
	return i.Role == constant.RolePublisher
}

// DistributionStats 发布者视角的全局统计
type DistributionStats struct {
	TotalRecords int64 `json:"totalRecords"`
	// TotalBytes 按记录累加，去重命中的记录会重复计算
	TotalBytes int64 `json:"totalBytes"`
	// StoredObjects 与 StoredBytes 按物理对象去重后统计
	StoredObjects               int64            `json:"storedObjects"`
	StoredBytes                 int64            `json:"storedBytes"`
	GlobalRecords               int64            `json:"globalRecords"`
	ByCategory                  map[string]int64 `json:"byCategory"`
	DistinctRecipientWorkplaces int64            `json:"distinctRecipientOrganizations"`
}

// DeleteAllResult 批量删除的结果
type DeleteAllResult struct {
	DeletedCount             int64 `json:"deletedCount"`
	PhysicalObjectsReclaimed int   `json:"physicalObjectsReclaimed"`
}
