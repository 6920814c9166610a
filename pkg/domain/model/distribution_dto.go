/*
 * @Description: 文件分发相关的请求与响应结构
 * @Author: 安知鱼
 * @Date: 2026-09-05 09:31:08
 * @LastEditTime: 2026-09-25 17:22:51
 * @LastEditors: 安知鱼
 */
package model

import "time"

// DistributionItemDTO 是返回给前端的单条分发记录。
// IsRead 始终是调用方视角下的值。
type DistributionItemDTO struct {
	ID             string        `json:"id"`
	Filename       string        `json:"filename"`
	MimeType       string        `json:"mimeType"`
	Size           int64         `json:"size"`
	Hash           string        `json:"hash"`
	StorageType    string        `json:"storageType"`
	StoragePath    string        `json:"storagePath,omitempty"`
	UploadedBy     string        `json:"uploadedBy"`
	UploadedByName string        `json:"uploadedByName"`
	WorkplaceID    *string       `json:"workplaceId"`
	WorkplaceIDs   []string      `json:"workplaceIds"`
	Category       string        `json:"category"`
	Description    string        `json:"description"`
	IsRead         bool          `json:"isRead"`
	ReadBy         []ReadReceipt `json:"readBy,omitempty"`
	ExpiresAt      *time.Time    `json:"expiresAt,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// DistributionListResponse 分页列表响应
type DistributionListResponse struct {
	List       []*DistributionItemDTO `json:"list"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"pageSize"`
	TotalPages int                    `json:"totalPages"`
	// UnreadCount 仅在接收方列表中返回，统计全部可见记录而非当前页
	UnreadCount *int64 `json:"unreadCount,omitempty"`
}

// PublishForm 是发布接口的表单参数
type PublishForm struct {
	WorkplaceIDs []string `form:"workplaceIds"`
	Category     string   `form:"category"`
	Description  string   `form:"description"`
	ExpiresAt    string   `form:"expiresAt"`
}

// PublisherListQuery 发布者列表查询参数
type PublisherListQuery struct {
	WorkplaceID string `form:"workplaceId"`
	Category    string `form:"category"`
	Page        int    `form:"page"`
	PageSize    int    `form:"pageSize"`
}

// RecipientListQuery 接收方列表查询参数
type RecipientListQuery struct {
	Category   string `form:"category"`
	UnreadOnly bool   `form:"unreadOnly"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
}
