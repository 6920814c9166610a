/*
 * @Description: 文件分发相关常量
 * @Author: 安知鱼
 * @Date: 2026-09-02 10:31:52
 * @LastEditTime: 2026-09-18 09:47:13
 * @LastEditors: 安知鱼
 */
package constant

// Category 文件分类
type Category string

const (
	CategoryDocument    Category = "document"
	CategoryImage       Category = "image"
	CategoryInstruction Category = "instruction"
	CategoryOther       Category = "other"
)

// AllCategories 返回所有受支持的分类，顺序固定
func AllCategories() []Category {
	return []Category{CategoryDocument, CategoryImage, CategoryInstruction, CategoryOther}
}

// IsValid 检查分类是否受支持
func (c Category) IsValid() bool {
	switch c {
	case CategoryDocument, CategoryImage, CategoryInstruction, CategoryOther:
		return true
	default:
		return false
	}
}

// Role 调用方角色
type Role string

const (
	// RolePublisher 唯一可以发布、删除和查看全局统计的角色
	RolePublisher Role = "publisher"
	// RoleMember 组织成员，只能查看本组织可见的文件、下载与标记已读
	RoleMember Role = "member"
)

// IsValid 检查角色是否可以调用文件分发子系统
func (r Role) IsValid() bool {
	return r == RolePublisher || r == RoleMember
}

// 默认上传限制
const (
	DefaultMaxUploadSize    int64 = 20 << 20
	DefaultUploadsPerMinute       = 10
	DefaultBytesPerMinute   int64 = 100 << 20
	DefaultPageSize               = 20
	MaxPageSize                   = 100
)

// DefaultAllowedMimeTypes 默认允许上传的 MIME 类型
var DefaultAllowedMimeTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"text/plain",
}
