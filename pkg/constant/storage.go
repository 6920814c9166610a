/*
 * @Description: 存储后端类型
 * @Author: 安知鱼
 * @Date: 2026-09-02 10:20:11
 * @LastEditTime: 2026-09-14 21:03:27
 * @LastEditors: 安知鱼
 */
package constant

// StorageBackendType 定义了存储后端的类型，同时作为分发记录中的 storage_type 标签
type StorageBackendType string

// 定义支持的存储后端类型常量
const (
	StorageTypeLocal      StorageBackendType = "local"
	StorageTypeTencentCOS StorageBackendType = "tencent_cos"
	StorageTypeAliOSS     StorageBackendType = "aliyun_oss"
	StorageTypeS3         StorageBackendType = "aws_s3"
	StorageTypeQiniu      StorageBackendType = "qiniu_kodo"
)

// 默认存储配置
const (
	DefaultLocalStorageRoot = "data/storage/distribution" // 相对于应用根目录
	DefaultSharedFolder     = "shared"
)

// IsValid 检查给定的类型是否是受支持的存储后端类型
func (t StorageBackendType) IsValid() bool {
	switch t {
	case StorageTypeLocal, StorageTypeTencentCOS, StorageTypeAliOSS, StorageTypeS3, StorageTypeQiniu:
		return true
	default:
		return false
	}
}
