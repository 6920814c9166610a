/*
 * @Description: 统一配置管理，ini 文件作为默认值，环境变量覆盖
 * @Author: 安知鱼
 * @Date: 2026-09-01 00:21:55
 * @LastEditTime: 2026-09-28 13:00:20
 * @LastEditors: 安知鱼
 */
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DefaultConfigPath 默认配置文件路径
const DefaultConfigPath = "data/conf.ini"

// EnvPrefix 环境变量前缀，例如 FILEHUB_STORAGE_BACKEND
const EnvPrefix = "FILEHUB"

// 定义所有已知的配置键
var allKeys = []string{
	KeyServerPort, KeyServerDebug, KeyServerLogLevel,
	KeyJWTSecret, KeyIDSeed,
	KeyDBType, KeyDBHost, KeyDBPort, KeyDBUser, KeyDBPassword, KeyDBName, KeyDBDebug,
	KeyRedisAddr, KeyRedisPassword, KeyRedisDB,
	KeyDistributionEnabled, KeyMaxUploadSize, KeyAllowedMimeTypes, KeyDownloadBytesPerSecond, KeyStatsCron,
	KeyStorageBackend, KeyStorageLocalRoot, KeyStorageBucket, KeyStorageEndpoint, KeyStorageRegion,
	KeyStorageAccessKey, KeyStorageSecretKey, KeyStorageBasePath, KeyStorageDomain,
	KeyRateLimitBackend, KeyUploadsPerMinute, KeyBytesPerMinute, KeyAPIRequestsPerMinute,
}

const (
	KeyServerPort     = "System.Port"
	KeyServerDebug    = "System.Debug"
	KeyServerLogLevel = "System.LogLevel"
	KeyJWTSecret      = "System.JWTSecret"
	KeyIDSeed         = "System.IDSeed"

	KeyDBType     = "Database.Type"
	KeyDBHost     = "Database.Host"
	KeyDBPort     = "Database.Port"
	KeyDBUser     = "Database.User"
	KeyDBPassword = "Database.Password"
	KeyDBName     = "Database.Name"
	KeyDBDebug    = "Database.Debug"

	KeyRedisAddr     = "Redis.Addr"
	KeyRedisPassword = "Redis.Password"
	KeyRedisDB       = "Redis.DB"

	KeyDistributionEnabled    = "Distribution.Enabled"
	KeyMaxUploadSize          = "Distribution.MaxUploadSize"
	KeyAllowedMimeTypes       = "Distribution.AllowedMimeTypes"
	KeyDownloadBytesPerSecond = "Distribution.DownloadBytesPerSecond"
	KeyStatsCron              = "Distribution.StatsCron"

	KeyStorageBackend   = "Storage.Backend"
	KeyStorageLocalRoot = "Storage.LocalRoot"
	KeyStorageBucket    = "Storage.Bucket"
	KeyStorageEndpoint  = "Storage.Endpoint"
	KeyStorageRegion    = "Storage.Region"
	KeyStorageAccessKey = "Storage.AccessKey"
	KeyStorageSecretKey = "Storage.SecretKey"
	KeyStorageBasePath  = "Storage.BasePath"
	KeyStorageDomain    = "Storage.Domain"

	KeyRateLimitBackend     = "RateLimit.Backend"
	KeyUploadsPerMinute     = "RateLimit.UploadsPerMinute"
	KeyBytesPerMinute       = "RateLimit.BytesPerMinute"
	KeyAPIRequestsPerMinute = "RateLimit.APIRequestsPerMinute"
)

type Config struct {
	vp *viper.Viper
}

// NewConfig 从默认路径加载配置
func NewConfig() (*Config, error) {
	return NewConfigFromFile(DefaultConfigPath)
}

// NewConfigFromFile 手动加载配置：先读 ini 文件，再用环境变量覆盖
func NewConfigFromFile(filePath string) (*Config, error) {
	vp := viper.New()
	setDefaults(vp)

	// --- 步骤 1: 使用 go-ini 从文件加载配置 ---
	iniCfg, err := ini.Load(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", filePath).Msg("未找到配置文件，将创建默认配置文件")
			if err := createDefaultConfigFile(filePath); err != nil {
				log.Warn().Err(err).Msg("创建默认配置文件失败，将仅依赖环境变量或内部默认值")
			} else {
				iniCfg, err = ini.Load(filePath)
				if err != nil {
					log.Warn().Err(err).Msg("重新加载配置文件失败")
				}
			}
		} else {
			return nil, fmt.Errorf("解析配置文件 '%s' 失败: %w", filePath, err)
		}
	}

	if iniCfg != nil {
		for _, section := range iniCfg.Sections() {
			for _, key := range section.Keys() {
				viperKey := fmt.Sprintf("%s.%s", section.Name(), key.Name())
				if section.Name() == ini.DefaultSection {
					viperKey = key.Name()
				}
				// 空值不覆盖内部默认值
				if strings.TrimSpace(key.Value()) == "" {
					continue
				}
				vp.Set(viperKey, key.Value())
			}
		}
	}

	// --- 步骤 2: 手动检查并覆盖环境变量 ---
	envReplacer := strings.NewReplacer(".", "_")
	for _, key := range allKeys {
		envVarName := fmt.Sprintf("%s_%s", EnvPrefix, envReplacer.Replace(strings.ToUpper(key)))
		if value, found := os.LookupEnv(envVarName); found {
			vp.Set(key, value)
			log.Debug().Str("env", envVarName).Str("key", key).Msg("环境变量覆盖配置")
		}
	}

	return &Config{vp: vp}, nil
}

// setDefaults 内部默认值，优先级最低
func setDefaults(vp *viper.Viper) {
	vp.SetDefault(KeyServerPort, "8091")
	vp.SetDefault(KeyServerLogLevel, "info")
	vp.SetDefault(KeyDBType, "sqlite")
	vp.SetDefault(KeyDBName, "filehub.db")
	vp.SetDefault(KeyDistributionEnabled, true)
	vp.SetDefault(KeyMaxUploadSize, 20<<20)
	vp.SetDefault(KeyStatsCron, "0 */10 * * * *")
	vp.SetDefault(KeyStorageBackend, "local")
	vp.SetDefault(KeyStorageLocalRoot, "data/storage/distribution")
	vp.SetDefault(KeyRateLimitBackend, "memory")
	vp.SetDefault(KeyUploadsPerMinute, 10)
	vp.SetDefault(KeyBytesPerMinute, 100<<20)
	vp.SetDefault(KeyAPIRequestsPerMinute, 600)
}

// Set 覆盖一个配置值，主要用于测试
func (c *Config) Set(key string, value any) {
	c.vp.Set(key, value)
}

func (c *Config) GetString(key string) string {
	return c.vp.GetString(key)
}

func (c *Config) GetInt(key string) int {
	return c.vp.GetInt(key)
}

func (c *Config) GetInt64(key string) int64 {
	return c.vp.GetInt64(key)
}

func (c *Config) GetBool(key string) bool {
	return c.vp.GetBool(key)
}

// GetStringSlice 读取逗号分隔的列表，忽略空项
func (c *Config) GetStringSlice(key string) []string {
	raw := c.vp.Get(key)
	if list, ok := raw.([]string); ok {
		return list
	}
	var out []string
	for _, item := range strings.Split(c.vp.GetString(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// createDefaultConfigFile 创建默认的配置文件
func createDefaultConfigFile(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	defaultConfig := `[System]
Port = 8091
Debug = false
LogLevel = info
JWTSecret =
IDSeed =

[Database]
Type = sqlite
Name = filehub.db
Debug = false

# Redis 配置（可选），RateLimit.Backend = redis 时必填
[Redis]
Addr =
Password =
DB = 0

[Distribution]
Enabled = true
MaxUploadSize = 20971520
# 逗号分隔，留空使用内置列表
AllowedMimeTypes =
# 下载限速（字节/秒），0 表示不限速
DownloadBytesPerSecond = 0
StatsCron = 0 */10 * * * *

# Backend: local / aws_s3 / aliyun_oss / tencent_cos / qiniu_kodo
[Storage]
Backend = local
LocalRoot = data/storage/distribution
Bucket =
Endpoint =
Region =
AccessKey =
SecretKey =
BasePath =
Domain =

# Backend: memory / redis
[RateLimit]
Backend = memory
UploadsPerMinute = 10
BytesPerMinute = 104857600
APIRequestsPerMinute = 600
`

	if err := os.WriteFile(filePath, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
