package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIni(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewConfigFromFile(t *testing.T) {
	path := writeIni(t, `[Storage]
Backend = aws_s3
Bucket = hr-files

[Distribution]
MaxUploadSize = 1024
AllowedMimeTypes = application/pdf, image/png ,,
`)

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "aws_s3", cfg.GetString(KeyStorageBackend))
	assert.Equal(t, "hr-files", cfg.GetString(KeyStorageBucket))
	assert.Equal(t, int64(1024), cfg.GetInt64(KeyMaxUploadSize))
	assert.Equal(t, []string{"application/pdf", "image/png"}, cfg.GetStringSlice(KeyAllowedMimeTypes))

	// 未在文件中出现的键使用内部默认值
	assert.Equal(t, "memory", cfg.GetString(KeyRateLimitBackend))
	assert.Equal(t, 10, cfg.GetInt(KeyUploadsPerMinute))
	assert.True(t, cfg.GetBool(KeyDistributionEnabled))
}

func TestEnvOverride(t *testing.T) {
	path := writeIni(t, "[RateLimit]\nBackend = memory\n")
	t.Setenv("FILEHUB_RATELIMIT_BACKEND", "redis")
	t.Setenv("FILEHUB_DISTRIBUTION_ENABLED", "false")

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.GetString(KeyRateLimitBackend))
	assert.False(t, cfg.GetBool(KeyDistributionEnabled))
}

func TestCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "conf.ini")

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
	assert.Equal(t, "local", cfg.GetString(KeyStorageBackend))
	assert.Equal(t, "sqlite", cfg.GetString(KeyDBType))
	assert.Empty(t, cfg.GetStringSlice(KeyAllowedMimeTypes))
}

func TestMalformedFile(t *testing.T) {
	path := writeIni(t, "[Storage\nBackend = local\n")

	_, err := NewConfigFromFile(path)
	assert.Error(t, err)
}
