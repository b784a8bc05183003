package service

import (
	"bytes"
	"context"
	"io"
	"testing"

	"quiz_mentor_backend/internal/config"
	"quiz_mentor_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func storageConfig(storageType, localPath string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			Type:      storageType,
			LocalPath: localPath,
		},
	}
}

func TestNewStorageService_LocalByDefault(t *testing.T) {
	svc := NewStorageService(storageConfig("local", t.TempDir()))
	_, ok := svc.Provider.(*LocalStorageProvider)
	assert.True(t, ok)
}

// 对象存储初始化失败时回落到本地磁盘，不能静默吞掉错误
func TestNewStorageService_FallsBackToLocalOnInitError(t *testing.T) {
	logger.Log = zap.NewNop()

	// 空endpoint让minio客户端构造失败
	svc := NewStorageService(storageConfig("minio", t.TempDir()))
	_, ok := svc.Provider.(*LocalStorageProvider)
	assert.True(t, ok, "minio初始化失败后回落到本地")
}

func TestLocalStorageProvider_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	svc := NewStorageService(storageConfig("local", dir))
	ctx := context.Background()

	content := []byte("course material")
	url, err := svc.Upload(ctx, "courses/1/doc.txt", bytes.NewReader(content), int64(len(content)), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/courses/1/doc.txt", url)

	rc, err := svc.Download(ctx, "courses/1/doc.txt")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, svc.Delete(ctx, "courses/1/doc.txt"))
	_, err = svc.Download(ctx, "courses/1/doc.txt")
	assert.Error(t, err)
}
