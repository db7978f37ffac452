package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"DemoCrate/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	minioClient *minio.Client
	minioBucket string
)

// InitMinio 初始化 MinIO 客户端，确保demo存储桶存在
func InitMinio(cfg *config.Config) error {
	log.Printf("正在连接 MinIO 服务器: %s, bucket: %s", cfg.MinioEndpoint, cfg.MinioBucket)

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("failed to check demo bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create demo bucket: %w", err)
		}
		log.Printf("Demo bucket created: %s", cfg.MinioBucket)
	}

	minioClient = client
	minioBucket = cfg.MinioBucket
	return nil
}

// GetMinioClient 获取全局 MinIO 客户端
func GetMinioClient() *minio.Client {
	return minioClient
}

// Bucket 返回demo存储桶名
func Bucket() string {
	return minioBucket
}

// demoContentType 根据文件名推断音频MIME类型
func demoContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".aiff", ".aif":
		return "audio/aiff"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// UploadDemo 上传demo音频，返回对象键。
// 对象键按 demos/<publicID>/<文件名> 组织。
func UploadDemo(ctx context.Context, publicID, filename string, reader io.Reader, size int64) (string, error) {
	if minioClient == nil {
		return "", fmt.Errorf("MinIO client not initialized")
	}

	objectKey := fmt.Sprintf("demos/%s/%s", publicID, filepath.Base(filename))
	_, err := minioClient.PutObject(ctx, minioBucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: demoContentType(filename),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload demo %s: %w", objectKey, err)
	}

	log.Printf("Demo uploaded to MinIO: %s", objectKey)
	return objectKey, nil
}

// GetDemo 按对象键读取demo音频
func GetDemo(ctx context.Context, objectKey string) (*minio.Object, error) {
	if minioClient == nil {
		return nil, fmt.Errorf("MinIO client not initialized")
	}
	return minioClient.GetObject(ctx, minioBucket, objectKey, minio.GetObjectOptions{})
}

// PresignDemoURL 生成限时试听链接
func PresignDemoURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	if minioClient == nil {
		return "", fmt.Errorf("MinIO client not initialized")
	}

	reqParams := make(url.Values)
	u, err := minioClient.PresignedGetObject(ctx, minioBucket, objectKey, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to presign demo URL: %w", err)
	}
	return u.String(), nil
}

// RemoveDemo 删除demo音频对象
func RemoveDemo(ctx context.Context, objectKey string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	return minioClient.RemoveObject(ctx, minioBucket, objectKey, minio.RemoveObjectOptions{})
}
