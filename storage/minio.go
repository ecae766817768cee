package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"metajuke/config"
	"metajuke/logger"
	"metajuke/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewMinioClient 创建 MinIO 客户端，确保存储桶存在
func NewMinioClient(ctx context.Context, cfg *config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(checkCtx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("已创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}
	return client, nil
}

// ObjectPutter minio.Client 的上传子集
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ReceiptArchive 以不可变 JSON 对象归档点歌收据，实现 jukebox.ReceiptSink
type ReceiptArchive struct {
	client ObjectPutter
	bucket string
}

// NewReceiptArchive 创建归档
func NewReceiptArchive(client ObjectPutter, bucket string) *ReceiptArchive {
	return &ReceiptArchive{client: client, bucket: bucket}
}

// ReceiptObjectName receipts/<table>/<request>.json
func ReceiptObjectName(receipt *model.TrackRequest) string {
	return path.Join("receipts", receipt.TableID.String(), receipt.ID.String()+".json")
}

// Archive 上传收据
func (a *ReceiptArchive) Archive(ctx context.Context, receipt *model.TrackRequest) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("序列化收据失败: %w", err)
	}
	_, err = a.client.PutObject(ctx, a.bucket, ReceiptObjectName(receipt), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"requester": receipt.Requester,
			"track":     receipt.TrackID.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("上传收据失败: %w", err)
	}
	return nil
}

// ReceiptObject 归档对象摘要
type ReceiptObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ListReceipts 列出归档的收据，tableID 为空时列出全部
func ListReceipts(ctx context.Context, client *minio.Client, bucket, tableID string, limit int) ([]ReceiptObject, error) {
	prefix := "receipts/"
	if tableID != "" {
		prefix += tableID + "/"
	}
	var out []ReceiptObject
	for obj := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("列出对象失败: %w", obj.Err)
		}
		out = append(out, ReceiptObject{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
