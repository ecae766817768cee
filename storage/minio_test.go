package storage

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"metajuke/model"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket, object string
	body           []byte
	opts           minio.PutObjectOptions
}

func (f *fakePutter) PutObject(_ context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.bucket, f.object, f.body, f.opts = bucket, object, body, opts
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func TestReceiptArchiveWritesJSON(t *testing.T) {
	fake := &fakePutter{}
	archive := NewReceiptArchive(fake, "receipts-bucket")
	receipt := &model.TrackRequest{
		ID:         model.ID{1},
		Requester:  "bob",
		TrackID:    model.ID{2},
		TableID:    model.ID{3},
		Timestamp:  time.Unix(1700000000, 0).UTC(),
		AmountPaid: model.NewAmount(1500),
	}

	require.NoError(t, archive.Archive(context.Background(), receipt))
	assert.Equal(t, "receipts-bucket", fake.bucket)
	assert.Equal(t, "receipts/"+receipt.TableID.String()+"/"+receipt.ID.String()+".json", fake.object)
	assert.Equal(t, "application/json", fake.opts.ContentType)

	var decoded model.TrackRequest
	require.NoError(t, json.Unmarshal(fake.body, &decoded))
	assert.Equal(t, receipt.ID, decoded.ID)
	assert.Equal(t, "1500", decoded.AmountPaid.String())
}
