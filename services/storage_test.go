package services

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yp-firedoor/firedoor-oa/models"
)

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("3f1c1f0e-8a55-4c6e-9d0f-5a0b5f7d9e21")

	tests := []struct {
		name     string
		slot     models.FileSlot
		filename string
		wantDir  string
		wantBase string
	}{
		{"plain", models.SlotOrderFile, "door.pdf", "orders/" + id.String() + "/order_file", "door.pdf"},
		{"unicode kept", models.SlotProductionSheet, "生产单.xlsx", "orders/" + id.String() + "/production_sheet", "生产单.xlsx"},
		{"directory stripped", models.SlotOutboundFile, "../../etc/passwd.txt", "orders/" + id.String() + "/outbound_file", "passwd.txt"},
		{"windows path", models.SlotOrderFile, `C:\Users\zhang\door.pdf`, "orders/" + id.String() + "/order_file", "door.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := ObjectKey(id, tt.slot, tt.filename)
			uploadDir, base := path.Split(key)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantBase, OriginalFilename(key))
			assert.Equal(t, tt.wantDir, path.Dir(path.Clean(uploadDir)))

			_, err := uuid.Parse(path.Base(path.Clean(uploadDir)))
			assert.NoError(t, err, "upload directory is a uuid")
		})
	}

	t.Run("same filename gets a new key per upload", func(t *testing.T) {
		first := ObjectKey(id, models.SlotOrderFile, "door.pdf")
		second := ObjectKey(id, models.SlotOrderFile, "door.pdf")
		assert.NotEqual(t, first, second)
		assert.Equal(t, OriginalFilename(first), OriginalFilename(second))
	})
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentTypeFor("a.pdf"))
	assert.Equal(t, "image/png", ContentTypeFor("a.PNG"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("drawing.nosuchext"))
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key := "orders/abc/order_file/door.pdf"
	require.NoError(t, storage.Save(ctx, key, strings.NewReader("content"), 7, "application/pdf"))

	body, size, err := storage.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "content", string(data))
	assert.Equal(t, int64(7), size)

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, storage.Save(ctx, key, strings.NewReader("v2"), 2, "application/pdf"))
		body, size, err := storage.Open(ctx, key)
		require.NoError(t, err)
		defer body.Close()
		assert.Equal(t, int64(2), size)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, storage.Delete(ctx, key))
		require.NoError(t, storage.Delete(ctx, key))
		_, _, err := storage.Open(ctx, key)
		assert.ErrorIs(t, err, ErrFileMissing)
	})

	t.Run("keys cannot escape root", func(t *testing.T) {
		err := storage.Save(ctx, "../outside.txt", strings.NewReader("x"), 1, "text/plain")
		assert.Error(t, err)
	})
}

func TestMockStorage(t *testing.T) {
	ctx := context.Background()
	storage := NewMockStorage()

	storage.Put("a", []byte("1"))
	assert.True(t, storage.FileExists("a"))

	_, _, err := storage.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrFileMissing)

	storage.SaveErr = ErrMockSave
	assert.ErrorIs(t, storage.Save(ctx, "b", strings.NewReader("2"), 1, ""), ErrMockSave)
	assert.False(t, storage.FileExists("b"))

	storage.Clear()
	assert.Empty(t, storage.Files())
}

// fakeS3 is an in-memory S3API
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	bucket  string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bucket = aws.ToString(in.Bucket)
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	storage := NewS3StorageWithClient(client, "firedoor-files")

	key := "orders/abc/outbound_file/out.pdf"
	require.NoError(t, storage.Save(ctx, key, strings.NewReader("pdf"), 3, "application/pdf"))
	assert.Equal(t, "firedoor-files", client.bucket)

	body, size, err := storage.Open(ctx, key)
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, int64(3), size)

	require.NoError(t, storage.Delete(ctx, key))
	_, _, err = storage.Open(ctx, key)
	assert.ErrorIs(t, err, ErrFileMissing)

	assert.NoError(t, storage.Delete(ctx, ""))
}
