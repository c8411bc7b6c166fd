package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
)

const (
	minioUsername = "admin"
	minioPassword = "password"
)

func setupMinioContainer(t *testing.T, ctx context.Context) string {
	minioContainer, err := minio.Run(
		ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	testcontainers.CleanupContainer(t, minioContainer)
	require.NoError(t, err, "Failed to start MinIO container")

	connStr, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MinIO connection string")

	return "http://" + connStr
}

func setupS3Provider(t *testing.T, ctx context.Context) *S3Provider {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping minio integration test in short mode")
	}

	endpoint := setupMinioContainer(t, ctx)

	provider, err := NewS3Provider(ctx, S3ProviderConfig{
		S3EndpointURL:     endpoint,
		S3AccessKeyID:     minioUsername,
		S3SecretAccessKey: minioPassword,
		S3Region:          "us-east-1",
	})
	require.NoError(t, err)

	_, err = provider.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(testBucket)})
	require.NoError(t, err)

	for key, content := range modelObjects {
		_, err := provider.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(testBucket),
			Key:    aws.String(key),
			Body:   strings.NewReader(content),
		})
		require.NoError(t, err)
	}

	return provider
}

func TestS3Provider(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)

	t.Run("ListObjects", func(t *testing.T) {
		objects, err := provider.ListObjects(ctx, testBucket, "tcrbert/v1/")
		require.NoError(t, err)

		names := make([]string, 0, len(objects))
		for _, obj := range objects {
			names = append(names, obj.Name)
			assert.Equal(t, int64(len(modelObjects[obj.Name])), obj.Size)
		}
		assert.ElementsMatch(t, []string{"tcrbert/v1/model.onnx", "tcrbert/v1/tokenizer.json", "tcrbert/v1/extra/vocab.txt"}, names)
	})

	t.Run("DownloadObject", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "nested", "model.onnx")
		require.NoError(t, provider.DownloadObject(ctx, testBucket, "tcrbert/v2/model.onnx", filename))

		data, err := os.ReadFile(filename)
		require.NoError(t, err)
		assert.Equal(t, "other", string(data))
	})

	t.Run("FetchModelArtifacts", func(t *testing.T) {
		modelDir := filepath.Join(t.TempDir(), "model")
		require.NoError(t, FetchModelArtifacts(ctx, provider, testBucket, "tcrbert/v1", modelDir))

		data, err := os.ReadFile(filepath.Join(modelDir, "model.onnx"))
		require.NoError(t, err)
		assert.Equal(t, "onnx-bytes", string(data))
		assert.FileExists(t, filepath.Join(modelDir, "extra", "vocab.txt"))
		assert.NoFileExists(t, filepath.Join(modelDir, "notes.txt"))
	})
}
