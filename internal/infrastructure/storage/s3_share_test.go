package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeObjectAPI struct {
	puts       []*s3.PutObjectInput
	bodies     [][]byte
	putErr     error
	headErr    error
	createErr  error
	created    bool
	deletedKey string
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletedKey = aws.ToString(in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeObjectAPI) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeObjectAPI) CreateBucket(context.Context, *s3.CreateBucketInput, ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = true
	return &s3.CreateBucketOutput{}, f.createErr
}

func testStorageConfig() *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:            "prints",
		AccessKey:         "test-key",
		SecretKey:         "test-secret",
		Endpoint:          "http://localhost:9000",
		UsePathStyle:      true,
		PresignExpiration: 15 * time.Minute,
	}
}

func testArtifact() *printing.Artifact {
	return printing.NewArtifact([]byte(strings.Repeat("%PDF", 512)), "INVOICE-42.pdf", 1, printing.RenderStrategyTemplate)
}

func TestNewS3ShareTarget_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ShareTarget(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3ShareTarget(&config.StorageConfig{AccessKey: "k", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		_, err := NewS3ShareTarget(&config.StorageConfig{Bucket: "b", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		_, err := NewS3ShareTarget(&config.StorageConfig{Bucket: "b", AccessKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("defaults presign expiration", func(t *testing.T) {
		cfg := testStorageConfig()
		cfg.PresignExpiration = 0
		target, err := NewS3ShareTarget(cfg)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, target.presignExpiration)
		assert.Equal(t, "prints", target.Bucket())
	})

	t.Run("options override defaults", func(t *testing.T) {
		target, err := NewS3ShareTarget(testStorageConfig(),
			WithLogger(zaptest.NewLogger(t)),
			WithPresignExpiration(time.Hour),
			WithKeyPrefix("/exports/"))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, target.presignExpiration)
		assert.Equal(t, "exports", target.prefix)
	})
}

func TestS3ShareTarget_ShareKey(t *testing.T) {
	target, err := NewS3ShareTarget(testStorageConfig())
	require.NoError(t, err)
	target.now = func() time.Time { return time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC) }

	key := target.ShareKey("INVOICE/42.pdf")
	parts := strings.Split(key, "/")
	require.Len(t, parts, 5)
	assert.Equal(t, "shares", parts[0])
	assert.Equal(t, "2026", parts[1])
	assert.Equal(t, "03", parts[2])
	assert.Len(t, parts[3], 36)
	assert.NotContains(t, parts[4], "/")
	assert.NotEqual(t, key, target.ShareKey("INVOICE/42.pdf"))
}

func TestS3ShareTarget_Share(t *testing.T) {
	t.Run("uploads and returns presigned link", func(t *testing.T) {
		api := &fakeObjectAPI{}
		target, err := NewS3ShareTarget(testStorageConfig(), WithObjectAPI(api))
		require.NoError(t, err)
		artifact := testArtifact()

		link, err := target.Share(context.Background(), artifact)
		require.NoError(t, err)

		require.Len(t, api.puts, 1)
		assert.Equal(t, "prints", aws.ToString(api.puts[0].Bucket))
		assert.Equal(t, printing.MIMETypePDF, aws.ToString(api.puts[0].ContentType))
		assert.Contains(t, aws.ToString(api.puts[0].ContentDisposition), "INVOICE-42.pdf")
		assert.Equal(t, artifact.Content, api.bodies[0])

		assert.Contains(t, link.URL, "localhost:9000")
		assert.Contains(t, link.URL, "X-Amz-Signature")
		assert.True(t, link.ExpiresAt.After(time.Now()))
	})

	t.Run("upload failure is returned", func(t *testing.T) {
		api := &fakeObjectAPI{putErr: errors.New("access denied")}
		target, err := NewS3ShareTarget(testStorageConfig(), WithObjectAPI(api))
		require.NoError(t, err)

		_, err = target.Share(context.Background(), testArtifact())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access denied")
	})

	t.Run("empty artifact is rejected", func(t *testing.T) {
		api := &fakeObjectAPI{}
		target, err := NewS3ShareTarget(testStorageConfig(), WithObjectAPI(api))
		require.NoError(t, err)

		_, err = target.Share(context.Background(), printing.NewArtifact(nil, "x.pdf", 0, printing.RenderStrategyFallback))
		require.Error(t, err)
		assert.Empty(t, api.puts)
	})
}

func TestS3ShareTarget_EnsureBucket(t *testing.T) {
	t.Run("existing bucket", func(t *testing.T) {
		api := &fakeObjectAPI{}
		target, err := NewS3ShareTarget(testStorageConfig(), WithObjectAPI(api))
		require.NoError(t, err)

		require.NoError(t, target.EnsureBucket(context.Background()))
		assert.False(t, api.created)
	})

	t.Run("creates missing bucket", func(t *testing.T) {
		api := &fakeObjectAPI{headErr: &types.NotFound{}}
		target, err := NewS3ShareTarget(testStorageConfig(), WithObjectAPI(api))
		require.NoError(t, err)

		require.NoError(t, target.EnsureBucket(context.Background()))
		assert.True(t, api.created)
	})

	t.Run("tolerates creation race", func(t *testing.T) {
		api := &fakeObjectAPI{headErr: &types.NoSuchBucket{}, createErr: &types.BucketAlreadyOwnedByYou{}}
		target, err := NewS3ShareTarget(testStorageConfig(), WithObjectAPI(api))
		require.NoError(t, err)

		require.NoError(t, target.EnsureBucket(context.Background()))
	})

	t.Run("other head errors are returned", func(t *testing.T) {
		api := &fakeObjectAPI{headErr: errors.New("forbidden")}
		target, err := NewS3ShareTarget(testStorageConfig(), WithObjectAPI(api))
		require.NoError(t, err)

		err = target.EnsureBucket(context.Background())
		require.Error(t, err)
		assert.False(t, api.created)
	})
}
