package backup_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterhub/hunter-ranking/internal/adapters/backup"
	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveLocalOnly(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	a := backup.NewArchiver(store)

	key, err := a.Archive(ctx, []byte(`[{"score":250}]`))
	require.NoError(t, err)
	assert.Empty(t, key)

	saved, err := store.Get(ctx, kv.KeyScoresBackup)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"score":250}]`, string(saved))
}

func TestArchiveUploads(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{}
	at := time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC)
	a := backup.NewArchiver(kv.NewMemory(),
		backup.WithUploader(backup.NewS3Uploader(fake, "hunter-backups")),
		backup.WithPrefix("ledgers/"),
		backup.WithClock(func() time.Time { return at }),
	)

	key, err := a.Archive(ctx, []byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, "ledgers/20261016T083000.000000000Z.json", key)
	assert.Equal(t, "hunter-backups", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "application/json", aws.ToString(fake.in.ContentType))
	assert.Equal(t, "[]", string(fake.body))
}

func TestArchiveUploadFailureKeepsLocalCopy(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	a := backup.NewArchiver(store, backup.WithUploader(backup.NewS3Uploader(&fakeS3{err: errors.New("denied")}, "b")))

	_, err := a.Archive(ctx, []byte(`[1]`))
	require.Error(t, err)

	saved, getErr := store.Get(ctx, kv.KeyScoresBackup)
	require.NoError(t, getErr)
	assert.Equal(t, "[1]", string(saved))
}

func TestArchiveQuotaExceeded(t *testing.T) {
	a := backup.NewArchiver(kv.NewMemory(kv.WithQuota(2)))
	_, err := a.Archive(context.Background(), []byte(`[1,2,3]`))
	assert.ErrorIs(t, err, kv.ErrQuota)
}

func TestDialS3RequiresBucket(t *testing.T) {
	_, err := backup.DialS3(context.Background(), backup.S3Config{})
	assert.Error(t, err)
}
