package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjectAPI implements objectAPI for testing without network.
type fakeObjectAPI struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      bool

	putOpts minioLib.PutObjectOptions
	putErr  error

	getRC  io.ReadCloser
	getErr error

	removeErr error

	statErr error
}

func (f *fakeObjectAPI) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}
func (f *fakeObjectAPI) MakeBucket(_ context.Context, _ string, _ minioLib.MakeBucketOptions) error {
	f.madeBucket = true
	return f.makeBucketErr
}
func (f *fakeObjectAPI) PutObject(_ context.Context, _ string, _ string, _ io.Reader, _ int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	f.putOpts = opts
	return minioLib.UploadInfo{}, f.putErr
}
func (f *fakeObjectAPI) GetObject(_ context.Context, _ string, _ string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	return f.getRC, f.getErr
}
func (f *fakeObjectAPI) RemoveObject(_ context.Context, _ string, _ string, _ minioLib.RemoveObjectOptions) error {
	return f.removeErr
}
func (f *fakeObjectAPI) StatObject(_ context.Context, _ string, _ string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	return minioLib.ObjectInfo{}, f.statErr
}

func TestNewArtifactStore_BucketExists(t *testing.T) {
	ctx := context.Background()
	api := &fakeObjectAPI{bucketExists: true}
	s, err := newArtifactStore(ctx, api, "artifacts")
	require.NoError(t, err)
	assert.Equal(t, "artifacts", s.bucket)
	assert.False(t, api.madeBucket)
}

func TestNewArtifactStore_CreatesMissingBucket(t *testing.T) {
	ctx := context.Background()
	api := &fakeObjectAPI{bucketExists: false}
	_, err := newArtifactStore(ctx, api, "artifacts")
	require.NoError(t, err)
	assert.True(t, api.madeBucket)
}

func TestNewArtifactStore_BucketErrors(t *testing.T) {
	ctx := context.Background()

	s, err := newArtifactStore(ctx, &fakeObjectAPI{bucketExistsErr: errors.New("boom")}, "artifacts")
	assert.Nil(t, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ensure bucket exists")

	s, err = newArtifactStore(ctx, &fakeObjectAPI{makeBucketErr: errors.New("fail")}, "artifacts")
	assert.Nil(t, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ensure bucket exists")
}

func TestArtifactStore_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("sets png content type", func(t *testing.T) {
		api := &fakeObjectAPI{}
		s := &ArtifactStore{api: api, bucket: "b"}
		err := s.Upload(ctx, "captcha/7/x.png", bytes.NewReader([]byte("data")))
		require.NoError(t, err)
		assert.Equal(t, "image/png", api.putOpts.ContentType)
	})

	t.Run("error", func(t *testing.T) {
		api := &fakeObjectAPI{putErr: errors.New("put-fail")}
		s := &ArtifactStore{api: api, bucket: "b"}
		err := s.Upload(ctx, "k", bytes.NewReader([]byte("data")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upload object")
	})
}

func TestArtifactStore_Download(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		api := &fakeObjectAPI{getRC: io.NopCloser(bytes.NewReader([]byte("abc")))}
		s := &ArtifactStore{api: api, bucket: "b"}
		rc, err := s.Download(ctx, "k")
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), data)
	})

	t.Run("error", func(t *testing.T) {
		api := &fakeObjectAPI{getErr: errors.New("get-fail")}
		s := &ArtifactStore{api: api, bucket: "b"}
		_, err := s.Download(ctx, "k")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get object")
	})
}

func TestArtifactStore_Delete(t *testing.T) {
	ctx := context.Background()

	s := &ArtifactStore{api: &fakeObjectAPI{}, bucket: "b"}
	assert.NoError(t, s.Delete(ctx, "k"))

	s = &ArtifactStore{api: &fakeObjectAPI{removeErr: errors.New("rm-fail")}, bucket: "b"}
	err := s.Delete(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete object")
}

func TestArtifactStore_Exists(t *testing.T) {
	ctx := context.Background()

	s := &ArtifactStore{api: &fakeObjectAPI{}, bucket: "b"}
	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	s = &ArtifactStore{api: &fakeObjectAPI{statErr: errors.New("stat-fail")}, bucket: "b"}
	_, err = s.Exists(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat object")
}
