package blob

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Put(t *testing.T) {
	putter := &fakePutter{}
	store := newS3Store(putter, "media", "https://cdn.example.com/")
	store.newKey = func() string { return "fixed" }

	url, err := store.Put(context.Background(), "issues/u1", []byte("payload"), "video/mp4")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/issues/u1/fixed.mp4", url)
	assert.Equal(t, "media", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "issues/u1/fixed.mp4", aws.ToString(putter.input.Key))
	assert.Equal(t, "video/mp4", aws.ToString(putter.input.ContentType))
	assert.Equal(t, []byte("payload"), putter.body)
}

func TestS3Store_PutSanitizesPathHint(t *testing.T) {
	putter := &fakePutter{}
	store := newS3Store(putter, "media", "https://cdn.example.com")
	store.newKey = func() string { return "k" }

	url, err := store.Put(context.Background(), "../../etc", []byte("x"), "application/x-unknown")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/etc/k", url)
}

func TestS3Store_PutError(t *testing.T) {
	putter := &fakePutter{err: errors.New("access denied")}
	store := newS3Store(putter, "media", "https://cdn.example.com")

	_, err := store.Put(context.Background(), "issues", []byte("x"), "image/png")
	assert.ErrorContains(t, err, "access denied")
}

func TestNewS3Store_ValidatesConfig(t *testing.T) {
	_, err := NewS3Store(S3Config{Region: "auto", Bucket: "media"})
	assert.Error(t, err)
}
