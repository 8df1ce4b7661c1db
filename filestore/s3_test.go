package filestore

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3API struct {
	objects map[string]string
	deleted []string
	getErr  error
}

func (m *mockS3API) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(params.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3API) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(data))}, nil
}

func (m *mockS3API) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.deleted = append(m.deleted, aws.ToString(params.Key))
	delete(m.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3FileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	api := &mockS3API{objects: map[string]string{}}
	store := newS3FileStore(api, "bodies")

	require.NoError(t, store.UploadFileData(ctx, []byte("payload"), "application/octet-stream", "large/m-1"))

	data, err := store.GetFileData(ctx, "large/m-1")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, store.DeleteFile(ctx, "large/m-1"))
	assert.Equal(t, []string{"large/m-1"}, api.deleted)
}

func TestS3FileStore_GetNotFound(t *testing.T) {
	tests := []struct {
		name    string
		getErr  error
		wantNF  bool
		wantErr bool
	}{
		{name: "missing key", wantNF: true, wantErr: true},
		{name: "generic api not found", getErr: &smithy.GenericAPIError{Code: "NotFound"}, wantNF: true, wantErr: true},
		{name: "access denied", getErr: errors.New("access denied"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newS3FileStore(&mockS3API{objects: map[string]string{}, getErr: tt.getErr}, "bodies")
			_, err := store.GetFileData(context.Background(), "large/none")
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.wantNF, errors.Is(err, ErrNotFound))
		})
	}
}

func TestMemFileStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemFileStore()

	require.NoError(t, store.UploadFile(ctx, strings.NewReader("abc"), "", "k"))
	assert.True(t, store.Has("k"))

	data, err := store.GetFileData(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	require.NoError(t, store.DeleteFile(ctx, "k"))
	require.NoError(t, store.DeleteFile(ctx, "k"))
	assert.False(t, store.Has("k"))
	assert.Equal(t, 2, store.Deletes("k"))

	_, err = store.GetFileData(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestR2FileStore_UploadFileData(t *testing.T) {
	accountID := os.Getenv("R2_ACCOUNT_ID")
	if accountID == "" {
		t.Skip("R2_ACCOUNT_ID not set")
	}
	ctx := context.Background()

	store, err := NewR2FileStore(ctx, accountID, os.Getenv("R2_ACCESS_KEY_ID"), os.Getenv("R2_SECRET_ACCESS_KEY"), os.Getenv("R2_BUCKET"))
	require.NoError(t, err)

	require.NoError(t, store.UploadFileData(ctx, []byte("large body"), "application/octet-stream", "go-sqs-transport/test"))
	data, err := store.GetFileData(ctx, "go-sqs-transport/test")
	require.NoError(t, err)
	assert.Equal(t, "large body", string(data))
	assert.NoError(t, store.DeleteFile(ctx, "go-sqs-transport/test"))
}
