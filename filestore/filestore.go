package filestore

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("filestore: object not found")

type FileStore interface {
	UploadFileData(ctx context.Context, data []byte, contentType, key string) error
	UploadFile(ctx context.Context, reader io.Reader, contentType, key string) error
	GetFileData(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}
