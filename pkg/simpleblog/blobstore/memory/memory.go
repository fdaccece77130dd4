package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/fileurl"
)

type object struct {
	data []byte
	file simpleblog.File
}

// Backend is an in-memory implementation of the simpleblog.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]*object
	urls    *fileurl.Builder
}

// New creates a new in-memory blob store. View and preview URLs are built
// with urls; a nil builder renders paths relative to the server root.
func New(urls *fileurl.Builder) *Backend {
	if urls == nil {
		urls, _ = fileurl.New("/", "", nil)
	}
	return &Backend{
		objects: make(map[string]*object),
		urls:    urls,
	}
}

func key(bucketID, fileID string) string {
	return bucketID + "/" + fileID
}

// CreateFile stores the contents of reader under fileID
func (b *Backend) CreateFile(ctx context.Context, bucketID, fileID string, reader io.Reader, params simpleblog.FileParams) (*simpleblog.File, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file body: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	k := key(bucketID, fileID)
	if _, exists := b.objects[k]; exists {
		return nil, simpleblog.ErrFileExists
	}

	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	obj := &object{
		data: data,
		file: simpleblog.File{
			ID:          fileID,
			BucketID:    bucketID,
			Name:        params.Name,
			MimeType:    mimeType,
			Size:        int64(len(data)),
			Permissions: append([]simpleblog.Permission(nil), params.Permissions...),
			CreatedAt:   time.Now().UTC(),
		},
	}
	b.objects[k] = obj

	file := obj.file
	return &file, nil
}

// DeleteFile deletes a file
func (b *Backend) DeleteFile(ctx context.Context, bucketID, fileID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key(bucketID, fileID)
	if _, exists := b.objects[k]; !exists {
		return simpleblog.ErrFileNotFound
	}
	delete(b.objects, k)
	return nil
}

// GetFilePreview returns the preview URL of an existing file
func (b *Backend) GetFilePreview(ctx context.Context, bucketID, fileID string, opts simpleblog.PreviewOptions) (string, error) {
	file, err := b.GetFile(ctx, bucketID, fileID)
	if err != nil {
		return "", err
	}
	return b.urls.Preview(bucketID, fileID, opts, file.Permissions)
}

// GetFileView returns the view URL of an existing file
func (b *Backend) GetFileView(ctx context.Context, bucketID, fileID string) (string, error) {
	file, err := b.GetFile(ctx, bucketID, fileID)
	if err != nil {
		return "", err
	}
	return b.urls.View(bucketID, fileID, file.Permissions)
}

// UpdateFile renames a file or replaces its permissions
func (b *Backend) UpdateFile(ctx context.Context, bucketID, fileID string, update simpleblog.FileUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, exists := b.objects[key(bucketID, fileID)]
	if !exists {
		return simpleblog.ErrFileNotFound
	}
	if update.Name != nil {
		obj.file.Name = *update.Name
	}
	if update.Permissions != nil {
		obj.file.Permissions = append([]simpleblog.Permission(nil), update.Permissions...)
	}
	return nil
}

// SetFilePermissions replaces the permissions of a file
func (b *Backend) SetFilePermissions(ctx context.Context, bucketID, fileID string, permissions []simpleblog.Permission) error {
	return b.UpdateFile(ctx, bucketID, fileID, simpleblog.FileUpdate{Permissions: permissions})
}

// GetFile returns file metadata
func (b *Backend) GetFile(ctx context.Context, bucketID, fileID string) (*simpleblog.File, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key(bucketID, fileID)]
	if !exists {
		return nil, simpleblog.ErrFileNotFound
	}
	file := obj.file
	file.Permissions = append([]simpleblog.Permission(nil), obj.file.Permissions...)
	return &file, nil
}

// ReadFile returns the contents and metadata of a file
func (b *Backend) ReadFile(ctx context.Context, bucketID, fileID string) (io.ReadCloser, *simpleblog.File, error) {
	b.mu.RLock()
	obj, exists := b.objects[key(bucketID, fileID)]
	b.mu.RUnlock()
	if !exists {
		return nil, nil, simpleblog.ErrFileNotFound
	}

	file, err := b.GetFile(ctx, bucketID, fileID)
	if err != nil {
		return nil, nil, err
	}
	return io.NopCloser(bytes.NewReader(obj.data)), file, nil
}

var (
	_ simpleblog.BlobStore        = (*Backend)(nil)
	_ simpleblog.PermissionSetter = (*Backend)(nil)
	_ simpleblog.FileReader       = (*Backend)(nil)
)
