package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/fileurl"
)

const metaSuffix = ".meta.json"

// Backend is a filesystem implementation of the simpleblog.BlobStore interface.
// Each file is stored at BaseDir/bucketID/fileID with its metadata in a
// sidecar JSON file next to it.
type Backend struct {
	mu      sync.RWMutex
	baseDir string
	urls    *fileurl.Builder
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string           // Base directory for storing files
	URLs    *fileurl.Builder // Optional builder for view and preview URLs
}

// New creates a new filesystem blob store
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	baseDir := filepath.Clean(config.BaseDir)
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	urls := config.URLs
	if urls == nil {
		urls, _ = fileurl.New("/", "", nil)
	}

	return &Backend{
		baseDir: baseDir,
		urls:    urls,
	}, nil
}

func (b *Backend) paths(bucketID, fileID string) (string, string, error) {
	for _, part := range []string{bucketID, fileID} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", "", fmt.Errorf("invalid path segment %q", part)
		}
	}
	data := filepath.Join(b.baseDir, bucketID, fileID)
	return data, data + metaSuffix, nil
}

// CreateFile writes the contents of reader under fileID
func (b *Backend) CreateFile(ctx context.Context, bucketID, fileID string, reader io.Reader, params simpleblog.FileParams) (*simpleblog.File, error) {
	dataPath, metaPath, err := b.paths(bucketID, fileID)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(dataPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(dataPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		return nil, simpleblog.ErrFileExists
	} else if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dataPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	meta := &simpleblog.File{
		ID:          fileID,
		BucketID:    bucketID,
		Name:        params.Name,
		MimeType:    mimeType,
		Size:        size,
		Permissions: append([]simpleblog.Permission(nil), params.Permissions...),
		CreatedAt:   time.Now().UTC(),
	}
	if err := writeMeta(metaPath, meta); err != nil {
		_ = os.Remove(dataPath)
		return nil, err
	}

	return meta, nil
}

// DeleteFile deletes a file and its metadata
func (b *Backend) DeleteFile(ctx context.Context, bucketID, fileID string) error {
	dataPath, metaPath, err := b.paths(bucketID, fileID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		return simpleblog.ErrFileNotFound
	}

	if err := os.Remove(dataPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(dataPath))
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
	_, metaPath, err := b.paths(bucketID, fileID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	meta, err := readMeta(metaPath)
	if err != nil {
		return err
	}
	if update.Name != nil {
		meta.Name = *update.Name
	}
	if update.Permissions != nil {
		meta.Permissions = append([]simpleblog.Permission(nil), update.Permissions...)
	}
	return writeMeta(metaPath, meta)
}

// SetFilePermissions replaces the permissions of a file
func (b *Backend) SetFilePermissions(ctx context.Context, bucketID, fileID string, permissions []simpleblog.Permission) error {
	return b.UpdateFile(ctx, bucketID, fileID, simpleblog.FileUpdate{Permissions: permissions})
}

// GetFile returns file metadata
func (b *Backend) GetFile(ctx context.Context, bucketID, fileID string) (*simpleblog.File, error) {
	_, metaPath, err := b.paths(bucketID, fileID)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return readMeta(metaPath)
}

// ReadFile opens a file for reading. The caller closes the returned reader.
func (b *Backend) ReadFile(ctx context.Context, bucketID, fileID string) (io.ReadCloser, *simpleblog.File, error) {
	dataPath, metaPath, err := b.paths(bucketID, fileID)
	if err != nil {
		return nil, nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	meta, err := readMeta(metaPath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(dataPath)
	if os.IsNotExist(err) {
		return nil, nil, simpleblog.ErrFileNotFound
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, meta, nil
}

func readMeta(path string) (*simpleblog.File, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, simpleblog.ErrFileNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read file metadata: %w", err)
	}

	var meta simpleblog.File
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode file metadata: %w", err)
	}
	return &meta, nil
}

func writeMeta(path string, meta *simpleblog.File) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode file metadata: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write file metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write file metadata: %w", err)
	}
	return nil
}

// cleanupEmptyDirectories removes empty bucket directories up to, never
// including, baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	dir = filepath.Clean(dir)
	rel, err := filepath.Rel(b.baseDir, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

var (
	_ simpleblog.BlobStore        = (*Backend)(nil)
	_ simpleblog.PermissionSetter = (*Backend)(nil)
	_ simpleblog.FileReader       = (*Backend)(nil)
)
