package simpleblog_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	blobmemory "github.com/tendant/simple-blog/pkg/simpleblog/blobstore/memory"
	docmemory "github.com/tendant/simple-blog/pkg/simpleblog/docstore/memory"
	identitymemory "github.com/tendant/simple-blog/pkg/simpleblog/identity/memory"
	"golang.org/x/crypto/bcrypt"
)

var errInjected = errors.New("injected failure")

var testConfig = simpleblog.Config{
	Endpoint:     "http://blog.test/api/v1",
	ProjectID:    "proj",
	DatabaseID:   "blog",
	CollectionID: "posts",
	BucketID:     "images",
}

// blobs wraps a memory blob store and fails the operations it is told to.
type blobs struct {
	*blobmemory.Backend

	mu         sync.Mutex
	createErr  error
	deleteErr  error
	previewErr error
	viewErr    error
	updateErr  error
	panicView  bool
	creates    int
	deletes    []string
	updates    int
}

func newBlobs() *blobs {
	return &blobs{Backend: blobmemory.New(nil)}
}

func (b *blobs) CreateFile(ctx context.Context, bucketID, fileID string, r io.Reader, p simpleblog.FileParams) (*simpleblog.File, error) {
	b.mu.Lock()
	b.creates++
	err := b.createErr
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return b.Backend.CreateFile(ctx, bucketID, fileID, r, p)
}

func (b *blobs) DeleteFile(ctx context.Context, bucketID, fileID string) error {
	b.mu.Lock()
	b.deletes = append(b.deletes, fileID)
	err := b.deleteErr
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return b.Backend.DeleteFile(ctx, bucketID, fileID)
}

func (b *blobs) GetFilePreview(ctx context.Context, bucketID, fileID string, opts simpleblog.PreviewOptions) (string, error) {
	if b.previewErr != nil {
		return "", b.previewErr
	}
	return b.Backend.GetFilePreview(ctx, bucketID, fileID, opts)
}

func (b *blobs) GetFileView(ctx context.Context, bucketID, fileID string) (string, error) {
	if b.panicView {
		panic("view exploded")
	}
	if b.viewErr != nil {
		return "", b.viewErr
	}
	return b.Backend.GetFileView(ctx, bucketID, fileID)
}

func (b *blobs) UpdateFile(ctx context.Context, bucketID, fileID string, update simpleblog.FileUpdate) error {
	b.mu.Lock()
	b.updates++
	err := b.updateErr
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return b.Backend.UpdateFile(ctx, bucketID, fileID, update)
}

func (b *blobs) exists(t *testing.T, fileID string) bool {
	t.Helper()
	_, err := b.GetFile(context.Background(), testConfig.BucketID, fileID)
	if errors.Is(err, simpleblog.ErrFileNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

// optionsOnlyBlobs exposes UpdateFile without the positional setter.
type optionsOnlyBlobs struct {
	simpleblog.BlobStore
}

// docs wraps a memory document store and fails the operations it is told to.
type docs struct {
	*docmemory.Store

	mu        sync.Mutex
	createErr error
	updateErr error
	deleteErr error
	listErr   error
	gate      chan struct{}
	applied   []simpleblog.Fields
}

func newDocs() *docs {
	return &docs{Store: docmemory.New()}
}

func (d *docs) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data simpleblog.Fields) (*simpleblog.Document, error) {
	if d.createErr != nil {
		return nil, d.createErr
	}
	return d.Store.CreateDocument(ctx, databaseID, collectionID, documentID, data)
}

func (d *docs) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data simpleblog.Fields) (*simpleblog.Document, error) {
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.updateErr != nil {
		return nil, d.updateErr
	}
	doc, err := d.Store.UpdateDocument(ctx, databaseID, collectionID, documentID, data)
	if err == nil {
		d.applied = append(d.applied, data)
	}
	return doc, err
}

func (d *docs) DeleteDocument(ctx context.Context, databaseID, collectionID, documentID string) error {
	if d.deleteErr != nil {
		return d.deleteErr
	}
	return d.Store.DeleteDocument(ctx, databaseID, collectionID, documentID)
}

func (d *docs) ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...simpleblog.Query) ([]*simpleblog.Document, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.Store.ListDocuments(ctx, databaseID, collectionID, queries...)
}

// sink records every event it receives.
type sink struct {
	mu      sync.Mutex
	created []string
	updated []string
	deleted []string
	orphans []simpleblog.Orphan
	err     error
}

func (s *sink) PostCreated(ctx context.Context, post *simpleblog.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, post.Slug)
	return s.err
}

func (s *sink) PostUpdated(ctx context.Context, post *simpleblog.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, post.Slug)
	return s.err
}

func (s *sink) PostDeleted(ctx context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, slug)
	return s.err
}

func (s *sink) BlobOrphaned(ctx context.Context, orphan simpleblog.Orphan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphans = append(s.orphans, orphan)
	return s.err
}

type fixture struct {
	blog  *simpleblog.Blog
	docs  *docs
	blobs *blobs
	sink  *sink
}

func newFixture(t *testing.T, opts ...simpleblog.Option) *fixture {
	t.Helper()
	f := &fixture{docs: newDocs(), blobs: newBlobs(), sink: &sink{}}

	var seq int
	all := append([]simpleblog.Option{
		simpleblog.WithDocumentStore(f.docs),
		simpleblog.WithBlobStore(f.blobs),
		simpleblog.WithIdentityService(identitymemory.New(identitymemory.WithBcryptCost(bcrypt.MinCost))),
		simpleblog.WithEventSink(f.sink),
		simpleblog.WithFileIDGenerator(func() string {
			seq++
			return fmt.Sprintf("file-%d", seq)
		}),
	}, opts...)

	blog, err := simpleblog.New(testConfig, all...)
	require.NoError(t, err)
	f.blog = blog
	return f
}

func pngUpload() *simpleblog.ImageUpload {
	body := "\x89PNG\r\n\x1a\nimage"
	return &simpleblog.ImageUpload{
		Name:     "cover.png",
		MimeType: "image/png",
		Size:     int64(len(body)),
		Body:     strings.NewReader(body),
	}
}

func ptr[T any](v T) *T {
	return &v
}
