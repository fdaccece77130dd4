package simpleblog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Document field names of a post. The author is stored as userID.
const (
	FieldTitle         = "title"
	FieldContent       = "content"
	FieldFeaturedImage = "featuredImage"
	FieldStatus        = "status"
	FieldAuthorID      = "userID"
)

// Posts is the Post Repository. It owns every write to the post collection
// and to the blobs those posts reference. It holds no locks and no cache:
// each call goes to the stores, and concurrent writers are ordered by the
// document store alone.
type Posts struct {
	docs   DocumentStore
	blobs  BlobStore
	cfg    Config
	events notifier
	logger *slog.Logger
}

// NewPosts creates a repository over the configured collection and bucket.
func NewPosts(docs DocumentStore, blobs BlobStore, cfg Config, sink EventSink, logger *slog.Logger) *Posts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Posts{
		docs:   docs,
		blobs:  blobs,
		cfg:    cfg,
		events: notifier{sink: sink, logger: logger},
		logger: logger,
	}
}

// CreatePostInput holds the fields of a new post. Slug must already be
// normalized.
type CreatePostInput struct {
	Title         string
	Slug          string
	Content       string
	FeaturedImage string
	Status        PostStatus
	AuthorID      string
}

// UpdatePostInput is a partial update. Nil fields are left out of the
// document payload and keep their stored value.
type UpdatePostInput struct {
	Title         *string
	Content       *string
	FeaturedImage *string
	Status        *PostStatus
}

func (in UpdatePostInput) fields() Fields {
	data := Fields{}
	if in.Title != nil {
		data[FieldTitle] = *in.Title
	}
	if in.Content != nil {
		data[FieldContent] = *in.Content
	}
	if in.FeaturedImage != nil {
		data[FieldFeaturedImage] = *in.FeaturedImage
	}
	if in.Status != nil {
		data[FieldStatus] = string(*in.Status)
	}
	return data
}

// PostFromDocument maps a stored document to a Post.
func PostFromDocument(doc *Document) *Post {
	return &Post{
		Slug:          doc.ID,
		Title:         doc.Data.String(FieldTitle),
		Content:       doc.Data.String(FieldContent),
		FeaturedImage: doc.Data.String(FieldFeaturedImage),
		Status:        PostStatus(doc.Data.String(FieldStatus)),
		AuthorID:      doc.Data.String(FieldAuthorID),
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

// Create writes a new post document keyed by its slug. It is the one
// repository operation that returns an error: every failure, including a
// taken slug, is a *CreationError. Create never touches the blob store.
func (p *Posts) Create(ctx context.Context, in CreatePostInput) (*Post, error) {
	if !ValidSlug(in.Slug) {
		p.logger.Error("Refusing to create post with unnormalized slug", "slug", in.Slug)
		return nil, &CreationError{Slug: in.Slug, Err: ErrInvalidSlug}
	}
	status := in.Status
	if status == "" {
		status = PostStatusActive
	}
	if !status.Valid() {
		p.logger.Error("Refusing to create post with invalid status", "slug", in.Slug, "status", status)
		return nil, &CreationError{Slug: in.Slug, Err: fmt.Errorf("%w: %s", ErrInvalidStatus, status)}
	}

	data := Fields{
		FieldTitle:    in.Title,
		FieldContent:  in.Content,
		FieldStatus:   string(status),
		FieldAuthorID: in.AuthorID,
	}
	if in.FeaturedImage != "" {
		data[FieldFeaturedImage] = in.FeaturedImage
	}

	doc, err := p.docs.CreateDocument(ctx, p.cfg.DatabaseID, p.cfg.CollectionID, in.Slug, data)
	if err != nil {
		p.logger.Error("Failed to create post", "slug", in.Slug, "error", err)
		return nil, &CreationError{
			Slug: in.Slug,
			Err:  &StoreError{Store: "document", Op: "create", Key: in.Slug, Err: err},
		}
	}

	post := PostFromDocument(doc)
	p.events.created(ctx, post)
	return post, nil
}

// Update applies a partial update to the post at slug. The slug itself and
// the author are never part of the payload.
func (p *Posts) Update(ctx context.Context, slug string, in UpdatePostInput) Result[*Post] {
	if in.Status != nil && !in.Status.Valid() {
		return Fail[*Post](KindInvalid, fmt.Errorf("%w: %s", ErrInvalidStatus, *in.Status))
	}

	doc, err := p.docs.UpdateDocument(ctx, p.cfg.DatabaseID, p.cfg.CollectionID, slug, in.fields())
	if err != nil {
		p.logger.Error("Failed to update post", "slug", slug, "error", err)
		return storeFailure[*Post]("update", slug, err)
	}

	post := PostFromDocument(doc)
	p.events.updated(ctx, post)
	return Ok(post)
}

// Delete removes the post document and then, best effort, its featured
// image. Failing to delete the image is logged and reported as an orphan
// but still counts as a successful delete.
func (p *Posts) Delete(ctx context.Context, slug string) Result[bool] {
	doc, err := p.docs.GetDocument(ctx, p.cfg.DatabaseID, p.cfg.CollectionID, slug)
	if err != nil {
		p.logger.Error("Failed to load post for delete", "slug", slug, "error", err)
		return storeFailure[bool]("get", slug, err)
	}
	ref := doc.Data.String(FieldFeaturedImage)

	if err := p.docs.DeleteDocument(ctx, p.cfg.DatabaseID, p.cfg.CollectionID, slug); err != nil {
		p.logger.Error("Failed to delete post", "slug", slug, "error", err)
		return storeFailure[bool]("delete", slug, err)
	}
	p.events.deleted(ctx, slug)

	if ref != "" {
		p.releaseBlob(ctx, slug, ref, OrphanDeleteCleanupFailed)
	}
	return Ok(true)
}

// Get fetches the post at slug.
func (p *Posts) Get(ctx context.Context, slug string) Result[*Post] {
	doc, err := p.docs.GetDocument(ctx, p.cfg.DatabaseID, p.cfg.CollectionID, slug)
	if err != nil {
		if !errors.Is(err, ErrDocumentNotFound) {
			p.logger.Error("Failed to get post", "slug", slug, "error", err)
		}
		return storeFailure[*Post]("get", slug, err)
	}
	return Ok(PostFromDocument(doc))
}

// ListOption configures List.
type ListOption func(*listParams)

type listParams struct {
	status    *PostStatus
	anyStatus bool
	authorID  string
	limit     int
	offset    int
}

// WithStatus lists posts in status s.
func WithStatus(s PostStatus) ListOption {
	return func(p *listParams) {
		p.status = &s
	}
}

// WithAnyStatus lists posts regardless of status.
func WithAnyStatus() ListOption {
	return func(p *listParams) {
		p.anyStatus = true
	}
}

// WithAuthor lists posts created by authorID.
func WithAuthor(authorID string) ListOption {
	return func(p *listParams) {
		p.authorID = authorID
	}
}

// WithLimit caps the number of posts returned.
func WithLimit(n int) ListOption {
	return func(p *listParams) {
		p.limit = n
	}
}

// WithOffset skips the first n matching posts.
func WithOffset(n int) ListOption {
	return func(p *listParams) {
		p.offset = n
	}
}

// queries translates list options. Without a status, author or any-status
// filter the list is restricted to active posts.
func (lp listParams) queries() []Query {
	var qs []Query
	filtered := lp.anyStatus || lp.authorID != ""
	if lp.status != nil {
		qs = append(qs, QueryEqual(FieldStatus, string(*lp.status)))
		filtered = true
	}
	if lp.authorID != "" {
		qs = append(qs, QueryEqual(FieldAuthorID, lp.authorID))
	}
	if !filtered {
		qs = append(qs, QueryEqual(FieldStatus, string(PostStatusActive)))
	}
	if lp.limit > 0 {
		qs = append(qs, QueryLimit(lp.limit))
	}
	if lp.offset > 0 {
		qs = append(qs, QueryOffset(lp.offset))
	}
	return qs
}

// List returns posts in store order. With no filter option only active
// posts are returned.
func (p *Posts) List(ctx context.Context, opts ...ListOption) Result[[]*Post] {
	var lp listParams
	for _, opt := range opts {
		if opt != nil {
			opt(&lp)
		}
	}

	docs, err := p.docs.ListDocuments(ctx, p.cfg.DatabaseID, p.cfg.CollectionID, lp.queries()...)
	if err != nil {
		p.logger.Error("Failed to list posts", "error", err)
		return Fail[[]*Post](KindStore, &StoreError{Store: "document", Op: "list", Key: p.cfg.CollectionID, Err: err})
	}

	posts := make([]*Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, PostFromDocument(doc))
	}
	return Ok(posts)
}

// releaseBlob deletes a blob that no post references any more. Failure
// leaves an orphan behind, which is reported and otherwise tolerated.
func (p *Posts) releaseBlob(ctx context.Context, slug, ref string, reason OrphanReason) {
	if err := p.blobs.DeleteFile(ctx, p.cfg.BucketID, ref); err != nil {
		p.events.orphaned(ctx, Orphan{
			BucketID: p.cfg.BucketID,
			FileID:   ref,
			Slug:     slug,
			Reason:   reason,
			Err:      err,
		})
	}
}

func storeFailure[T any](op, slug string, err error) Result[T] {
	wrapped := &StoreError{Store: "document", Op: op, Key: slug, Err: err}
	if errors.Is(err, ErrDocumentNotFound) {
		return Fail[T](KindNotFound, fmt.Errorf("%w: %w", ErrPostNotFound, wrapped))
	}
	return Fail[T](KindStore, wrapped)
}
