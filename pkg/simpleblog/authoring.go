package simpleblog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// NewFileID returns a fresh blob identifier.
func NewFileID() string {
	return uuid.NewString()
}

// ImageUpload is an image file submitted with a post form.
type ImageUpload struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.Reader
}

// PublishInput is a submitted new-post form. An empty Slug is derived from
// Title; a supplied Slug is normalized again before use.
type PublishInput struct {
	Title    string
	Slug     string
	Content  string
	Status   PostStatus
	AuthorID string
	Image    *ImageUpload
}

// ReviseInput is a submitted edit form. Nil fields are left unchanged; a nil
// Image keeps the current featured image.
type ReviseInput struct {
	Title   *string
	Content *string
	Status  *PostStatus
	Image   *ImageUpload
}

// Authoring runs the multi-store post workflows.
//
// Publish: upload image, then create document. If the upload fails nothing
// is written. If the document write fails the upload is orphaned and
// reported, not deleted.
//
// Revise: upload the replacement image, update the document, then delete
// the previous image. The previous image is only deleted after the update
// is confirmed; a failed update orphans the replacement instead.
type Authoring struct {
	posts     *Posts
	newFileID func() string
	logger    *slog.Logger
}

// NewAuthoring creates the workflow over posts. A nil newFileID uses
// NewFileID.
func NewAuthoring(posts *Posts, newFileID func() string, logger *slog.Logger) *Authoring {
	if newFileID == nil {
		newFileID = NewFileID
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authoring{posts: posts, newFileID: newFileID, logger: logger}
}

// Publish creates a post together with its featured image. Every failure is
// a *CreationError.
func (a *Authoring) Publish(ctx context.Context, in PublishInput) (*Post, error) {
	slug := NormalizeSlug(in.Slug)
	if slug == "" {
		slug = NormalizeSlug(in.Title)
	}
	if err := ValidatePublish(in, slug); err != nil {
		return nil, &CreationError{Slug: slug, Err: err}
	}

	ref, err := a.upload(ctx, in.Image)
	if err != nil {
		return nil, &CreationError{Slug: slug, Err: err}
	}

	post, err := a.posts.Create(ctx, CreatePostInput{
		Title:         strings.TrimSpace(in.Title),
		Slug:          slug,
		Content:       in.Content,
		FeaturedImage: ref,
		Status:        in.Status,
		AuthorID:      in.AuthorID,
	})
	if err != nil {
		a.posts.events.orphaned(ctx, Orphan{
			BucketID: a.posts.cfg.BucketID,
			FileID:   ref,
			Slug:     slug,
			Reason:   OrphanCreateFailed,
			Err:      err,
		})
		return nil, err
	}
	return post, nil
}

// Revise applies an edit to the post at slug, replacing its featured image
// when a new one is supplied.
func (a *Authoring) Revise(ctx context.Context, slug string, in ReviseInput) Result[*Post] {
	if err := ValidateRevise(in); err != nil {
		return Fail[*Post](KindInvalid, err)
	}

	current := a.posts.Get(ctx, slug)
	if !current.OK() {
		return current
	}
	previous := current.Value().FeaturedImage

	update := UpdatePostInput{
		Content: in.Content,
		Status:  in.Status,
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		update.Title = &title
	}

	var replacement string
	if in.Image != nil {
		ref, err := a.upload(ctx, in.Image)
		if err != nil {
			return Fail[*Post](KindUpload, err)
		}
		replacement = ref
		update.FeaturedImage = &replacement
	}

	res := a.posts.Update(ctx, slug, update)
	if !res.OK() {
		if replacement != "" {
			a.posts.events.orphaned(ctx, Orphan{
				BucketID: a.posts.cfg.BucketID,
				FileID:   replacement,
				Slug:     slug,
				Reason:   OrphanUpdateFailed,
				Err:      res.Err(),
			})
		}
		return res
	}

	if replacement != "" && previous != "" && previous != replacement {
		a.posts.releaseBlob(ctx, slug, previous, OrphanReplaceCleanupFailed)
	}
	return res
}

// Remove deletes the post at slug and, best effort, its image.
func (a *Authoring) Remove(ctx context.Context, slug string) Result[bool] {
	return a.posts.Delete(ctx, slug)
}

func (a *Authoring) upload(ctx context.Context, img *ImageUpload) (string, error) {
	fileID := a.newFileID()
	file, err := a.posts.blobs.CreateFile(ctx, a.posts.cfg.BucketID, fileID, img.Body, FileParams{
		Name:        img.Name,
		MimeType:    img.MimeType,
		Size:        img.Size,
		Permissions: []Permission{PublicRead},
	})
	if err != nil {
		a.logger.Error("Failed to upload image", "file_id", fileID, "name", img.Name, "error", err)
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, &StoreError{Store: "blob", Op: "create", Key: fileID, Err: err})
	}
	if file == nil || file.ID == "" {
		a.logger.Error("Blob store returned no file for upload", "file_id", fileID)
		return "", ErrUploadFailed
	}
	return file.ID, nil
}
