package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// maxFormBytes bounds a post form: the largest accepted image plus room for
// the text fields.
const maxFormBytes = simpleblog.MaxImageSize + 1<<20

// PostsHandler handles post reading and authoring endpoints
type PostsHandler struct {
	blog *simpleblog.Blog
	auth *Auth
}

func NewPostsHandler(blog *simpleblog.Blog, auth *Auth) *PostsHandler {
	return &PostsHandler{blog: blog, auth: auth}
}

// Routes returns the router for posts endpoints
func (h *PostsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListPosts)
	r.Get("/{slug}", h.GetPost)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.Required)
		r.Post("/", h.CreatePost)
		r.Patch("/{slug}", h.UpdatePost)
		r.Delete("/{slug}", h.DeletePost)
		r.Post("/{slug}/image/public", h.MakeImagePublic)
	})
	return r
}

// ImageResponse carries the featured image candidates of a post. State is
// where the fallback chain starts: preview, view or unavailable.
type ImageResponse struct {
	PreviewURL string `json:"preview_url,omitempty"`
	ViewURL    string `json:"view_url,omitempty"`
	State      string `json:"state"`
}

// PostResponse is a post with its resolved featured image
type PostResponse struct {
	Slug      string                `json:"slug"`
	Title     string                `json:"title"`
	Content   string                `json:"content"`
	Status    simpleblog.PostStatus `json:"status"`
	AuthorID  string                `json:"author_id"`
	ImageID   string                `json:"featured_image,omitempty"`
	Image     ImageResponse         `json:"image"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// ListPostsResponse is returned by the list endpoint
type ListPostsResponse struct {
	Posts []PostResponse `json:"posts"`
}

// ListPosts lists posts. Without a status parameter only active posts are
// listed; status=all lists every status.
func (h *PostsHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var opts []simpleblog.ListOption

	switch status := q.Get("status"); status {
	case "":
	case "all":
		opts = append(opts, simpleblog.WithAnyStatus())
	default:
		s := simpleblog.PostStatus(status)
		if !s.Valid() {
			renderError(w, r, http.StatusBadRequest, "Invalid status")
			return
		}
		opts = append(opts, simpleblog.WithStatus(s))
	}
	if author := q.Get("author"); author != "" {
		opts = append(opts, simpleblog.WithAuthor(author))
	}
	for param, opt := range map[string]func(int) simpleblog.ListOption{
		"limit":  simpleblog.WithLimit,
		"offset": simpleblog.WithOffset,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			renderError(w, r, http.StatusBadRequest, "Invalid "+param)
			return
		}
		opts = append(opts, opt(n))
	}

	mount := simpleblog.MountContext(r.Context())
	applied := simpleblog.Load(r.Context(), mount,
		func(ctx context.Context) simpleblog.Result[ListPostsResponse] {
			res := h.blog.Posts.List(ctx, opts...)
			if !res.OK() {
				return simpleblog.Fail[ListPostsResponse](res.Kind(), res.Err())
			}
			out := ListPostsResponse{Posts: make([]PostResponse, 0, len(res.Value()))}
			for _, post := range res.Value() {
				out.Posts = append(out.Posts, h.postResponse(ctx, post))
			}
			return simpleblog.Ok(out)
		},
		func(res simpleblog.Result[ListPostsResponse]) {
			if !res.OK() {
				renderError(w, r, http.StatusInternalServerError, "Failed to list posts")
				return
			}
			render.JSON(w, r, res.Value())
		},
	)
	if !applied {
		slog.Debug("Client went away before posts were listed")
	}
}

// GetPost returns one post with its image candidates
func (h *PostsHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	mount := simpleblog.MountContext(r.Context())
	simpleblog.Load(r.Context(), mount,
		func(ctx context.Context) simpleblog.Result[PostResponse] {
			res := h.blog.Posts.Get(ctx, slug)
			if !res.OK() {
				return simpleblog.Fail[PostResponse](res.Kind(), res.Err())
			}
			return simpleblog.Ok(h.postResponse(ctx, res.Value()))
		},
		func(res simpleblog.Result[PostResponse]) {
			if !res.OK() {
				renderFailure(w, r, res.Kind(), res.Err())
				return
			}
			render.JSON(w, r, res.Value())
		},
	)
}

// CreatePost publishes a post. The form is multipart with an image part;
// a JSON body is accepted too but fails validation without an image.
func (h *PostsHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	form, err := readPostForm(w, r)
	if err != nil {
		slog.Error("Failed to parse post form", "error", err)
		renderError(w, r, http.StatusBadRequest, "Invalid post form")
		return
	}
	defer form.Close()

	in := simpleblog.PublishInput{
		Title:    deref(form.Title),
		Slug:     deref(form.Slug),
		Content:  deref(form.Content),
		AuthorID: identity.ID,
		Image:    form.Image,
	}
	if form.Status != nil {
		in.Status = simpleblog.PostStatus(*form.Status)
	}

	post, err := h.blog.Authoring.Publish(r.Context(), in)
	if err != nil {
		slog.Error("Failed to publish post", "slug", in.Slug, "error", err)
		renderCreationError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.postResponse(r.Context(), post))
}

// UpdatePost applies a partial edit. Only fields present in the form are
// changed.
func (h *PostsHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if _, ok := h.authorize(w, r, slug); !ok {
		return
	}

	form, err := readPostForm(w, r)
	if err != nil {
		slog.Error("Failed to parse post form", "slug", slug, "error", err)
		renderError(w, r, http.StatusBadRequest, "Invalid post form")
		return
	}
	defer form.Close()

	in := simpleblog.ReviseInput{
		Title:   form.Title,
		Content: form.Content,
		Image:   form.Image,
	}
	if form.Status != nil {
		s := simpleblog.PostStatus(*form.Status)
		in.Status = &s
	}

	res := h.blog.Authoring.Revise(r.Context(), slug, in)
	if !res.OK() {
		slog.Error("Failed to revise post", "slug", slug, "kind", res.Kind().String(), "error", res.Err())
		renderFailure(w, r, res.Kind(), res.Err())
		return
	}

	render.JSON(w, r, h.postResponse(r.Context(), res.Value()))
}

// DeletePost removes a post and its image
func (h *PostsHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if _, ok := h.authorize(w, r, slug); !ok {
		return
	}

	res := h.blog.Authoring.Remove(r.Context(), slug)
	if !res.OK() {
		slog.Error("Failed to delete post", "slug", slug, "error", res.Err())
		renderFailure(w, r, res.Kind(), res.Err())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MakeImagePublicResponse reports whether the image now grants public read
type MakeImagePublicResponse struct {
	Public bool `json:"public"`
}

// MakeImagePublic grants public read on the featured image of a post
func (h *PostsHandler) MakeImagePublic(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post, ok := h.authorize(w, r, slug)
	if !ok {
		return
	}
	if post.FeaturedImage == "" {
		renderError(w, r, http.StatusNotFound, "Post has no featured image")
		return
	}

	public := h.blog.Media.MakePublic(r.Context(), post.FeaturedImage)
	if !public {
		render.Status(r, http.StatusBadGateway)
	}
	render.JSON(w, r, MakeImagePublicResponse{Public: public})
}

// authorize loads the post at slug and checks that the caller wrote it.
func (h *PostsHandler) authorize(w http.ResponseWriter, r *http.Request, slug string) (*simpleblog.Post, bool) {
	identity := IdentityFromContext(r.Context())

	res := h.blog.Posts.Get(r.Context(), slug)
	if !res.OK() {
		renderFailure(w, r, res.Kind(), res.Err())
		return nil, false
	}
	post := res.Value()
	if identity == nil || post.AuthorID != identity.ID {
		slog.Warn("Rejected edit by non-author", "slug", slug)
		renderError(w, r, http.StatusForbidden, "Only the author can change this post")
		return nil, false
	}
	return post, true
}

func (h *PostsHandler) postResponse(ctx context.Context, post *simpleblog.Post) PostResponse {
	fallback := h.blog.Media.Fallback(ctx, post.FeaturedImage)
	return PostResponse{
		Slug:     post.Slug,
		Title:    post.Title,
		Content:  post.Content,
		Status:   post.Status,
		AuthorID: post.AuthorID,
		ImageID:  post.FeaturedImage,
		Image: ImageResponse{
			PreviewURL: fallback.PreviewURL(),
			ViewURL:    fallback.ViewURL(),
			State:      fallback.State().String(),
		},
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
}

// postForm is a parsed post form. Nil fields were not submitted.
type postForm struct {
	Title   *string `json:"title"`
	Slug    *string `json:"slug"`
	Content *string `json:"content"`
	Status  *string `json:"status"`

	Image *simpleblog.ImageUpload `json:"-"`
	file  multipart.File
	mform *multipart.Form
}

func (f *postForm) Close() {
	if f.file != nil {
		f.file.Close()
	}
	if f.mform != nil {
		f.mform.RemoveAll()
	}
}

func readPostForm(w http.ResponseWriter, r *http.Request) (*postForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var form postForm
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return &form, nil
	}

	if err := r.ParseMultipartForm(maxFormBytes); err != nil {
		return nil, err
	}
	form := &postForm{mform: r.MultipartForm}
	value := func(key string) *string {
		if vs, ok := r.MultipartForm.Value[key]; ok && len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}
	form.Title = value("title")
	form.Slug = value("slug")
	form.Content = value("content")
	form.Status = value("status")

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil
	}
	if err != nil {
		form.Close()
		return nil, err
	}
	form.file = file
	form.Image = &simpleblog.ImageUpload{
		Name:     header.Filename,
		MimeType: partMimeType(header),
		Size:     header.Size,
		Body:     file,
	}
	return form, nil
}

// partMimeType prefers the part's declared type and falls back to the file
// extension.
func partMimeType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return strings.ToLower(ct)
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil {
			return mediaType
		}
	}
	return "application/octet-stream"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
