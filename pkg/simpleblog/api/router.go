package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/presigned"
)

// Routes mounts the sessions, posts and storage endpoints. files may be
// nil when blobs are served by the store itself, as with S3.
func Routes(blog *simpleblog.Blog, auth *Auth, files simpleblog.FileReader, signer *presigned.Signer) chi.Router {
	r := chi.NewRouter()
	r.Mount("/sessions", NewSessionsHandler(blog.Sessions, auth).Routes())
	r.Mount("/posts", NewPostsHandler(blog, auth).Routes())
	if files != nil {
		r.Mount("/storage", NewFilesHandler(files, signer).Routes())
	}
	return r
}
