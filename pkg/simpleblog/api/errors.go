package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string                       `json:"error"`
	Fields []simpleblog.ValidationError `json:"fields,omitempty"`
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}

// statusForKind maps a Result failure to an HTTP status.
func statusForKind(kind simpleblog.FailureKind) int {
	switch kind {
	case simpleblog.KindNotFound:
		return http.StatusNotFound
	case simpleblog.KindInvalid:
		return http.StatusUnprocessableEntity
	case simpleblog.KindUpload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// renderFailure writes the response for a failed Result. Validation
// failures carry their field messages; store failures are not echoed.
func renderFailure(w http.ResponseWriter, r *http.Request, kind simpleblog.FailureKind, err error) {
	status := statusForKind(kind)
	resp := ErrorResponse{Error: http.StatusText(status)}

	var verrs simpleblog.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		resp.Error = "Validation failed"
		resp.Fields = verrs
	case kind == simpleblog.KindNotFound:
		resp.Error = "Post not found"
	case kind == simpleblog.KindUpload:
		resp.Error = "Image upload failed"
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

// renderCreationError writes the response for a failed Publish.
func renderCreationError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs simpleblog.ValidationErrors
	if errors.As(err, &verrs) {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, ErrorResponse{Error: "Validation failed", Fields: verrs})
		return
	}

	var cerr *simpleblog.CreationError
	if errors.As(err, &cerr) && cerr.Conflict() {
		renderError(w, r, http.StatusConflict, "A post with this slug already exists")
		return
	}
	if errors.Is(err, simpleblog.ErrUploadFailed) {
		renderError(w, r, http.StatusBadGateway, "Image upload failed")
		return
	}

	msg := "Failed to create post"
	if cerr != nil {
		msg = cerr.Error()
	}
	renderError(w, r, http.StatusInternalServerError, msg)
}
