package simpleblog

import (
	"regexp"
	"strings"
)

// MaxImageSize is the largest accepted featured image, 5 MiB.
const MaxImageSize = 5 * 1024 * 1024

var imageTypePattern = regexp.MustCompile(`^image/(png|jpe?g|gif|webp)$`)

// ValidationError describes one rejected form field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every rejected field of a form.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationErrors) add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

func (e ValidationErrors) errOrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// ValidateImage checks the type and size of an upload.
func ValidateImage(img *ImageUpload) error {
	var errs ValidationErrors
	validateImage(&errs, img)
	return errs.errOrNil()
}

func validateImage(errs *ValidationErrors, img *ImageUpload) {
	if !imageTypePattern.MatchString(img.MimeType) {
		errs.add("image", "Unsupported file type")
	}
	if img.Size > MaxImageSize {
		errs.add("image", "Image must be ≤ 5MB")
	}
}

// ValidatePublish checks a new post form. The featured image is mandatory.
func ValidatePublish(in PublishInput, slug string) error {
	var errs ValidationErrors
	if strings.TrimSpace(in.Title) == "" {
		errs.add("title", "Title is required")
	}
	if slug == "" {
		errs.add("slug", "Slug is required")
	} else if !ValidSlug(slug) {
		errs.add("slug", "Slug may only contain lowercase letters, numbers and hyphens")
	}
	if in.Status != "" && !in.Status.Valid() {
		errs.add("status", "Status is invalid")
	}
	if in.AuthorID == "" {
		errs.add("author", "Author is required")
	}
	if in.Image == nil {
		errs.add("image", "Please select a featured image")
	} else {
		validateImage(&errs, in.Image)
	}
	return errs.errOrNil()
}

// ValidateRevise checks an edit form. Only supplied fields are checked.
func ValidateRevise(in ReviseInput) error {
	var errs ValidationErrors
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		errs.add("title", "Title is required")
	}
	if in.Status != nil && !in.Status.Valid() {
		errs.add("status", "Status is invalid")
	}
	if in.Image != nil {
		validateImage(&errs, in.Image)
	}
	return errs.errOrNil()
}
