package simpleblog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// MediaResolver turns featured image references into display URLs.
type MediaResolver struct {
	blobs    BlobStore
	bucketID string
	preview  PreviewOptions
	logger   *slog.Logger
}

// NewMediaResolver creates a resolver for files in bucketID.
func NewMediaResolver(blobs BlobStore, bucketID string, preview PreviewOptions, logger *slog.Logger) *MediaResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaResolver{
		blobs:    blobs,
		bucketID: bucketID,
		preview:  preview,
		logger:   logger,
	}
}

// ResolvePreview returns the resized preview URL of ref. It reports false
// for an empty ref or when the blob store fails; errors never propagate.
func (m *MediaResolver) ResolvePreview(ctx context.Context, ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	return m.resolve("preview", ref, func() (string, error) {
		return m.blobs.GetFilePreview(ctx, m.bucketID, ref, m.preview)
	})
}

// ResolveView returns the original file URL of ref, with the same failure
// rules as ResolvePreview.
func (m *MediaResolver) ResolveView(ctx context.Context, ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	return m.resolve("view", ref, func() (string, error) {
		return m.blobs.GetFileView(ctx, m.bucketID, ref)
	})
}

func (m *MediaResolver) resolve(kind, ref string, fn func() (string, error)) (url string, ok bool) {
	defer func() {
		// A panicking backend resolves to no URL.
		if r := recover(); r != nil {
			m.logger.Warn("Blob store panicked while resolving URL", "kind", kind, "file_id", ref, "panic", fmt.Sprint(r))
			url, ok = "", false
		}
	}()

	url, err := fn()
	if err != nil {
		m.logger.Debug("Failed to resolve URL", "kind", kind, "file_id", ref, "error", err)
		return "", false
	}
	if url == "" {
		return "", false
	}
	return url, true
}

// Fallback resolves both candidates for ref and returns the state machine a
// renderer walks through. An empty ref starts in ImageUnavailable without
// touching the blob store.
func (m *MediaResolver) Fallback(ctx context.Context, ref string) *ImageFallback {
	if ref == "" {
		return NewImageFallback("", "")
	}
	preview, _ := m.ResolvePreview(ctx, ref)
	view, _ := m.ResolveView(ctx, ref)
	return NewImageFallback(preview, view)
}

// MakePublic grants public read on ref. It first tries the options-shaped
// UpdateFile call, then the positional SetFilePermissions call when the
// store offers one. A file that is already public counts as success, so the
// call is safe to repeat.
func (m *MediaResolver) MakePublic(ctx context.Context, ref string) bool {
	if ref == "" {
		return false
	}
	perms := []Permission{PublicRead}

	err := m.blobs.UpdateFile(ctx, m.bucketID, ref, FileUpdate{Permissions: perms})
	if err == nil || errors.Is(err, ErrAlreadyPublic) {
		return true
	}
	m.logger.Debug("Options-shaped permission update failed", "file_id", ref, "error", err)

	if setter, ok := m.blobs.(PermissionSetter); ok {
		err = setter.SetFilePermissions(ctx, m.bucketID, ref, perms)
		if err == nil || errors.Is(err, ErrAlreadyPublic) {
			return true
		}
	}

	m.logger.Warn("Failed to make file public", "file_id", ref, "error", err)
	return false
}

// ImageState is a step of the featured image fallback chain.
type ImageState int

const (
	ImagePreview ImageState = iota
	ImageViewFallback
	ImageUnavailable
)

func (s ImageState) String() string {
	switch s {
	case ImagePreview:
		return "preview"
	case ImageViewFallback:
		return "view"
	case ImageUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ImageFallback walks preview, then view, then the placeholder. Each Fail
// moves one step forward; ImageUnavailable is terminal.
type ImageFallback struct {
	previewURL string
	viewURL    string
	state      ImageState
}

// NewImageFallback builds the state machine from already resolved URLs. A
// missing preview URL skips straight to the view URL, and with neither the
// machine starts unavailable.
func NewImageFallback(previewURL, viewURL string) *ImageFallback {
	f := &ImageFallback{previewURL: previewURL, viewURL: viewURL}
	switch {
	case previewURL != "":
		f.state = ImagePreview
	case viewURL != "":
		f.state = ImageViewFallback
	default:
		f.state = ImageUnavailable
	}
	return f
}

// State returns the current step.
func (f *ImageFallback) State() ImageState {
	return f.state
}

// Src returns the URL to render now, false once the placeholder is due.
func (f *ImageFallback) Src() (string, bool) {
	switch f.state {
	case ImagePreview:
		return f.previewURL, true
	case ImageViewFallback:
		return f.viewURL, true
	default:
		return "", false
	}
}

// PreviewURL returns the resolved preview candidate.
func (f *ImageFallback) PreviewURL() string {
	return f.previewURL
}

// ViewURL returns the resolved view candidate.
func (f *ImageFallback) ViewURL() string {
	return f.viewURL
}

// Fail records a render failure of the current candidate and returns the
// new state.
func (f *ImageFallback) Fail() ImageState {
	switch f.state {
	case ImagePreview:
		if f.viewURL != "" {
			f.state = ImageViewFallback
		} else {
			f.state = ImageUnavailable
		}
	case ImageViewFallback:
		f.state = ImageUnavailable
	}
	return f.state
}

// Probe attempts to render an image URL.
type Probe interface {
	Load(ctx context.Context, url string) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context, url string) error

// Load calls fn.
func (fn ProbeFunc) Load(ctx context.Context, url string) error {
	return fn(ctx, url)
}

// Settle renders candidates with probe until one loads or the chain is
// exhausted. It loads each candidate at most once, and a settled
// ImageUnavailable machine makes no further loads.
func (f *ImageFallback) Settle(ctx context.Context, probe Probe) (string, ImageState) {
	for {
		src, ok := f.Src()
		if !ok {
			return "", f.state
		}
		if err := probe.Load(ctx, src); err == nil {
			return src, f.state
		}
		f.Fail()
	}
}
